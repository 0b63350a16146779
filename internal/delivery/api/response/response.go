// Package response renders the JSON envelope every API endpoint answers with:
// {"data": ..., "meta": {...}} on success and {"error": {...}, "meta": {...}} on failure.
package response

import (
	"net/http"

	deliverycontext "streakbuddy/internal/delivery/context"
	domainerrors "streakbuddy/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// Meta accompanies every response.
type Meta struct {
	RequestID  string `json:"request_id"`
	NextCursor string `json:"next_cursor,omitempty"` // Set on paginated lists with more items.
}

// SuccessResponse is the envelope of 2xx responses.
type SuccessResponse struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta"`
}

// ErrorResponse is the envelope of 4xx and 5xx responses.
type ErrorResponse struct {
	Error *ErrorInfo `json:"error"`
	Meta  *Meta      `json:"meta"`
}

// ErrorInfo describes a failure. Code is stable and meant for clients to switch on.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func meta(c echo.Context) *Meta {
	return &Meta{RequestID: deliverycontext.GetRequestID(c)}
}

// Success returns a successful response
func Success(c echo.Context, statusCode int, data any) error {
	return c.JSON(statusCode, SuccessResponse{Data: data, Meta: meta(c)})
}

// Accepted answers 202 for work handed off asynchronously, such as nudges.
func Accepted(c echo.Context, data any) error {
	return Success(c, http.StatusAccepted, data)
}

// Page returns one page of a list; an empty nextCursor marks the last page.
func Page[T any](c echo.Context, items []T, nextCursor string) error {
	if items == nil {
		items = []T{}
	}

	m := meta(c)
	m.NextCursor = nextCursor

	return c.JSON(http.StatusOK, SuccessResponse{Data: items, Meta: m})
}

// Error returns an error response. Details are dropped for server and auth failures,
// which must not leak internals or tell a caller why its token was refused.
func Error(c echo.Context, statusCode int, errorCode string, message string, details any) error {
	if statusCode >= http.StatusInternalServerError || statusCode == http.StatusUnauthorized {
		details = nil
	}

	return c.JSON(statusCode, ErrorResponse{
		Error: &ErrorInfo{
			Code:    errorCode,
			Message: message,
			Details: details,
		},
		Meta: meta(c),
	})
}

// HandleAppError renders domain errors and passes anything else on to the
// HTTP error handler.
func HandleAppError(c echo.Context, err error) error {
	var appErr domainerrors.AppError
	if !errors.As(err, &appErr) {
		return errors.WithStack(err)
	}

	var details any
	if d := appErr.Details(); d != "" {
		details = d
	}

	return Error(c, appErr.HTTPCode(), appErr.ErrorCode(), appErr.Message(), details)
}
