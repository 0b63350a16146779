package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	deliverycontext "streakbuddy/internal/delivery/context"
	domainerrors "streakbuddy/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext() (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	deliverycontext.SetRequestID(c, "req-1")

	return c, rec
}

func TestPage(t *testing.T) {
	c, rec := newContext()
	require.NoError(t, Page(c, []string{"a", "b"}, "cursor-2"))

	var body struct {
		Data []string `json:"data"`
		Meta Meta     `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"a", "b"}, body.Data)
	assert.Equal(t, "cursor-2", body.Meta.NextCursor)
	assert.Equal(t, "req-1", body.Meta.RequestID)

	c, rec = newContext()
	require.NoError(t, Page[string](c, nil, ""))
	assert.JSONEq(t, `{"data":[],"meta":{"request_id":"req-1"}}`, rec.Body.String())
}

func TestHandleAppError(t *testing.T) {
	c, rec := newContext()
	require.NoError(t, HandleAppError(c, errors.Wrap(domainerrors.ErrValidationFailed.WithDetails("name is required"), "create habit")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	assert.Equal(t, "name is required", body.Error.Details)

	c, rec = newContext()
	require.NoError(t, HandleAppError(c, domainerrors.ErrUnauthorized.WithDetails("token expired")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "token expired")

	c, _ = newContext()
	plain := errors.New("boom")
	assert.ErrorIs(t, HandleAppError(c, plain), plain, "non-domain errors go to the error handler")
}
