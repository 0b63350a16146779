package handler

import (
	domainerrors "streakbuddy/internal/domain/errors"

	"github.com/labstack/echo/v4"
)

// bindAndValidate decodes the request into req and runs its validate tags.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domainerrors.ErrValidationFailed.WithDetails("malformed request body")
	}

	return c.Validate(req) //nolint:wrapcheck // validator returns domain errors
}
