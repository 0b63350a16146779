package handler

import (
	"net/http"
	"time"

	"streakbuddy/internal/delivery/api/response"
	domainerrors "streakbuddy/internal/domain/errors"
	"streakbuddy/internal/domain/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// DevHandlerParams holds dependencies for DevHandler, injected by Fx.
type DevHandlerParams struct {
	fx.In

	Tokens service.TokenService `optional:"true"`
}

// DevHandler issues local tokens so the API can be exercised without an external provider.
// Its routes are only registered in the develop environment.
type DevHandler struct {
	tokens service.TokenService
}

// NewDevHandler creates a new DevHandler instance
func NewDevHandler(params DevHandlerParams) *DevHandler {
	return &DevHandler{tokens: params.Tokens}
}

// IssueTokenRequest names the user the token is issued for
type IssueTokenRequest struct {
	UserID string `json:"userId" validate:"required"`
	Email  string `json:"email" validate:"omitempty,email"`
	Name   string `json:"name"`
}

// IssueTokenResponse carries the signed token
type IssueTokenResponse struct {
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issuedAt"`
	TokenType string    `json:"tokenType"`
}

// Enabled reports whether a token service is configured.
func (h *DevHandler) Enabled() bool {
	return h.tokens != nil
}

// IssueToken signs a token for any user id
func (h *DevHandler) IssueToken(c echo.Context) error {
	if h.tokens == nil {
		return domainerrors.ErrForbidden.WithDetails("local tokens are disabled")
	}

	var req IssueTokenRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := h.tokens.GenerateToken(req.UserID, req.Email, req.Name)
	if err != nil {
		return domainerrors.ErrInternalError.WithDetails(err.Error())
	}

	return response.Success(c, http.StatusCreated, IssueTokenResponse{
		Token:     token,
		IssuedAt:  time.Now().UTC(),
		TokenType: "Bearer",
	})
}
