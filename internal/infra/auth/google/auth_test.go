package google

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"streakbuddy/config"
	"streakbuddy/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

func newTestAuthService(t *testing.T, validate validateFunc) *AuthServiceImpl {
	t.Helper()

	cfg := config.Defaults()
	cfg.Identity.Audience = "test_client_id"

	authService, err := NewAuthService(cfg, slog.Default())
	require.NoError(t, err)

	impl := authService.(*AuthServiceImpl)
	impl.validate = validate

	return impl
}

func payload(iss string, verified bool) *idtoken.Payload {
	return &idtoken.Payload{
		Issuer:   iss,
		Audience: "test_client_id",
		Subject:  "test_user_123",
		Expires:  1700000000,
		Claims: map[string]any{
			"email":          "test@example.com",
			"email_verified": verified,
			"name":           "Test User",
		},
	}
}

func TestAuthService_VerifyToken(t *testing.T) {
	var gotAudience string
	authService := newTestAuthService(t, func(_ context.Context, _, audience string) (*idtoken.Payload, error) {
		gotAudience = audience

		return payload("https://accounts.google.com", true), nil
	})

	identity, err := authService.VerifyToken(context.Background(), "id-token")
	require.NoError(t, err)
	assert.Equal(t, "test_client_id", gotAudience)
	assert.Equal(t, "test_user_123", identity.UserID)
	assert.Equal(t, "test@example.com", identity.Email)
	assert.Equal(t, "Test User", identity.DisplayName)
}

func TestAuthService_VerifyToken_InvalidSignature(t *testing.T) {
	authService := newTestAuthService(t, func(context.Context, string, string) (*idtoken.Payload, error) {
		return nil, errors.New("idtoken: invalid token signature")
	})

	identity, err := authService.VerifyToken(context.Background(), "id-token")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	assert.Nil(t, identity)
}

func TestAuthService_VerifyTokenClaims(t *testing.T) {
	tests := []struct {
		name     string
		payload  *idtoken.Payload
		hasError bool
	}{
		{name: "accepted", payload: payload("accounts.google.com", true)},
		{name: "wrong issuer", payload: payload("https://evil.example.com", true), hasError: true},
		{name: "unverified email", payload: payload("https://accounts.google.com", false), hasError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authService := newTestAuthService(t, func(context.Context, string, string) (*idtoken.Payload, error) {
				return tt.payload, nil
			})

			_, err := authService.VerifyToken(context.Background(), "id-token")
			if tt.hasError {
				assert.ErrorIs(t, err, service.ErrInvalidCredentials)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewAuthService_RequiresAudience(t *testing.T) {
	_, err := NewAuthService(config.Defaults(), slog.Default())
	assert.Error(t, err)
}
