// Package google verifies Google Sign-In ID tokens.
package google

import (
	"context"
	"log/slog"
	"time"

	"streakbuddy/config"
	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/domain/service"

	"github.com/pkg/errors"
	"google.golang.org/api/idtoken"
)

// GoogleIDTokenClaims represents the claims in a Google ID token
type GoogleIDTokenClaims struct {
	Iss           string // Issuer
	Sub           string // Subject (user ID)
	Exp           int64  // Expiration time
	Email         string // User's email
	EmailVerified bool   // Email verification status
	Name          string // User's full name
}

// validateFunc matches idtoken.Validate.
type validateFunc func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

// AuthServiceImpl implements service.IdentityProvider for Google ID tokens.
type AuthServiceImpl struct {
	clientID string
	validate validateFunc
	logger   *slog.Logger
}

// NewAuthService creates a new Google identity provider.
func NewAuthService(cfg *config.Config, logger *slog.Logger) (service.IdentityProvider, error) {
	if cfg.Identity.Audience == "" {
		return nil, errors.New("identity.audience is required for the google provider")
	}

	return &AuthServiceImpl{
		clientID: cfg.Identity.Audience,
		validate: idtoken.Validate,
		logger:   logger,
	}, nil
}

// VerifyToken checks signature and audience through Google's public keys, then the claims.
func (s *AuthServiceImpl) VerifyToken(ctx context.Context, idToken string) (*entity.Identity, error) {
	payload, err := s.validate(ctx, idToken, s.clientID)
	if err != nil {
		s.logger.Debug("Google ID token rejected", "error", err)

		return nil, errors.Wrap(service.ErrInvalidCredentials, err.Error())
	}

	claims := claimsFromPayload(payload)
	if err := s.verifyTokenClaims(claims); err != nil {
		s.logger.Debug("Google ID token claims rejected", "error", err)

		return nil, errors.Wrap(service.ErrInvalidCredentials, err.Error())
	}

	return &entity.Identity{
		UserID:      claims.Sub,
		Email:       claims.Email,
		DisplayName: claims.Name,
		ExpiresAt:   time.Unix(claims.Exp, 0),
	}, nil
}

func claimsFromPayload(p *idtoken.Payload) *GoogleIDTokenClaims {
	claims := &GoogleIDTokenClaims{
		Iss: p.Issuer,
		Sub: p.Subject,
		Exp: p.Expires,
	}

	if email, ok := p.Claims["email"].(string); ok {
		claims.Email = email
	}

	if verified, ok := p.Claims["email_verified"].(bool); ok {
		claims.EmailVerified = verified
	}

	if name, ok := p.Claims["name"].(string); ok {
		claims.Name = name
	}

	return claims
}

// verifyTokenClaims verifies the token claims
func (s *AuthServiceImpl) verifyTokenClaims(claims *GoogleIDTokenClaims) error {
	if claims.Iss != "https://accounts.google.com" && claims.Iss != "accounts.google.com" {
		return errors.Errorf("invalid issuer: %s", claims.Iss)
	}

	if claims.Sub == "" {
		return errors.New("token has no subject")
	}

	if !claims.EmailVerified {
		return errors.New("email not verified")
	}

	return nil
}
