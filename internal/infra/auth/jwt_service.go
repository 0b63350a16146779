// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"context"
	"time"

	"streakbuddy/config"
	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/domain/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const minSecretLength = 16

// jwtService is a concrete implementation of the TokenService interface using the JWT standard.
type jwtService struct {
	secret []byte        // Secret key for signing tokens.
	issuer string        // Stamped into and required from every token.
	ttl    time.Duration // Time-to-live for tokens.
	now    func() time.Time
}

// NewJWTService is the constructor for jwtService.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	if len(cfg.Identity.Secret) < minSecretLength {
		return nil, errors.Errorf("identity.secret must be at least %d characters", minSecretLength)
	}

	return &jwtService{
		secret: []byte(cfg.Identity.Secret),
		issuer: cfg.Identity.Issuer,
		ttl:    cfg.Identity.TokenTTL,
		now:    time.Now,
	}, nil
}

// GenerateToken creates an access token for the given user.
func (s *jwtService) GenerateToken(userID, email, name string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}

	now := s.now()
	claims := service.Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}

	return token, nil
}

// ValidateToken checks the signature, expiry and issuer of a token.
func (s *jwtService) ValidateToken(tokenString string) (*service.Claims, error) {
	claims := new(service.Claims)

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.Wrap(service.ErrInvalidCredentials, err.Error())
	}

	if claims.Subject == "" {
		return nil, errors.Wrap(service.ErrInvalidCredentials, "token has no subject")
	}

	return claims, nil
}

// tokenIdentityProvider verifies locally issued tokens.
type tokenIdentityProvider struct {
	tokens service.TokenService
}

// NewTokenIdentityProvider adapts a TokenService to the IdentityProvider contract.
func NewTokenIdentityProvider(tokens service.TokenService) service.IdentityProvider {
	return &tokenIdentityProvider{tokens: tokens}
}

func (p *tokenIdentityProvider) VerifyToken(_ context.Context, token string) (*entity.Identity, error) {
	claims, err := p.tokens.ValidateToken(token)
	if err != nil {
		return nil, err //nolint:wrapcheck // already ErrInvalidCredentials
	}

	identity := &entity.Identity{
		UserID:      claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}

	return identity, nil
}
