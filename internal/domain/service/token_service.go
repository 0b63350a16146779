package service

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims defines the custom claims for locally issued tokens.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 tokens for deployments without an external provider.
type TokenService interface {
	// GenerateToken creates an access token for the given user.
	GenerateToken(userID, email, name string) (string, error)

	// ValidateToken checks the validity of a token string.
	ValidateToken(tokenString string) (*Claims, error)
}
