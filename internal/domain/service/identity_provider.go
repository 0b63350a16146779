// Package service defines interfaces for outbound collaborators and stateless domain logic.
// Infrastructure packages implement them; use cases depend only on these contracts.
package service

import (
	"context"
	"time"

	"streakbuddy/internal/domain/entity"

	"github.com/pkg/errors"
)

// ErrInvalidCredentials is returned when a token cannot be verified.
var ErrInvalidCredentials = errors.New("invalid credentials")

// IdentityProvider verifies bearer tokens issued by the external identity system.
type IdentityProvider interface {
	// VerifyToken checks the token and returns the identity it asserts.
	VerifyToken(ctx context.Context, token string) (*entity.Identity, error)
}

// Clock abstracts the current time so day boundaries can be tested.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}
