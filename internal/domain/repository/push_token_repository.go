package repository

import (
	"context"

	"streakbuddy/internal/domain/entity"

	"github.com/pkg/errors"
)

// ErrPushTokenNotFound is returned when a user has no registered token.
var ErrPushTokenNotFound = errors.New("push token not found")

// PushTokenRepository stores one push token per user.
type PushTokenRepository interface {
	// Save registers or replaces the user's token.
	Save(ctx context.Context, token *entity.PushToken) error

	// FindByUser returns the user's current token.
	FindByUser(ctx context.Context, userID string) (*entity.PushToken, error)

	// Delete removes the user's token. A non-empty token only deletes when it still matches,
	// so a stale failure does not drop a newer registration.
	Delete(ctx context.Context, userID, token string) error
}
