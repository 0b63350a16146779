package repository

import (
	"context"

	"streakbuddy/internal/domain/entity"

	"github.com/pkg/errors"
)

var (
	// ErrUserNotFound is returned when a profile does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateUser is returned when creating a profile that already exists.
	ErrDuplicateUser = errors.New("user already exists")
)

// UserRepository defines the operations on profile documents.
type UserRepository interface {
	// Create persists a new profile.
	Create(ctx context.Context, user *entity.User) error

	// FindByID retrieves a profile by user id.
	FindByID(ctx context.Context, id string) (*entity.User, error)

	// SearchByUsernamePrefix returns up to limit profiles whose username starts with prefix,
	// ordered by username.
	SearchByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]*entity.User, error)

	// UpdateProfilePic replaces the profile picture URL.
	UpdateProfilePic(ctx context.Context, id, url string) error
}
