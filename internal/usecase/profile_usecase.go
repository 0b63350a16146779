package usecase

import (
	"context"

	"streakbuddy/internal/domain/entity"
)

// ProfileUsecase manages the profile documents kept next to identity provider accounts.
type ProfileUsecase interface {
	// EnsureUser creates the profile on first sign-in. The username defaults to the e-mail
	// prefix when empty. Existing profiles are returned unchanged.
	EnsureUser(ctx context.Context, identity *entity.Identity, username string) (*entity.User, error)

	// GetUser returns a profile by id.
	GetUser(ctx context.Context, userID string) (*entity.User, error)

	// SearchUsers returns profiles whose username starts with prefix.
	SearchUsers(ctx context.Context, prefix string, limit int) ([]*entity.User, error)

	// UploadProfilePicture stores a new picture and updates the profile.
	UploadProfilePicture(ctx context.Context, userID string, data []byte, contentType string) (*entity.User, error)

	// PairingQR renders a QR code a buddy can scan to invite the user.
	PairingQR(ctx context.Context, userID string) ([]byte, error)
}
