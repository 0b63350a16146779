package repository

import (
	"context"
	"time"

	"streakbuddy/internal/domain/entity"

	"github.com/pkg/errors"
)

// ErrInviteNotFound is returned when an invite does not exist.
var ErrInviteNotFound = errors.New("invite not found")

// InviteRepository defines the operations on a habit's invites.
type InviteRepository interface {
	// Create persists a new pending invite.
	Create(ctx context.Context, invite *entity.Invite) error

	// FindByID retrieves one invite of a habit.
	FindByID(ctx context.Context, habitID, inviteID string) (*entity.Invite, error)

	// FindPendingFor returns the pending invite for invitee on the habit, if any.
	FindPendingFor(ctx context.Context, habitID, invitee string) (*entity.Invite, error)

	// ListPendingForInvitee returns pending invites across all habits, newest first.
	ListPendingForInvitee(ctx context.Context, invitee string) ([]*entity.Invite, error)

	// UpdateStatusIfPending answers a pending invite. It reports false, without error,
	// when the invite was no longer pending.
	UpdateStatusIfPending(ctx context.Context, habitID, inviteID string, status entity.InviteStatus, at time.Time) (bool, error)
}
