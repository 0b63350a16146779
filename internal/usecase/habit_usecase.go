// Package usecase contains the application-specific business rules.
package usecase

import (
	"context"
	"time"

	"streakbuddy/internal/domain/entity"
)

// ReviewResult is the outcome of approving or rejecting a proof.
type ReviewResult struct {
	Proof   *entity.Proof `json:"proof"`
	Habit   *entity.Habit `json:"habit"`
	Changed bool          `json:"changed"` // False when the proof was already terminal.
}

// InviteResult is the outcome of answering an invite.
type InviteResult struct {
	Invite  *entity.Invite `json:"invite"`
	Habit   *entity.Habit  `json:"habit"`
	Changed bool           `json:"changed"` // False when the invite was no longer pending.
}

// ProofPage is one page of a habit's proofs, newest first.
type ProofPage struct {
	Proofs     []*entity.Proof `json:"proofs"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

// SweepResult summarises a maintenance pass over every habit.
type SweepResult struct {
	Habits  int `json:"habits"`
	Reset   int `json:"reset"`
	Decayed int `json:"decayed"`
}

// HabitUsecase is the habit aggregate engine: every mutation of habits, proofs and invites.
type HabitUsecase interface {
	// CreateHabit creates a habit owned by the actor.
	CreateHabit(ctx context.Context, actor entity.Actor, name string) (*entity.Habit, error)

	// GetHabit returns a habit the actor is a member of.
	GetHabit(ctx context.Context, actor entity.Actor, habitID string) (*entity.Habit, error)

	// InviteBuddy creates a pending invite. It returns nil, nil when the invitee is already a
	// member or already has a pending invite.
	InviteBuddy(ctx context.Context, actor entity.Actor, habitID, inviteeID string) (*entity.Invite, error)

	// RespondToInvite accepts or rejects an invite addressed to the actor.
	RespondToInvite(ctx context.Context, actor entity.Actor, habitID, inviteID string, response entity.InviteStatus) (*InviteResult, error)

	// SubmitProof stores the asset and records today's pending proof for the actor.
	SubmitProof(ctx context.Context, actor entity.Actor, habitID string, asset entity.ProofAsset) (*entity.Proof, error)

	// ApproveProof approves another member's pending proof.
	ApproveProof(ctx context.Context, actor entity.Actor, habitID, proofID string) (*ReviewResult, error)

	// RejectProof rejects another member's pending proof.
	RejectProof(ctx context.Context, actor entity.Actor, habitID, proofID string) (*ReviewResult, error)

	// DailyReset clears member statuses of the actor's habits not yet reset on the actor's today.
	DailyReset(ctx context.Context, actor entity.Actor) (int, error)

	// CheckAndResetStreaks zeroes streaks whose latest approved proof is older than yesterday.
	CheckAndResetStreaks(ctx context.Context, actor entity.Actor) (int, error)

	// ListProofs pages through a habit's proofs, newest first.
	ListProofs(ctx context.Context, actor entity.Actor, habitID string, limit int, cursor string) (*ProofPage, error)

	// ListPendingInvites returns invites addressed to the actor, newest first.
	ListPendingInvites(ctx context.Context, actor entity.Actor) ([]*entity.Invite, error)

	// SweepAll runs the daily reset and streak decay over every habit in loc.
	SweepAll(ctx context.Context, loc *time.Location) (*SweepResult, error)
}
