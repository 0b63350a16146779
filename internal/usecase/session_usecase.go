package usecase

import (
	"context"
	"time"

	"streakbuddy/internal/domain/entity"
)

// ViewItemType distinguishes entries of the merged list.
type ViewItemType string

const (
	ViewItemInvite ViewItemType = "invite"
	ViewItemHabit  ViewItemType = "habit"
)

// MemberView is a member as rendered to clients, with the legacy flags projected from the status.
type MemberView struct {
	entity.Member
	SubmittedToday bool          `json:"submittedToday"`
	Approved       *bool         `json:"approved"`
	TodayProof     *entity.Proof `json:"todayProof,omitempty"`
}

// HabitView is a habit with its derived per-day state.
type HabitView struct {
	Habit      *entity.Habit       `json:"habit"`
	Members    []MemberView        `json:"members"`
	TodayProof *entity.Proof       `json:"todayProof,omitempty"`
	MyStatus   entity.MemberStatus `json:"myStatus"`
}

// ViewItem is one entry of the merged list: an invite or a habit.
type ViewItem struct {
	Type   ViewItemType   `json:"type"`
	Invite *entity.Invite `json:"invite,omitempty"`
	Habit  *HabitView     `json:"habit,omitempty"`
}

// SessionView is the merged, deduplicated list a signed-in user sees.
type SessionView struct {
	Seq         uint64     `json:"seq"`
	UserID      string     `json:"userId"`
	Day         entity.Day `json:"day"`
	Items       []ViewItem `json:"items"`
	GeneratedAt time.Time  `json:"generatedAt"`
}

// Session is the live state of one signed-in user. It is created on sign-in and must be
// closed on sign-out.
type Session interface {
	// Updates delivers the latest view. Intermediate views may be skipped; the channel is
	// closed once the session stops.
	Updates() <-chan *SessionView

	// Close tears down every subscription. No view is delivered after it returns.
	Close() error

	// Done is closed when the session stops, either by Close or because of a fatal error.
	Done() <-chan struct{}

	// Err reports why the session stopped, nil after a plain Close.
	Err() error
}

// SessionUsecase opens live sessions.
type SessionUsecase interface {
	// Open runs the sign-in maintenance for the actor and starts the live view.
	Open(ctx context.Context, actor entity.Actor) (Session, error)
}
