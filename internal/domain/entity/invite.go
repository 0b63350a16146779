package entity

import (
	"time"
)

// InviteStatus is the lifecycle state of an invite.
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusRejected InviteStatus = "rejected"
)

// IsResponse reports whether s is a valid answer to a pending invite.
func (s InviteStatus) IsResponse() bool {
	return s == InviteStatusAccepted || s == InviteStatusRejected
}

// Invite asks a user to join a habit.
type Invite struct {
	ID          string       `json:"inviteId"`              // Unique invite id within the habit.
	HabitID     string       `json:"habitId"`               // Habit the invitee would join.
	InvitedBy   string       `json:"invitedBy"`             // Member who sent the invite.
	Invitee     string       `json:"invitee"`               // User being invited.
	Status      InviteStatus `json:"status"`                // Lifecycle state.
	Timestamp   time.Time    `json:"timestamp"`             // Server time of creation.
	RespondedAt *time.Time   `json:"respondedAt,omitempty"` // Set once accepted or rejected.
}
