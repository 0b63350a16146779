package entity

import (
	"fmt"
	"slices"
	"time"
)

// CurrentSchemaVersion is the habit document shape written by this service: one Member
// record per participant, each with its own streak and status.
const CurrentSchemaVersion = 2

// MemberStatus is the per-day state of one member's proof.
type MemberStatus string

const (
	MemberStatusNotSubmitted MemberStatus = "not_submitted"
	MemberStatusPending      MemberStatus = "pending"
	MemberStatusApproved     MemberStatus = "approved"
	MemberStatusRejected     MemberStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s MemberStatus) Valid() bool {
	switch s {
	case MemberStatusNotSubmitted, MemberStatusPending, MemberStatusApproved, MemberStatusRejected:
		return true
	}

	return false
}

// SubmittedToday projects the status onto the legacy boolean flag.
func (s MemberStatus) SubmittedToday() bool {
	return s == MemberStatusPending || s == MemberStatusApproved || s == MemberStatusRejected
}

// Approved projects the status onto the legacy tri-state flag: nil before any
// submission, true once approved, false while pending or after rejection.
func (s MemberStatus) Approved() *bool {
	var v bool

	switch s {
	case MemberStatusApproved:
		v = true
	case MemberStatusPending, MemberStatusRejected:
		v = false
	default:
		return nil
	}

	return &v
}

// Member is one participant of a habit, embedded in the habit document.
type Member struct {
	ID         string       `json:"id"`
	Streak     int          `json:"streak"`
	BestStreak int          `json:"bestStreak"`
	Status     MemberStatus `json:"status"`
}

// NewMember returns a member with no streak and nothing submitted.
func NewMember(id string) Member {
	return Member{ID: id, Status: MemberStatusNotSubmitted}
}

// MarkPending records a submitted proof awaiting review.
func (m *Member) MarkPending() {
	m.Status = MemberStatusPending
}

// Approve marks today's proof approved and extends the streak.
func (m *Member) Approve() {
	m.Streak++
	m.BestStreak = max(m.BestStreak, m.Streak)
	m.Status = MemberStatusApproved
}

// MarkApproved records an approval that arrived after the proof's day ended. The
// streak is left as is.
func (m *Member) MarkApproved() {
	m.Status = MemberStatusApproved
}

// Reject marks today's proof rejected and breaks the streak. The best streak is kept.
func (m *Member) Reject() {
	m.BreakStreak()
	m.Status = MemberStatusRejected
}

// BreakStreak zeroes the current streak without touching today's status.
func (m *Member) BreakStreak() {
	m.Streak = 0
}

// Habit is the aggregate root shared by its members. It is the unit of contention for
// concurrent writers: every mutation bumps Version.
type Habit struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	OwnerID       string    `json:"ownerId"`
	CreatedAt     time.Time `json:"createdAt"`
	Members       []Member  `json:"members"`
	MemberIDs     []string  `json:"memberIds"`
	LastReset     Day       `json:"lastReset"`
	Version       int64     `json:"version"`
	SchemaVersion int       `json:"schemaVersion"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NewHabit creates a habit whose only member is its owner.
func NewHabit(id, name, ownerID string, now time.Time) *Habit {
	h := &Habit{
		ID:            id,
		Name:          name,
		OwnerID:       ownerID,
		CreatedAt:     now,
		UpdatedAt:     now,
		Members:       []Member{NewMember(ownerID)},
		SchemaVersion: CurrentSchemaVersion,
	}
	h.syncMemberIDs()

	return h
}

// FindMember returns a pointer into Members, or nil.
func (h *Habit) FindMember(userID string) *Member {
	for i := range h.Members {
		if h.Members[i].ID == userID {
			return &h.Members[i]
		}
	}

	return nil
}

// HasMember reports whether userID takes part in the habit.
func (h *Habit) HasMember(userID string) bool {
	return h.FindMember(userID) != nil
}

// AddMember appends a fresh member. It returns false when userID is already a member.
func (h *Habit) AddMember(userID string) bool {
	if h.HasMember(userID) {
		return false
	}

	h.Members = append(h.Members, NewMember(userID))
	h.syncMemberIDs()

	return true
}

// PatchMember applies fn to the member with the given id and rewrites MemberIDs.
// It returns false when no such member exists.
func (h *Habit) PatchMember(userID string, fn func(*Member)) bool {
	m := h.FindMember(userID)
	if m == nil {
		return false
	}

	fn(m)
	h.syncMemberIDs()

	return true
}

// OtherMembers lists every member id except userID.
func (h *Habit) OtherMembers(userID string) []string {
	out := make([]string, 0, len(h.Members))
	for _, m := range h.Members {
		if m.ID != userID {
			out = append(out, m.ID)
		}
	}

	return out
}

// ResetDay clears every member's status once per calendar day. LastReset only moves
// forward, so a caller whose calendar is behind changes nothing. It reports whether
// anything changed.
func (h *Habit) ResetDay(today Day) bool {
	if !h.LastReset.Before(today) {
		return false
	}

	for i := range h.Members {
		h.Members[i].Status = MemberStatusNotSubmitted
	}

	h.LastReset = today
	h.syncMemberIDs()

	return true
}

// CheckInvariants validates the document shape every writer must preserve.
func (h *Habit) CheckInvariants() error {
	if len(h.Members) != len(h.MemberIDs) {
		return fmt.Errorf("habit %s: %d members but %d member ids", h.ID, len(h.Members), len(h.MemberIDs))
	}

	seen := make(map[string]struct{}, len(h.Members))
	for i, m := range h.Members {
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("habit %s: duplicate member %s", h.ID, m.ID)
		}

		seen[m.ID] = struct{}{}

		if h.MemberIDs[i] != m.ID {
			return fmt.Errorf("habit %s: member ids out of sync at %d", h.ID, i)
		}

		if m.Streak < 0 || m.BestStreak < 0 {
			return fmt.Errorf("habit %s: negative streak for %s", h.ID, m.ID)
		}

		if m.BestStreak < m.Streak {
			return fmt.Errorf("habit %s: best streak below streak for %s", h.ID, m.ID)
		}

		if !m.Status.Valid() {
			return fmt.Errorf("habit %s: unknown status %q for %s", h.ID, m.Status, m.ID)
		}
	}

	return nil
}

// Clone returns a deep copy safe to mutate independently.
func (h *Habit) Clone() *Habit {
	if h == nil {
		return nil
	}

	c := *h
	c.Members = slices.Clone(h.Members)
	c.MemberIDs = slices.Clone(h.MemberIDs)

	return &c
}

func (h *Habit) syncMemberIDs() {
	ids := make([]string, len(h.Members))
	for i, m := range h.Members {
		ids[i] = m.ID
	}

	h.MemberIDs = ids
}
