package entity

import (
	"time"
)

// LegacyHabit is the schema-version-1 document: a single habit-level streak shared by
// everyone and members stored as plain ids.
type LegacyHabit struct {
	ID             string
	Name           string
	OwnerID        string
	CreatedAt      time.Time
	Members        []string
	Streak         int
	BestStreak     int
	SubmittedToday bool
	Approved       *bool
	LastReset      Day
	Version        int64
}

// legacyStatus maps the old flag pair onto the explicit variant. An unreviewed
// submission was stored as approved == nil.
func legacyStatus(submitted bool, approved *bool) MemberStatus {
	switch {
	case !submitted:
		return MemberStatusNotSubmitted
	case approved == nil:
		return MemberStatusPending
	case *approved:
		return MemberStatusApproved
	default:
		return MemberStatusRejected
	}
}

// MigrateLegacyHabit converts a version-1 document into the current schema. Every member
// inherits the shared streak; the owner, whose device wrote the flags, inherits today's
// status. The owner is always a member afterwards and duplicate ids collapse.
func MigrateLegacyHabit(l LegacyHabit, now time.Time) *Habit {
	best := max(l.BestStreak, l.Streak, 0)
	streak := max(l.Streak, 0)

	ids := make([]string, 0, len(l.Members)+1)
	if l.OwnerID != "" {
		ids = append(ids, l.OwnerID)
	}

	ids = append(ids, l.Members...)

	h := &Habit{
		ID:            l.ID,
		Name:          l.Name,
		OwnerID:       l.OwnerID,
		CreatedAt:     l.CreatedAt,
		LastReset:     l.LastReset,
		Version:       l.Version,
		SchemaVersion: CurrentSchemaVersion,
		UpdatedAt:     now,
	}

	for _, id := range ids {
		if id == "" || h.HasMember(id) {
			continue
		}

		m := Member{ID: id, Streak: streak, BestStreak: best, Status: MemberStatusNotSubmitted}
		if id == l.OwnerID {
			m.Status = legacyStatus(l.SubmittedToday, l.Approved)
		}

		h.Members = append(h.Members, m)
		h.syncMemberIDs()
	}

	if len(h.Members) == 0 {
		h.MemberIDs = []string{}
	}

	return h
}
