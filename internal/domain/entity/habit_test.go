package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHabit_OwnerIsOnlyMember(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	h := NewHabit("h1", "Run", "alice", now)

	assert.Equal(t, []string{"alice"}, h.MemberIDs)
	require.Len(t, h.Members, 1)
	assert.Equal(t, NewMember("alice"), h.Members[0])
	assert.Equal(t, CurrentSchemaVersion, h.SchemaVersion)
	require.NoError(t, h.CheckInvariants())
}

func TestHabit_AddMember_NoDuplicates(t *testing.T) {
	h := NewHabit("h1", "Run", "alice", time.Now())

	assert.True(t, h.AddMember("bob"))
	assert.False(t, h.AddMember("bob"))
	assert.False(t, h.AddMember("alice"))

	assert.Equal(t, []string{"alice", "bob"}, h.MemberIDs)
	require.NoError(t, h.CheckInvariants())
}

func TestHabit_PatchMember(t *testing.T) {
	h := NewHabit("h1", "Run", "alice", time.Now())
	h.AddMember("bob")

	ok := h.PatchMember("bob", func(m *Member) {
		m.MarkPending()
	})
	require.True(t, ok)
	assert.Equal(t, MemberStatusPending, h.FindMember("bob").Status)
	assert.Equal(t, MemberStatusNotSubmitted, h.FindMember("alice").Status)

	assert.False(t, h.PatchMember("carol", func(*Member) {}))
	require.NoError(t, h.CheckInvariants())
}

func TestMember_ApproveAndReject(t *testing.T) {
	m := Member{ID: "bob", Streak: 4, BestStreak: 4, Status: MemberStatusPending}

	m.Approve()
	assert.Equal(t, 5, m.Streak)
	assert.Equal(t, 5, m.BestStreak)
	assert.Equal(t, MemberStatusApproved, m.Status)

	behind := Member{ID: "bob", Streak: 2, BestStreak: 7, Status: MemberStatusPending}
	behind.Approve()
	assert.Equal(t, 3, behind.Streak)
	assert.Equal(t, 7, behind.BestStreak)

	behind.BreakStreak()
	assert.Equal(t, 0, behind.Streak)
	assert.Equal(t, MemberStatusApproved, behind.Status)

	m.Reject()
	assert.Equal(t, 0, m.Streak)
	assert.Equal(t, 5, m.BestStreak)
	assert.Equal(t, MemberStatusRejected, m.Status)
}

func TestHabit_ResetDay(t *testing.T) {
	h := NewHabit("h1", "Run", "alice", time.Now())
	h.AddMember("bob")
	h.LastReset = "2026-03-01"
	h.PatchMember("alice", func(m *Member) { m.Approve() })
	h.PatchMember("bob", func(m *Member) { m.Reject() })

	assert.True(t, h.ResetDay("2026-03-02"))
	for _, m := range h.Members {
		assert.Equal(t, MemberStatusNotSubmitted, m.Status)
	}
	assert.Equal(t, Day("2026-03-02"), h.LastReset)
	assert.Equal(t, 1, h.FindMember("alice").Streak)

	assert.False(t, h.ResetDay("2026-03-02"))

	h.PatchMember("bob", (*Member).MarkPending)
	assert.False(t, h.ResetDay("2026-03-01"))
	assert.Equal(t, Day("2026-03-02"), h.LastReset)
	assert.Equal(t, MemberStatusPending, h.FindMember("bob").Status)
}

func TestMember_MarkApproved(t *testing.T) {
	m := Member{ID: "bob", Streak: 2, BestStreak: 3, Status: MemberStatusPending}
	m.MarkApproved()

	assert.Equal(t, MemberStatusApproved, m.Status)
	assert.Equal(t, 2, m.Streak)
	assert.Equal(t, 3, m.BestStreak)
}

func TestHabit_CheckInvariants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(h *Habit)
	}{
		{
			name:   "member ids out of sync",
			mutate: func(h *Habit) { h.MemberIDs = []string{"alice"} },
		},
		{
			name: "duplicate member",
			mutate: func(h *Habit) {
				h.Members = append(h.Members, NewMember("alice"))
				h.MemberIDs = append(h.MemberIDs, "alice")
			},
		},
		{
			name:   "best below streak",
			mutate: func(h *Habit) { h.Members[0].Streak = 3 },
		},
		{
			name:   "unknown status",
			mutate: func(h *Habit) { h.Members[1].Status = "done" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHabit("h1", "Run", "alice", time.Now())
			h.AddMember("bob")
			tt.mutate(h)
			assert.Error(t, h.CheckInvariants())
		})
	}
}

func TestHabit_CloneIsDeep(t *testing.T) {
	h := NewHabit("h1", "Run", "alice", time.Now())
	c := h.Clone()
	c.AddMember("bob")
	c.Members[0].Streak = 9

	assert.Len(t, h.Members, 1)
	assert.Equal(t, 0, h.Members[0].Streak)
}

func TestMemberStatus_LegacyProjection(t *testing.T) {
	assert.False(t, MemberStatusNotSubmitted.SubmittedToday())
	assert.Nil(t, MemberStatusNotSubmitted.Approved())

	assert.True(t, MemberStatusPending.SubmittedToday())
	require.NotNil(t, MemberStatusPending.Approved())
	assert.False(t, *MemberStatusPending.Approved())

	require.NotNil(t, MemberStatusApproved.Approved())
	assert.True(t, *MemberStatusApproved.Approved())

	require.NotNil(t, MemberStatusRejected.Approved())
	assert.False(t, *MemberStatusRejected.Approved())
}
