package impl

import (
	"context"
	"strings"
	"testing"
	"time"

	"streakbuddy/internal/domain/entity"
	domainerrors "streakbuddy/internal/domain/errors"
	"streakbuddy/internal/domain/repository"
	"streakbuddy/internal/infra/persistence/memory"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHabitService_CreateHabit(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()

	habit, err := fx.service.CreateHabit(ctx, actorUTC("alice"), "  Read 10 pages ")
	require.NoError(t, err)
	assert.Equal(t, "Read 10 pages", habit.Name)
	assert.Equal(t, "alice", habit.OwnerID)
	assert.Equal(t, []string{"alice"}, habit.MemberIDs)
	assert.Equal(t, entity.Day("2026-03-10"), habit.LastReset)
	assert.Equal(t, int64(1), habit.Version)

	stored := fx.habit(t, habit.ID)
	assert.Equal(t, habit.Name, stored.Name)
}

func TestHabitService_CreateHabit_EmptyName(t *testing.T) {
	fx := createTestHabitService(t)

	_, err := fx.service.CreateHabit(context.Background(), actorUTC("alice"), "   ")
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
}

func TestHabitService_InviteBuddy_NoOps(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	alice := actorUTC("alice")

	habit, err := fx.service.CreateHabit(ctx, alice, "Run")
	require.NoError(t, err)

	first, err := fx.service.InviteBuddy(ctx, alice, habit.ID, "bob")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, entity.InviteStatusPending, first.Status)

	again, err := fx.service.InviteBuddy(ctx, alice, habit.ID, "bob")
	require.NoError(t, err)
	assert.Nil(t, again, "pending invite already exists")

	self, err := fx.service.InviteBuddy(ctx, alice, habit.ID, "alice")
	require.NoError(t, err)
	assert.Nil(t, self, "invitee is already a member")

	pending, err := fx.service.ListPendingInvites(ctx, actorUTC("bob"))
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestHabitService_InviteBuddy_NotMember(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()

	habit, err := fx.service.CreateHabit(ctx, actorUTC("alice"), "Run")
	require.NoError(t, err)

	_, err = fx.service.InviteBuddy(ctx, actorUTC("mallory"), habit.ID, "bob")
	assert.ErrorIs(t, err, domainerrors.ErrNotMember)

	_, err = fx.service.InviteBuddy(ctx, actorUTC("alice"), "missing", "bob")
	assert.ErrorIs(t, err, domainerrors.ErrHabitNotFound)
}

func TestHabitService_RespondToInvite_AcceptTwiceNeverDuplicates(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)

	assert.Equal(t, []string{"alice", "bob"}, habit.MemberIDs)

	invites, err := fx.store.Invites().ListPendingForInvitee(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, invites)

	// Replay the acceptance of the now-accepted invite.
	all, err := fx.store.Invites().FindPendingFor(ctx, habit.ID, "bob")
	require.ErrorIs(t, err, repository.ErrInviteNotFound)
	assert.Nil(t, all)

	second, err := fx.service.InviteBuddy(ctx, actorUTC("alice"), habit.ID, "bob")
	require.NoError(t, err)
	assert.Nil(t, second)

	after := fx.habit(t, habit.ID)
	assert.Equal(t, []string{"alice", "bob"}, after.MemberIDs)
}

func TestHabitService_RespondToInvite_Idempotent(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()

	habit, err := fx.service.CreateHabit(ctx, actorUTC("alice"), "Run")
	require.NoError(t, err)
	invite, err := fx.service.InviteBuddy(ctx, actorUTC("alice"), habit.ID, "bob")
	require.NoError(t, err)

	res, err := fx.service.RespondToInvite(ctx, actorUTC("bob"), habit.ID, invite.ID, entity.InviteStatusAccepted)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	res, err = fx.service.RespondToInvite(ctx, actorUTC("bob"), habit.ID, invite.ID, entity.InviteStatusAccepted)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, entity.InviteStatusAccepted, res.Invite.Status)

	res, err = fx.service.RespondToInvite(ctx, actorUTC("bob"), habit.ID, invite.ID, entity.InviteStatusRejected)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	after := fx.habit(t, habit.ID)
	assert.Equal(t, []string{"alice", "bob"}, after.MemberIDs)
}

func TestHabitService_RespondToInvite_Reject(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()

	habit, err := fx.service.CreateHabit(ctx, actorUTC("alice"), "Run")
	require.NoError(t, err)
	invite, err := fx.service.InviteBuddy(ctx, actorUTC("alice"), habit.ID, "carol")
	require.NoError(t, err)

	res, err := fx.service.RespondToInvite(ctx, actorUTC("carol"), habit.ID, invite.ID, entity.InviteStatusRejected)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, entity.InviteStatusRejected, res.Invite.Status)

	after := fx.habit(t, habit.ID)
	assert.Equal(t, []string{"alice"}, after.MemberIDs)

	pending, err := fx.service.ListPendingInvites(ctx, actorUTC("carol"))
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestHabitService_RespondToInvite_Errors(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()

	habit, err := fx.service.CreateHabit(ctx, actorUTC("alice"), "Run")
	require.NoError(t, err)
	invite, err := fx.service.InviteBuddy(ctx, actorUTC("alice"), habit.ID, "bob")
	require.NoError(t, err)

	_, err = fx.service.RespondToInvite(ctx, actorUTC("mallory"), habit.ID, invite.ID, entity.InviteStatusAccepted)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	_, err = fx.service.RespondToInvite(ctx, actorUTC("bob"), habit.ID, "missing", entity.InviteStatusAccepted)
	assert.ErrorIs(t, err, domainerrors.ErrInviteNotFound)

	_, err = fx.service.RespondToInvite(ctx, actorUTC("bob"), habit.ID, invite.ID, entity.InviteStatusPending)
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
}

func TestHabitService_SubmitProof_SecondSameDayFails(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)

	proof := fx.textProof(t, "bob", habit.ID)
	assert.Equal(t, entity.ProofStatusPending, proof.Status)
	assert.Equal(t, testNoon, proof.Timestamp)

	after := fx.habit(t, habit.ID)
	assert.Equal(t, entity.MemberStatusPending, after.FindMember("bob").Status)
	assert.Equal(t, entity.MemberStatusNotSubmitted, after.FindMember("alice").Status)

	_, err := fx.service.SubmitProof(ctx, actorUTC("bob"), habit.ID, entity.ProofAsset{Note: "again"})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadySubmitted)
}

func TestHabitService_SubmitProof_UploadsAsset(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)
	data := []byte{0xff, 0xd8, 0xff}

	fx.blob.EXPECT().
		Upload(ctx, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "proofs/"+habit.ID+"/bob/")
		}), data, "image/jpeg").
		Return("https://cdn.example.com/proof.jpg", nil)

	proof, err := fx.service.SubmitProof(ctx, actorUTC("bob"), habit.ID, entity.ProofAsset{Data: data, ContentType: "image/jpeg"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/proof.jpg", proof.URL)
	assert.Equal(t, "image/jpeg", proof.ContentType)
}

func TestHabitService_SubmitProof_UploadFailure(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)

	fx.blob.EXPECT().
		Upload(ctx, mock.Anything, mock.Anything, "image/png").
		Return("", errors.New("bucket unreachable"))

	_, err := fx.service.SubmitProof(ctx, actorUTC("bob"), habit.ID, entity.ProofAsset{Data: []byte{1}, ContentType: "image/png"})
	assert.ErrorIs(t, err, domainerrors.ErrExternalService)

	after := fx.habit(t, habit.ID)
	assert.Equal(t, entity.MemberStatusNotSubmitted, after.FindMember("bob").Status)
}

type failingTx struct{}

func (failingTx) Execute(context.Context, func(repository.RepositoryFactory) error) error {
	return errors.New("connection reset")
}

func TestHabitService_SubmitProof_RemovesBlobWhenWriteFails(t *testing.T) {
	store := memory.New()
	t.Cleanup(store.Close)
	ctx := context.Background()

	seed := createTestHabitService(t)
	seeded := seed.seedPair(t)
	require.NoError(t, store.Habits().Create(ctx, seeded.Clone()))

	fx := createTestHabitServiceWithTx(t, store, failingTx{})

	fx.blob.EXPECT().Upload(ctx, mock.Anything, mock.Anything, "image/png").Return("https://cdn/p.png", nil)
	fx.blob.EXPECT().Delete(mock.Anything, mock.Anything).Return(nil)

	_, err := fx.service.SubmitProof(ctx, actorUTC("bob"), seeded.ID, entity.ProofAsset{Data: []byte{1}, ContentType: "image/png"})
	assert.ErrorIs(t, err, domainerrors.ErrExternalService)
}

func TestHabitService_SubmitProof_Validation(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)

	_, err := fx.service.SubmitProof(ctx, actorUTC("bob"), habit.ID, entity.ProofAsset{})
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)

	_, err = fx.service.SubmitProof(ctx, actorUTC("mallory"), habit.ID, entity.ProofAsset{Note: "hi"})
	assert.ErrorIs(t, err, domainerrors.ErrNotMember)
}

func TestHabitService_ApproveProof_RoundTrip(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)
	proof := fx.textProof(t, "bob", habit.ID)

	res, err := fx.service.ApproveProof(ctx, actorUTC("alice"), habit.ID, proof.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, entity.ProofStatusApproved, res.Proof.Status)
	assert.Equal(t, "alice", res.Proof.ReviewedBy)

	after := fx.habit(t, habit.ID)
	bob := after.FindMember("bob")
	assert.Equal(t, entity.MemberStatusApproved, bob.Status)
	assert.Equal(t, 1, bob.Streak)
	assert.Equal(t, 1, bob.BestStreak)
	assert.GreaterOrEqual(t, bob.BestStreak, bob.Streak)
	require.NotNil(t, bob.Status.Approved())
	assert.True(t, *bob.Status.Approved())
}

func TestHabitService_ApproveProof_Idempotent(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)
	proof := fx.textProof(t, "bob", habit.ID)

	_, err := fx.service.ApproveProof(ctx, actorUTC("alice"), habit.ID, proof.ID)
	require.NoError(t, err)
	versionAfterFirst := fx.habit(t, habit.ID).Version

	res, err := fx.service.ApproveProof(ctx, actorUTC("alice"), habit.ID, proof.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	after := fx.habit(t, habit.ID)
	assert.Equal(t, 1, after.FindMember("bob").Streak)
	assert.Equal(t, versionAfterFirst, after.Version)
}

func TestHabitService_ApproveProof_Permissions(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)
	proof := fx.textProof(t, "bob", habit.ID)

	_, err := fx.service.ApproveProof(ctx, actorUTC("bob"), habit.ID, proof.ID)
	assert.ErrorIs(t, err, domainerrors.ErrSelfApproval)

	_, err = fx.service.ApproveProof(ctx, actorUTC("mallory"), habit.ID, proof.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotMember)

	_, err = fx.service.ApproveProof(ctx, actorUTC("alice"), habit.ID, "missing")
	assert.ErrorIs(t, err, domainerrors.ErrProofNotFound)
}

func TestHabitService_ApproveProof_StaleProofKeepsStreak(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)

	fx.clock.Set(time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC))
	proof := fx.textProof(t, "bob", habit.ID)

	fx.clock.Set(time.Date(2026, 3, 11, 0, 30, 0, 0, time.UTC))
	res, err := fx.service.ApproveProof(ctx, actorUTC("alice"), habit.ID, proof.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, entity.ProofStatusApproved, res.Proof.Status)

	bob := fx.habit(t, habit.ID).FindMember("bob")
	assert.Equal(t, 0, bob.Streak)
	assert.Equal(t, 0, bob.BestStreak)
	assert.Equal(t, entity.MemberStatusApproved, bob.Status)
	require.NotNil(t, bob.Status.Approved())
	assert.True(t, *bob.Status.Approved())
}

func TestHabitService_ApproveProof_StaleProofAfterReset(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)

	fx.clock.Set(time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC))
	proof := fx.textProof(t, "bob", habit.ID)

	fx.clock.Set(time.Date(2026, 3, 11, 0, 30, 0, 0, time.UTC))
	_, err := fx.service.DailyReset(ctx, actorUTC("alice"))
	require.NoError(t, err)
	version := fx.habit(t, habit.ID).Version

	res, err := fx.service.ApproveProof(ctx, actorUTC("alice"), habit.ID, proof.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	after := fx.habit(t, habit.ID)
	assert.Equal(t, entity.MemberStatusNotSubmitted, after.FindMember("bob").Status)
	assert.Equal(t, 0, after.FindMember("bob").Streak)
	assert.Equal(t, version, after.Version)
}

func TestHabitService_ApproveProof_SameDayDependsOnApproverCalendar(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 20:00 UTC on the 10th is already the 11th in Tokyo.
	fx.clock.Set(time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC))
	proof := fx.textProof(t, "bob", habit.ID)

	_, err = fx.service.ApproveProof(ctx, entity.NewActor("alice", tokyo), habit.ID, proof.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, fx.habit(t, habit.ID).FindMember("bob").Streak)
}

func TestHabitService_RejectProof(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)

	h := fx.habit(t, habit.ID)
	h.PatchMember("bob", func(m *entity.Member) {
		m.Streak = 4
		m.BestStreak = 6
	})
	require.NoError(t, fx.store.Habits().Update(ctx, h))

	proof := fx.textProof(t, "bob", habit.ID)

	res, err := fx.service.RejectProof(ctx, actorUTC("alice"), habit.ID, proof.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	bob := fx.habit(t, habit.ID).FindMember("bob")
	assert.Equal(t, 0, bob.Streak)
	assert.Equal(t, 6, bob.BestStreak)
	assert.Equal(t, entity.MemberStatusRejected, bob.Status)

	// A rejected proof is terminal: approving it later changes nothing.
	res, err = fx.service.ApproveProof(ctx, actorUTC("alice"), habit.ID, proof.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, entity.ProofStatusRejected, res.Proof.Status)
	assert.Equal(t, 0, fx.habit(t, habit.ID).FindMember("bob").Streak)
}

func TestHabitService_RejectProof_StaleProofBreaksStreak(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)

	h := fx.habit(t, habit.ID)
	h.PatchMember("bob", func(m *entity.Member) {
		m.Streak = 4
		m.BestStreak = 6
	})
	require.NoError(t, fx.store.Habits().Update(ctx, h))

	fx.clock.Set(time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC))
	proof := fx.textProof(t, "bob", habit.ID)

	fx.clock.Set(time.Date(2026, 3, 11, 0, 30, 0, 0, time.UTC))
	_, err := fx.service.DailyReset(ctx, actorUTC("alice"))
	require.NoError(t, err)

	res, err := fx.service.RejectProof(ctx, actorUTC("alice"), habit.ID, proof.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, entity.ProofStatusRejected, res.Proof.Status)

	bob := fx.habit(t, habit.ID).FindMember("bob")
	assert.Equal(t, 0, bob.Streak)
	assert.Equal(t, 6, bob.BestStreak)
	assert.Equal(t, entity.MemberStatusNotSubmitted, bob.Status)
}

func TestHabitService_DailyReset(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)
	proof := fx.textProof(t, "bob", habit.ID)
	_, err := fx.service.ApproveProof(ctx, actorUTC("alice"), habit.ID, proof.ID)
	require.NoError(t, err)

	fx.clock.Advance(24 * time.Hour)

	n, err := fx.service.DailyReset(ctx, actorUTC("alice"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	after := fx.habit(t, habit.ID)
	assert.Equal(t, entity.Day("2026-03-11"), after.LastReset)
	for _, m := range after.Members {
		assert.Equal(t, entity.MemberStatusNotSubmitted, m.Status)
		assert.False(t, m.Status.SubmittedToday())
		assert.Nil(t, m.Status.Approved())
	}
	assert.Equal(t, 1, after.FindMember("bob").Streak)

	n, err = fx.service.DailyReset(ctx, actorUTC("bob"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, after.Version, fx.habit(t, habit.ID).Version)
}

func TestHabitService_DailyReset_NeverMovesBackwards(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 01:00 UTC is the 11th in Tokyo and still the 10th in New York.
	fx.clock.Set(time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC))
	bobTokyo := entity.NewActor("bob", tokyo)

	_, err = fx.service.SubmitProof(ctx, bobTokyo, habit.ID, entity.ProofAsset{Note: "done"})
	require.NoError(t, err)

	n, err := fx.service.DailyReset(ctx, entity.NewActor("alice", newYork))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	after := fx.habit(t, habit.ID)
	assert.Equal(t, entity.Day("2026-03-11"), after.LastReset)
	assert.Equal(t, entity.MemberStatusPending, after.FindMember("bob").Status)

	_, err = fx.service.SubmitProof(ctx, bobTokyo, habit.ID, entity.ProofAsset{Note: "again"})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadySubmitted)
}

func TestHabitService_SubmitProof_ResetsStaleDay(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)
	fx.textProof(t, "bob", habit.ID)

	fx.clock.Advance(24 * time.Hour)

	_, err := fx.service.SubmitProof(ctx, actorUTC("bob"), habit.ID, entity.ProofAsset{Note: "day two"})
	require.NoError(t, err)

	after := fx.habit(t, habit.ID)
	assert.Equal(t, entity.Day("2026-03-11"), after.LastReset)
	assert.Equal(t, entity.MemberStatusPending, after.FindMember("bob").Status)
}

func seedStreak(t *testing.T, fx habitServiceFixtures, habitID, userID string, streak int, approvedAt time.Time) {
	t.Helper()
	ctx := context.Background()

	h := fx.habit(t, habitID)
	h.PatchMember(userID, func(m *entity.Member) {
		m.Streak = streak
		m.BestStreak = streak
	})
	require.NoError(t, fx.store.Habits().Update(ctx, h))

	require.NoError(t, fx.store.Proofs().Create(ctx, &entity.Proof{
		ID:          "seed-" + userID + approvedAt.Format("20060102"),
		HabitID:     habitID,
		SubmittedBy: userID,
		Timestamp:   approvedAt,
		Status:      entity.ProofStatusApproved,
	}))
}

func TestHabitService_CheckAndResetStreaks_Decay(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)

	seedStreak(t, fx, habit.ID, "bob", 5, testNoon.Add(-3*24*time.Hour))
	seedStreak(t, fx, habit.ID, "alice", 2, testNoon.Add(-24*time.Hour))

	n, err := fx.service.CheckAndResetStreaks(ctx, actorUTC("alice"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	after := fx.habit(t, habit.ID)
	bob := after.FindMember("bob")
	assert.Equal(t, 0, bob.Streak)
	assert.Equal(t, 5, bob.BestStreak)
	assert.Equal(t, 2, after.FindMember("alice").Streak)

	n, err = fx.service.CheckAndResetStreaks(ctx, actorUTC("alice"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestHabitService_CheckAndResetStreaks_NoApprovedProof(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)

	h := fx.habit(t, habit.ID)
	h.PatchMember("bob", func(m *entity.Member) {
		m.Streak = 3
		m.BestStreak = 3
	})
	require.NoError(t, fx.store.Habits().Update(ctx, h))

	n, err := fx.service.CheckAndResetStreaks(ctx, actorUTC("bob"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, fx.habit(t, habit.ID).FindMember("bob").Streak)
}

func TestHabitService_StaleWriteAfterRetries(t *testing.T) {
	store := memory.New()
	t.Cleanup(store.Close)
	tx := &conflictingTx{}
	fx := createTestHabitServiceWithTx(t, store, tx)

	_, err := fx.service.DailyReset(context.Background(), actorUTC("alice"))
	assert.ErrorIs(t, err, domainerrors.ErrStaleWrite)
	assert.Equal(t, fx.cfg.Engine.MaxRetries, tx.calls)
}

func TestHabitService_ListProofs_Paginates(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)

	for day := 0; day < 5; day++ {
		fx.clock.Set(testNoon.Add(time.Duration(day) * 24 * time.Hour))
		fx.textProof(t, "bob", habit.ID)
	}

	page, err := fx.service.ListProofs(ctx, actorUTC("alice"), habit.ID, 2, "")
	require.NoError(t, err)
	require.Len(t, page.Proofs, 2)
	require.NotEmpty(t, page.NextCursor)
	assert.True(t, page.Proofs[0].Timestamp.After(page.Proofs[1].Timestamp))

	seen := len(page.Proofs)
	for page.NextCursor != "" {
		page, err = fx.service.ListProofs(ctx, actorUTC("alice"), habit.ID, 2, page.NextCursor)
		require.NoError(t, err)
		seen += len(page.Proofs)
	}
	assert.Equal(t, 5, seen)

	_, err = fx.service.ListProofs(ctx, actorUTC("alice"), habit.ID, 2, "%%%")
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)

	_, err = fx.service.ListProofs(ctx, actorUTC("mallory"), habit.ID, 2, "")
	assert.ErrorIs(t, err, domainerrors.ErrNotMember)
}

func TestHabitService_SweepAll(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)

	seedStreak(t, fx, habit.ID, "bob", 5, testNoon.Add(-5*24*time.Hour))
	seedStreak(t, fx, habit.ID, "alice", 3, testNoon.Add(-2*24*time.Hour))
	fx.textProof(t, "bob", habit.ID)

	fx.clock.Advance(3 * 24 * time.Hour)

	res, err := fx.service.SweepAll(ctx, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Habits)
	assert.Equal(t, 1, res.Reset)
	assert.Equal(t, 2, res.Decayed)

	after := fx.habit(t, habit.ID)
	assert.Equal(t, entity.Day("2026-03-13"), after.LastReset)
	assert.Equal(t, entity.MemberStatusNotSubmitted, after.FindMember("bob").Status)
	assert.Equal(t, 0, after.FindMember("alice").Streak)
	assert.Equal(t, 0, after.FindMember("bob").Streak)
}

func TestHabitService_SweepAll_KeepsRecentState(t *testing.T) {
	fx := createTestHabitService(t)
	ctx := context.Background()
	habit := fx.seedPair(t)

	seedStreak(t, fx, habit.ID, "alice", 3, testNoon.Add(-2*24*time.Hour))
	fx.textProof(t, "bob", habit.ID)

	res, err := fx.service.SweepAll(ctx, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Reset)
	assert.Equal(t, 0, res.Decayed)

	after := fx.habit(t, habit.ID)
	assert.Equal(t, 3, after.FindMember("alice").Streak)
	assert.Equal(t, entity.MemberStatusPending, after.FindMember("bob").Status)
}
