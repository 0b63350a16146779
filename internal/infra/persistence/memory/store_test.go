package memory

import (
	"context"
	"testing"
	"time"

	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/domain/repository"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestStore_ExecuteRollsBackOnError(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.Execute(ctx, func(f repository.RepositoryFactory) error {
		require.NoError(t, f.NewHabitRepository().Create(ctx, entity.NewHabit("h1", "Run", "alice", time.Now())))

		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, err = store.Habits().FindByID(ctx, "h1")
	assert.ErrorIs(t, err, repository.ErrHabitNotFound)
}

func TestStore_ExecutePublishesAfterCommit(t *testing.T) {
	store := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := store.Subscribe(ctx)
	require.NoError(t, err)

	err = store.Execute(ctx, func(f repository.RepositoryFactory) error {
		h := entity.NewHabit("h1", "Run", "alice", time.Now())
		if err := f.NewHabitRepository().Create(ctx, h); err != nil {
			return err
		}

		return f.NewInviteRepository().Create(ctx, &entity.Invite{
			ID: "i1", HabitID: "h1", InvitedBy: "alice", Invitee: "bob",
			Status: entity.InviteStatusPending, Timestamp: time.Now(),
		})
	})
	require.NoError(t, err)

	first := <-events
	assert.Equal(t, repository.CollectionHabits, first.Collection)
	assert.Equal(t, []string{"alice"}, first.MemberIDs)

	second := <-events
	assert.Equal(t, repository.CollectionInvites, second.Collection)
	assert.Equal(t, "bob", second.Invitee)
}

func TestHabitRepository_UpdateIsConditional(t *testing.T) {
	store := New()
	ctx := context.Background()
	habits := store.Habits()

	require.NoError(t, habits.Create(ctx, entity.NewHabit("h1", "Run", "alice", time.Now())))

	a, err := habits.FindByID(ctx, "h1")
	require.NoError(t, err)
	b, err := habits.FindByID(ctx, "h1")
	require.NoError(t, err)

	a.AddMember("bob")
	require.NoError(t, habits.Update(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	b.AddMember("carol")
	assert.ErrorIs(t, habits.Update(ctx, b), repository.ErrVersionConflict)

	stored, err := habits.FindByID(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, stored.MemberIDs)
}

func TestHabitRepository_ReturnsCopies(t *testing.T) {
	store := New()
	ctx := context.Background()
	require.NoError(t, store.Habits().Create(ctx, entity.NewHabit("h1", "Run", "alice", time.Now())))

	h, err := store.Habits().FindByID(ctx, "h1")
	require.NoError(t, err)
	h.Members[0].Streak = 42

	again, err := store.Habits().FindByID(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Members[0].Streak)
}

func TestHabitRepository_FindByMemberAndOwner(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	h1 := entity.NewHabit("h1", "Run", "alice", base.Add(time.Hour))
	h2 := entity.NewHabit("h2", "Read", "bob", base)
	h2.AddMember("alice")
	require.NoError(t, store.Habits().Create(ctx, h1))
	require.NoError(t, store.Habits().Create(ctx, h2))

	member, err := store.Habits().FindByMember(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, member, 2)
	assert.Equal(t, "h2", member[0].ID)
	assert.Equal(t, "h1", member[1].ID)

	owned, err := store.Habits().FindByOwner(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "h2", owned[0].ID)

	page, err := store.Habits().FindPage(ctx, "h1", 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "h2", page[0].ID)
}

func TestProofRepository_PaginationAndGuards(t *testing.T) {
	store := New()
	ctx := context.Background()
	proofs := store.Proofs()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"p1", "p2", "p3", "p4"} {
		require.NoError(t, proofs.Create(ctx, &entity.Proof{
			ID: id, HabitID: "h1", SubmittedBy: "bob",
			Timestamp: base.Add(time.Duration(i) * time.Hour), Status: entity.ProofStatusPending,
		}))
	}

	page, err := proofs.ListByHabit(ctx, "h1", repository.ProofPageQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "p4", page[0].ID)
	assert.Equal(t, "p3", page[1].ID)

	cursor := &repository.ProofCursor{Timestamp: page[1].Timestamp, ID: page[1].ID}
	page, err = proofs.ListByHabit(ctx, "h1", repository.ProofPageQuery{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "p2", page[0].ID)
	assert.Equal(t, "p1", page[1].ID)

	changed, err := proofs.UpdateStatusIfPending(ctx, "h1", "p2", entity.ProofStatusApproved, "alice", base)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = proofs.UpdateStatusIfPending(ctx, "h1", "p2", entity.ProofStatusRejected, "alice", base)
	require.NoError(t, err)
	assert.False(t, changed)

	latest, err := proofs.LatestApprovedBy(ctx, "h1", "bob")
	require.NoError(t, err)
	assert.Equal(t, "p2", latest.ID)

	_, err = proofs.LatestApprovedBy(ctx, "h1", "alice")
	assert.ErrorIs(t, err, repository.ErrProofNotFound)
}

func TestInviteRepository_PendingForInvitee(t *testing.T) {
	store := New()
	ctx := context.Background()
	invites := store.Invites()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, invites.Create(ctx, &entity.Invite{ID: "i1", HabitID: "h1", Invitee: "bob", Status: entity.InviteStatusPending, Timestamp: base}))
	require.NoError(t, invites.Create(ctx, &entity.Invite{ID: "i2", HabitID: "h2", Invitee: "bob", Status: entity.InviteStatusPending, Timestamp: base.Add(time.Minute)}))
	require.NoError(t, invites.Create(ctx, &entity.Invite{ID: "i3", HabitID: "h2", Invitee: "carol", Status: entity.InviteStatusPending, Timestamp: base}))

	pending, err := invites.ListPendingForInvitee(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "i2", pending[0].ID)

	changed, err := invites.UpdateStatusIfPending(ctx, "h2", "i2", entity.InviteStatusAccepted, base)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = invites.FindPendingFor(ctx, "h2", "bob")
	assert.ErrorIs(t, err, repository.ErrInviteNotFound)

	found, err := invites.FindPendingFor(ctx, "h1", "bob")
	require.NoError(t, err)
	assert.Equal(t, "i1", found.ID)
}

func TestUserAndPushTokenRepositories(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Users().Create(ctx, &entity.User{ID: "u1", Username: "alice"}))
	require.NoError(t, store.Users().Create(ctx, &entity.User{ID: "u2", Username: "alfred"}))
	require.NoError(t, store.Users().Create(ctx, &entity.User{ID: "u3", Username: "bob"}))
	assert.ErrorIs(t, store.Users().Create(ctx, &entity.User{ID: "u1"}), repository.ErrDuplicateUser)

	found, err := store.Users().SearchByUsernamePrefix(ctx, "AL", 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "alfred", found[0].Username)

	tokens := store.PushTokens()
	require.NoError(t, tokens.Save(ctx, &entity.PushToken{UserID: "u1", Token: "new"}))
	require.NoError(t, tokens.Delete(ctx, "u1", "old"))

	tok, err := tokens.FindByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new", tok.Token)

	require.NoError(t, tokens.Delete(ctx, "u1", ""))
	_, err = tokens.FindByUser(ctx, "u1")
	assert.ErrorIs(t, err, repository.ErrPushTokenNotFound)
}
