package impl

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"streakbuddy/config"
	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/domain/repository"
	"streakbuddy/internal/infra/persistence/memory"
	mockService "streakbuddy/internal/mocks/service"
	"streakbuddy/internal/usecase"

	"github.com/stretchr/testify/require"
)

// fakeClock is a settable service.Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// habitServiceFixtures holds all test dependencies for habit engine tests.
type habitServiceFixtures struct {
	service usecase.HabitUsecase
	store   *memory.Store
	blob    *mockService.MockBlobStore
	clock   *fakeClock
	cfg     *config.Config
}

// testNoon is 2026-03-10 12:00 UTC.
var testNoon = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func createTestHabitService(t *testing.T) habitServiceFixtures {
	t.Helper()

	store := memory.New()
	t.Cleanup(store.Close)

	return createTestHabitServiceWithTx(t, store, store)
}

func createTestHabitServiceWithTx(t *testing.T, store *memory.Store, txManager repository.TransactionManager) habitServiceFixtures {
	t.Helper()

	cfg := config.Defaults()
	clock := newFakeClock(testNoon)
	blob := mockService.NewMockBlobStore(t)

	svc := NewHabitService(HabitServiceParams{
		TxManager:  txManager,
		HabitRepo:  store.Habits(),
		ProofRepo:  store.Proofs(),
		InviteRepo: store.Invites(),
		BlobStore:  blob,
		Clock:      clock,
		Config:     cfg,
		Logger:     discardLogger(),
	})

	return habitServiceFixtures{service: svc, store: store, blob: blob, clock: clock, cfg: cfg}
}

func actorUTC(userID string) entity.Actor {
	return entity.NewActor(userID, time.UTC)
}

// seedPair creates a habit owned by alice with bob as second member.
func (f habitServiceFixtures) seedPair(t *testing.T) *entity.Habit {
	t.Helper()
	ctx := context.Background()

	habit, err := f.service.CreateHabit(ctx, actorUTC("alice"), "Morning run")
	require.NoError(t, err)

	invite, err := f.service.InviteBuddy(ctx, actorUTC("alice"), habit.ID, "bob")
	require.NoError(t, err)
	require.NotNil(t, invite)

	res, err := f.service.RespondToInvite(ctx, actorUTC("bob"), habit.ID, invite.ID, entity.InviteStatusAccepted)
	require.NoError(t, err)
	require.True(t, res.Changed)

	habit, err = f.store.Habits().FindByID(ctx, habit.ID)
	require.NoError(t, err)

	return habit
}

func (f habitServiceFixtures) habit(t *testing.T, id string) *entity.Habit {
	t.Helper()

	h, err := f.store.Habits().FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, h.CheckInvariants())

	return h
}

// textProof submits a note-only proof, which needs no blob upload.
func (f habitServiceFixtures) textProof(t *testing.T, userID, habitID string) *entity.Proof {
	t.Helper()

	proof, err := f.service.SubmitProof(context.Background(), actorUTC(userID), habitID, entity.ProofAsset{Note: "done"})
	require.NoError(t, err)

	return proof
}

// conflictingTx always loses the optimistic race.
type conflictingTx struct {
	calls int
}

func (c *conflictingTx) Execute(context.Context, func(repository.RepositoryFactory) error) error {
	c.calls++

	return repository.ErrVersionConflict
}
