package postgres

import (
	"context"
	"testing"
	"time"

	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/domain/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var habitColumns = []string{
	"id", "name", "owner_id", "members", "member_ids", "last_reset",
	"version", "schema_version", "legacy", "created_at", "updated_at",
}

func testHabit() *entity.Habit {
	h := entity.NewHabit("h1", "Run", "alice", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	h.AddMember("bob")
	h.Version = 3

	return h
}

func TestHabitRepository_FindByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHabitRepository(db)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "habits" WHERE .*id = \$1 AND schema_version = \$2`).
		WillReturnRows(sqlmock.NewRows(habitColumns).AddRow(
			"h1", "Run", "alice",
			[]byte(`[{"id":"alice","streak":2,"bestStreak":5,"status":"approved"},{"id":"bob","streak":0,"bestStreak":0,"status":"not_submitted"}]`),
			"{alice,bob}", "2026-03-10", int64(4), int64(2), nil, created, created,
		))

	habit, err := repo.FindByID(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, habit.MemberIDs)
	assert.Equal(t, entity.MemberStatusApproved, habit.Members[0].Status)
	assert.Equal(t, 5, habit.Members[0].BestStreak)
	assert.Equal(t, entity.Day("2026-03-10"), habit.LastReset)
	assert.Equal(t, int64(4), habit.Version)
	require.NoError(t, habit.CheckInvariants())
}

func TestHabitRepository_FindByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHabitRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "habits"`).WillReturnRows(sqlmock.NewRows(habitColumns))

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrHabitNotFound)
}

func TestHabitRepository_FindByIDForUpdate_Locks(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHabitRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "habits" WHERE .* FOR UPDATE`).WillReturnRows(sqlmock.NewRows(habitColumns))

	_, err := repo.FindByIDForUpdate(context.Background(), "h1")
	assert.ErrorIs(t, err, repository.ErrHabitNotFound)
}

func TestHabitRepository_FindByMember_UsesArrayContains(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHabitRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "habits" WHERE member_ids @> \$1 AND schema_version = \$2 ORDER BY created_at ASC, id ASC`).
		WillReturnRows(sqlmock.NewRows(habitColumns))

	habits, err := repo.FindByMember(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, habits)
}

func TestHabitRepository_Update(t *testing.T) {
	t.Run("bumps version on success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewHabitRepository(db)
		habit := testHabit()

		mock.ExpectExec(`UPDATE "habits" SET .*"version"=version \+ 1.* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(context.Background(), habit))
		assert.Equal(t, int64(4), habit.Version)
	})

	t.Run("version mismatch is a conflict", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewHabitRepository(db)
		habit := testHabit()

		mock.ExpectExec(`UPDATE "habits"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "habits" WHERE id = \$1`).
			WithArgs("h1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		err := repo.Update(context.Background(), habit)
		assert.ErrorIs(t, err, repository.ErrVersionConflict)
		assert.Equal(t, int64(3), habit.Version)
	})

	t.Run("missing row is not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewHabitRepository(db)

		mock.ExpectExec(`UPDATE "habits"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "habits"`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		err := repo.Update(context.Background(), testHabit())
		assert.ErrorIs(t, err, repository.ErrHabitNotFound)
	})

	t.Run("deadlock is retryable", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewHabitRepository(db)

		mock.ExpectExec(`UPDATE "habits"`).
			WillReturnError(errors.New("ERROR: deadlock detected (SQLSTATE 40P01)"))

		err := repo.Update(context.Background(), testHabit())
		assert.ErrorIs(t, err, repository.ErrVersionConflict)
	})
}

func TestHabitRepository_UpdateBatch_AllOrNothing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHabitRepository(db)

	first := testHabit()
	second := testHabit()
	second.ID = "h2"

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "habits"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "habits"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "habits"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.UpdateBatch(context.Background(), []*entity.Habit{first, second})
	require.ErrorIs(t, err, repository.ErrVersionConflict)
	assert.Equal(t, int64(3), first.Version, "no version moves when the batch fails")
	assert.Equal(t, int64(3), second.Version)
}

func TestHabitRepository_UpdateBatch_Commits(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHabitRepository(db)

	first := testHabit()
	second := testHabit()
	second.ID = "h2"

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "habits"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "habits"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpdateBatch(context.Background(), []*entity.Habit{first, second}))
	assert.Equal(t, int64(4), first.Version)
	assert.Equal(t, int64(4), second.Version)
}

func TestHabitMapping_RoundTrip(t *testing.T) {
	habit := testHabit()
	habit.PatchMember("bob", func(m *entity.Member) { m.Approve() })

	got := toHabitDomain(fromHabitDomain(habit))

	assert.Equal(t, habit.Members, got.Members)
	assert.Equal(t, habit.MemberIDs, got.MemberIDs)
	assert.Equal(t, habit.Version, got.Version)
}
