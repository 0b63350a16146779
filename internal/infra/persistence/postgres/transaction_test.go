package postgres

import (
	"context"
	"testing"

	"streakbuddy/internal/domain/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionManager_CommitsOnSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "push_tokens"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tm.Execute(context.Background(), func(f repository.RepositoryFactory) error {
		return f.NewPushTokenRepository().Delete(context.Background(), "u1", "")
	})
	require.NoError(t, err)
}

func TestTransactionManager_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tm.Execute(context.Background(), func(repository.RepositoryFactory) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestTransactionManager_SerializationFailureOnCommitIsConflict(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)"))

	err := tm.Execute(context.Background(), func(repository.RepositoryFactory) error { return nil })
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
}

func TestTransactionManager_RollsBackOnPanic(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = tm.Execute(context.Background(), func(repository.RepositoryFactory) error {
			panic("boom")
		})
	})
}
