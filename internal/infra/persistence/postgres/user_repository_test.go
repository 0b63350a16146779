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

func TestUserRepository_Create_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`INSERT INTO "users"`).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "users_pkey" (SQLSTATE 23505)`))

	err := repo.Create(context.Background(), &entity.User{ID: "u1", Email: "a@example.com", Username: "a"})
	assert.ErrorIs(t, err, repository.ErrDuplicateUser)
}

func TestUserRepository_UpdateProfilePic_Missing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`UPDATE "users" SET .*"profile_pic"=\$1`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateProfilePic(context.Background(), "ghost", "https://cdn/x.png")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserRepository_SearchByUsernamePrefix(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE lower\(username\) LIKE \$1 ORDER BY username ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "username", "profile_pic", "created_at", "updated_at"}).
			AddRow("u1", "anna@example.com", "anna", "", now, now))

	users, err := repo.SearchByUsernamePrefix(context.Background(), "An", 5)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "anna", users[0].Username)
}

func TestLikeEscaper(t *testing.T) {
	assert.Equal(t, `a\_b\%c\\`, likeEscaper.Replace(`a_b%c\`))
}

func TestPushTokenRepository_SaveUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPushTokenRepository(db)

	mock.ExpectExec(`INSERT INTO "push_tokens" .* ON CONFLICT \("user_id"\) DO UPDATE SET "token"="excluded"."token"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), &entity.PushToken{UserID: "u1", Token: "tok", Platform: "ios", UpdatedAt: time.Now()})
	require.NoError(t, err)
}

func TestPushTokenRepository_DeleteOnlyMatchingToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPushTokenRepository(db)

	mock.ExpectExec(`DELETE FROM "push_tokens" WHERE user_id = \$1 AND token = \$2`).
		WithArgs("u1", "stale").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "u1", "stale"))
}
