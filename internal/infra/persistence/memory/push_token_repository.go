package memory

import (
	"context"

	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/domain/repository"
)

type pushTokenRepository struct {
	r runner
}

func (repo *pushTokenRepository) Save(ctx context.Context, token *entity.PushToken) error {
	return repo.r.run(ctx, func(t *txn) error {
		c := *token
		t.data.tokens[token.UserID] = &c

		return nil
	})
}

func (repo *pushTokenRepository) FindByUser(ctx context.Context, userID string) (*entity.PushToken, error) {
	var found *entity.PushToken

	err := repo.r.run(ctx, func(t *txn) error {
		tok, ok := t.data.tokens[userID]
		if !ok {
			return repository.ErrPushTokenNotFound
		}

		c := *tok
		found = &c

		return nil
	})

	return found, err
}

func (repo *pushTokenRepository) Delete(ctx context.Context, userID, token string) error {
	return repo.r.run(ctx, func(t *txn) error {
		tok, ok := t.data.tokens[userID]
		if !ok {
			return nil
		}

		if token == "" || tok.Token == token {
			delete(t.data.tokens, userID)
		}

		return nil
	})
}
