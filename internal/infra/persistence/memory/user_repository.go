package memory

import (
	"context"
	"sort"
	"strings"

	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/domain/repository"
)

type userRepository struct {
	r runner
}

func (repo *userRepository) Create(ctx context.Context, user *entity.User) error {
	return repo.r.run(ctx, func(t *txn) error {
		if _, ok := t.data.users[user.ID]; ok {
			return repository.ErrDuplicateUser
		}

		c := *user
		t.data.users[user.ID] = &c

		return nil
	})
}

func (repo *userRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var found *entity.User

	err := repo.r.run(ctx, func(t *txn) error {
		u, ok := t.data.users[id]
		if !ok {
			return repository.ErrUserNotFound
		}

		c := *u
		found = &c

		return nil
	})

	return found, err
}

func (repo *userRepository) SearchByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]*entity.User, error) {
	prefix = strings.ToLower(prefix)

	var out []*entity.User

	err := repo.r.run(ctx, func(t *txn) error {
		for _, u := range t.data.users {
			if strings.HasPrefix(strings.ToLower(u.Username), prefix) {
				c := *u
				out = append(out, &c)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (repo *userRepository) UpdateProfilePic(ctx context.Context, id, url string) error {
	return repo.r.run(ctx, func(t *txn) error {
		u, ok := t.data.users[id]
		if !ok {
			return repository.ErrUserNotFound
		}

		c := *u
		c.ProfilePic = url
		t.data.users[id] = &c

		return nil
	})
}
