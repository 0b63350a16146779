package memory

import (
	"context"
	"slices"
	"sort"
	"strings"

	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/domain/repository"

	"github.com/pkg/errors"
)

type habitRepository struct {
	r runner
}

func habitEvent(op repository.ChangeOp, h *entity.Habit) repository.ChangeEvent {
	return repository.ChangeEvent{
		Collection: repository.CollectionHabits,
		Op:         op,
		HabitID:    h.ID,
		DocID:      h.ID,
		OwnerID:    h.OwnerID,
		MemberIDs:  slices.Clone(h.MemberIDs),
	}
}

func (repo *habitRepository) Create(ctx context.Context, habit *entity.Habit) error {
	return repo.r.run(ctx, func(t *txn) error {
		if _, ok := t.data.habits[habit.ID]; ok {
			return errors.Errorf("habit %s already exists", habit.ID)
		}

		habit.Version = 1
		t.data.habits[habit.ID] = habit.Clone()
		t.emit(habitEvent(repository.ChangeAdded, habit))

		return nil
	})
}

func (repo *habitRepository) FindByID(ctx context.Context, id string) (*entity.Habit, error) {
	var found *entity.Habit

	err := repo.r.run(ctx, func(t *txn) error {
		h, ok := t.data.habits[id]
		if !ok {
			return repository.ErrHabitNotFound
		}

		found = h.Clone()

		return nil
	})

	return found, err
}

// FindByIDForUpdate needs no lock: transactions are already serialised.
func (repo *habitRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.Habit, error) {
	return repo.FindByID(ctx, id)
}

func (repo *habitRepository) FindByMember(ctx context.Context, userID string) ([]*entity.Habit, error) {
	return repo.filter(ctx, func(h *entity.Habit) bool {
		return slices.Contains(h.MemberIDs, userID)
	})
}

func (repo *habitRepository) FindByOwner(ctx context.Context, userID string) ([]*entity.Habit, error) {
	return repo.filter(ctx, func(h *entity.Habit) bool {
		return h.OwnerID == userID
	})
}

func (repo *habitRepository) filter(ctx context.Context, keep func(*entity.Habit) bool) ([]*entity.Habit, error) {
	var out []*entity.Habit

	err := repo.r.run(ctx, func(t *txn) error {
		for _, h := range t.data.habits {
			if keep(h) {
				out = append(out, h.Clone())
			}
		}

		return nil
	})

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}

		return out[i].ID < out[j].ID
	})

	return out, err
}

func (repo *habitRepository) FindPage(ctx context.Context, afterID string, limit int) ([]*entity.Habit, error) {
	var out []*entity.Habit

	err := repo.r.run(ctx, func(t *txn) error {
		for id, h := range t.data.habits {
			if strings.Compare(id, afterID) > 0 {
				out = append(out, h.Clone())
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (repo *habitRepository) Update(ctx context.Context, habit *entity.Habit) error {
	return repo.UpdateBatch(ctx, []*entity.Habit{habit})
}

func (repo *habitRepository) UpdateBatch(ctx context.Context, habits []*entity.Habit) error {
	return repo.r.run(ctx, func(t *txn) error {
		for _, h := range habits {
			stored, ok := t.data.habits[h.ID]
			if !ok {
				return errors.Wrapf(repository.ErrHabitNotFound, "habit %s", h.ID)
			}

			if stored.Version != h.Version {
				return errors.Wrapf(repository.ErrVersionConflict, "habit %s: have %d, stored %d", h.ID, h.Version, stored.Version)
			}
		}

		for _, h := range habits {
			h.Version++
			t.data.habits[h.ID] = h.Clone()
			t.emit(habitEvent(repository.ChangeModified, h))
		}

		return nil
	})
}
