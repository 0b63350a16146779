// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"

	"streakbuddy/internal/domain/entity"

	"github.com/pkg/errors"
)

// Domain-specific errors for habit persistence.
var (
	// ErrHabitNotFound is returned when a habit does not exist.
	ErrHabitNotFound = errors.New("habit not found")
	// ErrVersionConflict is returned when a conditional write finds a newer version than the one read.
	ErrVersionConflict = errors.New("habit version conflict")
)

// HabitRepository defines the operations on habit documents.
type HabitRepository interface {
	// Create persists a new habit and sets its version to 1.
	Create(ctx context.Context, habit *entity.Habit) error

	// FindByID retrieves a habit by id.
	FindByID(ctx context.Context, id string) (*entity.Habit, error)

	// FindByIDForUpdate retrieves a habit and locks it for the rest of the transaction.
	// Outside a transaction it behaves like FindByID.
	FindByIDForUpdate(ctx context.Context, id string) (*entity.Habit, error)

	// FindByMember returns habits whose member ids contain userID, oldest first.
	FindByMember(ctx context.Context, userID string) ([]*entity.Habit, error)

	// FindByOwner returns habits owned by userID, oldest first.
	FindByOwner(ctx context.Context, userID string) ([]*entity.Habit, error)

	// FindPage returns up to limit habits with ids greater than afterID, ordered by id.
	FindPage(ctx context.Context, afterID string, limit int) ([]*entity.Habit, error)

	// Update writes the habit only if the stored version still equals habit.Version, then
	// increments habit.Version. A mismatch yields ErrVersionConflict.
	Update(ctx context.Context, habit *entity.Habit) error

	// UpdateBatch applies Update to every habit atomically: all or none.
	UpdateBatch(ctx context.Context, habits []*entity.Habit) error
}
