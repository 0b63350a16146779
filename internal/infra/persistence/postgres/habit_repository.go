// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
package postgres

import (
	"context"
	"time"

	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/domain/repository"
	"streakbuddy/internal/infra/persistence/model"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// habitRepository implements the repository.HabitRepository interface.
type habitRepository struct {
	db *gorm.DB
}

// NewHabitRepository is the constructor for habitRepository.
func NewHabitRepository(db *gorm.DB) repository.HabitRepository {
	return &habitRepository{
		db: db,
	}
}

// Create persists a new habit with version 1.
func (repo *habitRepository) Create(ctx context.Context, habit *entity.Habit) error {
	habit.Version = 1
	habitM := fromHabitDomain(habit)

	if err := repo.db.WithContext(ctx).Create(habitM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return errors.Errorf("habit %s already exists", habit.ID)
		}

		return errors.Wrap(err, "failed to create habit")
	}

	return nil
}

// FindByID retrieves a habit by its id.
func (repo *habitRepository) FindByID(ctx context.Context, id string) (*entity.Habit, error) {
	return repo.first(repo.db.WithContext(ctx), id)
}

// FindByIDForUpdate locks the row until the surrounding transaction ends.
func (repo *habitRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.Habit, error) {
	return repo.first(repo.db.WithContext(ctx).Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}), id)
}

func (repo *habitRepository) first(db *gorm.DB, id string) (*entity.Habit, error) {
	var habitM model.HabitModel

	if err := db.Where("id = ? AND schema_version = ?", id, entity.CurrentSchemaVersion).
		First(&habitM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrHabitNotFound
		}

		return nil, errors.Wrap(err, "failed to find habit by ID")
	}

	return toHabitDomain(&habitM), nil
}

// FindByMember returns habits whose member_ids contain userID.
func (repo *habitRepository) FindByMember(ctx context.Context, userID string) ([]*entity.Habit, error) {
	return repo.find(repo.db.WithContext(ctx).
		Where("member_ids @> ?", pq.StringArray{userID}).
		Order("created_at ASC, id ASC"))
}

// FindByOwner returns habits owned by userID.
func (repo *habitRepository) FindByOwner(ctx context.Context, userID string) ([]*entity.Habit, error) {
	return repo.find(repo.db.WithContext(ctx).
		Where("owner_id = ?", userID).
		Order("created_at ASC, id ASC"))
}

// FindPage walks all habits in id order for the maintenance sweep.
func (repo *habitRepository) FindPage(ctx context.Context, afterID string, limit int) ([]*entity.Habit, error) {
	query := repo.db.WithContext(ctx).Where("id > ?", afterID).Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	return repo.find(query)
}

func (repo *habitRepository) find(db *gorm.DB) ([]*entity.Habit, error) {
	var habitModels []*model.HabitModel

	if err := db.Where("schema_version = ?", entity.CurrentSchemaVersion).Find(&habitModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find habits")
	}

	habits := make([]*entity.Habit, 0, len(habitModels))
	for _, habitM := range habitModels {
		habits = append(habits, toHabitDomain(habitM))
	}

	return habits, nil
}

// Update writes the habit if nobody bumped its version since it was read.
func (repo *habitRepository) Update(ctx context.Context, habit *entity.Habit) error {
	if err := repo.compareAndSwap(repo.db.WithContext(ctx), habit); err != nil {
		return err
	}

	habit.Version++

	return nil
}

// UpdateBatch writes every habit or none of them. Inside a transaction the nested
// Transaction call becomes a savepoint.
func (repo *habitRepository) UpdateBatch(ctx context.Context, habits []*entity.Habit) error {
	if len(habits) == 0 {
		return nil
	}

	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, habit := range habits {
			if err := repo.compareAndSwap(tx, habit); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err //nolint:wrapcheck // compareAndSwap already classifies the failure
	}

	for _, habit := range habits {
		habit.Version++
	}

	return nil
}

func (repo *habitRepository) compareAndSwap(db *gorm.DB, habit *entity.Habit) error {
	habitM := fromHabitDomain(habit)

	result := db.Model(&model.HabitModel{}).
		Where("id = ? AND version = ?", habit.ID, habit.Version).
		Updates(map[string]any{
			"name":       habitM.Name,
			"members":    habitM.Members,
			"member_ids": habitM.MemberIDs,
			"last_reset": habitM.LastReset,
			"version":    gorm.Expr("version + 1"),
			"updated_at": habitM.UpdatedAt,
		})

	if result.Error != nil {
		if isSerializationFailure(result.Error) {
			return errors.Wrapf(repository.ErrVersionConflict, "habit %s: %v", habit.ID, result.Error)
		}

		return errors.Wrap(result.Error, "failed to update habit")
	}

	if result.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := db.Model(&model.HabitModel{}).Where("id = ?", habit.ID).Count(&count).Error; err != nil {
		return errors.Wrap(err, "failed to check habit existence")
	}

	if count == 0 {
		return errors.Wrapf(repository.ErrHabitNotFound, "habit %s", habit.ID)
	}

	return errors.Wrapf(repository.ErrVersionConflict, "habit %s at version %d", habit.ID, habit.Version)
}

// --- Mapper Functions ---

// toHabitDomain converts a GORM HabitModel to a domain Habit entity.
func toHabitDomain(data *model.HabitModel) *entity.Habit {
	if data == nil {
		return nil
	}

	members := make([]entity.Member, 0, len(data.Members))
	for _, m := range data.Members {
		members = append(members, entity.Member{
			ID:         m.ID,
			Streak:     m.Streak,
			BestStreak: m.BestStreak,
			Status:     entity.MemberStatus(m.Status),
		})
	}

	memberIDs := make([]string, len(data.MemberIDs))
	copy(memberIDs, data.MemberIDs)

	return &entity.Habit{
		ID:            data.ID,
		Name:          data.Name,
		OwnerID:       data.OwnerID,
		CreatedAt:     data.CreatedAt,
		Members:       members,
		MemberIDs:     memberIDs,
		LastReset:     entity.Day(data.LastReset),
		Version:       data.Version,
		SchemaVersion: data.SchemaVersion,
		UpdatedAt:     data.UpdatedAt,
	}
}

// fromHabitDomain converts a domain Habit entity to a GORM HabitModel.
func fromHabitDomain(data *entity.Habit) *model.HabitModel {
	if data == nil {
		return nil
	}

	members := make(model.MemberList, 0, len(data.Members))
	for _, m := range data.Members {
		members = append(members, model.MemberRecord{
			ID:         m.ID,
			Streak:     m.Streak,
			BestStreak: m.BestStreak,
			Status:     string(m.Status),
		})
	}

	updatedAt := data.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	return &model.HabitModel{
		ID:            data.ID,
		Name:          data.Name,
		OwnerID:       data.OwnerID,
		Members:       members,
		MemberIDs:     pq.StringArray(append([]string{}, data.MemberIDs...)),
		LastReset:     data.LastReset.String(),
		Version:       data.Version,
		SchemaVersion: data.SchemaVersion,
		CreatedAt:     data.CreatedAt,
		UpdatedAt:     updatedAt,
	}
}
