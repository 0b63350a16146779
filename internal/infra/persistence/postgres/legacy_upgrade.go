package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/infra/persistence/model"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const legacyUpgradeBatch = 100

// UpgradeLegacyHabits rewrites every habit still stored in schema version 1 into the
// current per-member shape. Repositories only ever read the current shape, so this runs
// once at start-up before traffic. It returns the number of habits upgraded.
func UpgradeLegacyHabits(ctx context.Context, db *gorm.DB, now time.Time, logger *slog.Logger) (int, error) {
	upgraded := 0
	afterID := ""

	for {
		var rows []*model.HabitModel

		if err := db.WithContext(ctx).
			Where("schema_version < ? AND id > ?", entity.CurrentSchemaVersion, afterID).
			Order("id ASC").
			Limit(legacyUpgradeBatch).
			Find(&rows).Error; err != nil {
			return upgraded, errors.Wrap(err, "failed to load legacy habits")
		}

		for _, row := range rows {
			afterID = row.ID

			habit, err := upgradeLegacyRow(row, now)
			if err != nil {
				logger.Warn("Skipping unreadable legacy habit", "habitID", row.ID, "error", err)

				continue
			}

			habitM := fromHabitDomain(habit)

			result := db.WithContext(ctx).Model(&model.HabitModel{}).
				Where("id = ? AND version = ? AND schema_version < ?", row.ID, row.Version, entity.CurrentSchemaVersion).
				Updates(map[string]any{
					"members":        habitM.Members,
					"member_ids":     pq.StringArray(habit.MemberIDs),
					"owner_id":       habit.OwnerID,
					"last_reset":     habitM.LastReset,
					"schema_version": entity.CurrentSchemaVersion,
					"legacy":         gorm.Expr("NULL"),
					"version":        gorm.Expr("version + 1"),
					"updated_at":     now,
				})
			if result.Error != nil {
				return upgraded, errors.Wrapf(result.Error, "failed to upgrade habit %s", row.ID)
			}

			upgraded += int(result.RowsAffected)
		}

		if len(rows) < legacyUpgradeBatch {
			break
		}
	}

	if upgraded > 0 {
		logger.Info("Upgraded legacy habits", "count", upgraded)
	}

	return upgraded, nil
}

func upgradeLegacyRow(row *model.HabitModel, now time.Time) (*entity.Habit, error) {
	if row.Legacy == nil {
		return nil, errors.New("legacy document missing")
	}

	var doc model.LegacyHabitDocument
	if err := json.Unmarshal([]byte(*row.Legacy), &doc); err != nil {
		return nil, errors.Wrap(err, "decode legacy document")
	}

	owner := doc.OwnerID
	if owner == "" {
		owner = row.OwnerID
	}

	name := doc.Name
	if name == "" {
		name = row.Name
	}

	lastReset, err := entity.ParseDay(doc.LastResetDate)
	if err != nil {
		lastReset = ""
	}

	habit := entity.MigrateLegacyHabit(entity.LegacyHabit{
		ID:             row.ID,
		Name:           name,
		OwnerID:        owner,
		CreatedAt:      row.CreatedAt,
		Members:        doc.Members,
		Streak:         doc.Streak,
		BestStreak:     doc.BestStreak,
		SubmittedToday: doc.SubmittedToday,
		Approved:       doc.Approved,
		LastReset:      lastReset,
		Version:        row.Version,
	}, now)

	if err := habit.CheckInvariants(); err != nil {
		return nil, err //nolint:wrapcheck // invariant errors name the habit
	}

	return habit, nil
}
