package postgres

import (
	"context"

	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/domain/repository"
	"streakbuddy/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// pushTokenRepository implements the repository.PushTokenRepository interface.
type pushTokenRepository struct {
	db *gorm.DB
}

// NewPushTokenRepository is the constructor for pushTokenRepository.
func NewPushTokenRepository(db *gorm.DB) repository.PushTokenRepository {
	return &pushTokenRepository{
		db: db,
	}
}

// Save upserts the user's token.
func (repo *pushTokenRepository) Save(ctx context.Context, token *entity.PushToken) error {
	tokenM := &model.PushTokenModel{
		UserID:    token.UserID,
		Token:     token.Token,
		Platform:  token.Platform,
		UpdatedAt: token.UpdatedAt,
	}

	if err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"token", "platform", "updated_at"}),
		}).
		Create(tokenM).Error; err != nil {
		return errors.Wrap(err, "failed to save push token")
	}

	return nil
}

// FindByUser returns the user's current token.
func (repo *pushTokenRepository) FindByUser(ctx context.Context, userID string) (*entity.PushToken, error) {
	var tokenM model.PushTokenModel

	if err := repo.db.WithContext(ctx).Where("user_id = ?", userID).First(&tokenM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrPushTokenNotFound
		}

		return nil, errors.Wrap(err, "failed to find push token")
	}

	return &entity.PushToken{
		UserID:    tokenM.UserID,
		Token:     tokenM.Token,
		Platform:  tokenM.Platform,
		UpdatedAt: tokenM.UpdatedAt,
	}, nil
}

// Delete removes the token; with a non-empty token only while it still matches.
func (repo *pushTokenRepository) Delete(ctx context.Context, userID, token string) error {
	query := repo.db.WithContext(ctx).Where("user_id = ?", userID)
	if token != "" {
		query = query.Where("token = ?", token)
	}

	if err := query.Delete(&model.PushTokenModel{}).Error; err != nil {
		return errors.Wrap(err, "failed to delete push token")
	}

	return nil
}
