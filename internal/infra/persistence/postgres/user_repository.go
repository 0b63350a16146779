package postgres

import (
	"context"
	"strings"
	"time"

	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/domain/repository"
	"streakbuddy/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// userRepository implements the repository.UserRepository interface.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository is the constructor for userRepository.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{
		db: db,
	}
}

// Create persists a new profile. Both a taken id and a taken username report ErrDuplicateUser.
func (repo *userRepository) Create(ctx context.Context, user *entity.User) error {
	userM := fromUserDomain(user)

	if err := repo.db.WithContext(ctx).Create(userM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrDuplicateUser
		}

		return errors.Wrap(err, "failed to create user")
	}

	user.CreatedAt = userM.CreatedAt
	user.UpdatedAt = userM.UpdatedAt

	return nil
}

// FindByID retrieves a profile by user id.
func (repo *userRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var userM model.UserModel

	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&userM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user by ID")
	}

	return toUserDomain(&userM), nil
}

// SearchByUsernamePrefix runs a range scan on the lower(username) pattern index.
func (repo *userRepository) SearchByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]*entity.User, error) {
	pattern := likeEscaper.Replace(strings.ToLower(prefix)) + "%"

	query := repo.db.WithContext(ctx).
		Where("lower(username) LIKE ?", pattern).
		Order("username ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var userModels []*model.UserModel
	if err := query.Find(&userModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to search users")
	}

	users := make([]*entity.User, 0, len(userModels))
	for _, userM := range userModels {
		users = append(users, toUserDomain(userM))
	}

	return users, nil
}

// UpdateProfilePic replaces the picture URL.
func (repo *userRepository) UpdateProfilePic(ctx context.Context, id, url string) error {
	result := repo.db.WithContext(ctx).
		Model(&model.UserModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"profile_pic": url, "updated_at": time.Now()})

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update profile picture")
	}

	if result.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}

	return nil
}

// --- Mapper Functions ---

// toUserDomain converts a GORM UserModel to a domain User entity.
func toUserDomain(data *model.UserModel) *entity.User {
	if data == nil {
		return nil
	}

	return &entity.User{
		ID:         data.ID,
		Email:      data.Email,
		Username:   data.Username,
		ProfilePic: data.ProfilePic,
		CreatedAt:  data.CreatedAt,
		UpdatedAt:  data.UpdatedAt,
	}
}

// fromUserDomain converts a domain User entity to a GORM UserModel.
func fromUserDomain(data *entity.User) *model.UserModel {
	if data == nil {
		return nil
	}

	return &model.UserModel{
		ID:         data.ID,
		Email:      data.Email,
		Username:   data.Username,
		ProfilePic: data.ProfilePic,
		CreatedAt:  data.CreatedAt,
		UpdatedAt:  data.UpdatedAt,
	}
}
