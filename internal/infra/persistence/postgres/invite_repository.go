package postgres

import (
	"context"
	"time"

	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/domain/repository"
	"streakbuddy/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// inviteRepository implements the repository.InviteRepository interface.
type inviteRepository struct {
	db *gorm.DB
}

// NewInviteRepository is the constructor for inviteRepository.
func NewInviteRepository(db *gorm.DB) repository.InviteRepository {
	return &inviteRepository{
		db: db,
	}
}

// Create persists a new invite.
func (repo *inviteRepository) Create(ctx context.Context, invite *entity.Invite) error {
	if err := repo.db.WithContext(ctx).Create(fromInviteDomain(invite)).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return errors.Wrapf(repository.ErrHabitNotFound, "habit %s", invite.HabitID)
		}

		return errors.Wrap(err, "failed to create invite")
	}

	return nil
}

// FindByID retrieves one invite of a habit.
func (repo *inviteRepository) FindByID(ctx context.Context, habitID, inviteID string) (*entity.Invite, error) {
	return repo.first(repo.db.WithContext(ctx).Where("habit_id = ? AND id = ?", habitID, inviteID))
}

// FindPendingFor returns the open invite of invitee on a habit.
func (repo *inviteRepository) FindPendingFor(ctx context.Context, habitID, invitee string) (*entity.Invite, error) {
	return repo.first(repo.db.WithContext(ctx).
		Where("habit_id = ? AND invitee = ? AND status = ?", habitID, invitee, entity.InviteStatusPending).
		Order("timestamp DESC"))
}

func (repo *inviteRepository) first(db *gorm.DB) (*entity.Invite, error) {
	var inviteM model.InviteModel

	if err := db.First(&inviteM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrInviteNotFound
		}

		return nil, errors.Wrap(err, "failed to find invite")
	}

	return toInviteDomain(&inviteM), nil
}

// ListPendingForInvitee queries invites across every habit.
func (repo *inviteRepository) ListPendingForInvitee(ctx context.Context, invitee string) ([]*entity.Invite, error) {
	var inviteModels []*model.InviteModel

	if err := repo.db.WithContext(ctx).
		Where("invitee = ? AND status = ?", invitee, entity.InviteStatusPending).
		Order("timestamp DESC, id DESC").
		Find(&inviteModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list pending invites")
	}

	invites := make([]*entity.Invite, 0, len(inviteModels))
	for _, inviteM := range inviteModels {
		invites = append(invites, toInviteDomain(inviteM))
	}

	return invites, nil
}

// UpdateStatusIfPending answers an invite only while it is still pending.
func (repo *inviteRepository) UpdateStatusIfPending(
	ctx context.Context,
	habitID, inviteID string,
	status entity.InviteStatus,
	at time.Time,
) (bool, error) {
	db := repo.db.WithContext(ctx)

	result := db.Model(&model.InviteModel{}).
		Where("habit_id = ? AND id = ? AND status = ?", habitID, inviteID, entity.InviteStatusPending).
		Updates(map[string]any{
			"status":       string(status),
			"responded_at": at,
		})
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "failed to answer invite")
	}

	if result.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := db.Model(&model.InviteModel{}).Where("habit_id = ? AND id = ?", habitID, inviteID).Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "failed to check invite existence")
	}

	if count == 0 {
		return false, repository.ErrInviteNotFound
	}

	return false, nil
}

// --- Mapper Functions ---

// toInviteDomain converts a GORM InviteModel to a domain Invite entity.
func toInviteDomain(data *model.InviteModel) *entity.Invite {
	if data == nil {
		return nil
	}

	return &entity.Invite{
		ID:          data.ID,
		HabitID:     data.HabitID,
		InvitedBy:   data.InvitedBy,
		Invitee:     data.Invitee,
		Status:      entity.InviteStatus(data.Status),
		Timestamp:   data.Timestamp,
		RespondedAt: data.RespondedAt,
	}
}

// fromInviteDomain converts a domain Invite entity to a GORM InviteModel.
func fromInviteDomain(data *entity.Invite) *model.InviteModel {
	if data == nil {
		return nil
	}

	return &model.InviteModel{
		ID:          data.ID,
		HabitID:     data.HabitID,
		InvitedBy:   data.InvitedBy,
		Invitee:     data.Invitee,
		Status:      string(data.Status),
		Timestamp:   data.Timestamp,
		RespondedAt: data.RespondedAt,
	}
}
