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

// proofRepository implements the repository.ProofRepository interface.
type proofRepository struct {
	db *gorm.DB
}

// NewProofRepository is the constructor for proofRepository.
func NewProofRepository(db *gorm.DB) repository.ProofRepository {
	return &proofRepository{
		db: db,
	}
}

// Create persists a new proof.
func (repo *proofRepository) Create(ctx context.Context, proof *entity.Proof) error {
	if err := repo.db.WithContext(ctx).Create(fromProofDomain(proof)).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return errors.Wrapf(repository.ErrHabitNotFound, "habit %s", proof.HabitID)
		}

		return errors.Wrap(err, "failed to create proof")
	}

	return nil
}

// FindByID retrieves one proof of a habit.
func (repo *proofRepository) FindByID(ctx context.Context, habitID, proofID string) (*entity.Proof, error) {
	var proofM model.ProofModel

	if err := repo.db.WithContext(ctx).
		Where("habit_id = ? AND id = ?", habitID, proofID).
		First(&proofM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrProofNotFound
		}

		return nil, errors.Wrap(err, "failed to find proof by ID")
	}

	return toProofDomain(&proofM), nil
}

// ListByHabit pages through proofs newest first using a keyset cursor.
func (repo *proofRepository) ListByHabit(ctx context.Context, habitID string, query repository.ProofPageQuery) ([]*entity.Proof, error) {
	db := repo.db.WithContext(ctx).Where("habit_id = ?", habitID)

	if c := query.Cursor; c != nil {
		db = db.Where("(timestamp, id) < (?, ?)", c.Timestamp, c.ID)
	}

	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}

	var proofModels []*model.ProofModel
	if err := db.Order("timestamp DESC, id DESC").Find(&proofModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list proofs")
	}

	proofs := make([]*entity.Proof, 0, len(proofModels))
	for _, proofM := range proofModels {
		proofs = append(proofs, toProofDomain(proofM))
	}

	return proofs, nil
}

// LatestApprovedBy returns the newest approved proof of a submitter.
func (repo *proofRepository) LatestApprovedBy(ctx context.Context, habitID, submitterID string) (*entity.Proof, error) {
	var proofM model.ProofModel

	if err := repo.db.WithContext(ctx).
		Where("habit_id = ? AND submitted_by = ? AND status = ?", habitID, submitterID, entity.ProofStatusApproved).
		Order("timestamp DESC, id DESC").
		First(&proofM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrProofNotFound
		}

		return nil, errors.Wrap(err, "failed to find latest approved proof")
	}

	return toProofDomain(&proofM), nil
}

// UpdateStatusIfPending reviews a proof only while it is still pending.
func (repo *proofRepository) UpdateStatusIfPending(
	ctx context.Context,
	habitID, proofID string,
	status entity.ProofStatus,
	reviewerID string,
	at time.Time,
) (bool, error) {
	db := repo.db.WithContext(ctx)

	result := db.Model(&model.ProofModel{}).
		Where("habit_id = ? AND id = ? AND status = ?", habitID, proofID, entity.ProofStatusPending).
		Updates(map[string]any{
			"status":      string(status),
			"reviewed_by": reviewerID,
			"reviewed_at": at,
		})
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "failed to review proof")
	}

	if result.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := db.Model(&model.ProofModel{}).Where("habit_id = ? AND id = ?", habitID, proofID).Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "failed to check proof existence")
	}

	if count == 0 {
		return false, repository.ErrProofNotFound
	}

	return false, nil
}

// --- Mapper Functions ---

// toProofDomain converts a GORM ProofModel to a domain Proof entity.
func toProofDomain(data *model.ProofModel) *entity.Proof {
	if data == nil {
		return nil
	}

	return &entity.Proof{
		ID:          data.ID,
		HabitID:     data.HabitID,
		SubmittedBy: data.SubmittedBy,
		Timestamp:   data.Timestamp,
		URL:         data.URL,
		ContentType: data.ContentType,
		Note:        data.Note,
		Status:      entity.ProofStatus(data.Status),
		ReviewedBy:  data.ReviewedBy,
		ReviewedAt:  data.ReviewedAt,
	}
}

// fromProofDomain converts a domain Proof entity to a GORM ProofModel.
func fromProofDomain(data *entity.Proof) *model.ProofModel {
	if data == nil {
		return nil
	}

	return &model.ProofModel{
		ID:          data.ID,
		HabitID:     data.HabitID,
		SubmittedBy: data.SubmittedBy,
		Timestamp:   data.Timestamp,
		URL:         data.URL,
		ContentType: data.ContentType,
		Note:        data.Note,
		Status:      string(data.Status),
		ReviewedBy:  data.ReviewedBy,
		ReviewedAt:  data.ReviewedAt,
	}
}
