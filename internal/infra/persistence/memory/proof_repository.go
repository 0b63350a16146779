package memory

import (
	"context"
	"sort"
	"time"

	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/domain/repository"

	"github.com/pkg/errors"
)

type proofRepository struct {
	r runner
}

func cloneProof(p *entity.Proof) *entity.Proof {
	c := *p
	if p.ReviewedAt != nil {
		at := *p.ReviewedAt
		c.ReviewedAt = &at
	}

	return &c
}

func proofEvent(op repository.ChangeOp, p *entity.Proof) repository.ChangeEvent {
	return repository.ChangeEvent{
		Collection: repository.CollectionProofs,
		Op:         op,
		HabitID:    p.HabitID,
		DocID:      p.ID,
	}
}

// newerProof orders proofs by timestamp desc, then id desc.
func newerProof(a, b *entity.Proof) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}

	return a.ID > b.ID
}

func (repo *proofRepository) Create(ctx context.Context, proof *entity.Proof) error {
	return repo.r.run(ctx, func(t *txn) error {
		byID, ok := t.data.proofs[proof.HabitID]
		if !ok {
			byID = make(map[string]*entity.Proof)
			t.data.proofs[proof.HabitID] = byID
		}

		if _, exists := byID[proof.ID]; exists {
			return errors.Errorf("proof %s already exists", proof.ID)
		}

		byID[proof.ID] = cloneProof(proof)
		t.emit(proofEvent(repository.ChangeAdded, proof))

		return nil
	})
}

func (repo *proofRepository) FindByID(ctx context.Context, habitID, proofID string) (*entity.Proof, error) {
	var found *entity.Proof

	err := repo.r.run(ctx, func(t *txn) error {
		p, ok := t.data.proofs[habitID][proofID]
		if !ok {
			return repository.ErrProofNotFound
		}

		found = cloneProof(p)

		return nil
	})

	return found, err
}

func (repo *proofRepository) ListByHabit(ctx context.Context, habitID string, query repository.ProofPageQuery) ([]*entity.Proof, error) {
	var out []*entity.Proof

	err := repo.r.run(ctx, func(t *txn) error {
		for _, p := range t.data.proofs[habitID] {
			out = append(out, cloneProof(p))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return newerProof(out[i], out[j]) })

	if c := query.Cursor; c != nil {
		pivot := &entity.Proof{Timestamp: c.Timestamp, ID: c.ID}
		idx := sort.Search(len(out), func(i int) bool { return newerProof(pivot, out[i]) })
		out = out[idx:]
	}

	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}

	return out, nil
}

func (repo *proofRepository) LatestApprovedBy(ctx context.Context, habitID, submitterID string) (*entity.Proof, error) {
	var latest *entity.Proof

	err := repo.r.run(ctx, func(t *txn) error {
		for _, p := range t.data.proofs[habitID] {
			if p.SubmittedBy != submitterID || p.Status != entity.ProofStatusApproved {
				continue
			}

			if latest == nil || newerProof(p, latest) {
				latest = p
			}
		}

		if latest == nil {
			return repository.ErrProofNotFound
		}

		latest = cloneProof(latest)

		return nil
	})

	return latest, err
}

func (repo *proofRepository) UpdateStatusIfPending(
	ctx context.Context,
	habitID, proofID string,
	status entity.ProofStatus,
	reviewerID string,
	at time.Time,
) (bool, error) {
	var changed bool

	err := repo.r.run(ctx, func(t *txn) error {
		p, ok := t.data.proofs[habitID][proofID]
		if !ok {
			return repository.ErrProofNotFound
		}

		if p.Status != entity.ProofStatusPending {
			return nil
		}

		updated := cloneProof(p)
		updated.Status = status
		updated.ReviewedBy = reviewerID
		updated.ReviewedAt = &at
		t.data.proofs[habitID][proofID] = updated
		t.emit(proofEvent(repository.ChangeModified, updated))
		changed = true

		return nil
	})

	return changed, err
}
