package memory

import (
	"context"
	"sort"
	"time"

	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/domain/repository"

	"github.com/pkg/errors"
)

type inviteRepository struct {
	r runner
}

func cloneInvite(inv *entity.Invite) *entity.Invite {
	c := *inv
	if inv.RespondedAt != nil {
		at := *inv.RespondedAt
		c.RespondedAt = &at
	}

	return &c
}

func inviteEvent(op repository.ChangeOp, inv *entity.Invite) repository.ChangeEvent {
	return repository.ChangeEvent{
		Collection: repository.CollectionInvites,
		Op:         op,
		HabitID:    inv.HabitID,
		DocID:      inv.ID,
		Invitee:    inv.Invitee,
	}
}

func (repo *inviteRepository) Create(ctx context.Context, invite *entity.Invite) error {
	return repo.r.run(ctx, func(t *txn) error {
		byID, ok := t.data.invites[invite.HabitID]
		if !ok {
			byID = make(map[string]*entity.Invite)
			t.data.invites[invite.HabitID] = byID
		}

		if _, exists := byID[invite.ID]; exists {
			return errors.Errorf("invite %s already exists", invite.ID)
		}

		byID[invite.ID] = cloneInvite(invite)
		t.emit(inviteEvent(repository.ChangeAdded, invite))

		return nil
	})
}

func (repo *inviteRepository) FindByID(ctx context.Context, habitID, inviteID string) (*entity.Invite, error) {
	var found *entity.Invite

	err := repo.r.run(ctx, func(t *txn) error {
		inv, ok := t.data.invites[habitID][inviteID]
		if !ok {
			return repository.ErrInviteNotFound
		}

		found = cloneInvite(inv)

		return nil
	})

	return found, err
}

func (repo *inviteRepository) FindPendingFor(ctx context.Context, habitID, invitee string) (*entity.Invite, error) {
	var found *entity.Invite

	err := repo.r.run(ctx, func(t *txn) error {
		for _, inv := range t.data.invites[habitID] {
			if inv.Invitee == invitee && inv.Status == entity.InviteStatusPending {
				found = cloneInvite(inv)

				return nil
			}
		}

		return repository.ErrInviteNotFound
	})

	return found, err
}

func (repo *inviteRepository) ListPendingForInvitee(ctx context.Context, invitee string) ([]*entity.Invite, error) {
	var out []*entity.Invite

	err := repo.r.run(ctx, func(t *txn) error {
		for _, byID := range t.data.invites {
			for _, inv := range byID {
				if inv.Invitee == invitee && inv.Status == entity.InviteStatusPending {
					out = append(out, cloneInvite(inv))
				}
			}
		}

		return nil
	})

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}

		return out[i].ID > out[j].ID
	})

	return out, err
}

func (repo *inviteRepository) UpdateStatusIfPending(
	ctx context.Context,
	habitID, inviteID string,
	status entity.InviteStatus,
	at time.Time,
) (bool, error) {
	var changed bool

	err := repo.r.run(ctx, func(t *txn) error {
		inv, ok := t.data.invites[habitID][inviteID]
		if !ok {
			return repository.ErrInviteNotFound
		}

		if inv.Status != entity.InviteStatusPending {
			return nil
		}

		updated := cloneInvite(inv)
		updated.Status = status
		updated.RespondedAt = &at
		t.data.invites[habitID][inviteID] = updated
		t.emit(inviteEvent(repository.ChangeModified, updated))
		changed = true

		return nil
	})

	return changed, err
}
