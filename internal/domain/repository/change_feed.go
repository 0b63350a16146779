package repository

import (
	"context"
)

// Collection names a document family observed by the change feed.
type Collection string

const (
	CollectionHabits  Collection = "habits"
	CollectionProofs  Collection = "proofs"
	CollectionInvites Collection = "invites"
)

// ChangeOp is the kind of write that produced an event.
type ChangeOp string

const (
	ChangeAdded    ChangeOp = "added"
	ChangeModified ChangeOp = "modified"
	ChangeRemoved  ChangeOp = "removed"
	// ChangeResync tells a subscriber that events were lost and every query must be re-run.
	ChangeResync ChangeOp = "resync"
)

// ChangeEvent describes one committed write. It carries enough routing data for a
// subscriber to decide whether any of its queries is affected.
type ChangeEvent struct {
	Collection Collection `json:"collection"`
	Op         ChangeOp   `json:"op"`
	HabitID    string     `json:"habitId"`
	DocID      string     `json:"docId"`
	OwnerID    string     `json:"ownerId,omitempty"`
	MemberIDs  []string   `json:"memberIds,omitempty"`
	Invitee    string     `json:"invitee,omitempty"`
}

// ChangeFeed streams committed writes to in-process subscribers.
type ChangeFeed interface {
	// Subscribe returns a channel of events that is closed when ctx is done. Slow
	// subscribers receive ChangeResync instead of blocking writers.
	Subscribe(ctx context.Context) (<-chan ChangeEvent, error)
}
