package impl

import (
	"context"
	"strconv"

	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/domain/repository"
)

// docChange is one difference between two consecutive results of a live query.
type docChange struct {
	Op repository.ChangeOp
	ID string
}

// liveQuery is a snapshot listener: it keeps the last result of a query and, on each
// refresh, reports what was added, modified or removed since then. It is owned by a single
// goroutine and is not safe for concurrent use.
type liveQuery[T any] struct {
	name    string
	fetch   func(ctx context.Context) ([]T, error)
	key     func(T) string
	version func(T) string

	docs  []T
	seen  map[string]string
	stale bool
}

func newLiveQuery[T any](name string, fetch func(context.Context) ([]T, error), key, version func(T) string) *liveQuery[T] {
	return &liveQuery[T]{
		name:    name,
		fetch:   fetch,
		key:     key,
		version: version,
		seen:    make(map[string]string),
		stale:   true,
	}
}

// refresh re-runs the query. On failure the previous result is kept and the query stays
// stale until a later refresh succeeds.
func (q *liveQuery[T]) refresh(ctx context.Context) ([]docChange, error) {
	docs, err := q.fetch(ctx)
	if err != nil {
		q.stale = true

		return nil, err
	}

	next := make(map[string]string, len(docs))

	var changes []docChange
	for _, doc := range docs {
		id, v := q.key(doc), q.version(doc)
		next[id] = v

		prev, ok := q.seen[id]
		switch {
		case !ok:
			changes = append(changes, docChange{Op: repository.ChangeAdded, ID: id})
		case prev != v:
			changes = append(changes, docChange{Op: repository.ChangeModified, ID: id})
		}
	}

	for id := range q.seen {
		if _, ok := next[id]; !ok {
			changes = append(changes, docChange{Op: repository.ChangeRemoved, ID: id})
		}
	}

	q.docs, q.seen, q.stale = docs, next, false

	return changes, nil
}

func (q *liveQuery[T]) contains(id string) bool {
	_, ok := q.seen[id]

	return ok
}

func habitKey(h *entity.Habit) string { return h.ID }

func habitVersion(h *entity.Habit) string { return strconv.FormatInt(h.Version, 10) }

func inviteKey(i *entity.Invite) string { return i.ID }

func inviteVersion(i *entity.Invite) string { return string(i.Status) }

func proofKey(p *entity.Proof) string { return p.ID }

func proofVersion(p *entity.Proof) string { return string(p.Status) }
