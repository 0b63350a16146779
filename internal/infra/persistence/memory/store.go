// Package memory is an in-process document store with the same transactional and
// change-feed semantics as the postgres store. It backs tests and single-node development.
package memory

import (
	"context"
	"sync"

	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/domain/repository"
	"streakbuddy/internal/errors"
	"streakbuddy/internal/infra/persistence/feed"
)

// Store holds every collection behind one mutex. Transactions run one at a time against
// a private copy of the data which replaces the live copy on commit.
type Store struct {
	mu   sync.Mutex
	data *dataset
	feed *feed.Broadcaster
}

type dataset struct {
	habits  map[string]*entity.Habit
	proofs  map[string]map[string]*entity.Proof
	invites map[string]map[string]*entity.Invite
	users   map[string]*entity.User
	tokens  map[string]*entity.PushToken
}

// New creates an empty store.
func New() *Store {
	return &Store{
		data: newDataset(),
		feed: feed.NewBroadcaster(feed.DefaultBuffer),
	}
}

func newDataset() *dataset {
	return &dataset{
		habits:  make(map[string]*entity.Habit),
		proofs:  make(map[string]map[string]*entity.Proof),
		invites: make(map[string]map[string]*entity.Invite),
		users:   make(map[string]*entity.User),
		tokens:  make(map[string]*entity.PushToken),
	}
}

// clone copies the maps. Stored values are never mutated in place, so sharing the
// pointers between copies is safe.
func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.habits {
		c.habits[k] = v
	}

	for k, m := range d.proofs {
		inner := make(map[string]*entity.Proof, len(m))
		for id, p := range m {
			inner[id] = p
		}
		c.proofs[k] = inner
	}

	for k, m := range d.invites {
		inner := make(map[string]*entity.Invite, len(m))
		for id, inv := range m {
			inner[id] = inv
		}
		c.invites[k] = inner
	}

	for k, v := range d.users {
		c.users[k] = v
	}

	for k, v := range d.tokens {
		c.tokens[k] = v
	}

	return c
}

// txn is the unit every repository call runs against: the data it reads and writes and
// the change events to publish once the writes are visible.
type txn struct {
	data   *dataset
	events []repository.ChangeEvent
}

func (t *txn) emit(ev repository.ChangeEvent) {
	t.events = append(t.events, ev)
}

// runner executes repository operations either directly on the live data or inside an
// open transaction.
type runner interface {
	run(ctx context.Context, fn func(t *txn) error) error
}

type liveRunner struct {
	store *Store
}

func (r liveRunner) run(ctx context.Context, fn func(t *txn) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "memory store")
	}

	r.store.mu.Lock()
	t := &txn{data: r.store.data}
	err := fn(t)
	r.store.mu.Unlock()

	if err == nil {
		r.store.feed.Publish(t.events...)
	}

	return err
}

type txRunner struct {
	tx *txn
}

func (r txRunner) run(ctx context.Context, fn func(t *txn) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "memory store")
	}

	return fn(r.tx)
}

// Execute implements repository.TransactionManager. Every write made through the factory
// becomes visible, and is published on the change feed, only when fn returns nil.
// Calling the store's non-transactional repositories from inside fn deadlocks.
func (s *Store) Execute(ctx context.Context, fn func(txRepoFactory repository.RepositoryFactory) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "memory store")
	}

	s.mu.Lock()
	committed := false
	defer func() {
		if !committed {
			s.mu.Unlock()
		}
	}()

	t := &txn{data: s.data.clone()}
	if err := fn(&repositoryFactory{r: txRunner{tx: t}}); err != nil {
		return err
	}

	s.data = t.data
	committed = true
	s.mu.Unlock()

	s.feed.Publish(t.events...)

	return nil
}

// Subscribe implements repository.ChangeFeed.
func (s *Store) Subscribe(ctx context.Context) (<-chan repository.ChangeEvent, error) {
	return s.feed.Subscribe(ctx) //nolint:wrapcheck // broadcaster errors are already descriptive
}

// Close ends every change feed subscription.
func (s *Store) Close() {
	s.feed.Close()
}

// Habits returns a non-transactional habit repository.
func (s *Store) Habits() repository.HabitRepository {
	return &habitRepository{r: liveRunner{store: s}}
}

// Proofs returns a non-transactional proof repository.
func (s *Store) Proofs() repository.ProofRepository {
	return &proofRepository{r: liveRunner{store: s}}
}

// Invites returns a non-transactional invite repository.
func (s *Store) Invites() repository.InviteRepository {
	return &inviteRepository{r: liveRunner{store: s}}
}

// Users returns a non-transactional user repository.
func (s *Store) Users() repository.UserRepository {
	return &userRepository{r: liveRunner{store: s}}
}

// PushTokens returns a non-transactional push token repository.
func (s *Store) PushTokens() repository.PushTokenRepository {
	return &pushTokenRepository{r: liveRunner{store: s}}
}

type repositoryFactory struct {
	r runner
}

func (f *repositoryFactory) NewHabitRepository() repository.HabitRepository {
	return &habitRepository{r: f.r}
}

func (f *repositoryFactory) NewProofRepository() repository.ProofRepository {
	return &proofRepository{r: f.r}
}

func (f *repositoryFactory) NewInviteRepository() repository.InviteRepository {
	return &inviteRepository{r: f.r}
}

func (f *repositoryFactory) NewUserRepository() repository.UserRepository {
	return &userRepository{r: f.r}
}

func (f *repositoryFactory) NewPushTokenRepository() repository.PushTokenRepository {
	return &pushTokenRepository{r: f.r}
}
