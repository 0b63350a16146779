package impl

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"streakbuddy/config"
	"streakbuddy/internal/domain/entity"
	domainerrors "streakbuddy/internal/domain/errors"
	"streakbuddy/internal/domain/repository"
	"streakbuddy/internal/domain/service"
	"streakbuddy/internal/errors"
	"streakbuddy/internal/usecase"

	"go.uber.org/fx"
)

const (
	// maxEventBatch bounds how many queued change events are folded into one recompute.
	maxEventBatch   = 64
	queryRetryDelay = 2 * time.Second
)

// SessionServiceParams defines the dependencies of the live session layer.
type SessionServiceParams struct {
	fx.In

	Habits     usecase.HabitUsecase
	HabitRepo  repository.HabitRepository
	ProofRepo  repository.ProofRepository
	InviteRepo repository.InviteRepository
	Feed       repository.ChangeFeed
	Clock      service.Clock
	Metrics    service.Metrics `optional:"true"`
	Config     *config.Config
	Logger     *slog.Logger
}

type sessionService struct {
	habits     usecase.HabitUsecase
	habitRepo  repository.HabitRepository
	proofRepo  repository.ProofRepository
	inviteRepo repository.InviteRepository
	feed       repository.ChangeFeed
	clock      service.Clock
	metrics    service.Metrics
	logger     *slog.Logger
	proofLimit int

	// after arms the midnight and retry timers.
	after func(d time.Duration) <-chan time.Time
}

// NewSessionService is the constructor for sessionService.
func NewSessionService(params SessionServiceParams) usecase.SessionUsecase {
	metrics := params.Metrics
	if metrics == nil {
		metrics = service.NopMetrics{}
	}

	return &sessionService{
		habits:     params.Habits,
		habitRepo:  params.HabitRepo,
		proofRepo:  params.ProofRepo,
		inviteRepo: params.InviteRepo,
		feed:       params.Feed,
		clock:      params.Clock,
		metrics:    metrics,
		logger:     params.Logger,
		proofLimit: params.Config.Session.ProofPageSize,
		after:      time.After,
	}
}

// Open runs the sign-in maintenance, loads every query and starts the session loop.
func (srv *sessionService) Open(ctx context.Context, actor entity.Actor) (usecase.Session, error) {
	if _, err := srv.habits.DailyReset(ctx, actor); err != nil {
		return nil, err
	}

	if _, err := srv.habits.CheckAndResetStreaks(ctx, actor); err != nil {
		return nil, err
	}

	sessCtx, cancel := context.WithCancel(ctx)

	// Subscribe before the first load so no write between the two goes unseen.
	events, err := srv.feed.Subscribe(sessCtx)
	if err != nil {
		cancel()

		return nil, storeError(err, "subscribe")
	}

	s := &session{
		srv:     srv,
		actor:   actor,
		logger:  srv.logger.With("userID", actor.UserID),
		ctx:     sessCtx,
		cancel:  cancel,
		events:  events,
		updates: make(chan *usecase.SessionView, 1),
		done:    make(chan struct{}),
		day:     actor.Today(srv.clock.Now()),
		proofs:  make(map[string]*liveQuery[*entity.Proof]),
	}
	s.initQueries()

	if err := s.refreshAll(); err != nil {
		cancel()

		return nil, storeError(err, "open session")
	}

	s.publish()

	srv.metrics.SessionOpened()
	srv.logger.Info("Session opened", "userID", actor.UserID, "day", s.day)

	go s.loop()

	return s, nil
}

// session owns the live view of one signed-in user. Everything below the channels is
// touched only by the loop goroutine, or by Open before the loop starts.
type session struct {
	srv    *sessionService
	actor  entity.Actor
	logger *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	events  <-chan repository.ChangeEvent
	updates chan *usecase.SessionView
	done    chan struct{}

	closing   atomic.Bool
	closeOnce sync.Once
	errMu     sync.Mutex
	err       error

	day      entity.Day
	seq      uint64
	memberOf *liveQuery[*entity.Habit]
	owned    *liveQuery[*entity.Habit]
	invites  *liveQuery[*entity.Invite]
	proofs   map[string]*liveQuery[*entity.Proof]
	retry    <-chan time.Time
}

func (s *session) Updates() <-chan *usecase.SessionView {
	return s.updates
}

func (s *session) Done() <-chan struct{} {
	return s.done
}

func (s *session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()

	return s.err
}

// Close stops the loop and waits for it. Views still buffered are discarded.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.cancel()
		<-s.done

		s.srv.metrics.SessionClosed()
		s.logger.Info("Session closed")
	})

	return nil
}

func (s *session) initQueries() {
	userID := s.actor.UserID

	s.memberOf = newLiveQuery("habits_by_member", func(ctx context.Context) ([]*entity.Habit, error) {
		return s.srv.habitRepo.FindByMember(ctx, userID)
	}, habitKey, habitVersion)

	s.owned = newLiveQuery("habits_by_owner", func(ctx context.Context) ([]*entity.Habit, error) {
		return s.srv.habitRepo.FindByOwner(ctx, userID)
	}, habitKey, habitVersion)

	s.invites = newLiveQuery("pending_invites", func(ctx context.Context) ([]*entity.Invite, error) {
		return s.srv.inviteRepo.ListPendingForInvitee(ctx, userID)
	}, inviteKey, inviteVersion)
}

func (s *session) proofQuery(habitID string) *liveQuery[*entity.Proof] {
	return newLiveQuery("proofs:"+habitID, func(ctx context.Context) ([]*entity.Proof, error) {
		return s.srv.proofRepo.ListByHabit(ctx, habitID, repository.ProofPageQuery{Limit: s.srv.proofLimit})
	}, proofKey, proofVersion)
}

func (s *session) loop() {
	defer func() {
		if s.closing.Load() {
			select {
			case <-s.updates:
			default:
			}
		}

		close(s.updates)
		close(s.done)
	}()

	midnight := s.armMidnight()

	for {
		select {
		case <-s.ctx.Done():
			if !s.closing.Load() {
				s.fail(errors.Wrap(s.ctx.Err(), "session"))
			}

			return

		case ev, ok := <-s.events:
			if !ok {
				switch {
				case s.closing.Load():
				case s.ctx.Err() != nil:
					s.fail(errors.Wrap(s.ctx.Err(), "session"))
				default:
					s.fail(domainerrors.ErrExternalService.WithDetails("change feed closed"))
				}

				return
			}

			s.apply(s.collect(ev))

		case <-midnight:
			s.rollover()
			midnight = s.armMidnight()

		case <-s.retry:
			s.retry = nil
			s.apply(nil)
		}
	}
}

func (s *session) fail(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()

	s.logger.Warn("Session stopped", "error", err)
}

func (s *session) armMidnight() <-chan time.Time {
	now := s.srv.clock.Now()

	return s.srv.after(entity.NextMidnight(now, s.actor.Loc()).Sub(now))
}

// collect drains whatever is already queued behind ev, so a burst of writes costs one
// recompute.
func (s *session) collect(ev repository.ChangeEvent) []repository.ChangeEvent {
	batch := []repository.ChangeEvent{ev}

	for len(batch) < maxEventBatch {
		select {
		case next, ok := <-s.events:
			if !ok {
				return batch
			}

			batch = append(batch, next)
		default:
			return batch
		}
	}

	return batch
}

// apply refreshes every query touched by the batch, plus any query left stale by an
// earlier failure, and publishes a new view when a result changed.
func (s *session) apply(batch []repository.ChangeEvent) {
	userID := s.actor.UserID

	var memberOf, owned, invites, resync bool
	proofs := make(map[string]bool)

	for _, ev := range batch {
		switch {
		case ev.Op == repository.ChangeResync:
			resync = true
		case ev.Collection == repository.CollectionHabits:
			memberOf = memberOf || slices.Contains(ev.MemberIDs, userID) || s.memberOf.contains(ev.HabitID)
			owned = owned || ev.OwnerID == userID || s.owned.contains(ev.HabitID)
		case ev.Collection == repository.CollectionInvites:
			invites = invites || ev.Invitee == userID || s.invites.contains(ev.DocID)
		case ev.Collection == repository.CollectionProofs:
			if _, ok := s.proofs[ev.HabitID]; ok {
				proofs[ev.HabitID] = true
			}
		}
	}

	if resync {
		s.logger.Debug("Change feed resync")

		if err := s.refreshAll(); err != nil {
			s.scheduleRetry(err)
		}

		s.publish()

		return
	}

	changed := false
	refresh := func(stale, touched bool, fn func() (bool, error)) {
		if !stale && !touched {
			return
		}

		c, err := fn()
		if err != nil {
			s.scheduleRetry(err)

			return
		}

		changed = changed || c
	}

	refresh(s.memberOf.stale, memberOf, func() (bool, error) { return refreshQuery(s.ctx, s.memberOf) })
	refresh(s.owned.stale, owned, func() (bool, error) { return refreshQuery(s.ctx, s.owned) })
	refresh(s.invites.stale, invites, func() (bool, error) { return refreshQuery(s.ctx, s.invites) })

	added, removed := s.syncProofQueries()
	changed = changed || removed

	for habitID, q := range s.proofs {
		refresh(q.stale, proofs[habitID] || added[habitID], func() (bool, error) { return refreshQuery(s.ctx, q) })
	}

	if changed {
		s.publish()
	}
}

func refreshQuery[T any](ctx context.Context, q *liveQuery[T]) (bool, error) {
	changes, err := q.refresh(ctx)
	if err != nil {
		return false, errors.Wrap(err, q.name)
	}

	return len(changes) > 0, nil
}

// refreshAll re-runs every query, establishing proof queries for newly visible habits.
func (s *session) refreshAll() error {
	var errs []error

	for _, fn := range []func() (bool, error){
		func() (bool, error) { return refreshQuery(s.ctx, s.memberOf) },
		func() (bool, error) { return refreshQuery(s.ctx, s.owned) },
		func() (bool, error) { return refreshQuery(s.ctx, s.invites) },
	} {
		if _, err := fn(); err != nil {
			errs = append(errs, err)
		}
	}

	s.syncProofQueries()

	for _, q := range s.proofs {
		if _, err := refreshQuery(s.ctx, q); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// syncProofQueries establishes proof queries for habits that entered the list and tears
// down those whose habit left it.
func (s *session) syncProofQueries() (map[string]bool, bool) {
	visible := make(map[string]bool)
	for _, h := range s.mergedHabits() {
		visible[h.ID] = true
	}

	added := make(map[string]bool)
	for id := range visible {
		if _, ok := s.proofs[id]; !ok {
			s.proofs[id] = s.proofQuery(id)
			added[id] = true
		}
	}

	removed := false
	for id := range s.proofs {
		if !visible[id] {
			delete(s.proofs, id)
			removed = true
		}
	}

	return added, removed
}

func (s *session) scheduleRetry(err error) {
	s.logger.Warn("Live query refresh failed", "error", err)

	if s.retry == nil {
		s.retry = s.srv.after(queryRetryDelay)
	}
}

// rollover runs the sign-in maintenance again once the actor's calendar moves to a new day.
func (s *session) rollover() {
	today := s.actor.Today(s.srv.clock.Now())
	if today == s.day {
		return
	}

	if _, err := s.srv.habits.DailyReset(s.ctx, s.actor); err != nil {
		s.logger.Error("Daily reset at rollover failed", "error", err)
	}

	if _, err := s.srv.habits.CheckAndResetStreaks(s.ctx, s.actor); err != nil {
		s.logger.Error("Streak check at rollover failed", "error", err)
	}

	s.day = today

	if err := s.refreshAll(); err != nil {
		s.scheduleRetry(err)
	}

	s.publish()
}

// mergedHabits dedupes the two habit queries, first seen wins with the member query ahead
// of the owner query, and orders the result oldest first.
func (s *session) mergedHabits() []*entity.Habit {
	seen := make(map[string]bool)

	var habits []*entity.Habit
	for _, src := range [][]*entity.Habit{s.memberOf.docs, s.owned.docs} {
		for _, h := range src {
			if seen[h.ID] {
				continue
			}

			seen[h.ID] = true
			habits = append(habits, h)
		}
	}

	sort.SliceStable(habits, func(i, j int) bool {
		return habits[i].CreatedAt.Before(habits[j].CreatedAt)
	})

	return habits
}

// publish replaces any unread view with a fresh one.
func (s *session) publish() {
	s.seq++
	view := s.view()

	select {
	case <-s.updates:
	default:
	}

	s.updates <- view
}

func (s *session) view() *usecase.SessionView {
	invites := slices.Clone(s.invites.docs)
	sort.SliceStable(invites, func(i, j int) bool {
		return invites[i].Timestamp.After(invites[j].Timestamp)
	})

	habits := s.mergedHabits()

	items := make([]usecase.ViewItem, 0, len(invites)+len(habits))
	for _, inv := range invites {
		items = append(items, usecase.ViewItem{Type: usecase.ViewItemInvite, Invite: inv})
	}

	for _, h := range habits {
		var proofs []*entity.Proof
		if q, ok := s.proofs[h.ID]; ok {
			proofs = q.docs
		}

		items = append(items, usecase.ViewItem{
			Type:  usecase.ViewItemHabit,
			Habit: buildHabitView(h, proofs, s.actor, s.day),
		})
	}

	return &usecase.SessionView{
		Seq:         s.seq,
		UserID:      s.actor.UserID,
		Day:         s.day,
		Items:       items,
		GeneratedAt: s.srv.clock.Now(),
	}
}

// buildHabitView derives the per-day state of a habit. proofs are ordered newest first.
// Statuses left over from a day the habit was not yet reset for read as not submitted.
func buildHabitView(h *entity.Habit, proofs []*entity.Proof, actor entity.Actor, day entity.Day) *usecase.HabitView {
	loc := actor.Loc()
	view := &usecase.HabitView{
		Habit:    h,
		Members:  make([]usecase.MemberView, 0, len(h.Members)),
		MyStatus: entity.MemberStatusNotSubmitted,
	}

	todayBy := make(map[string]*entity.Proof)
	for _, p := range proofs {
		if p.Day(loc) != day {
			continue
		}

		if view.TodayProof == nil {
			view.TodayProof = p
		}

		if _, ok := todayBy[p.SubmittedBy]; !ok {
			todayBy[p.SubmittedBy] = p
		}
	}

	for _, m := range h.Members {
		status := m.Status
		if h.LastReset.Before(day) {
			status = entity.MemberStatusNotSubmitted
		}

		m.Status = status
		view.Members = append(view.Members, usecase.MemberView{
			Member:         m,
			SubmittedToday: status.SubmittedToday(),
			Approved:       status.Approved(),
			TodayProof:     todayBy[m.ID],
		})

		if m.ID == actor.UserID {
			view.MyStatus = status
		}
	}

	return view
}
