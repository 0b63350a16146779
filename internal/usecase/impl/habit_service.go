package impl

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"
	"unicode/utf8"

	"streakbuddy/config"
	"streakbuddy/internal/domain/entity"
	domainerrors "streakbuddy/internal/domain/errors"
	"streakbuddy/internal/domain/repository"
	"streakbuddy/internal/domain/service"
	"streakbuddy/internal/errors"
	"streakbuddy/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

const (
	maxHabitNameLength = 100
	maxProofNoteLength = 500
	sweepGraceDays     = 2
)

// HabitServiceParams defines the dependencies of the habit engine.
type HabitServiceParams struct {
	fx.In

	TxManager  repository.TransactionManager
	HabitRepo  repository.HabitRepository
	ProofRepo  repository.ProofRepository
	InviteRepo repository.InviteRepository
	BlobStore  service.BlobStore
	Clock      service.Clock
	Metrics    service.Metrics `optional:"true"`
	Config     *config.Config
	Logger     *slog.Logger
}

// habitService implements the HabitUsecase interface.
type habitService struct {
	txManager     repository.TransactionManager
	habitRepo     repository.HabitRepository
	proofRepo     repository.ProofRepository
	inviteRepo    repository.InviteRepository
	blobStore     service.BlobStore
	clock         service.Clock
	metrics       service.Metrics
	logger        *slog.Logger
	maxRetries    int
	sweepPageSize int
	pageSize      int
	maxPageSize   int
}

// NewHabitService is the constructor for habitService.
func NewHabitService(params HabitServiceParams) usecase.HabitUsecase {
	metrics := params.Metrics
	if metrics == nil {
		metrics = service.NopMetrics{}
	}

	return &habitService{
		txManager:     params.TxManager,
		habitRepo:     params.HabitRepo,
		proofRepo:     params.ProofRepo,
		inviteRepo:    params.InviteRepo,
		blobStore:     params.BlobStore,
		clock:         params.Clock,
		metrics:       metrics,
		logger:        params.Logger,
		maxRetries:    params.Config.Engine.MaxRetries,
		sweepPageSize: params.Config.Engine.SweepPageSize,
		pageSize:      params.Config.Session.ProofPageSize,
		maxPageSize:   params.Config.Session.MaxProofPageSize,
	}
}

func (srv *habitService) observe(op string, start time.Time, errp *error) {
	result := "ok"
	if *errp != nil {
		result = "error"

		var appErr domainerrors.AppError
		if errors.As(*errp, &appErr) {
			result = strings.ToLower(appErr.ErrorCode())
		}
	}

	srv.metrics.ObserveOperation(op, result, time.Since(start))
}

func (srv *habitService) retry(ctx context.Context, op string, fn func() error) error {
	return retryOnConflict(ctx, srv.logger, srv.metrics, op, srv.maxRetries, fn)
}

// CreateHabit creates a habit whose only member is the actor.
func (srv *habitService) CreateHabit(ctx context.Context, actor entity.Actor, name string) (_ *entity.Habit, err error) {
	defer srv.observe("create_habit", time.Now(), &err)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("habit name is required")
	}

	if utf8.RuneCountInString(name) > maxHabitNameLength {
		return nil, validationError(fmt.Sprintf("habit name exceeds %d characters", maxHabitNameLength))
	}

	now := srv.clock.Now()
	habit := entity.NewHabit(uuid.NewString(), name, actor.UserID, now)
	habit.LastReset = actor.Today(now)

	if err := srv.habitRepo.Create(ctx, habit); err != nil {
		srv.logger.Error("Failed to create habit", "error", err, "userID", actor.UserID)

		return nil, storeError(err, "create habit")
	}

	srv.logger.Info("Habit created", "habitID", habit.ID, "userID", actor.UserID)

	return habit, nil
}

// GetHabit returns a habit the actor belongs to.
func (srv *habitService) GetHabit(ctx context.Context, actor entity.Actor, habitID string) (*entity.Habit, error) {
	habit, err := srv.habitRepo.FindByID(ctx, habitID)
	if err != nil {
		return nil, storeError(err, "get habit")
	}

	if !habit.HasMember(actor.UserID) {
		return nil, domainerrors.ErrNotMember
	}

	return habit, nil
}

// InviteBuddy creates a pending invite unless the invitee is already in, or already asked.
func (srv *habitService) InviteBuddy(ctx context.Context, actor entity.Actor, habitID, inviteeID string) (_ *entity.Invite, err error) {
	defer srv.observe("invite_buddy", time.Now(), &err)

	inviteeID = strings.TrimSpace(inviteeID)
	if inviteeID == "" {
		return nil, validationError("invitee is required")
	}

	var invite *entity.Invite

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		habitRepo := repoFactory.NewHabitRepository()
		inviteRepo := repoFactory.NewInviteRepository()

		// The habit row lock serialises concurrent invites for the same invitee.
		habit, err := habitRepo.FindByIDForUpdate(ctx, habitID)
		if err != nil {
			return err
		}

		if !habit.HasMember(actor.UserID) {
			return domainerrors.ErrNotMember
		}

		if habit.HasMember(inviteeID) {
			return nil
		}

		_, err = inviteRepo.FindPendingFor(ctx, habitID, inviteeID)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, repository.ErrInviteNotFound):
			return err
		}

		invite = &entity.Invite{
			ID:        uuid.NewString(),
			HabitID:   habitID,
			InvitedBy: actor.UserID,
			Invitee:   inviteeID,
			Status:    entity.InviteStatusPending,
			Timestamp: srv.clock.Now(),
		}

		return inviteRepo.Create(ctx, invite)
	})
	if err != nil {
		return nil, storeError(err, "invite buddy")
	}

	if invite == nil {
		srv.logger.Debug("Invite skipped", "habitID", habitID, "invitee", inviteeID)

		return nil, nil
	}

	srv.logger.Info("Invite created", "habitID", habitID, "inviteID", invite.ID, "invitee", inviteeID)

	return invite, nil
}

// RespondToInvite answers an invite. Acceptance and the member append commit together.
func (srv *habitService) RespondToInvite(
	ctx context.Context,
	actor entity.Actor,
	habitID, inviteID string,
	response entity.InviteStatus,
) (_ *usecase.InviteResult, err error) {
	defer srv.observe("respond_to_invite", time.Now(), &err)

	if !response.IsResponse() {
		return nil, validationError("response must be accepted or rejected")
	}

	var result *usecase.InviteResult

	err = srv.retry(ctx, "respond_to_invite", func() error {
		result = &usecase.InviteResult{}

		return srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
			habitRepo := repoFactory.NewHabitRepository()
			inviteRepo := repoFactory.NewInviteRepository()

			invite, err := inviteRepo.FindByID(ctx, habitID, inviteID)
			if err != nil {
				return err
			}

			if invite.Invitee != actor.UserID {
				return domainerrors.ErrForbidden.WithDetails("only the invitee can respond")
			}

			result.Invite = invite
			if invite.Status != entity.InviteStatusPending {
				return nil
			}

			habit, err := habitRepo.FindByIDForUpdate(ctx, habitID)
			if err != nil {
				return err
			}

			result.Habit = habit

			now := srv.clock.Now()
			changed, err := inviteRepo.UpdateStatusIfPending(ctx, habitID, inviteID, response, now)
			if err != nil || !changed {
				return err
			}

			invite.Status = response
			invite.RespondedAt = &now
			result.Changed = true

			if response == entity.InviteStatusAccepted && habit.AddMember(actor.UserID) {
				habit.UpdatedAt = now
				if err := habitRepo.Update(ctx, habit); err != nil {
					return err
				}
			}

			return nil
		})
	})
	if err != nil {
		return nil, storeError(err, "respond to invite")
	}

	if result.Changed {
		srv.logger.Info("Invite answered", "habitID", habitID, "inviteID", inviteID, "status", response)
	}

	return result, nil
}

// submittedToday reports whether the member already submitted on today. A habit not yet
// reset for today carries statuses from an earlier day, which do not count.
func submittedToday(habit *entity.Habit, userID string, today entity.Day) bool {
	if habit.LastReset.Before(today) {
		return false
	}

	m := habit.FindMember(userID)

	return m != nil && m.Status.SubmittedToday()
}

// SubmitProof uploads the asset, then records the pending proof and flips the member's
// status in one transaction. The upload is removed again when the transaction fails.
func (srv *habitService) SubmitProof(ctx context.Context, actor entity.Actor, habitID string, asset entity.ProofAsset) (_ *entity.Proof, err error) {
	defer srv.observe("submit_proof", time.Now(), &err)

	if asset.IsEmpty() {
		return nil, validationError("a photo or a note is required")
	}

	if utf8.RuneCountInString(asset.Note) > maxProofNoteLength {
		return nil, validationError(fmt.Sprintf("note exceeds %d characters", maxProofNoteLength))
	}

	// Cheap pre-check so a doomed submission does not upload anything.
	habit, err := srv.habitRepo.FindByID(ctx, habitID)
	if err != nil {
		return nil, storeError(err, "submit proof")
	}

	if !habit.HasMember(actor.UserID) {
		return nil, domainerrors.ErrNotMember
	}

	if submittedToday(habit, actor.UserID, actor.Today(srv.clock.Now())) {
		return nil, domainerrors.ErrAlreadySubmitted
	}

	proofID := uuid.NewString()

	var url, key string
	if asset.HasBlob() {
		key = objectKey(asset.ContentType, "proofs", habitID, actor.UserID, proofID)

		url, err = srv.blobStore.Upload(ctx, key, asset.Data, asset.ContentType)
		if err != nil {
			srv.logger.Error("Failed to upload proof asset", "error", err, "habitID", habitID)

			return nil, errors.Wrapf(domainerrors.ErrExternalService, "upload proof: %v", err)
		}
	}

	var proof *entity.Proof

	err = srv.retry(ctx, "submit_proof", func() error {
		return srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
			habitRepo := repoFactory.NewHabitRepository()
			proofRepo := repoFactory.NewProofRepository()

			habit, err := habitRepo.FindByIDForUpdate(ctx, habitID)
			if err != nil {
				return err
			}

			if !habit.HasMember(actor.UserID) {
				return domainerrors.ErrNotMember
			}

			now := srv.clock.Now()
			today := actor.Today(now)
			if submittedToday(habit, actor.UserID, today) {
				return domainerrors.ErrAlreadySubmitted
			}

			habit.ResetDay(today)

			proof = &entity.Proof{
				ID:          proofID,
				HabitID:     habitID,
				SubmittedBy: actor.UserID,
				Timestamp:   now,
				URL:         url,
				ContentType: asset.ContentType,
				Note:        asset.Note,
				Status:      entity.ProofStatusPending,
			}
			if !asset.HasBlob() {
				proof.ContentType = ""
			}

			if err := proofRepo.Create(ctx, proof); err != nil {
				return err
			}

			habit.PatchMember(actor.UserID, (*entity.Member).MarkPending)
			habit.UpdatedAt = now

			return habitRepo.Update(ctx, habit)
		})
	})
	if err != nil {
		if key != "" {
			srv.discardBlob(ctx, key)
		}

		return nil, storeError(err, "submit proof")
	}

	srv.logger.Info("Proof submitted", "habitID", habitID, "proofID", proofID, "userID", actor.UserID)

	return proof, nil
}

func (srv *habitService) discardBlob(ctx context.Context, key string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := srv.blobStore.Delete(cleanupCtx, key); err != nil {
		srv.logger.Warn("Failed to remove orphaned proof asset", "error", err, "key", key)
	}
}

// objectKey joins the path segments of a blob and appends the extension of its content type.
func objectKey(contentType string, segments ...string) string {
	ext := ""
	if contentType == "image/jpeg" {
		// ExtensionsByType sorts, which would pick .jfif.
		ext = ".jpg"
	} else if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}

	return strings.Join(segments, "/") + ext
}

// ApproveProof approves a pending proof of another member.
func (srv *habitService) ApproveProof(ctx context.Context, actor entity.Actor, habitID, proofID string) (_ *usecase.ReviewResult, err error) {
	defer srv.observe("approve_proof", time.Now(), &err)

	return srv.review(ctx, actor, habitID, proofID, entity.ProofStatusApproved)
}

// RejectProof rejects a pending proof of another member.
func (srv *habitService) RejectProof(ctx context.Context, actor entity.Actor, habitID, proofID string) (_ *usecase.ReviewResult, err error) {
	defer srv.observe("reject_proof", time.Now(), &err)

	return srv.review(ctx, actor, habitID, proofID, entity.ProofStatusRejected)
}

// review moves a pending proof to a terminal status and applies the streak rules to its
// submitter. A proof from an earlier day than the reviewer's today never extends a streak
// and never touches today's status.
func (srv *habitService) review(
	ctx context.Context,
	actor entity.Actor,
	habitID, proofID string,
	status entity.ProofStatus,
) (*usecase.ReviewResult, error) {
	op := "approve_proof"
	if status == entity.ProofStatusRejected {
		op = "reject_proof"
	}

	var result *usecase.ReviewResult

	err := srv.retry(ctx, op, func() error {
		result = &usecase.ReviewResult{}

		return srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
			habitRepo := repoFactory.NewHabitRepository()
			proofRepo := repoFactory.NewProofRepository()

			habit, err := habitRepo.FindByIDForUpdate(ctx, habitID)
			if err != nil {
				return err
			}

			if !habit.HasMember(actor.UserID) {
				return domainerrors.ErrNotMember
			}

			proof, err := proofRepo.FindByID(ctx, habitID, proofID)
			if err != nil {
				return err
			}

			if proof.SubmittedBy == actor.UserID {
				return domainerrors.ErrSelfApproval
			}

			result.Proof = proof
			result.Habit = habit

			if proof.Status.IsTerminal() {
				return nil
			}

			now := srv.clock.Now()
			changed, err := proofRepo.UpdateStatusIfPending(ctx, habitID, proofID, status, actor.UserID, now)
			if err != nil || !changed {
				return err
			}

			proof.Status = status
			proof.ReviewedBy = actor.UserID
			proof.ReviewedAt = &now
			result.Changed = true

			proofDay := proof.Day(actor.Loc())
			countsToday := proofDay == actor.Today(now)
			dirty := false
			habit.PatchMember(proof.SubmittedBy, func(m *entity.Member) {
				switch {
				case status == entity.ProofStatusApproved && countsToday:
					m.Approve()
				case status == entity.ProofStatusRejected && countsToday:
					m.Reject()
				case status == entity.ProofStatusRejected:
					m.BreakStreak()
				case habit.LastReset == proofDay && m.Status == entity.MemberStatusPending:
					// Late approval of the proof that is still the member's current one.
					m.MarkApproved()
				default:
					return
				}

				dirty = true
			})

			if !dirty {
				return nil
			}

			habit.UpdatedAt = now

			return habitRepo.Update(ctx, habit)
		})
	})
	if err != nil {
		return nil, storeError(err, op)
	}

	if result.Changed {
		srv.logger.Info("Proof reviewed", "habitID", habitID, "proofID", proofID, "status", status, "reviewer", actor.UserID)
	}

	return result, nil
}

// DailyReset clears the statuses of every habit of the actor not yet reset on the actor's today.
func (srv *habitService) DailyReset(ctx context.Context, actor entity.Actor) (_ int, err error) {
	defer srv.observe("daily_reset", time.Now(), &err)

	var reset int

	err = srv.retry(ctx, "daily_reset", func() error {
		reset = 0

		return srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
			habitRepo := repoFactory.NewHabitRepository()

			habits, err := habitRepo.FindByMember(ctx, actor.UserID)
			if err != nil {
				return err
			}

			now := srv.clock.Now()
			today := actor.Today(now)

			var dirty []*entity.Habit
			for _, h := range habits {
				if !h.LastReset.Before(today) {
					continue
				}

				locked, err := habitRepo.FindByIDForUpdate(ctx, h.ID)
				if err != nil {
					return err
				}

				if locked.ResetDay(today) {
					locked.UpdatedAt = now
					dirty = append(dirty, locked)
				}
			}

			if len(dirty) == 0 {
				return nil
			}

			reset = len(dirty)

			return habitRepo.UpdateBatch(ctx, dirty)
		})
	})
	if err != nil {
		return 0, storeError(err, "daily reset")
	}

	if reset > 0 {
		srv.logger.Debug("Daily reset applied", "userID", actor.UserID, "habits", reset)
	}

	return reset, nil
}

// CheckAndResetStreaks zeroes every streak, across the actor's habits, whose latest
// approved proof is neither from today nor from yesterday. All decays commit together.
func (srv *habitService) CheckAndResetStreaks(ctx context.Context, actor entity.Actor) (_ int, err error) {
	defer srv.observe("check_streaks", time.Now(), &err)

	var decayed int

	err = srv.retry(ctx, "check_streaks", func() error {
		decayed = 0

		return srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
			habitRepo := repoFactory.NewHabitRepository()
			proofRepo := repoFactory.NewProofRepository()

			habits, err := habitRepo.FindByMember(ctx, actor.UserID)
			if err != nil {
				return err
			}

			now := srv.clock.Now()
			oldestKept := actor.Today(now).Yesterday()

			var dirty []*entity.Habit
			for _, h := range habits {
				if !hasStreak(h) {
					continue
				}

				locked, err := habitRepo.FindByIDForUpdate(ctx, h.ID)
				if err != nil {
					return err
				}

				n, err := decayStreaks(ctx, proofRepo, locked, actor.Loc(), oldestKept)
				if err != nil {
					return err
				}

				if n > 0 {
					locked.UpdatedAt = now
					dirty = append(dirty, locked)
					decayed += n
				}
			}

			if len(dirty) == 0 {
				return nil
			}

			return habitRepo.UpdateBatch(ctx, dirty)
		})
	})
	if err != nil {
		return 0, storeError(err, "check streaks")
	}

	if decayed > 0 {
		srv.logger.Info("Streaks decayed", "userID", actor.UserID, "members", decayed)
	}

	return decayed, nil
}

func hasStreak(h *entity.Habit) bool {
	for _, m := range h.Members {
		if m.Streak > 0 {
			return true
		}
	}

	return false
}

// decayStreaks zeroes the streak of every member whose latest approved proof falls before
// oldestKept in loc. It returns the number of members changed.
func decayStreaks(ctx context.Context, proofRepo repository.ProofRepository, habit *entity.Habit, loc *time.Location, oldestKept entity.Day) (int, error) {
	decayed := 0

	for i := range habit.Members {
		m := &habit.Members[i]
		if m.Streak == 0 {
			continue
		}

		latest, err := proofRepo.LatestApprovedBy(ctx, habit.ID, m.ID)
		switch {
		case errors.Is(err, repository.ErrProofNotFound):
		case err != nil:
			return 0, err
		case !latest.Day(loc).Before(oldestKept):
			continue
		}

		m.BreakStreak()
		decayed++
	}

	return decayed, nil
}

// ListProofs pages through a habit's proofs, newest first.
func (srv *habitService) ListProofs(ctx context.Context, actor entity.Actor, habitID string, limit int, cursor string) (*usecase.ProofPage, error) {
	if _, err := srv.GetHabit(ctx, actor, habitID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = srv.pageSize
	}

	limit = min(limit, srv.maxPageSize)

	query := repository.ProofPageQuery{Limit: limit + 1}
	if cursor != "" {
		c, err := repository.DecodeProofCursor(cursor)
		if err != nil {
			return nil, storeError(err, "list proofs")
		}

		query.Cursor = c
	}

	proofs, err := srv.proofRepo.ListByHabit(ctx, habitID, query)
	if err != nil {
		return nil, storeError(err, "list proofs")
	}

	page := &usecase.ProofPage{Proofs: proofs}
	if len(proofs) > limit {
		page.Proofs = proofs[:limit]
		last := page.Proofs[limit-1]
		page.NextCursor = repository.ProofCursor{Timestamp: last.Timestamp, ID: last.ID}.Encode()
	}

	if page.Proofs == nil {
		page.Proofs = []*entity.Proof{}
	}

	return page, nil
}

// ListPendingInvites returns invites addressed to the actor.
func (srv *habitService) ListPendingInvites(ctx context.Context, actor entity.Actor) ([]*entity.Invite, error) {
	invites, err := srv.inviteRepo.ListPendingForInvitee(ctx, actor.UserID)
	if err != nil {
		return nil, storeError(err, "list invites")
	}

	return invites, nil
}

// SweepAll is the scheduled maintenance pass. Clients in other time zones may be a day
// ahead of or behind loc, so it only touches habits nobody can still consider current:
// resets for habits last reset before loc's yesterday, decays for streaks whose latest
// approval is older than the per-user rule allows by sweepGraceDays days.
func (srv *habitService) SweepAll(ctx context.Context, loc *time.Location) (_ *usecase.SweepResult, err error) {
	defer srv.observe("sweep_all", time.Now(), &err)

	if loc == nil {
		loc = time.UTC
	}

	result := &usecase.SweepResult{}
	after := ""

	for {
		page, err := srv.habitRepo.FindPage(ctx, after, srv.sweepPageSize)
		if err != nil {
			return result, storeError(err, "sweep habits")
		}

		if len(page) == 0 {
			break
		}

		for _, h := range page {
			reset, decayed, err := srv.sweepHabit(ctx, h.ID, loc)
			if err != nil {
				srv.logger.Error("Failed to sweep habit", "error", err, "habitID", h.ID)

				continue
			}

			result.Habits++
			if reset {
				result.Reset++
			}
			result.Decayed += decayed
		}

		after = page[len(page)-1].ID
	}

	srv.logger.Info("Maintenance sweep finished", "habits", result.Habits, "reset", result.Reset, "decayed", result.Decayed)

	return result, nil
}

func (srv *habitService) sweepHabit(ctx context.Context, habitID string, loc *time.Location) (bool, int, error) {
	var (
		reset   bool
		decayed int
	)

	err := srv.retry(ctx, "sweep_habit", func() error {
		reset, decayed = false, 0

		return srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
			habitRepo := repoFactory.NewHabitRepository()
			proofRepo := repoFactory.NewProofRepository()

			habit, err := habitRepo.FindByIDForUpdate(ctx, habitID)
			if err != nil {
				return err
			}

			now := srv.clock.Now()
			today := entity.DayOf(now, loc)

			if habit.LastReset.Before(today.Yesterday()) {
				reset = habit.ResetDay(today)
			}

			if hasStreak(habit) {
				decayed, err = decayStreaks(ctx, proofRepo, habit, loc, today.AddDays(-1-sweepGraceDays))
				if err != nil {
					return err
				}
			}

			if !reset && decayed == 0 {
				return nil
			}

			habit.UpdatedAt = now

			return habitRepo.Update(ctx, habit)
		})
	})
	if err != nil {
		return false, 0, storeError(err, "sweep habit")
	}

	return reset, decayed, nil
}
