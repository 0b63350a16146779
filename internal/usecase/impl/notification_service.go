package impl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"streakbuddy/config"
	deliverycontext "streakbuddy/internal/delivery/context"
	"streakbuddy/internal/domain/entity"
	domainerrors "streakbuddy/internal/domain/errors"
	"streakbuddy/internal/domain/repository"
	"streakbuddy/internal/domain/service"
	"streakbuddy/internal/errors"
	"streakbuddy/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"golang.org/x/time/rate"
)

const (
	// Firebase batch size limit
	firebaseBatchSize = 500

	inlineDeliveryTimeout = 30 * time.Second
)

// NotificationServiceParams defines the dependencies of the push gateway.
type NotificationServiceParams struct {
	fx.In

	PushTokenRepo   repository.PushTokenRepository
	HabitRepo       repository.HabitRepository
	UserRepo        repository.UserRepository
	NotificationSvc service.NotificationService
	Publisher       service.EventPublisher
	Clock           service.Clock
	Metrics         service.Metrics `optional:"true"`
	Config          *config.Config
	Logger          *slog.Logger
}

type notificationService struct {
	pushTokenRepo   repository.PushTokenRepository
	habitRepo       repository.HabitRepository
	userRepo        repository.UserRepository
	notificationSvc service.NotificationService
	publisher       service.EventPublisher
	clock           service.Clock
	metrics         service.Metrics
	logger          *slog.Logger
	inline          bool

	nudgeEvery rate.Limit
	nudgeBurst int
	nudgeMu    sync.Mutex
	nudges     map[string]*rate.Limiter
}

// NewNotificationService creates a new notification service instance
func NewNotificationService(params NotificationServiceParams) usecase.NotificationUsecase {
	metrics := params.Metrics
	if metrics == nil {
		metrics = service.NopMetrics{}
	}

	nudge := params.Config.Nudge

	return &notificationService{
		pushTokenRepo:   params.PushTokenRepo,
		habitRepo:       params.HabitRepo,
		userRepo:        params.UserRepo,
		notificationSvc: params.NotificationSvc,
		publisher:       params.Publisher,
		clock:           params.Clock,
		metrics:         metrics,
		logger:          params.Logger,
		inline:          params.Config.PubSub.Provider == "",
		nudgeEvery:      rate.Every(time.Hour / time.Duration(nudge.PerHour)),
		nudgeBurst:      nudge.Burst,
		nudges:          make(map[string]*rate.Limiter),
	}
}

// RegisterPushToken stores the device token of a user.
func (s *notificationService) RegisterPushToken(ctx context.Context, userID, token, platform string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return validationError("push token is required")
	}

	err := s.pushTokenRepo.Save(ctx, &entity.PushToken{
		UserID:    userID,
		Token:     token,
		Platform:  platform,
		UpdatedAt: s.clock.Now(),
	})
	if err != nil {
		return storeError(err, "register push token")
	}

	s.logger.Info("Push token registered", "userID", userID, "platform", platform)

	return nil
}

// RemovePushToken forgets the user's device token. Removing a missing token is not an error.
func (s *notificationService) RemovePushToken(ctx context.Context, userID string) error {
	err := s.pushTokenRepo.Delete(ctx, userID, "")
	if err != nil && !errors.Is(err, repository.ErrPushTokenNotFound) {
		return storeError(err, "remove push token")
	}

	return nil
}

// Notify pushes one message right away.
func (s *notificationService) Notify(ctx context.Context, recipient, title, body string, payload map[string]string) (result usecase.DeliveryResult, err error) {
	defer func() {
		s.metrics.ObserveNotification(payload["kind"], deliveryOutcome(result, err))
	}()

	token, err := s.pushTokenRepo.FindByUser(ctx, recipient)
	if errors.Is(err, repository.ErrPushTokenNotFound) {
		s.logger.Debug("No push token, notification dropped", "recipient", recipient)

		return usecase.DeliveryFailed, nil
	}

	if err != nil {
		return usecase.DeliveryFailed, storeError(err, "notify")
	}

	err = s.notificationSvc.SendSingleNotification(ctx, token.Token, title, body, payload)
	switch {
	case err == nil:
		return usecase.DeliveryDelivered, nil
	case errors.Is(err, service.ErrInvalidPushToken):
		s.dropToken(ctx, recipient, token.Token)

		return usecase.DeliveryFailed, nil
	default:
		s.logger.Warn("Push delivery failed", "error", err, "recipient", recipient)

		return usecase.DeliveryFailed, errors.Wrapf(domainerrors.ErrExternalService, "send notification: %v", err)
	}
}

func deliveryOutcome(result usecase.DeliveryResult, err error) string {
	if err != nil {
		return "error"
	}

	return string(result)
}

// dropToken deletes a token the provider rejected, unless the user re-registered since.
func (s *notificationService) dropToken(ctx context.Context, userID, token string) {
	if err := s.pushTokenRepo.Delete(ctx, userID, token); err != nil && !errors.Is(err, repository.ErrPushTokenNotFound) {
		s.logger.Warn("Failed to delete invalid push token", "error", err, "userID", userID)

		return
	}

	s.logger.Info("Invalid push token deleted", "userID", userID)
}

// NotifyAll pushes the same message to several recipients.
func (s *notificationService) NotifyAll(
	ctx context.Context,
	recipients []string,
	title, body string,
	payload map[string]string,
) (delivered, failed int, err error) {
	tokens := make([]string, 0, len(recipients))
	owners := make(map[string]string, len(recipients))

	for _, userID := range recipients {
		token, err := s.pushTokenRepo.FindByUser(ctx, userID)
		switch {
		case errors.Is(err, repository.ErrPushTokenNotFound):
			failed++

			continue
		case err != nil:
			return delivered, failed, storeError(err, "notify all")
		}

		if _, dup := owners[token.Token]; dup {
			continue
		}

		tokens = append(tokens, token.Token)
		owners[token.Token] = userID
	}

	for i := 0; i < len(tokens); i += firebaseBatchSize {
		end := min(i+firebaseBatchSize, len(tokens))
		batch := tokens[i:end]

		successCount, failureCount, invalidTokens, err := s.notificationSvc.SendBatchNotification(ctx, batch, title, body, payload)
		if err != nil {
			s.logger.Warn("Batch push failed", "error", err, "batch", len(batch))

			return delivered, failed + len(tokens) - i, errors.Wrapf(domainerrors.ErrExternalService, "send batch: %v", err)
		}

		delivered += successCount
		failed += failureCount

		for _, token := range invalidTokens {
			s.dropToken(ctx, owners[token], token)
		}
	}

	for range delivered {
		s.metrics.ObserveNotification(payload["kind"], string(usecase.DeliveryDelivered))
	}

	for range failed {
		s.metrics.ObserveNotification(payload["kind"], string(usecase.DeliveryFailed))
	}

	return delivered, failed, nil
}

// Enqueue publishes the event, or delivers it in the background when no queue is configured.
func (s *notificationService) Enqueue(ctx context.Context, event *service.NotificationEvent) error {
	if len(event.Recipients) == 0 {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	if event.RequestID == "" {
		event.RequestID = deliverycontext.GetRequestIDFromContext(ctx)
	}

	if s.inline {
		go func() {
			deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), inlineDeliveryTimeout)
			defer cancel()

			if err := s.Deliver(deliverCtx, event); err != nil {
				s.loggerFor(ctx).Warn("Inline notification delivery failed", "error", err, "kind", event.Kind)
			}
		}()

		return nil
	}

	if err := s.publisher.PublishNotificationEvent(ctx, event); err != nil {
		return errors.Wrapf(domainerrors.ErrExternalService, "publish notification: %v", err)
	}

	return nil
}

// Deliver sends a dequeued notification to its recipients.
func (s *notificationService) Deliver(ctx context.Context, event *service.NotificationEvent) error {
	data := make(map[string]string, len(event.Data)+2)
	for k, v := range event.Data {
		data[k] = v
	}
	data["kind"] = string(event.Kind)
	data["notificationId"] = event.ID

	switch len(event.Recipients) {
	case 0:
		return nil
	case 1:
		_, err := s.Notify(ctx, event.Recipients[0], event.Title, event.Body, data)

		return err
	default:
		delivered, failed, err := s.NotifyAll(ctx, event.Recipients, event.Title, event.Body, data)
		s.logger.Debug("Notification fan-out finished", "kind", event.Kind, "delivered", delivered, "failed", failed)

		return err
	}
}

// Nudge reminds a fellow member to submit today's proof.
func (s *notificationService) Nudge(ctx context.Context, actor entity.Actor, habitID, targetUserID string) error {
	if targetUserID == actor.UserID {
		return validationError("you cannot nudge yourself")
	}

	habit, err := s.habitRepo.FindByID(ctx, habitID)
	if err != nil {
		return storeError(err, "nudge")
	}

	if !habit.HasMember(actor.UserID) {
		return domainerrors.ErrNotMember
	}

	target := habit.FindMember(targetUserID)
	if target == nil {
		return domainerrors.ErrNotMember.WithDetails("the nudged user is not a member of this habit")
	}

	if !habit.LastReset.Before(actor.Today(s.clock.Now())) && target.Status.SubmittedToday() {
		return validationError("your buddy already submitted today")
	}

	if !s.allowNudge(actor.UserID, targetUserID) {
		return domainerrors.ErrNudgeRateLimited
	}

	return s.Enqueue(ctx, &service.NotificationEvent{
		Kind:       service.NotificationNudge,
		Recipients: []string{targetUserID},
		Title:      habit.Name,
		Body:       fmt.Sprintf("%s is waiting for your proof today", s.displayName(ctx, actor.UserID)),
		Data:       map[string]string{"habitId": habit.ID},
	})
}

func (s *notificationService) allowNudge(from, to string) bool {
	key := from + "\x00" + to

	s.nudgeMu.Lock()
	limiter, ok := s.nudges[key]
	if !ok {
		limiter = rate.NewLimiter(s.nudgeEvery, s.nudgeBurst)
		s.nudges[key] = limiter
	}
	s.nudgeMu.Unlock()

	return limiter.AllowN(s.clock.Now(), 1)
}

// displayName prefers the username of a profile and falls back to the id.
func (s *notificationService) displayName(ctx context.Context, userID string) string {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil || user.Username == "" {
		return userID
	}

	return user.Username
}

func (s *notificationService) habitName(ctx context.Context, habitID string) string {
	habit, err := s.habitRepo.FindByID(ctx, habitID)
	if err != nil {
		return "your habit"
	}

	return habit.Name
}

func (s *notificationService) announce(ctx context.Context, event *service.NotificationEvent) {
	if err := s.Enqueue(ctx, event); err != nil {
		s.logger.Warn("Failed to enqueue notification", "error", err, "kind", event.Kind)
	}
}

// AnnounceInvite tells the invitee about a new invite.
func (s *notificationService) AnnounceInvite(ctx context.Context, invite *entity.Invite) {
	s.announce(ctx, &service.NotificationEvent{
		Kind:       service.NotificationInviteReceived,
		Recipients: []string{invite.Invitee},
		Title:      "New buddy invite",
		Body:       fmt.Sprintf("%s invited you to %s", s.displayName(ctx, invite.InvitedBy), s.habitName(ctx, invite.HabitID)),
		Data:       map[string]string{"habitId": invite.HabitID, "inviteId": invite.ID},
	})
}

// AnnounceInviteAccepted tells the inviter their invite was accepted.
func (s *notificationService) AnnounceInviteAccepted(ctx context.Context, invite *entity.Invite) {
	s.announce(ctx, &service.NotificationEvent{
		Kind:       service.NotificationInviteAccepted,
		Recipients: []string{invite.InvitedBy},
		Title:      "Invite accepted",
		Body:       fmt.Sprintf("%s joined %s", s.displayName(ctx, invite.Invitee), s.habitName(ctx, invite.HabitID)),
		Data:       map[string]string{"habitId": invite.HabitID, "inviteId": invite.ID},
	})
}

// AnnounceProofSubmitted asks every other member to review the proof.
func (s *notificationService) AnnounceProofSubmitted(ctx context.Context, habit *entity.Habit, proof *entity.Proof) {
	s.announce(ctx, &service.NotificationEvent{
		Kind:       service.NotificationProofSubmitted,
		Recipients: habit.OtherMembers(proof.SubmittedBy),
		Title:      habit.Name,
		Body:       fmt.Sprintf("%s submitted today's proof, take a look", s.displayName(ctx, proof.SubmittedBy)),
		Data:       map[string]string{"habitId": habit.ID, "proofId": proof.ID},
	})
}

// AnnounceReview tells the submitter how their proof was reviewed.
func (s *notificationService) AnnounceReview(ctx context.Context, habit *entity.Habit, proof *entity.Proof) {
	kind, verb := service.NotificationProofApproved, "approved"
	if proof.Status == entity.ProofStatusRejected {
		kind, verb = service.NotificationProofRejected, "rejected"
	}

	s.announce(ctx, &service.NotificationEvent{
		Kind:       kind,
		Recipients: []string{proof.SubmittedBy},
		Title:      habit.Name,
		Body:       fmt.Sprintf("%s %s your proof", s.displayName(ctx, proof.ReviewedBy), verb),
		Data:       map[string]string{"habitId": habit.ID, "proofId": proof.ID},
	})
}

func (s *notificationService) loggerFor(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, s.logger)
}
