package usecase

import (
	"context"

	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/domain/service"
)

// DeliveryResult is the best-effort outcome of one push.
type DeliveryResult string

const (
	DeliveryDelivered DeliveryResult = "delivered"
	DeliveryFailed    DeliveryResult = "failed"
)

// NotificationUsecase defines the push notification gateway.
type NotificationUsecase interface {
	// RegisterPushToken stores the device token of a user, replacing any previous one.
	RegisterPushToken(ctx context.Context, userID, token, platform string) error

	// RemovePushToken forgets the user's device token.
	RemovePushToken(ctx context.Context, userID string) error

	// Notify pushes one message to the recipient right away. A missing or rejected token
	// yields DeliveryFailed without error; errors are reserved for retryable failures.
	Notify(ctx context.Context, recipient, title, body string, payload map[string]string) (DeliveryResult, error)

	// NotifyAll pushes one message to several recipients in provider-sized batches and
	// reports how many pushes were accepted.
	NotifyAll(ctx context.Context, recipients []string, title, body string, payload map[string]string) (delivered, failed int, err error)

	// Enqueue hands a notification to the asynchronous delivery path.
	Enqueue(ctx context.Context, event *service.NotificationEvent) error

	// Deliver sends a dequeued notification. Only retryable failures are returned.
	Deliver(ctx context.Context, event *service.NotificationEvent) error

	// Nudge reminds a fellow member to submit today's proof.
	Nudge(ctx context.Context, actor entity.Actor, habitID, targetUserID string) error

	// AnnounceInvite tells the invitee about a new invite.
	AnnounceInvite(ctx context.Context, invite *entity.Invite)

	// AnnounceInviteAccepted tells the inviter their invite was accepted.
	AnnounceInviteAccepted(ctx context.Context, invite *entity.Invite)

	// AnnounceProofSubmitted tells every other member a proof awaits review.
	AnnounceProofSubmitted(ctx context.Context, habit *entity.Habit, proof *entity.Proof)

	// AnnounceReview tells the submitter their proof was approved or rejected.
	AnnounceReview(ctx context.Context, habit *entity.Habit, proof *entity.Proof)
}
