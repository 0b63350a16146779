package service

import (
	"context"
)

// NotificationKind labels why a notification was sent.
type NotificationKind string

const (
	NotificationInviteReceived NotificationKind = "invite_received"
	NotificationInviteAccepted NotificationKind = "invite_accepted"
	NotificationProofSubmitted NotificationKind = "proof_submitted"
	NotificationProofApproved  NotificationKind = "proof_approved"
	NotificationProofRejected  NotificationKind = "proof_rejected"
	NotificationNudge          NotificationKind = "nudge"
)

// NotificationEvent represents one push notification to be delivered by the worker.
type NotificationEvent struct {
	ID         string            `json:"id"`
	RequestID  string            `json:"request_id,omitempty"` // For distributed tracing
	Kind       NotificationKind  `json:"kind"`
	Recipients []string          `json:"recipients"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data,omitempty"`
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishNotificationEvent publishes a notification event for async processing
	PublishNotificationEvent(ctx context.Context, event *NotificationEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
