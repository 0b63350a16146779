package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"streakbuddy/internal/domain/service"

	"cloud.google.com/go/pubsub/v2"
	pubsubpb "cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/pkg/errors"
)

const (
	// Notifications are small and latency sensitive; flush batches quickly.
	publishDelayThreshold = 10 * time.Millisecond
	publishAckTimeout     = 5 * time.Second
)

// googlePubSubPublisher hands notification events to a Pub/Sub topic whose push
// subscription targets the worker.
type googlePubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topic     string
	logger    *slog.Logger
}

// NewGooglePubSubPublisher connects to the topic and fails fast when it does not exist.
func NewGooglePubSubPublisher(ctx context.Context, projectID, topicID string, logger *slog.Logger) (service.EventPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "create pubsub client")
	}

	topic := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	if _, err := client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic}); err != nil {
		client.Close()

		return nil, errors.Wrapf(err, "topic %s", topic)
	}

	publisher := client.Publisher(topic)
	publisher.PublishSettings.DelayThreshold = publishDelayThreshold

	logger.Info("Google Pub/Sub publisher ready", slog.String("topic", topic))

	return &googlePubSubPublisher{
		client:    client,
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}, nil
}

// PublishNotificationEvent waits for the server ack so callers learn about outages,
// but never longer than publishAckTimeout.
func (p *googlePubSubPublisher) PublishNotificationEvent(ctx context.Context, event *service.NotificationEvent) error {
	data, attributes, err := encodeEvent(event)
	if err != nil {
		return err
	}

	ackCtx, cancel := context.WithTimeout(ctx, publishAckTimeout)
	defer cancel()

	result := p.publisher.Publish(ackCtx, &pubsub.Message{
		Data:       data,
		Attributes: attributes,
	})

	serverID, err := result.Get(ackCtx)
	if err != nil {
		return errors.Wrapf(err, "publish %s to %s", event.ID, p.topic)
	}

	p.logger.Debug("[GooglePubSub] Event published",
		slog.String("event_id", event.ID),
		slog.String("kind", string(event.Kind)),
		slog.String("server_id", serverID),
		slog.Int("recipient_count", len(event.Recipients)),
	)

	return nil
}

// Close flushes pending messages and releases the client.
func (p *googlePubSubPublisher) Close() error {
	p.publisher.Stop()

	return errors.WithStack(p.client.Close())
}
