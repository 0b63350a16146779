// Package pubsub moves notification events from the API to the worker.
package pubsub

import (
	"context"
	"log/slog"

	"streakbuddy/config"
	"streakbuddy/internal/domain/constants"
	"streakbuddy/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// inlinePublisher is selected when no provider is configured. The notification use
// case delivers in-process in that mode and never calls it.
type inlinePublisher struct {
	logger *slog.Logger
}

func (p *inlinePublisher) PublishNotificationEvent(_ context.Context, event *service.NotificationEvent) error {
	p.logger.Warn("Notification published without a Pub/Sub provider; dropped",
		slog.String("event_id", event.ID),
		slog.String("kind", string(event.Kind)),
	)

	return nil
}

func (p *inlinePublisher) Close() error {
	return nil
}

// PublisherParams holds dependencies for EventPublisher, injected by Fx
type PublisherParams struct {
	fx.In

	Lc     fx.Lifecycle
	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// NewEventPublisher creates the publisher named by pubsub.provider and closes it on stop.
func NewEventPublisher(params PublisherParams) (service.EventPublisher, error) {
	publisher, err := newPublisher(params.Ctx, params.Config.PubSub, params.Logger)
	if err != nil {
		return nil, err
	}

	params.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			params.Logger.Info("Closing EventPublisher")

			return publisher.Close()
		},
	})

	return publisher, nil
}

func newPublisher(ctx context.Context, cfg *config.PubSubConfig, logger *slog.Logger) (service.EventPublisher, error) {
	if cfg == nil || cfg.Provider == "" {
		logger.Info("PubSub not configured, delivering notifications inline")

		return &inlinePublisher{logger: logger}, nil
	}

	switch cfg.Provider {
	case constants.PubSubProviderLocal:
		if cfg.LocalEndpoint == "" {
			return nil, errors.New("pubsub.localEndpoint is required for the local provider")
		}
		logger.Info("Using local HTTP publisher", slog.String("endpoint", cfg.LocalEndpoint))

		return NewLocalHTTPPublisher(cfg.LocalEndpoint, logger), nil

	case constants.PubSubProviderGoogle:
		if cfg.ProjectID == "" || cfg.TopicID == "" {
			return nil, errors.New("pubsub.projectId and pubsub.topicId are required for the google provider")
		}

		return NewGooglePubSubPublisher(ctx, cfg.ProjectID, cfg.TopicID, logger)

	default:
		return nil, errors.Errorf("unknown pubsub provider %q", cfg.Provider)
	}
}
