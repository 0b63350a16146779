package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"streakbuddy/internal/domain/service"

	"github.com/pkg/errors"
)

const localPushTimeout = 30 * time.Second

// localHTTPPublisher stands in for a Pub/Sub push subscription during development:
// each event is POSTed to the worker in the background, like Pub/Sub would.
type localHTTPPublisher struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewLocalHTTPPublisher creates a new local HTTP publisher for development
func NewLocalHTTPPublisher(endpoint string, logger *slog.Logger) service.EventPublisher {
	return newLocalHTTPPublisher(endpoint, &http.Client{Timeout: localPushTimeout}, logger)
}

func newLocalHTTPPublisher(endpoint string, client *http.Client, logger *slog.Logger) *localHTTPPublisher {
	return &localHTTPPublisher{
		endpoint:   endpoint,
		httpClient: client,
		logger:     logger,
		now:        time.Now,
	}
}

// PublishNotificationEvent validates and encodes the event, then pushes it without
// waiting for the worker.
func (p *localHTTPPublisher) PublishNotificationEvent(ctx context.Context, event *service.NotificationEvent) error {
	data, attributes, err := encodeEvent(event)
	if err != nil {
		return err
	}

	body, err := json.Marshal(newPushEnvelope(event, data, attributes, p.now()))
	if err != nil {
		return errors.WithStack(err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()

		return errors.New("publisher is closed")
	}
	p.inflight.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.inflight.Done()

		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), localPushTimeout)
		defer cancel()

		if err := p.push(pushCtx, event, body); err != nil {
			p.logger.Warn("[LocalPubSub] Push to worker failed",
				slog.String("event_id", event.ID),
				slog.String("request_id", event.RequestID),
				slog.Any("error", err),
			)

			return
		}

		p.logger.Debug("[LocalPubSub] Event pushed",
			slog.String("event_id", event.ID),
			slog.String("kind", string(event.Kind)),
		)
	}()

	return nil
}

func (p *localHTTPPublisher) push(ctx context.Context, event *service.NotificationEvent, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if event.RequestID != "" {
		req.Header.Set("X-Request-Id", event.RequestID)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	// Real push subscriptions redeliver on these; locally the event is dropped.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("worker returned status %d", resp.StatusCode)
	}

	return nil
}

// Close stops accepting events and waits for pushes already in flight.
func (p *localHTTPPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.inflight.Wait()

	return nil
}
