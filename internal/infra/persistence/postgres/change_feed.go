package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"streakbuddy/internal/domain/repository"
	"streakbuddy/internal/infra/persistence/feed"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const (
	// ChangeChannel is the NOTIFY channel written by the table triggers.
	ChangeChannel = "streakbuddy_changes"

	listenerMinReconnect = 500 * time.Millisecond
	listenerMaxReconnect = 30 * time.Second
	listenerPingInterval = 90 * time.Second
)

// ChangeFeed relays LISTEN/NOTIFY payloads from the database to in-process subscribers.
type ChangeFeed struct {
	listener    *pq.Listener
	broadcaster *feed.Broadcaster
	logger      *slog.Logger
	done        chan struct{}
	started     bool
}

// NewChangeFeed opens a dedicated listening connection. The DSN must reach the database
// directly: LISTEN does not survive transaction-pooling proxies.
func NewChangeFeed(dsn string, logger *slog.Logger) (*ChangeFeed, error) {
	if dsn == "" {
		return nil, errors.New("store.listenDsn is required for the postgres change feed")
	}

	f := &ChangeFeed{
		broadcaster: feed.NewBroadcaster(feed.DefaultBuffer),
		logger:      logger,
		done:        make(chan struct{}),
	}

	f.listener = pq.NewListener(dsn, listenerMinReconnect, listenerMaxReconnect, f.onListenerEvent)

	return f, nil
}

// Start subscribes to the channel and relays notifications until Close.
func (f *ChangeFeed) Start(ctx context.Context) error {
	if err := f.listener.Listen(ChangeChannel); err != nil {
		return errors.Wrapf(err, "listen on %s", ChangeChannel)
	}

	f.started = true
	go f.relay()

	f.logger.InfoContext(ctx, "Change feed listening", "channel", ChangeChannel)

	return nil
}

// Subscribe implements repository.ChangeFeed.
func (f *ChangeFeed) Subscribe(ctx context.Context) (<-chan repository.ChangeEvent, error) {
	return f.broadcaster.Subscribe(ctx) //nolint:wrapcheck // broadcaster errors are already descriptive
}

// Close stops the listener and ends every subscription.
func (f *ChangeFeed) Close() error {
	err := f.listener.Close()
	if f.started {
		<-f.done
	}
	f.broadcaster.Close()

	return errors.Wrap(err, "close change feed listener")
}

func (f *ChangeFeed) relay() {
	defer close(f.done)

	ping := time.NewTicker(listenerPingInterval)
	defer ping.Stop()

	for {
		select {
		case n, ok := <-f.listener.Notify:
			if !ok {
				return
			}

			// pq sends nil after re-establishing the connection: anything in between is lost.
			if n == nil {
				f.broadcaster.Resync()

				continue
			}

			ev, err := decodeChange(n.Extra)
			if err != nil {
				f.logger.Warn("Dropping malformed change notification", "error", err, "payload", n.Extra)

				continue
			}

			f.broadcaster.Publish(ev)
		case <-ping.C:
			if err := f.listener.Ping(); err != nil {
				f.logger.Warn("Change feed ping failed", "error", err)
			}
		}
	}
}

func (f *ChangeFeed) onListenerEvent(event pq.ListenerEventType, err error) {
	switch event {
	case pq.ListenerEventConnected:
		f.logger.Debug("Change feed connected")
	case pq.ListenerEventDisconnected:
		f.logger.Warn("Change feed disconnected", "error", err)
	case pq.ListenerEventReconnected:
		f.logger.Info("Change feed reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		f.logger.Warn("Change feed reconnect failed", "error", err)
	}
}

func decodeChange(payload string) (repository.ChangeEvent, error) {
	var ev repository.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, errors.Wrap(err, "decode change payload")
	}

	if ev.Collection == "" || ev.Op == "" || ev.HabitID == "" {
		return ev, errors.Errorf("incomplete change payload %q", payload)
	}

	return ev, nil
}
