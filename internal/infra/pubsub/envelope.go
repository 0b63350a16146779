package pubsub

import (
	"encoding/json"
	"time"

	"streakbuddy/internal/domain/service"

	"github.com/pkg/errors"
)

const localSubscription = "projects/local/subscriptions/streakbuddy-push"

// pushEnvelope is the body Pub/Sub POSTs to push subscribers.
type pushEnvelope struct {
	Message struct {
		Data        []byte            `json:"data"` // base64 on the wire
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// encodeEvent serialises a notification and derives the attributes subscriptions filter on.
func encodeEvent(event *service.NotificationEvent) ([]byte, map[string]string, error) {
	if event.ID == "" {
		return nil, nil, errors.New("notification event has no id")
	}

	if len(event.Recipients) == 0 {
		return nil, nil, errors.Errorf("notification event %s has no recipients", event.ID)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "encode notification event %s", event.ID)
	}

	attributes := map[string]string{
		"event_id": event.ID,
		"kind":     string(event.Kind),
	}
	if event.RequestID != "" {
		attributes["request_id"] = event.RequestID
	}

	return data, attributes, nil
}

func newPushEnvelope(event *service.NotificationEvent, data []byte, attributes map[string]string, now time.Time) *pushEnvelope {
	env := &pushEnvelope{Subscription: localSubscription}
	env.Message.Data = data
	env.Message.Attributes = attributes
	env.Message.MessageID = event.ID
	env.Message.PublishTime = now.UTC().Format(time.RFC3339Nano)

	return env
}
