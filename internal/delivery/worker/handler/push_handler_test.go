package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"streakbuddy/config"
	deliverycontext "streakbuddy/internal/delivery/context"
	"streakbuddy/internal/domain/constants"
	domainerrors "streakbuddy/internal/domain/errors"
	"streakbuddy/internal/domain/service"
	"streakbuddy/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

type fakeNotificationUsecase struct {
	usecase.NotificationUsecase

	events     []*service.NotificationEvent
	requestIDs []string
	err        error
}

func (f *fakeNotificationUsecase) Deliver(ctx context.Context, event *service.NotificationEvent) error {
	f.events = append(f.events, event)
	f.requestIDs = append(f.requestIDs, deliverycontext.GetRequestIDFromContext(ctx))

	return f.err
}

func newTestPushHandler(t *testing.T, env string, provider string) (*PushHandler, *fakeNotificationUsecase) {
	t.Helper()

	cfg := config.Defaults()
	cfg.Env.Env = env
	cfg.PubSub.Provider = provider

	uc := &fakeNotificationUsecase{}
	h := NewPushHandler(PushHandlerParams{
		Config:         cfg,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		NotificationUC: uc,
	})

	return h, uc
}

func pushBody(t *testing.T, event *service.NotificationEvent, attributes map[string]string) []byte {
	t.Helper()

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var msg PubSubMessage
	msg.Message.Data = base64.StdEncoding.EncodeToString(data)
	msg.Message.Attributes = attributes
	msg.Message.MessageID = "m-1"
	msg.Subscription = "projects/local/subscriptions/streakbuddy-push"

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	return body
}

func doPush(h *PushHandler, body []byte, header http.Header) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/push", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = h.HandlePush(c)

	return rec
}

func testEvent() *service.NotificationEvent {
	return &service.NotificationEvent{
		ID:         "evt-1",
		Kind:       service.NotificationNudge,
		Recipients: []string{"u2"},
		Title:      "Nudge",
		Body:       "alice nudged you",
	}
}

func TestPushHandler_Delivers(t *testing.T) {
	h, uc := newTestPushHandler(t, constants.EnvDevelop, constants.PubSubProviderGoogle)

	rec := doPush(h, pushBody(t, testEvent(), map[string]string{"request_id": "req-42"}), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, uc.events, 1)
	assert.Equal(t, "evt-1", uc.events[0].ID)
	assert.Equal(t, []string{"u2"}, uc.events[0].Recipients)
	assert.Equal(t, "req-42", uc.requestIDs[0])
}

func TestPushHandler_RequestIDFallbacks(t *testing.T) {
	h, uc := newTestPushHandler(t, constants.EnvDevelop, "")

	event := testEvent()
	event.RequestID = "from-event"
	doPush(h, pushBody(t, event, nil), nil)
	doPush(h, pushBody(t, testEvent(), nil), nil)

	require.Len(t, uc.requestIDs, 2)
	assert.Equal(t, "from-event", uc.requestIDs[0])
	assert.NotEmpty(t, uc.requestIDs[1])
}

func TestPushHandler_BadPayloads(t *testing.T) {
	h, uc := newTestPushHandler(t, constants.EnvDevelop, "")

	rec := doPush(h, []byte(`{not json`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doPush(h, []byte(`{"message":{"data":"%%%"}}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	garbage := base64.StdEncoding.EncodeToString([]byte("nope"))
	rec = doPush(h, []byte(`{"message":{"data":"`+garbage+`"}}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, uc.events)
}

func TestPushHandler_RetryableFailures(t *testing.T) {
	h, uc := newTestPushHandler(t, constants.EnvDevelop, "")

	uc.err = errors.Wrap(domainerrors.ErrExternalService, "fcm unavailable")
	rec := doPush(h, pushBody(t, testEvent(), nil), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	uc.err = errors.New("malformed recipient")
	rec = doPush(h, pushBody(t, testEvent(), nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code, "non-retryable failures are acknowledged")
}

func TestPushHandler_VerifiesToken(t *testing.T) {
	h, uc := newTestPushHandler(t, constants.EnvProduction, constants.PubSubProviderGoogle)
	require.True(t, h.auth.enabled)

	var gotAudience string
	h.auth.validate = func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
		gotAudience = audience
		if token != "good" {
			return nil, errors.New("bad signature")
		}

		return &idtoken.Payload{
			Issuer: "https://accounts.google.com",
			Claims: map[string]any{"email_verified": true},
		}, nil
	}

	rec := doPush(h, pushBody(t, testEvent(), nil), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing header")

	rec = doPush(h, pushBody(t, testEvent(), nil), http.Header{"Authorization": {"Bearer bad"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doPush(h, pushBody(t, testEvent(), nil), http.Header{"Authorization": {"Bearer good"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://example.com/push", gotAudience)
	assert.Len(t, uc.events, 1)

	h.auth.audience = "https://worker.streakbuddy.app/push"
	doPush(h, pushBody(t, testEvent(), nil), http.Header{"Authorization": {"Bearer good"}})
	assert.Equal(t, "https://worker.streakbuddy.app/push", gotAudience)
}

func TestPushHandler_RejectsForeignIssuer(t *testing.T) {
	h, uc := newTestPushHandler(t, constants.EnvProduction, constants.PubSubProviderGoogle)
	h.auth.validate = func(context.Context, string, string) (*idtoken.Payload, error) {
		return &idtoken.Payload{Issuer: "https://evil.example.com"}, nil
	}

	rec := doPush(h, pushBody(t, testEvent(), nil), http.Header{"Authorization": {"Bearer x"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, uc.events)
}
