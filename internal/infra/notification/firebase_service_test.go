package notification

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"streakbuddy/internal/domain/service"

	"firebase.google.com/go/v4/messaging"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessaging struct {
	sent      []*messaging.Message
	multicast []*messaging.MulticastMessage
	sendErr   error
	batch     *messaging.BatchResponse
}

func (f *fakeMessaging) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.sent = append(f.sent, m)

	return "projects/x/messages/1", f.sendErr
}

func (f *fakeMessaging) SendEachForMulticast(_ context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.multicast = append(f.multicast, m)

	return f.batch, nil
}

func TestFirebaseService_SendSingleNotification(t *testing.T) {
	client := &fakeMessaging{}
	svc := &firebaseService{client: client}

	err := svc.SendSingleNotification(context.Background(), "tok", "Title", "Body", map[string]string{"habitId": "h1"})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)
	assert.Equal(t, "tok", client.sent[0].Token)
	assert.Equal(t, "Title", client.sent[0].Notification.Title)
	assert.Equal(t, "h1", client.sent[0].Data["habitId"])

	client.sendErr = errors.New("unavailable")
	err = svc.SendSingleNotification(context.Background(), "tok", "Title", "Body", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrInvalidPushToken)
}

func TestFirebaseService_SendBatchNotification(t *testing.T) {
	client := &fakeMessaging{batch: &messaging.BatchResponse{
		SuccessCount: 1,
		FailureCount: 1,
		Responses: []*messaging.SendResponse{
			{Success: true, MessageID: "m1"},
			{Success: false, Error: errors.New("internal")},
		},
	}}
	svc := &firebaseService{client: client}

	ok, failed, invalid, err := svc.SendBatchNotification(context.Background(), []string{"a", "b"}, "T", "B", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)
	assert.Empty(t, invalid, "only unregistered or malformed tokens are reported invalid")
	assert.Equal(t, []string{"a", "b"}, client.multicast[0].Tokens)
}

func TestFirebaseService_SendBatchNotification_Limits(t *testing.T) {
	svc := &firebaseService{client: &fakeMessaging{}}

	ok, failed, invalid, err := svc.SendBatchNotification(context.Background(), nil, "T", "B", nil)
	require.NoError(t, err)
	assert.Zero(t, ok+failed)
	assert.Nil(t, invalid)

	_, _, _, err = svc.SendBatchNotification(context.Background(), make([]string, MaxBatchSize+1), "T", "B", nil)
	assert.Error(t, err)
}

func TestLogService_CountsEverythingDelivered(t *testing.T) {
	svc := NewLogService(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ok, failed, invalid, err := svc.SendBatchNotification(context.Background(), []string{"a", "b"}, "T", "B", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, ok)
	assert.Zero(t, failed)
	assert.Empty(t, invalid)
	assert.NoError(t, svc.SendSingleNotification(context.Background(), "a", "T", "B", nil))
}
