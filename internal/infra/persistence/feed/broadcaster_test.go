package feed

import (
	"context"
	"testing"
	"time"

	"streakbuddy/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_DeliversInOrder(t *testing.T) {
	b := NewBroadcaster(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)

	b.Publish(
		repository.ChangeEvent{Collection: repository.CollectionHabits, Op: repository.ChangeAdded, DocID: "h1"},
		repository.ChangeEvent{Collection: repository.CollectionProofs, Op: repository.ChangeAdded, DocID: "p1"},
	)

	assert.Equal(t, "h1", (<-ch).DocID)
	assert.Equal(t, "p1", (<-ch).DocID)
}

func TestBroadcaster_SlowSubscriberGetsResync(t *testing.T) {
	b := NewBroadcaster(3)
	ch, err := b.Subscribe(context.Background())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		b.Publish(repository.ChangeEvent{Op: repository.ChangeModified, DocID: "h"})
	}

	require.Len(t, ch, 3)
	assert.Equal(t, repository.ChangeModified, (<-ch).Op)
	assert.Equal(t, repository.ChangeModified, (<-ch).Op)
	assert.Equal(t, repository.ChangeResync, (<-ch).Op)

	b.Publish(repository.ChangeEvent{Op: repository.ChangeModified, DocID: "after"})
	assert.Equal(t, repository.ChangeResync, (<-ch).Op)

	b.Publish(repository.ChangeEvent{Op: repository.ChangeModified, DocID: "flowing"})
	assert.Equal(t, "flowing", (<-ch).DocID)
}

func TestBroadcaster_UnsubscribeOnCancel(t *testing.T) {
	b := NewBroadcaster(4)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Subscribers())

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	assert.Equal(t, 0, b.Subscribers())
}
