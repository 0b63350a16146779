// Package feed fans committed store writes out to in-process subscribers.
package feed

import (
	"context"
	"sync"

	"streakbuddy/internal/domain/repository"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 256

// Broadcaster implements repository.ChangeFeed on top of any source that calls Publish.
// Publish never blocks: a subscriber whose queue is full gets a resync event and
// loses everything until it drains.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
	buffer int
	closed bool
}

type subscriber struct {
	ch   chan repository.ChangeEvent
	lost bool
}

// NewBroadcaster creates a broadcaster with the given queue length per subscriber.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 2 {
		buffer = DefaultBuffer
	}

	return &Broadcaster{subs: make(map[uint64]*subscriber), buffer: buffer}
}

// Subscribe implements repository.ChangeFeed.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan repository.ChangeEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan repository.ChangeEvent, b.buffer)
	if b.closed {
		close(ch)

		return ch, nil
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = &subscriber{ch: ch}

	go func() {
		<-ctx.Done()
		b.unsubscribe(id)
	}()

	return ch, nil
}

// Publish delivers events to every subscriber in order.
func (b *Broadcaster) Publish(events ...repository.ChangeEvent) {
	if len(events) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		for _, ev := range events {
			sub.deliver(ev)
		}
	}
}

// Resync asks every subscriber to re-run its queries, e.g. after the upstream source reconnects.
func (b *Broadcaster) Resync() {
	b.Publish(repository.ChangeEvent{Op: repository.ChangeResync})
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}

// Close ends every subscription.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}

	b.closed = true
}

func (b *Broadcaster) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[id]; ok {
		close(sub.ch)
		delete(b.subs, id)
	}
}

// deliver runs under the broadcaster lock, the only sender, so a free slot stays free.
func (s *subscriber) deliver(ev repository.ChangeEvent) {
	free := cap(s.ch) - len(s.ch)

	switch {
	case s.lost && free > 1:
		// The queued resync may already be consumed; a fresh one covers ev and everything dropped.
		s.ch <- repository.ChangeEvent{Op: repository.ChangeResync}
		s.lost = false
	case s.lost:
	case ev.Op == repository.ChangeResync || free > 1:
		s.ch <- ev
	default:
		s.ch <- repository.ChangeEvent{Op: repository.ChangeResync}
		s.lost = true
	}
}
