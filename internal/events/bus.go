// Package events carries cart change notifications between writers and the
// views that render them.
//
// Every committed cart change is published as an Event naming the storage key
// that changed. Subscribers re-read the store; events never carry cart
// contents, so the store stays the single source of truth and a missed event
// only delays a refresh.
package events

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusClosed is returned by operations on a closed bus.
var ErrBusClosed = errors.New("events: bus closed")

// OriginStorage marks events raised by a storage watcher rather than a
// cart store in this process.
const OriginStorage = "storage"

// Event announces that the value under Key changed.
type Event struct {
	Key    string    `json:"key"`
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
}

// Bus fans change events out to subscribers.
type Bus interface {
	// Publish delivers ev to current subscribers.
	Publish(ctx context.Context, ev Event) error

	// Subscribe returns a channel of events that closes when ctx ends or the
	// bus is closed.
	Subscribe(ctx context.Context) (<-chan Event, error)

	// Close stops delivery and closes every subscription.
	Close() error
}

// LocalBus delivers events within one process. A subscriber that falls behind
// loses events instead of blocking publishers.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	next   int
	buffer int
	closed bool
	done   chan struct{}
}

// NewLocalBus creates a bus whose subscriptions buffer up to buffer events.
func NewLocalBus(buffer int) *LocalBus {
	if buffer < 1 {
		buffer = 16
	}
	return &LocalBus{
		subs:   make(map[int]chan Event),
		buffer: buffer,
		done:   make(chan struct{}),
	}
}

// Publish implements Bus.
func (b *LocalBus) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribe implements Bus.
func (b *LocalBus) Subscribe(ctx context.Context) (<-chan Event, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	id := b.next
	b.next++
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
		}
		b.unsubscribe(id)
	}()
	return ch, nil
}

func (b *LocalBus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *LocalBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close implements Bus.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	return nil
}
