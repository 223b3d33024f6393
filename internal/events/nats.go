package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubjectPrefix is the NATS subject prefix for cart change events.
// Events for key "cart" are published on "menucart.changes.cart".
const DefaultSubjectPrefix = "menucart.changes"

// NATSBus shares change events between processes through NATS, so servers
// pointed at one store keep each other's viewers current. The connection is
// owned by the caller.
type NATSBus struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewNATSBus creates a bus on nc publishing under prefix.
func NewNATSBus(nc *nats.Conn, prefix string, logger *zap.Logger) *NATSBus {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSBus{
		nc:     nc,
		prefix: strings.TrimSuffix(prefix, "."),
		logger: logger,
	}
}

// Subject returns the subject events for key are published on.
func (b *NATSBus) Subject(key string) string {
	return b.prefix + "." + key
}

// Publish implements Bus.
func (b *NATSBus) Publish(_ context.Context, ev Event) error {
	if b.nc.IsClosed() {
		return ErrBusClosed
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.nc.Publish(b.Subject(ev.Key), data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Key, err)
	}
	return nil
}

// Subscribe implements Bus.
func (b *NATSBus) Subscribe(ctx context.Context) (<-chan Event, error) {
	if b.nc.IsClosed() {
		return nil, ErrBusClosed
	}
	msgCh := make(chan *nats.Msg, 64)
	sub, err := b.nc.ChanSubscribe(b.prefix+".*", msgCh)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s.*: %w", b.prefix, err)
	}
	// Make sure the server registered the interest before returning, so
	// events published right after Subscribe are not lost.
	if err := b.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flush subscription: %w", err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer func() {
			_ = sub.Unsubscribe()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-msgCh:
				var ev Event
				if err := json.Unmarshal(msg.Data, &ev); err != nil {
					b.logger.Warn("dropping malformed change event",
						zap.String("subject", msg.Subject),
						zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close flushes pending publishes. It does not close the connection.
func (b *NATSBus) Close() error {
	if b.nc.IsClosed() {
		return nil
	}
	return b.nc.Flush()
}
