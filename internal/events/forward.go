package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Forward publishes an OriginStorage event for every key received on keys
// until keys closes or ctx ends. It bridges a storage watcher onto a bus.
func Forward(ctx context.Context, keys <-chan string, bus Bus, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case key, ok := <-keys:
			if !ok {
				return
			}
			ev := Event{Key: key, Origin: OriginStorage, At: time.Now()}
			if err := bus.Publish(ctx, ev); err != nil {
				logger.Warn("forwarding storage change failed",
					zap.String("key", key),
					zap.Error(err))
			}
		}
	}
}
