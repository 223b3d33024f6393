package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize storage watcher")

// Watcher reports keys whose files changed in a file backend's directory,
// including changes made by other processes sharing the directory.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	keys    chan string
	stop    chan struct{}
	done    chan struct{}
	logger  *zap.Logger

	stopOnce sync.Once
	started  bool
}

// NewWatcher creates a watcher for dir. Call Start to begin watching.
func NewWatcher(dir string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	return &Watcher{
		dir:     dir,
		watcher: w,
		keys:    make(chan string, 16),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  logger,
	}, nil
}

// Start begins watching in a background goroutine. The Keys channel closes
// when ctx ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.started = true
	go w.run(ctx)
	return nil
}

// Keys returns the channel of changed keys.
func (w *Watcher) Keys() <-chan string {
	return w.keys
}

// Stop stops watching and waits for the background goroutine to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()
	})
	if w.started {
		<-w.done
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer close(w.keys)
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
				!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			key, ok := keyFromPath(event.Name)
			if !ok {
				continue
			}
			select {
			case w.keys <- key:
			case <-w.stop:
				return
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("storage watcher error", zap.Error(err))
		}
	}
}
