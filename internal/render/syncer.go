package render

import (
	"context"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/menucart/internal/cart"
	"github.com/fyrsmithlabs/menucart/internal/events"
)

// Loader supplies the current cart. *cartstore.Store implements it.
type Loader interface {
	Load(ctx context.Context) cart.Cart
	// Watches reports whether a change to key affects Load.
	Watches(key string) bool
}

// Syncer keeps attached surfaces showing the stored cart. Every change event
// for a watched key re-reads the cart and re-renders each surface.
type Syncer struct {
	loader Loader
	bus    events.Bus
	logger *zap.Logger

	mu       sync.Mutex
	surfaces map[int]Surface
	next     int
}

// NewSyncer creates a syncer. A nil bus means surfaces only change on
// explicit Refresh calls.
func NewSyncer(loader Loader, bus events.Bus, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		loader:   loader,
		bus:      bus,
		logger:   logger,
		surfaces: make(map[int]Surface),
	}
}

// Attach renders the current cart on s and keeps s current until detach is
// called. A nil surface is skipped. If the first render fails s is not
// attached.
func (sy *Syncer) Attach(ctx context.Context, s Surface) (detach func(), err error) {
	if isNil(s) {
		return func() {}, nil
	}
	sy.mu.Lock()
	defer sy.mu.Unlock()

	if err := s.Render(Project(sy.loader.Load(ctx))); err != nil {
		return func() {}, err
	}
	id := sy.next
	sy.next++
	sy.surfaces[id] = s

	var once sync.Once
	return func() {
		once.Do(func() {
			sy.mu.Lock()
			delete(sy.surfaces, id)
			sy.mu.Unlock()
		})
	}, nil
}

// Len returns the number of attached surfaces.
func (sy *Syncer) Len() int {
	sy.mu.Lock()
	defer sy.mu.Unlock()
	return len(sy.surfaces)
}

// Refresh re-reads the cart and renders it on every attached surface. A
// surface whose render fails is detached.
func (sy *Syncer) Refresh(ctx context.Context) {
	sy.mu.Lock()
	defer sy.mu.Unlock()
	if len(sy.surfaces) == 0 {
		return
	}

	p := Project(sy.loader.Load(ctx))
	for id, s := range sy.surfaces {
		if err := s.Render(p); err != nil {
			sy.logger.Warn("surface render failed, detaching",
				zap.String("surface", s.Name()),
				zap.Error(err))
			delete(sy.surfaces, id)
		}
	}
}

// Run refreshes surfaces on change events until ctx ends. It returns
// events.ErrBusClosed if the bus shuts down first.
func (sy *Syncer) Run(ctx context.Context) error {
	if sy.bus == nil {
		<-ctx.Done()
		return nil
	}
	ch, err := sy.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return events.ErrBusClosed
			}
			if !sy.loader.Watches(ev.Key) {
				continue
			}
			sy.logger.Debug("cart changed",
				zap.String("key", ev.Key),
				zap.String("origin", ev.Origin))
			sy.Refresh(ctx)
		}
	}
}

// StripImportParams returns the path and query of u without the item import
// parameters. Other parameters are kept.
func StripImportParams(u *url.URL, params []string) string {
	q := u.Query()
	for _, p := range params {
		q.Del(p)
	}
	out := url.URL{Path: u.Path, RawQuery: q.Encode()}
	if out.Path == "" {
		out.Path = "/"
	}
	return out.RequestURI()
}
