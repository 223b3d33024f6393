// Package cartstore owns the persisted cart.
//
// A Store loads the cart from storage, applies a pure cart operation, writes
// the result back under the canonical key and announces the change on an
// events bus. Views never hold cart state of their own; they re-read the store
// when an event arrives.
package cartstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/menucart/internal/cart"
	"github.com/fyrsmithlabs/menucart/internal/events"
	"github.com/fyrsmithlabs/menucart/internal/metrics"
	"github.com/fyrsmithlabs/menucart/internal/price"
	"github.com/fyrsmithlabs/menucart/internal/storage"
)

// ErrEmptyCart is returned by Checkout when there is nothing to order.
var ErrEmptyCart = errors.New("cartstore: cart is empty")

// Messages shown to the customer.
const (
	EmptyCartMessage = "Seu carrinho está vazio."
	ClearPrompt      = "Deseja limpar o carrinho?"
)

// Default storage keys.
const (
	DefaultCanonicalKey = "cart"
	DefaultMirrorKey    = "pedido"
)

// Query parameters consumed by ImportQuery.
var ImportParams = []string{"name", "price", "image", "note"}

// Keys names the storage keys a Store reads and writes.
type Keys struct {
	// Canonical is the only key written.
	Canonical string
	// Mirror is read while Canonical is absent and removed on every committed write.
	// Empty disables the fallback.
	Mirror string
}

// Options configures a Store.
type Options struct {
	Keys    Keys
	Bus     events.Bus
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	// RedirectTarget is reported on checkout receipts.
	RedirectTarget string

	// Origin identifies this store on published events. Defaults to a
	// random UUID.
	Origin string
}

// Receipt describes a completed checkout.
type Receipt struct {
	ID        string          `json:"id"`
	Total     decimal.Decimal `json:"-"`
	ItemCount int             `json:"item_count"`
	Lines     int             `json:"lines"`
	Message   string          `json:"message"`
	Redirect  string          `json:"redirect,omitempty"`
}

// Store is the cart state holder for one pair of storage keys.
type Store struct {
	storage  *storage.Store
	keys     Keys
	bus      events.Bus
	metrics  *metrics.Metrics
	logger   *zap.Logger
	redirect string
	origin   string

	// mu serializes read-modify-write within this process.
	mu sync.Mutex
}

// New creates a Store over st.
func New(st *storage.Store, opts Options) (*Store, error) {
	if st == nil {
		return nil, errors.New("cartstore: storage is required")
	}
	if opts.Keys.Canonical == "" {
		opts.Keys.Canonical = DefaultCanonicalKey
	}
	if err := storage.ValidateKey(opts.Keys.Canonical); err != nil {
		return nil, fmt.Errorf("canonical key: %w", err)
	}
	if opts.Keys.Mirror != "" {
		if err := storage.ValidateKey(opts.Keys.Mirror); err != nil {
			return nil, fmt.Errorf("mirror key: %w", err)
		}
		if opts.Keys.Mirror == opts.Keys.Canonical {
			return nil, errors.New("cartstore: mirror key must differ from canonical key")
		}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Origin == "" {
		opts.Origin = uuid.NewString()
	}
	return &Store{
		storage:  st,
		keys:     opts.Keys,
		bus:      opts.Bus,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		redirect: opts.RedirectTarget,
		origin:   opts.Origin,
	}, nil
}

// Keys returns the storage keys of s.
func (s *Store) Keys() Keys {
	return s.keys
}

// Origin returns the identifier stamped on events published by s.
func (s *Store) Origin() string {
	return s.origin
}

// Watches reports whether a change to key affects what Load returns.
func (s *Store) Watches(key string) bool {
	return key == s.keys.Canonical || (s.keys.Mirror != "" && key == s.keys.Mirror)
}

// Load returns the current cart. The mirror is consulted only while nothing
// readable is stored under the canonical key; an emptied canonical cart stays
// empty.
func (s *Store) Load(ctx context.Context) cart.Cart {
	c, found := s.storage.Lookup(ctx, s.keys.Canonical)
	if !found && s.keys.Mirror != "" {
		return s.storage.Read(ctx, s.keys.Mirror)
	}
	return c
}

// Add merges item into the cart and returns the resulting cart.
func (s *Store) Add(ctx context.Context, item cart.LineItem) (cart.Cart, error) {
	if strings.TrimSpace(item.Name) == "" {
		s.metrics.Operation("add", "invalid")
		return nil, cart.ErrEmptyName
	}
	return s.mutate(ctx, "add", func(c cart.Cart) (cart.Cart, bool) {
		return cart.AddOrIncrement(c, item), true
	}), nil
}

// ChangeQuantity adds delta to the quantity of the line at index, flooring at
// one. An out-of-range index leaves storage untouched.
func (s *Store) ChangeQuantity(ctx context.Context, index, delta int) cart.Cart {
	return s.mutate(ctx, "change_quantity", func(c cart.Cart) (cart.Cart, bool) {
		if index < 0 || index >= len(c) || delta == 0 {
			return c, false
		}
		next := cart.ChangeQuantity(c, index, delta)
		return next, next[index].Quantity != c[index].Quantity
	})
}

// Increment is ChangeQuantity with delta 1.
func (s *Store) Increment(ctx context.Context, index int) cart.Cart {
	return s.ChangeQuantity(ctx, index, 1)
}

// Decrement is ChangeQuantity with delta -1.
func (s *Store) Decrement(ctx context.Context, index int) cart.Cart {
	return s.ChangeQuantity(ctx, index, -1)
}

// Remove deletes the line at index. An out-of-range index leaves storage
// untouched.
func (s *Store) Remove(ctx context.Context, index int) cart.Cart {
	return s.mutate(ctx, "remove", func(c cart.Cart) (cart.Cart, bool) {
		if index < 0 || index >= len(c) {
			return c, false
		}
		return cart.RemoveAt(c, index), true
	})
}

// Clear empties the cart. The mirror key is removed too so the fallback
// cannot bring the old cart back.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(ctx, "clear")
}

func (s *Store) clearLocked(ctx context.Context, op string) {
	ok := s.storage.Remove(ctx, s.keys.Canonical)
	if s.keys.Mirror != "" {
		ok = s.storage.Remove(ctx, s.keys.Mirror) && ok
	}
	if !ok {
		s.metrics.Operation(op, "write_failed")
	} else {
		s.metrics.Operation(op, "committed")
		s.metrics.Items(0)
	}
	// Publish even on partial failure: whatever was removed changed the view.
	s.publish(ctx)
}

// Checkout finalizes the current cart and clears it. An empty cart yields
// ErrEmptyCart and no storage change.
func (s *Store) Checkout(ctx context.Context) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.Load(ctx)
	if c.Empty() {
		s.metrics.Checkout("empty", 0)
		return nil, ErrEmptyCart
	}

	total := cart.Total(c)
	receipt := &Receipt{
		ID:        uuid.NewString(),
		Total:     total,
		ItemCount: cart.ItemCount(c),
		Lines:     len(c),
		Message:   "Pedido finalizado!\nTotal: " + price.Display(total),
		Redirect:  s.redirect,
	}
	s.clearLocked(ctx, "checkout")
	s.metrics.Checkout("completed", total.InexactFloat64())
	s.logger.Info("checkout completed",
		zap.String("receipt_id", receipt.ID),
		zap.String("total", price.Format(total)),
		zap.Int("items", receipt.ItemCount))
	return receipt, nil
}

// ImportQuery adds the item described by the name, price, image and note
// parameters of values. It reports false without error when name or price is
// absent.
func (s *Store) ImportQuery(ctx context.Context, values url.Values) (bool, error) {
	name := values.Get("name")
	rawPrice := values.Get("price")
	if name == "" || rawPrice == "" {
		return false, nil
	}
	item, err := cart.NewLineItem(name, rawPrice, values.Get("image"), values.Get("note"))
	if err != nil {
		s.metrics.Operation("import", "invalid")
		return false, fmt.Errorf("import %q: %w", name, err)
	}
	s.mutate(ctx, "import", func(c cart.Cart) (cart.Cart, bool) {
		return cart.AddOrIncrement(c, item), true
	})
	return true, nil
}

// mutate applies fn to the loaded cart and commits the result when fn
// reports a change. It returns the cart as stored afterwards.
func (s *Store) mutate(ctx context.Context, op string, fn func(cart.Cart) (cart.Cart, bool)) cart.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.Load(ctx)
	next, changed := fn(current)
	if !changed {
		s.metrics.Operation(op, "noop")
		return current
	}
	if !s.storage.Write(ctx, s.keys.Canonical, next) {
		s.metrics.Operation(op, "write_failed")
		return current
	}
	s.retireMirror(ctx)
	s.metrics.Operation(op, "committed")
	s.metrics.Items(cart.ItemCount(next))
	s.publish(ctx)
	return next
}

// retireMirror drops the mirror once the canonical key holds the cart, so a
// line removed from the canonical cart cannot resurface from the mirror.
func (s *Store) retireMirror(ctx context.Context) {
	if s.keys.Mirror == "" {
		return
	}
	// Failures are logged by storage; Load ignores the mirror either way.
	s.storage.Remove(ctx, s.keys.Mirror)
}

func (s *Store) publish(ctx context.Context) {
	if s.bus == nil {
		return
	}
	ev := events.Event{Key: s.keys.Canonical, Origin: s.origin}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.logger.Warn("publishing cart change failed",
			zap.String("key", ev.Key),
			zap.Error(err))
	}
}
