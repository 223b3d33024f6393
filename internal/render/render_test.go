package render

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fyrsmithlabs/menucart/internal/cart"
	"github.com/fyrsmithlabs/menucart/internal/cartstore"
	"github.com/fyrsmithlabs/menucart/internal/events"
	"github.com/fyrsmithlabs/menucart/internal/storage"
)

func sampleCart(t *testing.T) cart.Cart {
	t.Helper()
	a, err := cart.NewLineItem("Tacacá", "25", "/Img/Tacaca.jpg", "sem pimenta")
	require.NoError(t, err)
	b, err := cart.NewLineItem("Pato no tucupi", "R$ 48,00", "", "")
	require.NoError(t, err)
	c := cart.AddOrIncrement(nil, a)
	c = cart.AddOrIncrement(c, a)
	return cart.AddOrIncrement(c, b)
}

func TestProject(t *testing.T) {
	p := Project(sampleCart(t))

	assert.False(t, p.Empty)
	assert.Equal(t, 3, p.ItemCount)
	assert.Equal(t, "98.00", p.Total)
	require.Len(t, p.Items, 2)
	assert.Equal(t, LineView{
		Index: 0, Name: "Tacacá", Price: "25.00", Quantity: 2, Subtotal: "50.00",
		Image: "/Img/Tacaca.jpg", Note: "sem pimenta",
	}, p.Items[0])
	assert.Equal(t, 1, p.Items[1].Index)

	empty := Project(nil)
	assert.True(t, empty.Empty)
	assert.Equal(t, "0.00", empty.Total)
	assert.NotNil(t, empty.Items)
}

func TestBadge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewBadge(&buf).Render(Project(sampleCart(t))))
	assert.Equal(t, `<span id="item-count">3</span>`, buf.String())
}

func TestListing(t *testing.T) {
	t.Run("with controls", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewListing(&buf, WithControls("/cart/items"))
		require.NoError(t, l.Render(Project(sampleCart(t))))

		out := buf.String()
		assert.Contains(t, out, "<h3>Tacacá</h3>")
		assert.Contains(t, out, "R$ 25.00")
		assert.Contains(t, out, "sem pimenta")
		assert.Contains(t, out, `action="/cart/items/1/increment"`)
		assert.Contains(t, out, `action="/cart/items/0/remove"`)
		assert.Contains(t, out, "R$ 98.00")
	})

	t.Run("read only", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewListing(&buf).Render(Project(sampleCart(t))))
		assert.NotContains(t, buf.String(), "<form")
		assert.NotContains(t, buf.String(), "Remover")
	})

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewListing(&buf, WithEmptyMessage("Nada aqui.")).Render(Project(nil)))
		assert.Contains(t, buf.String(), "Nada aqui.")
		assert.NotContains(t, buf.String(), "carrinho")
	})

	t.Run("escapes names", func(t *testing.T) {
		li, err := cart.NewLineItem("<script>x</script>", 1, "", "")
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, NewListing(&buf).Render(Project(cart.Cart{li})))
		assert.NotContains(t, buf.String(), "<script>")
	})
}

func TestPage_SkipsMissingParts(t *testing.T) {
	p := Project(sampleCart(t))

	var buf bytes.Buffer
	var listing *Listing
	require.NoError(t, NewPage(&buf, "Carrinho", NewBadge(&buf), listing).Render(p))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, `<span id="item-count">3</span>`)
	assert.NotContains(t, out, "cart-item")

	buf.Reset()
	require.NoError(t, NewPage(nil, "", nil, NewListing(&buf)).Render(p))
	assert.Contains(t, buf.String(), "cart-item")
	assert.NotContains(t, buf.String(), "item-count")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("gone") }

func TestPage_RendersRemainingPartsOnError(t *testing.T) {
	var buf bytes.Buffer
	err := NewPage(nil, "", NewBadge(failingWriter{}), NewListing(&buf)).Render(Project(sampleCart(t)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "badge")
	assert.Contains(t, buf.String(), "cart-item")
}

func TestStream_DropsOldest(t *testing.T) {
	s := NewStream("sse", 1)
	require.NoError(t, s.Render(Projection{ItemCount: 1}))
	require.NoError(t, s.Render(Projection{ItemCount: 2}))

	got := <-s.Updates()
	assert.Equal(t, 2, got.ItemCount)
	assert.Equal(t, "sse", s.Name())
}

func TestStripImportParams(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/cart?name=Taca&price=25&image=x.jpg&note=n", "/cart"},
		{"/cart?name=Taca&price=25&table=7", "/cart?table=7"},
		{"/cart", "/cart"},
		{"?name=x&price=1", "/"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, StripImportParams(u, cartstore.ImportParams), tt.in)
	}
}

// staticLoader serves a fixed cart.
type staticLoader struct {
	mu sync.Mutex
	c  cart.Cart
}

func (l *staticLoader) Load(context.Context) cart.Cart {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c
}

func (l *staticLoader) Watches(key string) bool { return key == "cart" }

type recordingSurface struct {
	mu    sync.Mutex
	name  string
	fail  bool
	count []int
}

func (r *recordingSurface) Name() string { return r.name }

func (r *recordingSurface) Render(p Projection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("detached view")
	}
	r.count = append(r.count, p.ItemCount)
	return nil
}

func (r *recordingSurface) renders() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.count...)
}

func TestSyncer_AttachAndRefresh(t *testing.T) {
	loader := &staticLoader{c: sampleCart(t)}
	sy := NewSyncer(loader, nil, nil)
	ctx := context.Background()

	a := &recordingSurface{name: "a"}
	b := &recordingSurface{name: "b"}
	detachA, err := sy.Attach(ctx, a)
	require.NoError(t, err)
	_, err = sy.Attach(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, a.renders(), "attach renders immediately")

	_, err = sy.Attach(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sy.Len())

	detachA()
	detachA()
	b.mu.Lock()
	b.fail = true
	b.mu.Unlock()
	sy.Refresh(ctx)
	assert.Equal(t, 0, sy.Len(), "failed surface is detached")
	assert.Equal(t, []int{3}, a.renders())
}

func TestSyncer_AttachFailureIsNotKept(t *testing.T) {
	sy := NewSyncer(&staticLoader{}, nil, nil)
	_, err := sy.Attach(context.Background(), &recordingSurface{name: "x", fail: true})
	require.Error(t, err)
	assert.Equal(t, 0, sy.Len())
}

func TestSyncer_RunFollowsAnotherStore(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	bus := events.NewLocalBus(8)
	defer bus.Close()
	backend := storage.NewMemoryBackend(0)
	newStore := func() *cartstore.Store {
		s, err := cartstore.New(storage.NewStore(backend, nil, nil), cartstore.Options{
			Keys: cartstore.Keys{Canonical: "cart", Mirror: "pedido"},
			Bus:  bus,
		})
		require.NoError(t, err)
		return s
	}
	writer, viewer := newStore(), newStore()

	ctx, cancel := context.WithCancel(context.Background())
	sy := NewSyncer(viewer, bus, nil)
	done := make(chan error, 1)
	go func() { done <- sy.Run(ctx) }()

	badge := NewStream("badge", 4)
	_, err := sy.Attach(ctx, badge)
	require.NoError(t, err)
	assert.Equal(t, 0, (<-badge.Updates()).ItemCount)

	// Run subscribes asynchronously; keep adding until the viewer sees one.
	item, err := cart.NewLineItem("Tacacá", 25, "", "")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		if _, err := writer.Add(ctx, item); err != nil {
			return false
		}
		select {
		case p := <-badge.Updates():
			return p.ItemCount > 0
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestSyncer_RunReportsClosedBus(t *testing.T) {
	bus := events.NewLocalBus(1)
	sy := NewSyncer(&staticLoader{}, bus, nil)
	done := make(chan error, 1)
	go func() { done <- sy.Run(context.Background()) }()

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, <-done, events.ErrBusClosed)
}
