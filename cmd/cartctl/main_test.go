package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/menucart/internal/cart"
	"github.com/fyrsmithlabs/menucart/internal/cartstore"
	"github.com/fyrsmithlabs/menucart/internal/events"
	httpserver "github.com/fyrsmithlabs/menucart/internal/http"
	"github.com/fyrsmithlabs/menucart/internal/logging"
	"github.com/fyrsmithlabs/menucart/internal/render"
	"github.com/fyrsmithlabs/menucart/internal/storage"
)

type testServer struct {
	url    string
	store  *cartstore.Store
	syncer *render.Syncer
	bus    *events.LocalBus
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	bus := events.NewLocalBus(16)
	t.Cleanup(func() { _ = bus.Close() })

	store, err := cartstore.New(storage.NewStore(storage.NewMemoryBackend(0), nil, nil), cartstore.Options{
		Keys: cartstore.Keys{Canonical: "cart", Mirror: "pedido"},
		Bus:  bus,
	})
	require.NoError(t, err)
	syncer := render.NewSyncer(store, bus, nil)

	srv, err := httpserver.NewServer(store, syncer, logging.NewNop(), &httpserver.Config{HeartbeatInterval: time.Hour})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testServer{url: ts.URL, store: store, syncer: syncer, bus: bus}
}

func execute(t *testing.T, ts *testServer, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--server", ts.url))
	err := cmd.Execute()
	return out.String(), err
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	out, err := execute(t, ts, "", "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Server Status: ok")
}

func TestAddShowAndEdit(t *testing.T) {
	ts := newTestServer(t)

	out, err := execute(t, ts, "", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Seu pedido está vazio.")

	out, err = execute(t, ts, "", "add", "--name", "Tacacá", "--price", "25", "--note", "sem pimenta")
	require.NoError(t, err)
	assert.Contains(t, out, "Tacacá")
	assert.Contains(t, out, "sem pimenta")
	assert.Contains(t, out, "1 item")

	_, err = execute(t, ts, "", "add", "--name", "Açaí", "--price", "12,50", "--qty", "2")
	require.NoError(t, err)

	out, err = execute(t, ts, "", "inc", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "R$ 75.00")

	out, err = execute(t, ts, "", "dec", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "3 itens")

	out, err = execute(t, ts, "", "rm", "0")
	require.NoError(t, err)
	assert.NotContains(t, out, "Tacacá")
	assert.Contains(t, out, "R$ 12.50")
}

func TestCommandErrors(t *testing.T) {
	ts := newTestServer(t)

	_, err := execute(t, ts, "", "add", "--price", "10")
	assert.ErrorContains(t, err, "--name is required")

	_, err = execute(t, ts, "", "inc", "abc")
	assert.ErrorContains(t, err, "invalid index")

	_, err = execute(t, ts, "", "rm", "3")
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
}

func TestClear(t *testing.T) {
	ts := newTestServer(t)
	_, err := execute(t, ts, "", "add", "--name", "Tacacá", "--price", "25")
	require.NoError(t, err)

	out, err := execute(t, ts, "n\n", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Deseja limpar o carrinho?")
	assert.Contains(t, out, "Cancelado.")
	assert.False(t, ts.store.Load(context.Background()).Empty())

	out, err = execute(t, ts, "s\n", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Seu pedido está vazio.")

	_, err = execute(t, ts, "", "add", "--name", "Suco", "--price", "8")
	require.NoError(t, err)
	_, err = execute(t, ts, "", "clear", "--yes")
	require.NoError(t, err)
	assert.True(t, ts.store.Load(context.Background()).Empty())
}

func TestCheckout(t *testing.T) {
	ts := newTestServer(t)

	out, err := execute(t, ts, "", "checkout")
	require.NoError(t, err)
	assert.Contains(t, out, "Seu carrinho está vazio.")

	_, err = execute(t, ts, "", "add", "--name", "Tacacá", "--price", "25", "--qty", "2")
	require.NoError(t, err)
	_, err = execute(t, ts, "", "add", "--name", "Suco", "--price", "23")
	require.NoError(t, err)

	out, err = execute(t, ts, "", "checkout")
	require.NoError(t, err)
	assert.Contains(t, out, "Pedido finalizado!")
	assert.Contains(t, out, "Total: R$ 73.00")
	assert.True(t, ts.store.Load(context.Background()).Empty())
}

func TestWatch(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- ts.syncer.Run(ctx) }()
	require.Eventually(t, func() bool { return ts.bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	c := &client{serverURL: ts.url, http: httptestClient()}
	updates := make(chan render.Projection, 4)
	watchDone := make(chan error, 1)
	watchCtx, stopWatch := context.WithCancel(ctx)
	go func() {
		watchDone <- c.watch(watchCtx, func(p render.Projection) { updates <- p })
	}()

	assert.True(t, (<-updates).Empty)

	item, err := cart.NewLineItem("Tacacá", 25, "", "")
	require.NoError(t, err)
	_, err = ts.store.Add(ctx, item)
	require.NoError(t, err)

	select {
	case p := <-updates:
		assert.Equal(t, 1, p.ItemCount)
		assert.Equal(t, "1 item  Total: R$ 25.00", formatSummary(p))
	case <-time.After(2 * time.Second):
		t.Fatal("no update after add")
	}

	stopWatch()
	require.NoError(t, <-watchDone)
	cancel()
	require.NoError(t, <-runDone)
}

func TestConfirmed(t *testing.T) {
	for _, yes := range []string{"s", "Sim\n", "y", " YES "} {
		assert.True(t, confirmed(yes), yes)
	}
	for _, no := range []string{"", "n", "não", "maybe"} {
		assert.False(t, confirmed(no), no)
	}
}

func httptestClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
