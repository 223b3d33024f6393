package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBackends(t *testing.T) map[string]Backend {
	t.Helper()
	dir := t.TempDir()

	file, err := NewFileBackend(filepath.Join(dir, "files"))
	require.NoError(t, err)
	sqlite, err := NewSQLiteBackend(filepath.Join(dir, "db", "menucart.db"))
	require.NoError(t, err)

	backends := map[string]Backend{
		"memory": NewMemoryBackend(0),
		"file":   file,
		"sqlite": sqlite,
	}
	t.Cleanup(func() {
		for _, b := range backends {
			_ = b.Close()
		}
	})
	return backends
}

func TestBackends(t *testing.T) {
	ctx := context.Background()

	for name, b := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.Get(ctx, "cart")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.Put(ctx, "cart", []byte(`[1]`)))
			got, err := b.Get(ctx, "cart")
			require.NoError(t, err)
			assert.Equal(t, `[1]`, string(got))

			require.NoError(t, b.Put(ctx, "cart", []byte(`[2]`)))
			got, err = b.Get(ctx, "cart")
			require.NoError(t, err)
			assert.Equal(t, `[2]`, string(got))

			require.NoError(t, b.Delete(ctx, "cart"))
			_, err = b.Get(ctx, "cart")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.NoError(t, b.Delete(ctx, "cart"), "deleting a missing key")

			assert.ErrorIs(t, b.Put(ctx, "../escape", []byte(`[]`)), ErrInvalidKey)
		})
	}
}

func TestBackends_Closed(t *testing.T) {
	ctx := context.Background()

	for name, b := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Close())
			assert.ErrorIs(t, b.Put(ctx, "cart", []byte(`[]`)), ErrClosed)
			_, err := b.Get(ctx, "cart")
			assert.ErrorIs(t, err, ErrClosed)
		})
	}
}

func TestMemoryBackend_Quota(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(10)

	require.NoError(t, b.Put(ctx, "a", []byte("12345")))
	require.NoError(t, b.Put(ctx, "b", []byte("12345")))
	assert.ErrorIs(t, b.Put(ctx, "c", []byte("1")), ErrQuotaExceeded)

	// Replacing a value only counts the difference.
	require.NoError(t, b.Put(ctx, "a", []byte("1234")))
	require.NoError(t, b.Put(ctx, "c", []byte("1")))

	got, err := b.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "12345", string(got))

	require.NoError(t, b.Delete(ctx, "b"))
	assert.NoError(t, b.Put(ctx, "d", []byte("12345")))
}

func TestFileBackend_Layout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	require.NoError(t, err)

	require.NoError(t, b.Put(ctx, "cart", []byte(`[]`)))
	assert.FileExists(t, filepath.Join(dir, "cart.json"))

	matches, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp files must be renamed away")

	_, err = NewFileBackend("")
	assert.Error(t, err)
}

func TestKeyFromPath(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		want   string
		wantOK bool
	}{
		{name: "value file", path: "/data/cart.json", want: "cart", wantOK: true},
		{name: "temp file", path: "/data/.cart-123.tmp", wantOK: false},
		{name: "hidden json", path: "/data/.cart.json", wantOK: false},
		{name: "other extension", path: "/data/cart.txt", wantOK: false},
		{name: "invalid key", path: "/data/my cart.json", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := keyFromPath(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	b, err := Open(Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	b, err = Open(Config{Backend: BackendFile, Path: filepath.Join(dir, "f")})
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, b)

	b, err = Open(Config{Backend: BackendSQLite, Path: filepath.Join(dir, "s.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteBackend{}, b)
	require.NoError(t, b.Close())

	_, err = Open(Config{Backend: "redis"})
	assert.ErrorContains(t, err, "unknown storage backend")
}
