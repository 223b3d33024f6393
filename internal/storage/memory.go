package storage

import (
	"context"
	"sync"
)

// MemoryBackend keeps values in a map. It is the default backend and the one
// tests use; a non-zero quota makes it refuse writes the way a full browser
// store does.
type MemoryBackend struct {
	mu     sync.RWMutex
	data   map[string][]byte
	used   int
	quota  int
	closed bool
}

// NewMemoryBackend creates an empty backend. quotaBytes <= 0 disables the quota.
func NewMemoryBackend(quotaBytes int) *MemoryBackend {
	return &MemoryBackend{
		data:  make(map[string][]byte),
		quota: quotaBytes,
	}
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put implements Backend.
func (m *MemoryBackend) Put(_ context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	used := m.used - len(m.data[key]) + len(value)
	if m.quota > 0 && used > m.quota {
		return ErrQuotaExceeded
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	m.used = used
	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.used -= len(m.data[key])
	delete(m.data, key)
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}
