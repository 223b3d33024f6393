// Package storage persists serialized carts in a key-value backend.
//
// Backends only move bytes. Store sits on top of a Backend and speaks carts:
// it never returns an error to its caller. A missing or corrupt value reads as
// an empty cart and a failed write is logged and dropped, the same way a
// browser page treats localStorage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNotFound indicates the key holds no value.
	ErrNotFound = errors.New("storage: key not found")

	// ErrQuotaExceeded indicates the backend refused a write for lack of space.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")

	// ErrClosed indicates the backend has been closed.
	ErrClosed = errors.New("storage: backend closed")

	// ErrInvalidKey indicates a key outside [A-Za-z0-9_-]{1,64}.
	ErrInvalidKey = errors.New("storage: invalid key")
)

var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateKey checks that key is usable by every backend (as a file name,
// a NATS subject token and a table key).
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Backend is a byte-level key-value store.
type Backend interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is one of memory, file or sqlite.
	Backend string

	// Path is the directory for the file backend or the database file for
	// sqlite. Ignored by memory.
	Path string

	// QuotaBytes caps the memory backend's total stored bytes. Zero means
	// unlimited.
	QuotaBytes int
}

// Open constructs the backend named by cfg.Backend.
func Open(cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryBackend(cfg.QuotaBytes), nil
	case BackendFile:
		return NewFileBackend(cfg.Path)
	case BackendSQLite:
		return NewSQLiteBackend(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want memory, file or sqlite)", cfg.Backend)
	}
}
