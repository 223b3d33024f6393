package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/menucart/internal/cart"
)

// FailureRecorder counts swallowed storage failures.
type FailureRecorder interface {
	StorageFailure(op string)
}

// Store reads and writes carts through a Backend. None of its methods fail:
// storage problems are logged and the caller carries on with an empty cart or
// an unsaved change.
type Store struct {
	backend  Backend
	logger   *zap.Logger
	recorder FailureRecorder
}

// NewStore wraps backend. A nil logger discards logs; recorder may be nil.
func NewStore(backend Backend, logger *zap.Logger, recorder FailureRecorder) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend:  backend,
		logger:   logger,
		recorder: recorder,
	}
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Read returns the cart stored under key. Absent keys, backend errors and
// undecodable values all yield an empty cart.
func (s *Store) Read(ctx context.Context, key string) cart.Cart {
	c, _ := s.Lookup(ctx, key)
	return c
}

// Lookup is Read that also reports whether key holds a decodable cart. An
// empty list written under key counts as present.
func (s *Store) Lookup(ctx context.Context, key string) (cart.Cart, bool) {
	data, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return cart.Cart{}, false
	}
	if err != nil {
		s.fail("read", key, err)
		return cart.Cart{}, false
	}
	c, err := cart.Decode(data)
	if err != nil {
		s.fail("decode", key, err)
		return cart.Cart{}, false
	}
	return c, true
}

// Write stores c under key and reports whether it landed.
func (s *Store) Write(ctx context.Context, key string, c cart.Cart) bool {
	data, err := cart.Encode(c)
	if err != nil {
		s.fail("encode", key, err)
		return false
	}
	if err := s.backend.Put(ctx, key, data); err != nil {
		s.fail("write", key, err)
		return false
	}
	s.logger.Debug("cart written",
		zap.String("key", key),
		zap.Int("lines", len(c)),
		zap.Int("bytes", len(data)))
	return true
}

// Remove deletes key and reports whether it succeeded.
func (s *Store) Remove(ctx context.Context, key string) bool {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.fail("remove", key, err)
		return false
	}
	return true
}

func (s *Store) fail(op, key string, err error) {
	s.logger.Warn("cart storage failure",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err))
	if s.recorder != nil {
		s.recorder.StorageFailure(op)
	}
}
