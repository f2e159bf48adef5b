// Package memory provides an in-memory Store implementation for unit testing
// and for running without durable persistence (requests then survive only the
// current process).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/tether"
	"github.com/xraph/tether/id"
	"github.com/xraph/tether/pending"
	tetherstore "github.com/xraph/tether/store"
)

// compile-time interface check.
var _ tetherstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	requests map[string]*pending.Request // keyed by ID string

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		requests: make(map[string]*pending.Request),
	}
}

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is still open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return tether.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// copyRequest returns a shallow copy so callers can mutate without a lock.
func copyRequest(r *pending.Request) *pending.Request {
	cp := *r
	return &cp
}

// SaveRequest persists a pending request.
func (s *Store) SaveRequest(_ context.Context, req *pending.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tether.ErrStoreClosed
	}
	s.requests[req.ID.String()] = copyRequest(req)
	return nil
}

// ListRequests returns all pending requests, oldest first.
func (s *Store) ListRequests(_ context.Context) ([]*pending.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, tether.ErrStoreClosed
	}

	result := make([]*pending.Request, 0, len(s.requests))
	for _, r := range s.requests {
		result = append(result, copyRequest(r))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

// DeleteRequest removes a pending request by ID. Idempotent.
func (s *Store) DeleteRequest(_ context.Context, reqID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tether.ErrStoreClosed
	}
	delete(s.requests, reqID.String())
	return nil
}

// ClearRequests removes all pending requests.
func (s *Store) ClearRequests(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tether.ErrStoreClosed
	}
	s.requests = make(map[string]*pending.Request)
	return nil
}

// CountRequests returns the number of pending requests.
func (s *Store) CountRequests(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, tether.ErrStoreClosed
	}
	return int64(len(s.requests)), nil
}
