// Package pending manages the durable store of mutating requests that
// failed for a network reason and are waiting to be replayed.
package pending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/tether/id"
	"github.com/xraph/tether/internal/entity"
)

// ErrNotDurable is returned when persisting a request whose method does not
// mutate server state (GET, HEAD). Safe methods are retried in memory only.
var ErrNotDurable = errors.New("pending: method is not durable")

// Service manages pending requests over a Store.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a pending request service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Add persists a pending request, assigning its ID and timestamps.
// Non-mutating methods are rejected with ErrNotDurable. A storage
// failure is returned to the caller but is non-fatal by contract: the
// dispatcher logs it and keeps retrying in memory for the session.
func (svc *Service) Add(ctx context.Context, req *Request) (id.ID, error) {
	if !Mutating(req.Method) {
		return id.Nil, fmt.Errorf("%w: %s %s", ErrNotDurable, req.Method, req.URL)
	}

	if req.ID.IsNil() {
		req.ID = id.NewRequestID()
	}
	if req.CreatedAt.IsZero() {
		req.Entity = entity.New()
	}

	if err := svc.store.SaveRequest(ctx, req); err != nil {
		return id.Nil, fmt.Errorf("pending: save %s %s: %w", req.Method, req.URL, err)
	}

	svc.logger.DebugContext(ctx, "pending request saved",
		"request_id", req.ID, "method", req.Method, "url", req.URL)
	return req.ID, nil
}

// List returns all pending requests, oldest first.
func (svc *Service) List(ctx context.Context) ([]*Request, error) {
	return svc.store.ListRequests(ctx)
}

// Remove deletes a pending request by ID. Removing an unknown ID is a no-op.
func (svc *Service) Remove(ctx context.Context, reqID id.ID) error {
	return svc.store.DeleteRequest(ctx, reqID)
}

// RemoveMatch deletes the oldest pending request matching the given retry
// and reports whether a record was removed. Matching prefers the queue key
// carried on the record; records without a key fall back to url+method
// equality, first match wins. A miss is not an error: the request may never
// have been persisted (storage was down, or the method was not durable).
func (svc *Service) RemoveMatch(ctx context.Context, key, method, url string) (bool, error) {
	requests, err := svc.store.ListRequests(ctx)
	if err != nil {
		return false, fmt.Errorf("pending: list for match: %w", err)
	}

	for _, req := range requests {
		if req.Matches(key, method, url) {
			if err := svc.store.DeleteRequest(ctx, req.ID); err != nil {
				return false, fmt.Errorf("pending: delete %s: %w", req.ID, err)
			}
			svc.logger.DebugContext(ctx, "pending request cleared after successful retry",
				"request_id", req.ID, "method", method, "url", url)
			return true, nil
		}
	}
	return false, nil
}

// Clear removes all pending requests (logout, account deletion).
func (svc *Service) Clear(ctx context.Context) error {
	return svc.store.ClearRequests(ctx)
}

// Count returns the number of pending requests.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	return svc.store.CountRequests(ctx)
}
