package pending

import (
	"context"

	"github.com/xraph/tether/id"
)

// Store defines the persistence contract for pending requests.
//
// Implementations must make DeleteRequest idempotent: deleting an ID that
// does not exist is a no-op, not an error. ListRequests returns entries
// oldest first, the order replay walks them in.
type Store interface {
	// SaveRequest persists a pending request.
	SaveRequest(ctx context.Context, req *Request) error

	// ListRequests returns all pending requests, oldest first.
	ListRequests(ctx context.Context) ([]*Request, error)

	// DeleteRequest removes a pending request by ID. Idempotent.
	DeleteRequest(ctx context.Context, reqID id.ID) error

	// ClearRequests removes all pending requests.
	ClearRequests(ctx context.Context) error

	// CountRequests returns the number of pending requests.
	CountRequests(ctx context.Context) (int64, error)
}
