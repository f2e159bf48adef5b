package tether

import (
	"errors"

	"github.com/xraph/tether/pending"
	"github.com/xraph/tether/queue"
)

// Sentinel errors returned by Tether operations.
var (
	// ErrNoStore is returned when a Client is created without a store.
	ErrNoStore = errors.New("tether: store is required")

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errors.New("tether: store is closed")

	// ErrMethodNotDurable is returned when persisting a request whose method
	// does not mutate server state (GET, HEAD). Safe methods are retried
	// in memory only and never written to the pending store.
	ErrMethodNotDurable = pending.ErrNotDurable

	// ErrRetriesExhausted is returned once a queued operation has used up
	// all of its attempts. It wraps the last transport error, so callers
	// can tell "still offline" apart from an application-level failure.
	ErrRetriesExhausted = queue.ErrExhausted

	// ErrQueueCleared is returned to waiters when the retry queue is cleared
	// (logout, account deletion) while their operation is still queued.
	ErrQueueCleared = queue.ErrCleared

	// ErrQueueStopped is returned when adding to a queue that has been stopped.
	ErrQueueStopped = queue.ErrStopped
)
