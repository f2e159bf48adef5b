package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Sentinel errors for queue outcomes.
var (
	// ErrExhausted marks an operation that used up all of its attempts.
	ErrExhausted = errors.New("queue: retries exhausted")

	// ErrCleared is delivered to waiters when the queue is cleared while
	// their operation is still queued.
	ErrCleared = errors.New("queue: cleared")

	// ErrStopped is returned when adding to a stopped queue.
	ErrStopped = errors.New("queue: stopped")
)

// Operation performs one attempt of a deferred piece of work.
type Operation func(ctx context.Context) error

// ExhaustedError is the terminal failure delivered once an item reaches its
// attempt ceiling. It wraps the last attempt's error and satisfies
// errors.Is(err, ErrExhausted).
type ExhaustedError struct {
	Key      string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("queue: %s: retries exhausted after %d attempts: %v", e.Key, e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error.
func (e *ExhaustedError) Unwrap() error { return e.Err }

// Is reports ErrExhausted identity for errors.Is.
func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// Ticket is the caller's handle on a queued operation's eventual outcome.
// Every waiter on the same coalesced key shares one ticket, and the ticket
// resolves exactly once: nil on success, an *ExhaustedError on exhaustion,
// or ErrCleared if the queue is cleared first.
type Ticket struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newTicket() *Ticket {
	return &Ticket{done: make(chan struct{})}
}

// resolvedTicket returns a ticket that is already resolved with err.
func resolvedTicket(err error) *Ticket {
	t := newTicket()
	t.resolve(err)
	return t
}

// resolve records the outcome. Later calls are no-ops, so an in-flight
// attempt finishing against a just-cleared queue cannot resolve twice.
func (t *Ticket) resolve(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

// Done returns a channel closed once the operation reaches a terminal state.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Err returns the outcome after Done is closed. Before that it returns nil.
func (t *Ticket) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the operation reaches a terminal state or ctx is done.
// Abandoning the wait does not cancel the queued operation; durability is
// the point of queueing it.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return t.err
	}
}

// Item is one deferred operation awaiting retry.
type Item struct {
	// Key identifies the logical operation; re-adding an existing key
	// coalesces into the queued item.
	Key string

	// Attempts counts attempts made so far.
	Attempts int

	// MaxAttempts is the ceiling past which the item is dropped and its
	// failure surfaced.
	MaxAttempts int

	// LastAttemptAt is the time of the most recent attempt, used to
	// enforce backoff spacing. Zero means never attempted.
	LastAttemptAt time.Time

	op        Operation
	onSuccess func(ctx context.Context)
	ticket    *Ticket
	lastErr   error
}

// AddOption customizes a queued item.
type AddOption func(*Item)

// WithMaxAttempts overrides the queue's default attempt ceiling.
func WithMaxAttempts(n int) AddOption {
	return func(it *Item) {
		if n > 0 {
			it.MaxAttempts = n
		}
	}
}

// WithOnSuccess registers a hook invoked after the item's operation
// succeeds and before its ticket resolves. The dispatcher uses this to
// delete the matching pending request.
func WithOnSuccess(fn func(ctx context.Context)) AddOption {
	return func(it *Item) { it.onSuccess = fn }
}
