// Package queue schedules deferred operations for retry, pacing attempts
// with link-quality-aware exponential backoff and draining automatically
// when connectivity returns.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/tether/netmon"
	"github.com/xraph/tether/observability"
)

// Config holds queue configuration.
type Config struct {
	// Backoff paces retry attempts.
	Backoff Backoff

	// PollInterval is how often queued items are re-evaluated while the
	// queue is non-empty, so eligible items are not stuck waiting for an
	// external trigger.
	PollInterval time.Duration

	// Concurrency bounds how many eligible items one drain pass attempts
	// in parallel.
	Concurrency int

	// MaxAttempts is the default attempt ceiling per item.
	MaxAttempts int

	// Link reports the current link class for backoff scaling. Nil means
	// LinkUnknown.
	Link func() netmon.LinkClass

	// Metrics is optional.
	Metrics *observability.Metrics
}

// Queue is an in-memory retry scheduler. Queue state does not survive a
// process restart; durability for mutating calls is the pending store's job.
type Queue struct {
	config Config
	logger *slog.Logger

	mu       sync.Mutex
	items    map[string]*Item
	order    []string
	draining bool
	started  bool
	stopped  bool

	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a retry queue.
func New(cfg Config, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Queue{
		config: cfg,
		logger: logger,
		items:  make(map[string]*Item),
		wake:   make(chan struct{}, 1),
	}
}

// Start begins the drain loop.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started || q.stopped {
		q.mu.Unlock()
		return
	}
	q.started = true
	ctx, q.cancel = context.WithCancel(ctx)
	q.mu.Unlock()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.loop(ctx)
	}()
}

// Stop cancels the drain loop and waits for the in-flight pass to finish,
// or for ctx to expire, whichever comes first. Queued items stay queued but
// are no longer attempted.
func (q *Queue) Stop(ctx context.Context) {
	q.mu.Lock()
	q.stopped = true
	cancel := q.cancel
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		q.logger.Warn("queue stop timed out with a drain pass still running")
	}
}

// Wake nudges the drain loop outside its poll interval. Connectivity
// restoration is wired here so the queue drains as soon as the API is
// reachable again.
func (q *Queue) Wake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Add inserts a deferred operation under the given key and returns the
// ticket for its eventual outcome. If the key is already queued the call
// coalesces: the existing item keeps its attempt state and the existing
// ticket is returned, so duplicate retries of the same logical request
// always merge.
func (q *Queue) Add(key string, op Operation, opts ...AddOption) *Ticket {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return resolvedTicket(ErrStopped)
	}
	if existing, ok := q.items[key]; ok {
		q.mu.Unlock()
		return existing.ticket
	}

	it := &Item{
		Key:         key,
		MaxAttempts: q.config.MaxAttempts,
		op:          op,
		ticket:      newTicket(),
	}
	for _, opt := range opts {
		opt(it)
	}
	q.items[key] = it
	q.order = append(q.order, key)
	q.mu.Unlock()

	if m := q.config.Metrics; m != nil {
		m.QueueSize.Inc()
	}
	q.logger.Debug("retry queued", "key", key, "max_attempts", it.MaxAttempts)

	q.Wake()
	return it.ticket
}

// Size returns the number of queued items.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Processing reports whether a drain pass is currently running.
func (q *Queue) Processing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// Clear drops every queued item and resolves their tickets with ErrCleared.
// Items are never silently lost: each waiter hears about it exactly once.
func (q *Queue) Clear() {
	q.mu.Lock()
	dropped := make([]*Item, 0, len(q.items))
	for _, it := range q.items {
		dropped = append(dropped, it)
	}
	q.items = make(map[string]*Item)
	q.order = nil
	q.mu.Unlock()

	for _, it := range dropped {
		it.ticket.resolve(ErrCleared)
		if m := q.config.Metrics; m != nil {
			m.QueueSize.Dec()
		}
	}
	if len(dropped) > 0 {
		q.logger.Debug("retry queue cleared", "dropped", len(dropped))
	}
}

// loop runs drain passes on wake signals and on a poll interval while the
// queue is non-empty.
func (q *Queue) loop(ctx context.Context) {
	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
			q.drainOnce(ctx)
		case <-ticker.C:
			if q.Size() > 0 {
				q.drainOnce(ctx)
			}
		}
	}
}

// drainOnce runs a single drain pass. Only one pass runs at a time;
// concurrent triggers coalesce into the pass already in progress.
func (q *Queue) drainOnce(ctx context.Context) {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true

	link := netmon.LinkUnknown
	if q.config.Link != nil {
		link = q.config.Link()
	}

	now := time.Now().UTC()
	eligible := make([]*Item, 0, len(q.order))
	for _, key := range q.order {
		it, ok := q.items[key]
		if !ok {
			continue
		}
		if !it.LastAttemptAt.IsZero() && now.Sub(it.LastAttemptAt) < q.config.Backoff.Delay(it.Attempts, link) {
			continue
		}
		eligible = append(eligible, it)
	}
	q.mu.Unlock()

	sem := make(chan struct{}, q.config.Concurrency)
	var wg sync.WaitGroup
	for _, it := range eligible {
		select {
		case <-ctx.Done():
			wg.Wait()
			q.finishPass()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(it *Item) {
			defer wg.Done()
			defer func() { <-sem }()
			q.attempt(ctx, it)
		}(it)
	}
	wg.Wait()
	q.finishPass()
}

func (q *Queue) finishPass() {
	q.mu.Lock()
	q.draining = false
	q.mu.Unlock()
}

// attempt runs one attempt of a single item. Within one item attempts are
// strictly sequential: an item is only ever attempted from the single
// running drain pass.
func (q *Queue) attempt(ctx context.Context, it *Item) {
	err := it.op(ctx)

	if err == nil {
		if !q.removeItem(it.Key) {
			// Cleared mid-attempt; its ticket already resolved.
			return
		}
		if it.onSuccess != nil {
			it.onSuccess(ctx)
		}
		it.ticket.resolve(nil)
		if m := q.config.Metrics; m != nil {
			m.QueueSize.Dec()
			m.RecordRetry("succeeded")
		}
		q.logger.Debug("retry succeeded", "key", it.Key, "attempts", it.Attempts+1)
		return
	}

	q.mu.Lock()
	it.Attempts++
	it.LastAttemptAt = time.Now().UTC()
	it.lastErr = err
	exhausted := it.Attempts >= it.MaxAttempts
	q.mu.Unlock()

	if exhausted {
		if !q.removeItem(it.Key) {
			return
		}
		it.ticket.resolve(&ExhaustedError{Key: it.Key, Attempts: it.Attempts, Err: err})
		if m := q.config.Metrics; m != nil {
			m.QueueSize.Dec()
			m.RecordRetry("exhausted")
		}
		q.logger.Warn("retries exhausted", "key", it.Key, "attempts", it.Attempts, "error", err)
		return
	}

	if m := q.config.Metrics; m != nil {
		m.RecordRetry("failed")
	}
	q.logger.Debug("retry failed, still queued",
		"key", it.Key, "attempts", it.Attempts, "max_attempts", it.MaxAttempts, "error", err)
}

// removeItem drops an item from the map and the iteration order. It
// reports whether the item was still present.
func (q *Queue) removeItem(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.items[key]; !ok {
		return false
	}
	delete(q.items, key)
	for i, k := range q.order {
		if k == key {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}
