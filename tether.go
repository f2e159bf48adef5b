package tether

import (
	"context"
	"net/http"

	"github.com/xraph/tether/dispatch"
	"github.com/xraph/tether/netmon"
	"github.com/xraph/tether/pending"
	"github.com/xraph/tether/queue"
	"github.com/xraph/tether/status"
	"github.com/xraph/tether/store"
)

// wireServices initializes the internal services after options have been applied.
func (c *Client) wireServices() {
	prober := netmon.NewProber(c.config.ProbeURL, c.config.ProbeTimeout, c.logger)
	c.monitor = netmon.NewMonitor(prober, c.config.ProbeInterval, c.logger)
	c.monitor.SetMetrics(c.metrics)

	c.pendingSvc = pending.NewService(c.store, c.logger)

	c.queue = queue.New(queue.Config{
		Backoff: queue.Backoff{
			Base:   c.config.BaseDelay,
			Max:    c.config.MaxDelay,
			Jitter: c.config.Jitter,
		},
		PollInterval: c.config.PollInterval,
		Concurrency:  c.config.Concurrency,
		MaxAttempts:  c.config.MaxAttempts,
		Link: func() netmon.LinkClass {
			return c.monitor.Last().Link
		},
		Metrics: c.metrics,
	}, c.logger)

	c.dispatcher = dispatch.NewDispatcher(c.pendingSvc, c.queue, c.monitor, dispatch.Config{
		RequestTimeout: c.config.RequestTimeout,
		Client:         c.httpClient,
		Metrics:        c.metrics,
		Tracer:         c.tracer,
	}, c.logger)

	c.reporter = status.NewReporter(c.queue, c.pendingSvc, c.monitor, c.config.StatusInterval, c.logger)
}

// Start begins background work: the retry queue's drain loop, the
// connectivity subscription that drains the queue when the API becomes
// reachable, and a one-shot replay of requests left over from a previous
// run.
func (c *Client) Start(ctx context.Context) {
	c.queue.Start(ctx)

	c.unsubscribe = c.monitor.Subscribe(func(snap netmon.Snapshot) {
		if snap.Usable() {
			c.queue.Wake()
		}
	})

	go c.dispatcher.Replay(ctx)
}

// Stop gracefully shuts down background work, waiting up to
// ShutdownTimeout for an in-flight drain pass. Queued retries that have
// not completed stay in the pending store and replay on the next Start.
func (c *Client) Stop(ctx context.Context) {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if c.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ShutdownTimeout)
		defer cancel()
	}
	c.queue.Stop(ctx)
}

// Do sends a request through the resilience layer.
//
// Completed HTTP responses come back as-is, whatever their status code.
// Network-class failures are retried with link-aware backoff; mutating
// requests additionally persist to the store so they survive a restart.
// The call blocks until the request completes or its retries exhaust.
func (c *Client) Do(ctx context.Context, req *dispatch.Request) (*http.Response, error) {
	return c.dispatcher.Do(ctx, req)
}

// Replay re-attempts every stored pending request once. Start already runs
// this; expose it for manual triggers (ops API, tests).
func (c *Client) Replay(ctx context.Context) {
	c.dispatcher.Replay(ctx)
}

// Clear drops every queued retry and every stored pending request. Waiting
// callers receive ErrQueueCleared. This is the logout / account-switch path:
// a new session must not replay the old session's writes.
func (c *Client) Clear(ctx context.Context) error {
	c.queue.Clear()
	return c.pendingSvc.Clear(ctx)
}

// Status is the aggregate state surfaced to callers.
type Status = status.Status

// Status returns a point-in-time view of queue, store, and network state.
func (c *Client) Status(ctx context.Context) status.Status {
	return c.reporter.Snapshot(ctx)
}

// Watch registers fn for status changes and returns a cancel func.
func (c *Client) Watch(fn func(status.Status)) func() {
	return c.reporter.Watch(fn)
}

// Queue returns the retry queue.
func (c *Client) Queue() *queue.Queue {
	return c.queue
}

// Pending returns the pending-request service.
func (c *Client) Pending() *pending.Service {
	return c.pendingSvc
}

// Monitor returns the connectivity monitor.
func (c *Client) Monitor() *netmon.Monitor {
	return c.monitor
}

// Dispatcher returns the request dispatcher.
func (c *Client) Dispatcher() *dispatch.Dispatcher {
	return c.dispatcher
}

// Reporter returns the status reporter.
func (c *Client) Reporter() *status.Reporter {
	return c.reporter
}

// Store returns the underlying store.
func (c *Client) Store() store.Store {
	return c.store
}
