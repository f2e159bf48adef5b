// Package dispatch is the entry point application code sends requests
// through. It attempts each request once, classifies failures, persists
// mutating calls that failed for a network reason, and schedules retries.
package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/tether/netmon"
	"github.com/xraph/tether/observability"
	"github.com/xraph/tether/pending"
	"github.com/xraph/tether/queue"
)

// Config holds dispatcher configuration.
type Config struct {
	// RequestTimeout is the HTTP timeout per attempt. A timeout classifies
	// as a network error.
	RequestTimeout time.Duration

	// Client overrides the HTTP client (tests). When set, RequestTimeout
	// is ignored in favor of the client's own timeout.
	Client *http.Client

	// Metrics is optional.
	Metrics *observability.Metrics

	// Tracer is optional.
	Tracer *observability.Tracer
}

// Dispatcher wraps HTTP calls with failure classification, durable
// persistence of failed mutating calls, and retry scheduling.
type Dispatcher struct {
	client  *http.Client
	pending *pending.Service
	queue   *queue.Queue
	monitor *netmon.Monitor
	config  Config
	logger  *slog.Logger

	mu       sync.Mutex
	inflight map[string]*exchange
}

// exchange carries a retried request's eventual response to every caller
// coalesced onto the same key. Coalesced callers share one *http.Response;
// only one of them can consume its body.
type exchange struct {
	ticket *queue.Ticket

	mu   sync.Mutex
	resp *http.Response
}

func (ex *exchange) set(resp *http.Response) {
	ex.mu.Lock()
	ex.resp = resp
	ex.mu.Unlock()
}

func (ex *exchange) response() *http.Response {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.resp
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(pendingSvc *pending.Service, q *queue.Queue, monitor *netmon.Monitor, cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Dispatcher{
		client:   client,
		pending:  pendingSvc,
		queue:    q,
		monitor:  monitor,
		config:   cfg,
		logger:   logger,
		inflight: make(map[string]*exchange),
	}
}

// Do sends the request, retrying network-class failures until they succeed
// or exhaust their attempts.
//
// Any completed HTTP response, 4xx and 5xx included, returns immediately;
// application-level errors are not this layer's business. On a network-class
// failure the request is persisted (if mutating) and queued for retry, and
// Do blocks until the retry succeeds (returning its response) or exhausts
// (returning a *queue.ExhaustedError). Callers that cannot wait should run
// Do on its own goroutine and treat mutating calls as eventually consistent.
//
// Cancelling ctx abandons the wait but leaves the retry queued: durability
// of the mutation is the point.
func (d *Dispatcher) Do(ctx context.Context, req *Request) (*http.Response, error) {
	resp, err := d.attempt(ctx, req, 1)
	if err == nil {
		return resp, nil
	}
	if !d.networkFailure(err) {
		return nil, err
	}

	key := req.Key()
	d.logger.InfoContext(ctx, "network failure, deferring request",
		"method", req.Method, "url", req.URL, "error", err)

	if pending.Mutating(req.Method) {
		if _, perr := d.pending.Add(ctx, req.pendingRecord(key)); perr != nil {
			// Non-fatal: the request will not survive a restart, but it
			// is still retried in memory for this session.
			d.logger.WarnContext(ctx, "pending store unavailable, retrying in memory only",
				"method", req.Method, "url", req.URL, "error", perr)
		} else if m := d.config.Metrics; m != nil {
			m.PendingRequests.Inc()
		}
	}

	ex := d.enqueueRetry(req, key)
	if werr := ex.ticket.Wait(ctx); werr != nil {
		return nil, werr
	}
	return ex.response(), nil
}

// networkFailure classifies a transport error, folding in the monitor's
// offline hint: when the host says it is offline, any failure is a
// connectivity failure.
func (d *Dispatcher) networkFailure(err error) bool {
	if d.monitor != nil && !d.monitor.Last().Online {
		return true
	}
	return IsNetworkError(err)
}

// enqueueRetry schedules the request for retry under its key, creating the
// shared exchange for coalesced callers. The onSuccess hook deletes the
// matching pending record.
func (d *Dispatcher) enqueueRetry(req *Request, key string) *exchange {
	d.mu.Lock()
	if ex, ok := d.inflight[key]; ok {
		d.mu.Unlock()
		return ex
	}
	ex := &exchange{}
	d.inflight[key] = ex
	d.mu.Unlock()

	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		resp, err := d.attempt(ctx, req, attempts+1)
		if err != nil {
			return err
		}
		ex.set(resp)
		return nil
	}

	ex.ticket = d.queue.Add(key, op, queue.WithOnSuccess(func(ctx context.Context) {
		removed, err := d.pending.RemoveMatch(ctx, key, req.Method, req.URL)
		if err != nil {
			d.logger.ErrorContext(ctx, "clear pending after retry failed", "key", key, "error", err)
			return
		}
		if removed {
			if m := d.config.Metrics; m != nil {
				m.PendingRequests.Dec()
			}
		}
	}))

	go func() {
		<-ex.ticket.Done()
		d.mu.Lock()
		delete(d.inflight, key)
		d.mu.Unlock()
	}()

	return ex
}

// attempt performs a single HTTP attempt.
func (d *Dispatcher) attempt(ctx context.Context, req *Request, attempt int) (*http.Response, error) {
	var span trace.Span
	if d.config.Tracer != nil {
		ctx, span = d.config.Tracer.StartDispatchSpan(ctx, req.Method, req.URL, attempt)
	}

	httpReq, err := req.httpRequest(ctx)
	if err != nil {
		if span != nil {
			d.config.Tracer.EndDispatchSpan(span, 0, 0, err.Error())
		}
		return nil, err
	}

	start := time.Now()
	resp, err := d.client.Do(httpReq)
	latency := time.Since(start)

	if err != nil {
		if m := d.config.Metrics; m != nil {
			m.RecordDispatch("transport_error", latency.Seconds())
		}
		if span != nil {
			d.config.Tracer.EndDispatchSpan(span, 0, int(latency.Milliseconds()), err.Error())
		}
		return nil, err
	}

	if m := d.config.Metrics; m != nil {
		m.RecordDispatch("completed", latency.Seconds())
	}
	if span != nil {
		d.config.Tracer.EndDispatchSpan(span, resp.StatusCode, int(latency.Milliseconds()), "")
	}
	return resp, nil
}

// Replay re-attempts every stored pending request once, oldest first,
// deleting each record whose replay completes. Failures stay in the store
// for the next replay or retry.
func (d *Dispatcher) Replay(ctx context.Context) {
	requests, err := d.pending.List(ctx)
	if err != nil {
		d.logger.ErrorContext(ctx, "list pending for replay failed", "error", err)
		return
	}

	for _, p := range requests {
		req := fromPending(p)
		resp, err := d.attempt(ctx, req, 1)
		if err != nil {
			d.logger.WarnContext(ctx, "replay attempt failed",
				"request_id", p.ID, "method", p.Method, "url", p.URL, "error", err)
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // replay result is unused
		resp.Body.Close()

		if err := d.pending.Remove(ctx, p.ID); err != nil {
			d.logger.ErrorContext(ctx, "remove replayed request failed", "request_id", p.ID, "error", err)
			continue
		}
		if m := d.config.Metrics; m != nil {
			m.PendingRequests.Dec()
		}
		d.logger.DebugContext(ctx, "replayed pending request",
			"request_id", p.ID, "method", p.Method, "url", p.URL, "status", resp.StatusCode)
	}
}

// Exhausted reports whether an error from Do is a retry-exhaustion
// terminal failure rather than an application error.
func Exhausted(err error) bool {
	return errors.Is(err, queue.ErrExhausted)
}
