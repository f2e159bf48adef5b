// Package status aggregates queue, pending store, and network state into a
// single snapshot suitable for surfacing to users ("offline, 3 queued").
package status

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/tether/netmon"
	"github.com/xraph/tether/pending"
	"github.com/xraph/tether/queue"
)

// Status is a point-in-time view of the resilience layer.
type Status struct {
	QueueSize    int             `json:"queue_size"`
	Processing   bool            `json:"processing"`
	PendingCount int64           `json:"pending_count"`
	Network      netmon.Snapshot `json:"network"`
	Text         string          `json:"text"`
}

// equalCore compares everything a watcher cares about. Timestamps churn on
// every probe, so they are excluded.
func (s Status) equalCore(o Status) bool {
	return s.QueueSize == o.QueueSize &&
		s.Processing == o.Processing &&
		s.PendingCount == o.PendingCount &&
		s.Network.Equal(o.Network) &&
		s.Text == o.Text
}

// Reporter builds Status snapshots and pushes them to watchers.
type Reporter struct {
	queue    *queue.Queue
	pending  *pending.Service
	monitor  *netmon.Monitor
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	watchers map[int]func(Status)
	nextID   int
	last     Status
	hasLast  bool
	cancel   context.CancelFunc
}

// NewReporter creates a reporter polling at the given interval.
func NewReporter(q *queue.Queue, p *pending.Service, m *netmon.Monitor, interval time.Duration, logger *slog.Logger) *Reporter {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		queue:    q,
		pending:  p,
		monitor:  m,
		interval: interval,
		logger:   logger,
		watchers: make(map[int]func(Status)),
	}
}

// Snapshot assembles the current status. A pending-store failure degrades
// to a count of -1 rather than failing the whole snapshot.
func (r *Reporter) Snapshot(ctx context.Context) Status {
	st := Status{
		QueueSize:  r.queue.Size(),
		Processing: r.queue.Processing(),
		Network:    r.monitor.Last(),
	}
	count, err := r.pending.Count(ctx)
	if err != nil {
		r.logger.DebugContext(ctx, "pending count unavailable", "error", err)
		count = -1
	}
	st.PendingCount = count
	st.Text = render(st)
	return st
}

// Watch registers fn for status changes and returns a cancel func. The
// first watcher starts the poll loop; removing the last one stops it.
// fn is called immediately with the current status.
func (r *Reporter) Watch(fn func(Status)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.watchers[id] = fn
	if len(r.watchers) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		r.cancel = cancel
		go r.loop(ctx)
	}
	r.mu.Unlock()

	fn(r.Snapshot(context.Background()))

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.watchers, id)
			if len(r.watchers) == 0 && r.cancel != nil {
				r.cancel()
				r.cancel = nil
				r.hasLast = false
			}
			r.mu.Unlock()
		})
	}
}

func (r *Reporter) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.publish(r.Snapshot(ctx))
		}
	}
}

func (r *Reporter) publish(st Status) {
	r.mu.Lock()
	if r.hasLast && r.last.equalCore(st) {
		r.mu.Unlock()
		return
	}
	r.last = st
	r.hasLast = true
	fns := make([]func(Status), 0, len(r.watchers))
	for _, fn := range r.watchers {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// render produces the human-readable summary line.
func render(st Status) string {
	queued := st.QueueSize
	switch {
	case !st.Network.Online && queued > 0:
		return fmt.Sprintf("offline, %d queued", queued)
	case !st.Network.Online:
		return "offline"
	case !st.Network.APIReachable:
		return "service unreachable"
	case st.Processing:
		return fmt.Sprintf("retrying %d", queued)
	case queued > 0:
		return fmt.Sprintf("%d queued", queued)
	case st.Network.Link == netmon.LinkSlow2G || st.Network.Link == netmon.Link2G:
		return "online, slow connection"
	default:
		return "online"
	}
}
