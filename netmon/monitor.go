// Package netmon tracks connectivity state: host online hints, link-quality
// class, and periodic verification that the remote API answers at all.
//
// The monitor is a single debounced source of truth. Subscribers share one
// probe loop; the loop runs only while at least one subscriber is registered,
// and subscribers are notified only when the snapshot actually changes.
package netmon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/tether/observability"
)

// Monitor produces connectivity snapshots and notifies subscribers on change.
type Monitor struct {
	prober   *Prober
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu          sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSubID   int
	last        Snapshot
	hintOnline  bool
	hintLink    LinkClass
	checking    bool
	recheck     bool
	loopCancel  context.CancelFunc
	loopDone    chan struct{}
}

// NewMonitor creates a monitor that probes the given health URL.
func NewMonitor(prober *Prober, interval time.Duration, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		prober:      prober,
		interval:    interval,
		logger:      logger,
		subscribers: make(map[int]func(Snapshot)),
		// With no host hint we assume the interface is up and let the
		// probe decide; a standalone process has no navigator.onLine.
		hintOnline: true,
		hintLink:   LinkUnknown,
		last:       Snapshot{Online: true, APIReachable: false, Link: LinkUnknown},
	}
}

// SetMetrics attaches optional metric instruments. Call before Subscribe.
func (m *Monitor) SetMetrics(metrics *observability.Metrics) {
	m.metrics = metrics
}

// Last returns the most recent snapshot.
func (m *Monitor) Last() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Subscribe registers a callback invoked with a Snapshot whenever the
// online flag, API reachability, or link class changes. The returned
// function cancels the subscription.
//
// The first subscriber starts the shared probe loop and triggers an
// immediate probe, so a new subscriber sees a snapshot without waiting
// for the next transition. The last unsubscribe tears the loop down.
func (m *Monitor) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	first := len(m.subscribers) == 1
	if first {
		ctx, cancel := context.WithCancel(context.Background())
		m.loopCancel = cancel
		m.loopDone = make(chan struct{})
		go m.loop(ctx, m.loopDone)
	}
	m.mu.Unlock()

	m.Refresh()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			var cancel context.CancelFunc
			if len(m.subscribers) == 0 {
				cancel = m.loopCancel
				m.loopCancel = nil
			}
			m.mu.Unlock()
			if cancel != nil {
				cancel()
			}
		})
	}
}

// SetOnline feeds a host connectivity hint (OS network watcher, mobile
// binding). Going offline short-circuits the next probe: an interface
// that is down cannot reach the API.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.hintOnline != online
	m.hintOnline = online
	m.mu.Unlock()
	if changed {
		m.Refresh()
	}
}

// SetLink feeds a link-quality hint.
func (m *Monitor) SetLink(link LinkClass) {
	m.mu.Lock()
	changed := m.hintLink != link
	m.hintLink = link
	m.mu.Unlock()
	if changed {
		m.Refresh()
	}
}

// Refresh triggers an asynchronous reachability check. If a check is
// already in flight the trigger coalesces into it: the current check
// finishes first, then one follow-up check runs.
func (m *Monitor) Refresh() {
	m.mu.Lock()
	if m.checking {
		m.recheck = true
		m.mu.Unlock()
		return
	}
	m.checking = true
	online := m.hintOnline
	link := m.hintLink
	m.mu.Unlock()

	go m.check(online, link)
}

// loop re-probes on a fixed interval until the context is canceled.
func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Refresh()
		}
	}
}

// check runs one reachability probe and publishes the resulting snapshot.
func (m *Monitor) check(online bool, link LinkClass) {
	reachable := false
	if online {
		reachable = m.prober.Check(context.Background())
		if m.metrics != nil {
			result := "unreachable"
			if reachable {
				result = "reachable"
			}
			m.metrics.RecordProbe(result)
		}
	}

	snap := Snapshot{
		Online:       online,
		APIReachable: reachable,
		Link:         link,
		Timestamp:    time.Now().UTC(),
	}

	m.mu.Lock()
	m.checking = false
	again := m.recheck
	m.recheck = false

	changed := !snap.Equal(m.last)
	m.last = snap

	var fns []func(Snapshot)
	if changed {
		fns = make([]func(Snapshot), 0, len(m.subscribers))
		for _, fn := range m.subscribers {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	if changed {
		m.logger.Debug("connectivity changed",
			"online", snap.Online, "api_reachable", snap.APIReachable, "link", snap.Link.String())
	}
	for _, fn := range fns {
		fn(snap)
	}

	if again {
		m.Refresh()
	}
}
