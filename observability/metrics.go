package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for Tether, backed by any go-utils
// MetricFactory (e.g. a forge-managed metrics system or a standalone
// collector).
type Metrics struct {
	DispatchesTotal gu.Counter
	RetriesTotal    gu.Counter
	AttemptLatency  gu.Histogram
	QueueSize       gu.Gauge
	PendingRequests gu.Gauge
	ProbesTotal     gu.Counter
}

// NewMetrics creates Tether metric instruments using the supplied factory.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		DispatchesTotal: factory.Counter("tether_dispatches_total"),
		RetriesTotal:    factory.Counter("tether_retries_total"),
		AttemptLatency:  factory.Histogram("tether_attempt_latency_seconds"),
		QueueSize:       factory.Gauge("tether_retry_queue_size"),
		PendingRequests: factory.Gauge("tether_pending_requests"),
		ProbesTotal:     factory.Counter("tether_probes_total"),
	}
}

// RecordDispatch records a dispatch attempt with the given outcome and latency.
func (m *Metrics) RecordDispatch(status string, latencySeconds float64) {
	m.DispatchesTotal.WithLabels(map[string]string{"status": status}).Inc()
	m.AttemptLatency.Observe(latencySeconds)
}

// RecordRetry records a retry attempt outcome.
func (m *Metrics) RecordRetry(status string) {
	m.RetriesTotal.WithLabels(map[string]string{"status": status}).Inc()
}

// RecordProbe records a reachability probe outcome.
func (m *Metrics) RecordProbe(result string) {
	m.ProbesTotal.WithLabels(map[string]string{"result": result}).Inc()
}
