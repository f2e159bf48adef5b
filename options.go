package tether

import (
	"log/slog"
	"net/http"
	"time"

	gu "github.com/xraph/go-utils/metrics"

	"github.com/xraph/tether/dispatch"
	"github.com/xraph/tether/netmon"
	"github.com/xraph/tether/observability"
	"github.com/xraph/tether/pending"
	"github.com/xraph/tether/queue"
	"github.com/xraph/tether/status"
	"github.com/xraph/tether/store"
)

// Client is the root offline-resilient dispatch client.
type Client struct {
	config     Config
	store      store.Store
	httpClient *http.Client
	monitor    *netmon.Monitor
	pendingSvc *pending.Service
	queue      *queue.Queue
	dispatcher *dispatch.Dispatcher
	reporter   *status.Reporter
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	logger     *slog.Logger

	unsubscribe func()
}

// Option configures a Client instance.
type Option func(*Client) error

// New creates a new Client with the given options.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.store == nil {
		return nil, ErrNoStore
	}
	c.wireServices()
	return c, nil
}

// WithStore sets the persistence backend for pending requests.
func WithStore(s store.Store) Option {
	return func(c *Client) error {
		c.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the Client instance.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithConfig replaces the full configuration.
func WithConfig(cfg Config) Option {
	return func(c *Client) error {
		c.config = cfg
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for dispatch attempts. When set,
// its timeout takes precedence over RequestTimeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = client
		return nil
	}
}

// WithProbeURL sets the health endpoint the connectivity monitor probes.
func WithProbeURL(url string) Option {
	return func(c *Client) error {
		c.config.ProbeURL = url
		return nil
	}
}

// WithProbeInterval sets how often the connectivity monitor re-probes.
func WithProbeInterval(d time.Duration) Option {
	return func(c *Client) error {
		c.config.ProbeInterval = d
		return nil
	}
}

// WithMaxAttempts sets the attempt ceiling per queued retry.
func WithMaxAttempts(n int) Option {
	return func(c *Client) error {
		c.config.MaxAttempts = n
		return nil
	}
}

// WithConcurrency sets how many queued retries one drain pass runs in parallel.
func WithConcurrency(n int) Option {
	return func(c *Client) error {
		c.config.Concurrency = n
		return nil
	}
}

// WithPollInterval sets how often the retry queue re-evaluates queued items.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) error {
		c.config.PollInterval = d
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout per dispatch attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.config.RequestTimeout = d
		return nil
	}
}

// WithShutdownTimeout sets the maximum time to wait for in-flight attempts on shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.config.ShutdownTimeout = d
		return nil
	}
}

// WithMetricsFactory enables metric instruments built from the given factory.
func WithMetricsFactory(factory gu.MetricFactory) Option {
	return func(c *Client) error {
		c.metrics = observability.NewMetrics(factory)
		return nil
	}
}

// WithTracing enables OpenTelemetry spans around dispatch attempts.
func WithTracing() Option {
	return func(c *Client) error {
		c.tracer = observability.NewTracer()
		return nil
	}
}
