package tether

import "time"

// Config holds the configuration for a Tether client.
type Config struct {
	// MaxAttempts is the default ceiling of attempts per queued operation.
	MaxAttempts int

	// BaseDelay is the starting backoff interval between retry attempts.
	BaseDelay time.Duration

	// MaxDelay caps the backoff interval regardless of attempt count or
	// link quality.
	MaxDelay time.Duration

	// Jitter is the upper bound of the random slack added to every backoff
	// delay, spreading out retries of items that recover simultaneously.
	Jitter time.Duration

	// PollInterval is how often the retry queue re-evaluates queued items
	// while it is non-empty.
	PollInterval time.Duration

	// Concurrency is the number of queued items attempted in parallel
	// during a single drain pass.
	Concurrency int

	// RequestTimeout is the HTTP timeout per dispatch attempt. A timeout is
	// classified as a network failure, not an application error.
	RequestTimeout time.Duration

	// ProbeURL is the health endpoint used to verify the API is reachable.
	// Any completed HTTP response counts as reachable, whatever the status.
	ProbeURL string

	// ProbeInterval is how often the connectivity monitor re-probes the API
	// while it has subscribers.
	ProbeInterval time.Duration

	// ProbeTimeout is the HTTP timeout for a single reachability probe.
	ProbeTimeout time.Duration

	// StatusInterval is how often the status reporter re-projects queue and
	// store state for its watchers.
	StatusInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for in-flight attempts
	// on shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     5,
		BaseDelay:       1 * time.Second,
		MaxDelay:        30 * time.Second,
		Jitter:          1 * time.Second,
		PollInterval:    1 * time.Second,
		Concurrency:     4,
		RequestTimeout:  30 * time.Second,
		ProbeInterval:   30 * time.Second,
		ProbeTimeout:    5 * time.Second,
		StatusInterval:  1 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}
