package netmon

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Prober verifies that the remote API is actually reachable, not just that
// a network interface is up.
type Prober struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewProber creates a prober against the given health URL.
func NewProber(url string, timeout time.Duration, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Check issues a lightweight no-body request to the health endpoint.
//
// Any completed HTTP response counts as reachable, even a 5xx: the server
// answered, so the network path works. Only transport-level failures
// (timeout, DNS failure, connection refused) count as unreachable.
// Check never returns an error; failure resolves to false.
func (p *Prober) Check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		p.logger.ErrorContext(ctx, "probe request invalid", "url", p.url, "error", err)
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.DebugContext(ctx, "probe failed", "url", p.url, "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	return true
}
