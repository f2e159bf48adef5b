// Package tether provides an offline-resilient HTTP dispatch layer for Go.
//
// Tether is a library, not a service. Import it into your application to
// send HTTP requests that survive flaky connectivity: failed mutating calls
// are persisted, retried with link-quality-aware exponential backoff, and
// replayed after a process restart.
//
// Key features:
//   - Network-failure classification: application errors pass through,
//     connectivity failures are retried
//   - Durable pending-request store with multiple backends (SQLite,
//     Postgres, MongoDB, Redis, Memory)
//   - Retry queue with exponential backoff scaled by link quality and
//     coalescing of duplicate in-flight requests
//   - Connectivity monitor with reachability probes and host hints
//   - Aggregate status surface for user-facing banners and ops tooling
//
// Quick start:
//
//	c, err := tether.New(
//	    tether.WithStore(memoryStore),
//	    tether.WithProbeURL("https://api.example.com/health"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c.Start(ctx)
//	defer c.Stop(ctx)
//
//	resp, err := c.Do(ctx, dispatch.NewRequest(http.MethodPost,
//	    "https://api.example.com/posts", body))
package tether
