// Package api provides the operational HTTP API for inspecting and
// controlling a Tether client: live status, the durable pending queue,
// and manual replay.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/xraph/tether/dispatch"
	"github.com/xraph/tether/netmon"
	"github.com/xraph/tether/pending"
	"github.com/xraph/tether/queue"
	"github.com/xraph/tether/status"
)

// Handler is the root HTTP handler for the Tether operational API.
type Handler struct {
	pendingSvc *pending.Service
	queue      *queue.Queue
	monitor    *netmon.Monitor
	dispatcher *dispatch.Dispatcher
	reporter   *status.Reporter
	logger     *slog.Logger
	mux        *http.ServeMux
}

// NewHandler creates a new operational API handler.
func NewHandler(
	pendingSvc *pending.Service,
	q *queue.Queue,
	monitor *netmon.Monitor,
	d *dispatch.Dispatcher,
	reporter *status.Reporter,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		pendingSvc: pendingSvc,
		queue:      q,
		monitor:    monitor,
		dispatcher: d,
		reporter:   reporter,
		logger:     logger,
		mux:        http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /status", h.getStatus)
	h.mux.HandleFunc("GET /network", h.getNetwork)
	h.mux.HandleFunc("PUT /network", h.setNetwork)
	h.mux.HandleFunc("POST /network/refresh", h.refreshNetwork)

	h.mux.HandleFunc("GET /pending", h.listPending)
	h.mux.HandleFunc("DELETE /pending", h.clearPending)
	h.mux.HandleFunc("DELETE /pending/{id}", h.deletePending)

	h.mux.HandleFunc("POST /replay", h.replay)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.withMiddleware(h.mux).ServeHTTP(w, r)
}

func (h *Handler) withMiddleware(next http.Handler) http.Handler {
	return h.panicRecovery(h.logging(next))
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.Info("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
