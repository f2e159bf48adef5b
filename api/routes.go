package api

import (
	"net/http"
	"time"

	"github.com/xraph/tether/id"
	"github.com/xraph/tether/netmon"
	"github.com/xraph/tether/pending"
)

// getStatus returns the aggregate status snapshot.
func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reporter.Snapshot(r.Context()))
}

// getNetwork returns the last observed network snapshot.
func (h *Handler) getNetwork(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Last())
}

// refreshNetwork forces an immediate reachability probe. The probe runs
// asynchronously; the response carries the pre-probe snapshot.
func (h *Handler) refreshNetwork(w http.ResponseWriter, r *http.Request) {
	h.monitor.Refresh()
	writeJSON(w, http.StatusAccepted, h.monitor.Last())
}

// pendingView is the wire shape for a stored request. The body is elided;
// only its size is reported.
type pendingView struct {
	ID        id.ID       `json:"id"`
	Method    string      `json:"method"`
	URL       string      `json:"url"`
	Header    http.Header `json:"header,omitempty"`
	BodyBytes int         `json:"body_bytes"`
	CreatedAt time.Time   `json:"created_at"`
}

func toView(p *pending.Request) pendingView {
	return pendingView{
		ID:        p.ID,
		Method:    p.Method,
		URL:       p.URL,
		Header:    p.Header,
		BodyBytes: len(p.Body),
		CreatedAt: p.CreatedAt,
	}
}

// listPending returns every stored pending request, oldest first.
func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	requests, err := h.pendingSvc.List(r.Context())
	if err != nil {
		h.logger.Error("list pending failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list pending requests")
		return
	}
	views := make([]pendingView, 0, len(requests))
	for _, p := range requests {
		views = append(views, toView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pending": views,
		"count":   len(views),
	})
}

// deletePending removes one stored request by ID.
func (h *Handler) deletePending(w http.ResponseWriter, r *http.Request) {
	reqID, err := id.ParseRequestID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	if err := h.pendingSvc.Remove(r.Context(), reqID); err != nil {
		h.logger.Error("delete pending failed", "id", reqID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete pending request")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// clearPending drops every stored request and every queued retry.
func (h *Handler) clearPending(w http.ResponseWriter, r *http.Request) {
	if err := h.pendingSvc.Clear(r.Context()); err != nil {
		h.logger.Error("clear pending failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear pending requests")
		return
	}
	h.queue.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// setNetworkRequest is the body for PUT /network.
type setNetworkRequest struct {
	Online *bool  `json:"online,omitempty"`
	Link   string `json:"link,omitempty"`
}

// setNetwork feeds host connectivity hints into the monitor. Platform
// integrations that receive OS-level connectivity events push them here.
func (h *Handler) setNetwork(w http.ResponseWriter, r *http.Request) {
	var req setNetworkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Online != nil {
		h.monitor.SetOnline(*req.Online)
	}
	if req.Link != "" {
		h.monitor.SetLink(netmon.ParseLinkClass(req.Link))
	}
	writeJSON(w, http.StatusOK, h.monitor.Last())
}

// replay re-attempts every stored pending request once, synchronously.
func (h *Handler) replay(w http.ResponseWriter, r *http.Request) {
	before, err := h.pendingSvc.Count(r.Context())
	if err != nil {
		h.logger.Error("count pending failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count pending requests")
		return
	}
	h.dispatcher.Replay(r.Context())
	after, err := h.pendingSvc.Count(r.Context())
	if err != nil {
		after = -1
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"replayed":  before - max(after, 0),
		"remaining": after,
	})
}
