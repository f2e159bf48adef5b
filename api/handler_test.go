package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xraph/tether/api"
	"github.com/xraph/tether/dispatch"
	"github.com/xraph/tether/netmon"
	"github.com/xraph/tether/pending"
	"github.com/xraph/tether/queue"
	"github.com/xraph/tether/status"
	"github.com/xraph/tether/store/memory"
)

type fixture struct {
	handler *api.Handler
	pending *pending.Service
	queue   *queue.Queue
	monitor *netmon.Monitor
}

func setup(t *testing.T) *fixture {
	t.Helper()

	svc := pending.NewService(memory.New(), nil)
	q := queue.New(queue.Config{PollInterval: time.Hour}, nil)
	prober := netmon.NewProber("http://127.0.0.1:1/health", time.Second, nil)
	m := netmon.NewMonitor(prober, time.Hour, nil)
	d := dispatch.NewDispatcher(svc, q, m, dispatch.Config{RequestTimeout: 2 * time.Second}, nil)
	r := status.NewReporter(q, svc, m, time.Hour, nil)
	h := api.NewHandler(svc, q, m, d, r, nil)
	return &fixture{handler: h, pending: svc, queue: q, monitor: m}
}

func doRequest(t *testing.T, h http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestGetStatus(t *testing.T) {
	f := setup(t)

	rec := doRequest(t, f.handler, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var st status.Status
	decodeBody(t, rec, &st)
	if st.Text == "" {
		t.Error("text is empty")
	}
	if st.QueueSize != 0 {
		t.Errorf("queue_size = %d, want 0", st.QueueSize)
	}
}

func TestGetNetwork(t *testing.T) {
	f := setup(t)

	rec := doRequest(t, f.handler, http.MethodGet, "/network", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if online, ok := body["online"].(bool); !ok || !online {
		t.Errorf("online = %v, want true", body["online"])
	}
	if body["link"] != "unknown" {
		t.Errorf("link = %v, want %q", body["link"], "unknown")
	}
}

func TestSetNetwork(t *testing.T) {
	f := setup(t)

	rec := doRequest(t, f.handler, http.MethodPut, "/network", `{"online": false, "link": "2g"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	last := f.monitor.Last()
	if last.Online {
		t.Error("Online = true after hint")
	}
	if last.Link != netmon.Link2G {
		t.Errorf("Link = %v, want 2g", last.Link)
	}
}

func TestSetNetworkRejectsBadBody(t *testing.T) {
	f := setup(t)

	rec := doRequest(t, f.handler, http.MethodPut, "/network", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListPending(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if _, err := f.pending.Add(ctx, &pending.Request{
		Method: http.MethodPost,
		URL:    "https://api.example.com/posts",
		Body:   []byte(`{"text":"hi"}`),
	}); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, f.handler, http.MethodGet, "/pending", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Pending []struct {
			ID        string `json:"id"`
			Method    string `json:"method"`
			URL       string `json:"url"`
			BodyBytes int    `json:"body_bytes"`
		} `json:"pending"`
		Count int `json:"count"`
	}
	decodeBody(t, rec, &body)
	if body.Count != 1 || len(body.Pending) != 1 {
		t.Fatalf("count = %d, len = %d, want 1", body.Count, len(body.Pending))
	}
	got := body.Pending[0]
	if !strings.HasPrefix(got.ID, "preq_") {
		t.Errorf("id = %q, want preq_ prefix", got.ID)
	}
	if got.Method != http.MethodPost || got.URL != "https://api.example.com/posts" {
		t.Errorf("got %s %s", got.Method, got.URL)
	}
	if got.BodyBytes != len(`{"text":"hi"}`) {
		t.Errorf("body_bytes = %d", got.BodyBytes)
	}
}

func TestDeletePending(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	reqID, err := f.pending.Add(ctx, &pending.Request{
		Method: http.MethodPost,
		URL:    "https://api.example.com/posts",
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, f.handler, http.MethodDelete, "/pending/"+reqID.String(), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if n, _ := f.pending.Count(ctx); n != 0 {
		t.Errorf("count = %d after delete, want 0", n)
	}
}

func TestDeletePendingRejectsBadID(t *testing.T) {
	f := setup(t)

	rec := doRequest(t, f.handler, http.MethodDelete, "/pending/not-an-id", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestClearPending(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if _, err := f.pending.Add(ctx, &pending.Request{
		Method: http.MethodPost,
		URL:    "https://api.example.com/posts",
	}); err != nil {
		t.Fatal(err)
	}
	f.queue.Add("POST https://api.example.com/posts", func(context.Context) error { return nil })

	rec := doRequest(t, f.handler, http.MethodDelete, "/pending", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if n, _ := f.pending.Count(ctx); n != 0 {
		t.Errorf("pending count = %d, want 0", n)
	}
	if f.queue.Size() != 0 {
		t.Errorf("queue size = %d, want 0", f.queue.Size())
	}
}

func TestReplay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	f := setup(t)
	ctx := context.Background()

	if _, err := f.pending.Add(ctx, &pending.Request{
		Method: http.MethodPost,
		URL:    srv.URL + "/posts",
		Body:   []byte(`{"text":"hi"}`),
	}); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, f.handler, http.MethodPost, "/replay", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Replayed  int64 `json:"replayed"`
		Remaining int64 `json:"remaining"`
	}
	decodeBody(t, rec, &body)
	if body.Replayed != 1 || body.Remaining != 0 {
		t.Errorf("replayed = %d, remaining = %d, want 1 and 0", body.Replayed, body.Remaining)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	f := setup(t)

	rec := doRequest(t, f.handler, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
