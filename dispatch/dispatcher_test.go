package dispatch_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/xraph/tether/dispatch"
	"github.com/xraph/tether/pending"
	"github.com/xraph/tether/queue"
	"github.com/xraph/tether/store/memory"
)

// flakyTransport refuses the first n round trips with a connection error,
// then passes through to the real transport.
type flakyTransport struct {
	remaining atomic.Int32
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if f.remaining.Add(-1) >= 0 {
		return nil, &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
	}
	return http.DefaultTransport.RoundTrip(req)
}

// refusingTransport always fails with a connection error.
type refusingTransport struct {
	calls atomic.Int32
}

func (r *refusingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	r.calls.Add(1)
	return nil, &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
}

type fixture struct {
	dispatcher *dispatch.Dispatcher
	pending    *pending.Service
	queue      *queue.Queue
}

func setup(t *testing.T, client *http.Client, maxAttempts int) *fixture {
	t.Helper()

	svc := pending.NewService(memory.New(), nil)
	q := queue.New(queue.Config{
		PollInterval: 5 * time.Millisecond,
		Concurrency:  2,
		MaxAttempts:  maxAttempts,
	}, nil)
	q.Start(context.Background())
	t.Cleanup(func() { q.Stop(context.Background()) })

	d := dispatch.NewDispatcher(svc, q, nil, dispatch.Config{Client: client}, nil)
	return &fixture{dispatcher: d, pending: svc, queue: q}
}

func drain(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestDoReturnsCompletedResponsesAsIs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte("bad payload")) //nolint:errcheck
	}))
	defer srv.Close()

	f := setup(t, srv.Client(), 5)

	resp, err := f.dispatcher.Do(context.Background(), dispatch.NewRequest(http.MethodPost, srv.URL, []byte("{}")))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422 passed through", resp.StatusCode)
	}
	drain(t, resp)

	// Application errors are not connectivity failures: nothing queued,
	// nothing persisted.
	if f.queue.Size() != 0 {
		t.Errorf("queue size = %d, want 0", f.queue.Size())
	}
	count, _ := f.pending.Count(context.Background())
	if count != 0 {
		t.Errorf("pending count = %d, want 0", count)
	}
}

func TestDoRetriesNetworkFailureAndDeliversResponse(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("created")) //nolint:errcheck
	}))
	defer srv.Close()

	ft := &flakyTransport{}
	ft.remaining.Store(2)
	f := setup(t, &http.Client{Transport: ft}, 5)

	resp, err := f.dispatcher.Do(context.Background(), dispatch.NewRequest(http.MethodPost, srv.URL, []byte(`{"text":"hi"}`)))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want 201", resp.StatusCode)
	}
	if body := drain(t, resp); body != "created" {
		t.Errorf("body = %q", body)
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1", hits.Load())
	}

	// The retry succeeded, so the persisted record is gone again.
	count, _ := f.pending.Count(context.Background())
	if count != 0 {
		t.Errorf("pending count = %d after successful retry, want 0", count)
	}
	if f.queue.Size() != 0 {
		t.Errorf("queue size = %d after successful retry, want 0", f.queue.Size())
	}
}

func TestDoExhaustionKeepsPendingRecord(t *testing.T) {
	rt := &refusingTransport{}
	f := setup(t, &http.Client{Transport: rt}, 2)

	_, err := f.dispatcher.Do(context.Background(), dispatch.NewRequest(http.MethodPut, "http://api.invalid/profile", []byte("{}")))
	if !errors.Is(err, queue.ErrExhausted) {
		t.Fatalf("Do = %v, want ErrExhausted", err)
	}
	if !dispatch.Exhausted(err) {
		t.Error("Exhausted(err) = false for an exhaustion error")
	}

	// One immediate attempt plus two queued attempts.
	if got := rt.calls.Load(); got != 3 {
		t.Errorf("transport called %d times, want 3", got)
	}

	// The mutation stays durable for a later replay.
	count, _ := f.pending.Count(context.Background())
	if count != 1 {
		t.Errorf("pending count = %d after exhaustion, want 1", count)
	}
}

func TestDoNeverPersistsSafeMethods(t *testing.T) {
	rt := &refusingTransport{}
	f := setup(t, &http.Client{Transport: rt}, 1)

	_, err := f.dispatcher.Do(context.Background(), dispatch.NewRequest(http.MethodGet, "http://api.invalid/feed", nil))
	if !errors.Is(err, queue.ErrExhausted) {
		t.Fatalf("Do = %v, want ErrExhausted", err)
	}

	count, _ := f.pending.Count(context.Background())
	if count != 0 {
		t.Errorf("pending count = %d for a GET, want 0", count)
	}
}

func TestDoCoalescesConcurrentDuplicates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ft := &flakyTransport{}
	ft.remaining.Store(4)
	f := setup(t, &http.Client{Transport: ft}, 10)

	req := dispatch.NewRequest(http.MethodPost, srv.URL, []byte("{}"))

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.dispatcher.Do(context.Background(), req)
			done <- err
		}()
	}
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Errorf("Do: %v", err)
		}
	}

	if f.queue.Size() != 0 {
		t.Errorf("queue size = %d, want 0", f.queue.Size())
	}
}

func TestReplayDeletesOnSuccessKeepsOnFailure(t *testing.T) {
	var okHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		okHits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := setup(t, srv.Client(), 5)
	ctx := context.Background()

	if _, err := f.pending.Add(ctx, &pending.Request{Method: http.MethodPost, URL: srv.URL}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.pending.Add(ctx, &pending.Request{Method: http.MethodPost, URL: "http://api.invalid/unreachable"}); err != nil {
		t.Fatal(err)
	}

	f.dispatcher.Replay(ctx)

	if okHits.Load() != 1 {
		t.Errorf("reachable target hit %d times, want 1", okHits.Load())
	}
	requests, err := f.pending.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(requests) != 1 {
		t.Fatalf("pending count = %d after replay, want 1 (failed one kept)", len(requests))
	}
	if requests[0].URL != "http://api.invalid/unreachable" {
		t.Errorf("kept record = %s, want the unreachable one", requests[0].URL)
	}
}
