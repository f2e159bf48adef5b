package status_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xraph/tether/netmon"
	"github.com/xraph/tether/pending"
	"github.com/xraph/tether/queue"
	"github.com/xraph/tether/status"
	"github.com/xraph/tether/store/memory"
)

type fixture struct {
	reporter *status.Reporter
	pending  *pending.Service
	queue    *queue.Queue
	monitor  *netmon.Monitor
}

func setup(t *testing.T, probeURL string) *fixture {
	t.Helper()

	svc := pending.NewService(memory.New(), nil)
	q := queue.New(queue.Config{PollInterval: time.Hour}, nil)
	prober := netmon.NewProber(probeURL, time.Second, nil)
	m := netmon.NewMonitor(prober, time.Hour, nil)
	r := status.NewReporter(q, svc, m, 5*time.Millisecond, nil)
	return &fixture{reporter: r, pending: svc, queue: q, monitor: m}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSnapshotProjectsAllSources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	f := setup(t, srv.URL)
	ctx := context.Background()

	if _, err := f.pending.Add(ctx, &pending.Request{Method: http.MethodPost, URL: "https://api.example.com/posts"}); err != nil {
		t.Fatal(err)
	}
	f.queue.Add("POST https://api.example.com/posts", func(context.Context) error {
		return errors.New("unreachable")
	})

	st := f.reporter.Snapshot(ctx)
	if st.QueueSize != 1 {
		t.Errorf("QueueSize = %d, want 1", st.QueueSize)
	}
	if st.PendingCount != 1 {
		t.Errorf("PendingCount = %d, want 1", st.PendingCount)
	}
	if st.Processing {
		t.Error("Processing = true with no drain running")
	}
	if st.Text == "" {
		t.Error("Text is empty")
	}
}

func TestTextReflectsOfflineWithQueuedWork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	f := setup(t, srv.URL)

	cancel := f.monitor.Subscribe(func(netmon.Snapshot) {})
	defer cancel()
	waitFor(t, func() bool { return f.monitor.Last().APIReachable }, "initial probe never completed")

	f.queue.Add("POST https://api.example.com/posts", func(context.Context) error {
		return errors.New("unreachable")
	})
	f.monitor.SetOnline(false)
	waitFor(t, func() bool { return !f.monitor.Last().Online }, "offline hint never reflected")

	st := f.reporter.Snapshot(context.Background())
	if !strings.Contains(st.Text, "offline") || !strings.Contains(st.Text, "1 queued") {
		t.Errorf("Text = %q, want offline with queued count", st.Text)
	}
}

func TestTextOnlineWhenIdleAndReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	f := setup(t, srv.URL)

	cancel := f.monitor.Subscribe(func(netmon.Snapshot) {})
	defer cancel()
	waitFor(t, func() bool { return f.monitor.Last().APIReachable }, "initial probe never completed")

	st := f.reporter.Snapshot(context.Background())
	if st.Text != "online" {
		t.Errorf("Text = %q, want %q", st.Text, "online")
	}
}

func TestWatchFiresImmediatelyAndOnChange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	f := setup(t, srv.URL)

	updates := make(chan status.Status, 16)
	cancel := f.reporter.Watch(func(st status.Status) { updates <- st })
	defer cancel()

	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("Watch did not fire immediately")
	}

	f.queue.Add("POST https://api.example.com/posts", func(context.Context) error {
		return errors.New("unreachable")
	})

	waitForUpdate := func() status.Status {
		for {
			select {
			case st := <-updates:
				if st.QueueSize == 1 {
					return st
				}
			case <-time.After(5 * time.Second):
				t.Fatal("no update after queue change")
			}
		}
	}
	st := waitForUpdate()
	if st.QueueSize != 1 {
		t.Errorf("QueueSize = %d, want 1", st.QueueSize)
	}
}
