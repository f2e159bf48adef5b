package netmon_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xraph/tether/netmon"
)

func newMonitor(t *testing.T, targetURL string) *netmon.Monitor {
	t.Helper()
	prober := netmon.NewProber(targetURL, time.Second, nil)
	return netmon.NewMonitor(prober, time.Hour, nil)
}

// waitFor polls until cond holds or the deadline passes.
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

func TestSubscribeProbesImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	m := newMonitor(t, srv.URL)

	cancel := m.Subscribe(func(netmon.Snapshot) {})
	defer cancel()

	waitFor(t, func() bool { return m.Last().APIReachable }, "probe never marked the API reachable")
}

func TestSetOnlineFalseShortCircuitsProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	m := newMonitor(t, srv.URL)

	cancel := m.Subscribe(func(netmon.Snapshot) {})
	defer cancel()
	waitFor(t, func() bool { return m.Last().APIReachable }, "initial probe never completed")

	m.SetOnline(false)
	waitFor(t, func() bool {
		snap := m.Last()
		return !snap.Online && !snap.APIReachable
	}, "offline hint never reflected in snapshot")

	if m.Last().Usable() {
		t.Error("snapshot is Usable while offline")
	}
}

func TestSubscriberNotifiedOnChangeOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	m := newMonitor(t, srv.URL)

	changes := make(chan netmon.Snapshot, 16)
	cancel := m.Subscribe(func(s netmon.Snapshot) { changes <- s })
	defer cancel()

	// First transition: unreachable -> reachable.
	select {
	case snap := <-changes:
		if !snap.APIReachable {
			t.Errorf("first notification = %+v, want reachable", snap)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no notification for the initial transition")
	}

	// Further refreshes observe the same state and stay silent.
	m.Refresh()
	waitFor(t, func() bool { return m.Last().APIReachable }, "refresh never completed")

	select {
	case snap := <-changes:
		t.Errorf("notified without a state change: %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	m := newMonitor(t, srv.URL)

	cancel := m.Subscribe(func(netmon.Snapshot) {})
	cancel()
	cancel() // second call must be a no-op

	// A fresh subscriber restarts the loop.
	cancel2 := m.Subscribe(func(netmon.Snapshot) {})
	defer cancel2()
	waitFor(t, func() bool { return m.Last().APIReachable }, "loop did not restart for a new subscriber")
}

func TestSetLinkUpdatesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	m := newMonitor(t, srv.URL)
	cancel := m.Subscribe(func(netmon.Snapshot) {})
	defer cancel()

	m.SetLink(netmon.Link2G)
	waitFor(t, func() bool { return m.Last().Link == netmon.Link2G }, "link hint never reflected")
}
