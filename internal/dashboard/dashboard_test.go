package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/cxops/internal/auth"
	"github.com/kalambet/cxops/internal/cxone"
)

var ctx = context.Background()

type metricsServer struct {
	server *httptest.Server
	mu     sync.Mutex
	queue  int
	active int
	avail  int
	states []string
}

func newMetricsServer(t *testing.T) *metricsServer {
	t.Helper()
	ms := &metricsServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/skills/activity", func(w http.ResponseWriter, r *http.Request) {
		ms.mu.Lock()
		defer ms.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{
			"skillActivity": []map[string]any{
				{"queueCount": ms.queue, "activeContactCount": ms.active, "agentsAvailable": ms.avail},
			},
		})
	})
	mux.HandleFunc("/agents/states", func(w http.ResponseWriter, r *http.Request) {
		ms.mu.Lock()
		defer ms.mu.Unlock()
		var states []map[string]any
		for _, s := range ms.states {
			states = append(states, map[string]any{"agentStateName": s})
		}
		json.NewEncoder(w).Encode(map[string]any{"agentStates": states})
	})

	ms.server = httptest.NewServer(mux)
	t.Cleanup(ms.server.Close)
	return ms
}

func (ms *metricsServer) set(queue, active, avail int, states ...string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.queue, ms.active, ms.avail, ms.states = queue, active, avail, states
}

func newAggregator(t *testing.T, ms *metricsServer) *Aggregator {
	t.Helper()
	client := cxone.New(&auth.Context{Token: "test-token", BaseURL: ms.server.URL}, ms.server.Client())
	return NewAggregator(client)
}

func TestSnapshot(t *testing.T) {
	ms := newMetricsServer(t)
	ms.set(7, 12, 3, "Available", "Available", "Unavailable", "Working")
	a := newAggregator(t, ms)

	snap, err := a.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if snap.ContactsInQueue != 7 {
		t.Errorf("ContactsInQueue = %d, want 7", snap.ContactsInQueue)
	}
	if snap.ActiveContacts != 12 {
		t.Errorf("ActiveContacts = %d, want 12", snap.ActiveContacts)
	}
	if snap.AgentsAvailable != 3 {
		t.Errorf("AgentsAvailable = %d, want 3", snap.AgentsAvailable)
	}
	if snap.AgentsUnavailable != 1 {
		t.Errorf("AgentsUnavailable = %d, want 1", snap.AgentsUnavailable)
	}
	if snap.AgentStates["Available"] != 2 {
		t.Errorf("AgentStates[Available] = %d, want 2", snap.AgentStates["Available"])
	}
}

func TestObserve_Deltas(t *testing.T) {
	ms := newMetricsServer(t)
	ms.set(10, 5, 4)
	a := newAggregator(t, ms)

	_, delta, err := a.Observe(ctx)
	if err != nil {
		t.Fatalf("first Observe failed: %v", err)
	}
	if delta != nil {
		t.Fatalf("first observation must have nil delta, got %+v", delta)
	}

	ms.set(6, 9, 4)
	snap, delta, err := a.Observe(ctx)
	if err != nil {
		t.Fatalf("second Observe failed: %v", err)
	}
	if delta == nil {
		t.Fatal("second observation must carry a delta")
	}
	if delta.ContactsInQueue != -4 {
		t.Errorf("queue delta = %d, want -4", delta.ContactsInQueue)
	}
	if delta.ActiveContacts != 4 {
		t.Errorf("active delta = %d, want 4", delta.ActiveContacts)
	}
	if delta.AgentsAvailable != 0 {
		t.Errorf("available delta = %d, want 0", delta.AgentsAvailable)
	}
	if snap.ContactsInQueue != 6 {
		t.Errorf("snapshot queue = %d, want 6", snap.ContactsInQueue)
	}
}

func TestSnapshot_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client := cxone.New(&auth.Context{Token: "t", BaseURL: srv.URL}, srv.Client())
	a := NewAggregator(client)

	if _, err := a.Snapshot(ctx); err == nil {
		t.Fatal("expected error when a metrics endpoint fails")
	}
}

func TestWatch_CountBounded(t *testing.T) {
	ms := newMetricsServer(t)
	ms.set(1, 1, 1)
	a := newAggregator(t, ms)

	var observations int
	err := a.Watch(ctx, time.Millisecond, 3, func(s *Snapshot, d *Delta, err error) {
		if err != nil {
			t.Errorf("unexpected observation error: %v", err)
		}
		observations++
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if observations != 3 {
		t.Errorf("observations = %d, want 3", observations)
	}
}

func TestWatch_NonPositiveInterval(t *testing.T) {
	ms := newMetricsServer(t)
	ms.set(2, 2, 2)
	a := newAggregator(t, ms)

	for _, interval := range []time.Duration{0, -time.Second} {
		var observations int
		err := a.Watch(ctx, interval, 1, func(s *Snapshot, d *Delta, err error) {
			if err != nil {
				t.Errorf("unexpected observation error: %v", err)
			}
			observations++
		})
		if err != nil {
			t.Fatalf("Watch(interval=%v) failed: %v", interval, err)
		}
		if observations != 1 {
			t.Errorf("Watch(interval=%v) observations = %d, want 1", interval, observations)
		}
	}
}

func TestWatch_Cancelled(t *testing.T) {
	ms := newMetricsServer(t)
	a := newAggregator(t, ms)

	cctx, cancel := context.WithCancel(context.Background())
	n := 0
	err := a.Watch(cctx, time.Hour, 0, func(s *Snapshot, d *Delta, err error) {
		n++
		cancel()
	})
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if n != 1 {
		t.Errorf("observations = %d, want 1", n)
	}
}
