// Package dashboard aggregates live operations metrics: periodic
// snapshots of skill activity and agent states, with deltas against the
// previous snapshot.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/cxops/internal/cxone"
)

// Snapshot is one observation of the tenant's live state.
type Snapshot struct {
	TakenAt           time.Time
	ContactsInQueue   int
	ActiveContacts    int
	AgentsAvailable   int
	AgentsUnavailable int
	// AgentStates counts agents per state name.
	AgentStates map[string]int
}

// Delta is the change against the previous snapshot.
type Delta struct {
	ContactsInQueue int
	ActiveContacts  int
	AgentsAvailable int
}

// Aggregator fetches snapshots and tracks the previous one for delta
// computation. Safe for a single Watch loop; concurrent watchers are
// not coordinated.
type Aggregator struct {
	client *cxone.Client
	logger *slog.Logger

	mu   sync.Mutex
	prev *Snapshot
}

// NewAggregator builds an Aggregator over the tenant API.
func NewAggregator(client *cxone.Client) *Aggregator {
	return &Aggregator{client: client, logger: slog.Default()}
}

type skillActivityResponse struct {
	SkillActivity []struct {
		QueueCount      int `json:"queueCount"`
		ActiveContacts  int `json:"activeContactCount"`
		AgentsAvailable int `json:"agentsAvailable"`
	} `json:"skillActivity"`
}

type agentStatesResponse struct {
	AgentStates []struct {
		AgentStateName string `json:"agentStateName"`
	} `json:"agentStates"`
}

// Snapshot fetches skill activity and agent states concurrently and
// folds them into one observation.
func (a *Aggregator) Snapshot(ctx context.Context) (*Snapshot, error) {
	var skills skillActivityResponse
	var agents agentStatesResponse

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		status, err := a.client.GetJSON(gctx, "/skills/activity", &skills)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("fetching skill activity: status %d", status)
		}
		return nil
	})
	g.Go(func() error {
		status, err := a.client.GetJSON(gctx, "/agents/states", &agents)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("fetching agent states: status %d", status)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		TakenAt:     time.Now().UTC(),
		AgentStates: map[string]int{},
	}
	for _, s := range skills.SkillActivity {
		snap.ContactsInQueue += s.QueueCount
		snap.ActiveContacts += s.ActiveContacts
		snap.AgentsAvailable += s.AgentsAvailable
	}
	for _, st := range agents.AgentStates {
		snap.AgentStates[st.AgentStateName]++
		if st.AgentStateName == "Unavailable" {
			snap.AgentsUnavailable++
		}
	}
	return snap, nil
}

// Observe takes a snapshot and returns it with the delta against the
// previous observation; the first call has a nil delta.
func (a *Aggregator) Observe(ctx context.Context) (*Snapshot, *Delta, error) {
	snap, err := a.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var delta *Delta
	if a.prev != nil {
		delta = &Delta{
			ContactsInQueue: snap.ContactsInQueue - a.prev.ContactsInQueue,
			ActiveContacts:  snap.ActiveContacts - a.prev.ActiveContacts,
			AgentsAvailable: snap.AgentsAvailable - a.prev.AgentsAvailable,
		}
	}
	a.prev = snap
	return snap, delta, nil
}

// DefaultWatchInterval paces Watch when no usable interval is given.
const DefaultWatchInterval = 5 * time.Second

// Watch observes every interval until ctx is cancelled or count
// observations were delivered; count <= 0 means run until cancelled,
// interval <= 0 takes the default. Fetch errors are delivered to fn
// with a nil snapshot and the loop continues; a live board should ride
// out transient API hiccups.
func (a *Aggregator) Watch(ctx context.Context, interval time.Duration, count int, fn func(*Snapshot, *Delta, error)) error {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	delivered := 0
	for {
		snap, delta, err := a.Observe(ctx)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			a.logger.Warn("dashboard snapshot failed", "error", err)
		}
		fn(snap, delta, err)

		delivered++
		if count > 0 && delivered >= count {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
