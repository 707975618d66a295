package correlation

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ops-guardian/pkg/config"
	"ops-guardian/pkg/logger"
	"ops-guardian/pkg/metrics"
)

// Engine buffers agent events keyed by correlation id inside a sliding time
// window and produces audience-tailored drafts on read. Expired groups are
// evicted lazily on any touch of their key and by a periodic sweep; there is
// one map and one sweeper, never a timer per group.
type Engine struct {
	mu          sync.RWMutex
	groups      map[string]*Group
	agentStates map[string]AgentState
	window      time.Duration
	now         func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewEngine(cfg config.CorrelationConfig) *Engine {
	e := &Engine{
		groups:      make(map[string]*Group),
		agentStates: make(map[string]AgentState),
		window:      cfg.Window,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		e.wg.Add(1)
		go e.sweepLoop(cfg.SweepInterval)
	}
	return e
}

// Close stops the sweeper goroutine.
func (e *Engine) Close() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

// Ingest buffers an event and returns the id of the group it joined. An
// event without a correlation id becomes its own singleton group. An event
// whose group window already elapsed starts a fresh group under the same id.
func (e *Engine) Ingest(event AgentEvent) string {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now().UTC()
	}
	if event.Audience == "" {
		event.Audience = AudienceOperator
	}

	key := event.CorrelationID
	if key == "" {
		key = event.EventID
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	group, ok := e.groups[key]
	if ok && e.expired(group) {
		delete(e.groups, key)
		ok = false
	}

	if !ok {
		group = &Group{ID: key, FirstEventAt: event.Timestamp}
		e.groups[key] = group
	}
	group.Events = append(group.Events, event)

	metrics.SetOpenCorrelationGroups(len(e.groups))
	return key
}

// Read builds an explanation draft for a group. Unknown or expired groups
// return nil rather than an error. Repeated reads of an unexpired group with
// no new ingestion yield the same agent set and ordering.
func (e *Engine) Read(groupID, audience string) *ExplanationDraft {
	e.mu.Lock()
	group, ok := e.groups[groupID]
	if ok && e.expired(group) {
		delete(e.groups, groupID)
		metrics.SetOpenCorrelationGroups(len(e.groups))
		ok = false
	}
	var events []AgentEvent
	if ok {
		events = append([]AgentEvent(nil), group.Events...)
	}
	e.mu.Unlock()

	if !ok {
		return nil
	}

	// Emission-timestamp order; arrival order breaks ties.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	snapshot := Group{ID: groupID, Events: events}
	return buildDraft(&snapshot, audience, e.now().UTC())
}

// GroupSize reports how many events a group currently holds; zero for
// unknown or expired groups.
func (e *Engine) GroupSize(groupID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	group, ok := e.groups[groupID]
	if !ok || e.expired(group) {
		return 0
	}
	return len(group.Events)
}

// OpenGroups reports the number of unexpired groups currently buffered.
func (e *Engine) OpenGroups() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	count := 0
	for _, g := range e.groups {
		if !e.expired(g) {
			count++
		}
	}
	return count
}

// RegisterAgentState records a peer agent's self-reported state.
func (e *Engine) RegisterAgentState(name string, state map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.agentStates[name] = AgentState{
		AgentName:  name,
		State:      state,
		LastUpdate: e.now().UTC(),
	}
}

// AgentStates returns a copy of the registered agent states.
func (e *Engine) AgentStates() map[string]AgentState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]AgentState, len(e.agentStates))
	for k, v := range e.agentStates {
		out[k] = v
	}
	return out
}

func (e *Engine) expired(g *Group) bool {
	return e.now().Sub(g.FirstEventAt) > e.window
}

func (e *Engine) sweepLoop(interval time.Duration) {
	defer e.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.sweep()
		}
	}
}

func (e *Engine) sweep() {
	e.mu.Lock()
	defer e.mu.Unlock()

	evicted := 0
	for id, g := range e.groups {
		if e.expired(g) {
			delete(e.groups, id)
			evicted++
		}
	}
	if evicted > 0 {
		logger.Info("correlation_sweep", map[string]interface{}{
			"evicted":   evicted,
			"remaining": len(e.groups),
		})
	}
	metrics.SetOpenCorrelationGroups(len(e.groups))
}
