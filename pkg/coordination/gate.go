package coordination

import (
	"sync"
	"time"

	"ops-guardian/pkg/correlation"
	"ops-guardian/pkg/logger"
)

// State is the shared pause/resume value gating decision execution. When
// Active is false no scaling decision may reach the actuator, though
// decisions are still computed and logged.
type State struct {
	Active       bool      `json:"active"`
	PausedReason string    `json:"pausedReason,omitempty"`
	ChangedAt    time.Time `json:"changedAt"`
}

// EventSink receives coordination transition events; satisfied by the
// correlation engine.
type EventSink interface {
	Ingest(event correlation.AgentEvent) string
}

// Gate is the shared coordination switch. Any external caller may pause and
// later resume execution; the first pause wins so concurrent callers cannot
// clobber each other's reason.
type Gate struct {
	mu     sync.RWMutex
	state  State
	events EventSink
	agent  string
}

// NewGate returns an open gate. events may be nil.
func NewGate(events EventSink, agentName string) *Gate {
	return &Gate{
		state:  State{Active: true, ChangedAt: time.Now().UTC()},
		events: events,
		agent:  agentName,
	}
}

// Pause closes the gate and records the reason. Pausing an already-paused
// gate is a no-op that preserves the original reason.
func (g *Gate) Pause(reason string) State {
	g.mu.Lock()
	if !g.state.Active {
		state := g.state
		g.mu.Unlock()
		return state
	}

	g.state = State{Active: false, PausedReason: reason, ChangedAt: time.Now().UTC()}
	state := g.state
	g.mu.Unlock()

	logger.Info("coordination_paused", map[string]interface{}{"reason": reason})
	g.emit("scaling_paused", map[string]interface{}{"reason": reason})
	return state
}

// Resume unconditionally opens the gate and clears the reason.
func (g *Gate) Resume() State {
	g.mu.Lock()
	wasPaused := !g.state.Active
	g.state = State{Active: true, ChangedAt: time.Now().UTC()}
	state := g.state
	g.mu.Unlock()

	if wasPaused {
		logger.Info("coordination_resumed", nil)
		g.emit("scaling_resumed", nil)
	}
	return state
}

// IsOpen reports whether decision execution is currently allowed.
func (g *Gate) IsOpen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.Active
}

// Status returns a copy of the current coordination state.
func (g *Gate) Status() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *Gate) emit(eventType string, context map[string]interface{}) {
	if g.events == nil {
		return
	}
	g.events.Ingest(correlation.AgentEvent{
		EventType:   eventType,
		SourceAgent: g.agent,
		Severity:    correlation.SeverityMedium,
		Context:     context,
		Audience:    correlation.AudienceOperator,
		Timestamp:   time.Now().UTC(),
	})
}
