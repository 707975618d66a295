package correlation

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"ops-guardian/pkg/config"
)

func newTestEngine(window time.Duration) (*Engine, *time.Time) {
	e := NewEngine(config.CorrelationConfig{Window: window})
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }
	return e, &now
}

func TestIngestGroupsByCorrelationID(t *testing.T) {
	e, now := newTestEngine(5 * time.Minute)
	defer e.Close()

	g1 := e.Ingest(AgentEvent{
		EventType:     "fraud_detection",
		SourceAgent:   "financial-guardian",
		Severity:      SeverityHigh,
		CorrelationID: "corr-1",
		Timestamp:     *now,
	})
	g2 := e.Ingest(AgentEvent{
		EventType:     "system_scaling",
		SourceAgent:   "ops-guardian",
		Severity:      SeverityMedium,
		CorrelationID: "corr-1",
		Timestamp:     now.Add(30 * time.Second),
	})

	if g1 != "corr-1" || g2 != "corr-1" {
		t.Fatalf("expected both events in group corr-1, got %q and %q", g1, g2)
	}
	if size := e.GroupSize("corr-1"); size != 2 {
		t.Fatalf("expected group size 2, got %d", size)
	}
}

func TestIngestWithoutCorrelationIDIsSingleton(t *testing.T) {
	e, _ := newTestEngine(5 * time.Minute)
	defer e.Close()

	g1 := e.Ingest(AgentEvent{EventType: "system_scaling", SourceAgent: "ops-guardian"})
	g2 := e.Ingest(AgentEvent{EventType: "system_scaling", SourceAgent: "ops-guardian"})

	if g1 == g2 {
		t.Fatal("expected distinct singleton groups")
	}
	if size := e.GroupSize(g1); size != 1 {
		t.Fatalf("expected singleton group size 1, got %d", size)
	}
}

func TestIngestAfterWindowStartsFreshGroup(t *testing.T) {
	e, now := newTestEngine(5 * time.Minute)
	defer e.Close()

	e.Ingest(AgentEvent{
		EventType:     "fraud_detection",
		SourceAgent:   "financial-guardian",
		CorrelationID: "corr-1",
		Timestamp:     *now,
	})

	*now = now.Add(6 * time.Minute)
	e.Ingest(AgentEvent{
		EventType:     "fraud_detection",
		SourceAgent:   "financial-guardian",
		CorrelationID: "corr-1",
		Timestamp:     *now,
	})

	if size := e.GroupSize("corr-1"); size != 1 {
		t.Fatalf("expected fresh group with 1 event, got %d", size)
	}
}

func TestReadMultiAgentOperatorDraft(t *testing.T) {
	e, now := newTestEngine(5 * time.Minute)
	defer e.Close()

	// Deliberately ingested out of emission order.
	e.Ingest(AgentEvent{
		EventType:     "system_scaling",
		SourceAgent:   "ops-guardian",
		Severity:      SeverityMedium,
		CorrelationID: "corr-1",
		Context:       map[string]interface{}{"serviceName": "frontend", "toReplicas": 5},
		Timestamp:     now.Add(30 * time.Second),
	})
	e.Ingest(AgentEvent{
		EventType:     "fraud_detection",
		SourceAgent:   "financial-guardian",
		Severity:      SeverityHigh,
		CorrelationID: "corr-1",
		Timestamp:     *now,
	})

	draft := e.Read("corr-1", AudienceOperator)
	if draft == nil {
		t.Fatal("expected draft for open group")
	}
	if draft.Kind != KindMultiAgent {
		t.Fatalf("expected multi-agent draft, got %s", draft.Kind)
	}
	if draft.Severity != SeverityHigh {
		t.Fatalf("expected merged severity high, got %s", draft.Severity)
	}
	if draft.CorrelationID != "corr-1" {
		t.Fatalf("expected operator draft to expose correlation id, got %q", draft.CorrelationID)
	}

	want := []string{"financial-guardian", "ops-guardian"}
	if !reflect.DeepEqual(draft.InvolvedAgents, want) {
		t.Fatalf("expected agents %v, got %v", want, draft.InvolvedAgents)
	}
	if len(draft.Timeline) != 2 {
		t.Fatalf("expected 2 timeline entries, got %d", len(draft.Timeline))
	}
	if !strings.Contains(draft.Timeline[0], "fraud_detection") {
		t.Fatalf("expected timeline ordered by emission time, got %q first", draft.Timeline[0])
	}
}

func TestReadUserDraftOmitsInternals(t *testing.T) {
	e, now := newTestEngine(5 * time.Minute)
	defer e.Close()

	e.Ingest(AgentEvent{
		EventType:     "system_scaling",
		SourceAgent:   "ops-guardian",
		Severity:      SeverityMedium,
		CorrelationID: "corr-1",
		Context: map[string]interface{}{
			"correlationId": "corr-1",
			"decision":      "scale up",
			"serviceName":   "frontend",
		},
		Timestamp: *now,
	})

	draft := e.Read("corr-1", AudienceUser)
	if draft == nil {
		t.Fatal("expected draft")
	}
	if draft.CorrelationID != "" {
		t.Fatal("expected user draft to hide correlation id")
	}
	for _, line := range draft.Timeline {
		if strings.Contains(line, "corr-1") || strings.Contains(line, "decision") {
			t.Fatalf("expected internal keys filtered from user timeline, got %q", line)
		}
		if strings.Contains(line, "system_scaling") {
			t.Fatalf("expected human phrasing in user timeline, got %q", line)
		}
	}
}

func TestReadIsIdempotent(t *testing.T) {
	e, now := newTestEngine(5 * time.Minute)
	defer e.Close()

	e.Ingest(AgentEvent{EventType: "a", SourceAgent: "one", CorrelationID: "corr-1", Timestamp: *now})
	e.Ingest(AgentEvent{EventType: "b", SourceAgent: "two", CorrelationID: "corr-1", Timestamp: now.Add(time.Second)})

	first := e.Read("corr-1", AudienceOperator)
	second := e.Read("corr-1", AudienceOperator)

	if !reflect.DeepEqual(first.InvolvedAgents, second.InvolvedAgents) {
		t.Fatalf("expected stable agent order, got %v then %v", first.InvolvedAgents, second.InvolvedAgents)
	}
	if !reflect.DeepEqual(first.Timeline, second.Timeline) {
		t.Fatal("expected identical timelines on repeated reads")
	}
}

func TestReadUnknownGroupReturnsNil(t *testing.T) {
	e, _ := newTestEngine(5 * time.Minute)
	defer e.Close()

	if draft := e.Read("missing", AudienceOperator); draft != nil {
		t.Fatal("expected nil for unknown group")
	}
}

func TestReadExpiredGroupReturnsNil(t *testing.T) {
	e, now := newTestEngine(5 * time.Minute)
	defer e.Close()

	e.Ingest(AgentEvent{EventType: "a", SourceAgent: "one", CorrelationID: "corr-1", Timestamp: *now})
	*now = now.Add(6 * time.Minute)

	if draft := e.Read("corr-1", AudienceOperator); draft != nil {
		t.Fatal("expected nil for expired group")
	}
}

func TestSweepEvictsExpiredGroups(t *testing.T) {
	e, now := newTestEngine(5 * time.Minute)
	defer e.Close()

	e.Ingest(AgentEvent{EventType: "a", SourceAgent: "one", CorrelationID: "old", Timestamp: *now})
	*now = now.Add(4 * time.Minute)
	e.Ingest(AgentEvent{EventType: "b", SourceAgent: "two", CorrelationID: "fresh", Timestamp: *now})
	*now = now.Add(2 * time.Minute)

	e.sweep()

	if e.GroupSize("old") != 0 {
		t.Fatal("expected old group evicted")
	}
	if e.GroupSize("fresh") != 1 {
		t.Fatal("expected fresh group retained")
	}
}

func TestRegisterAgentState(t *testing.T) {
	e, _ := newTestEngine(5 * time.Minute)
	defer e.Close()

	e.RegisterAgentState("financial-guardian", map[string]interface{}{"status": "active"})

	states := e.AgentStates()
	state, ok := states["financial-guardian"]
	if !ok {
		t.Fatal("expected registered agent state")
	}
	if state.State["status"] != "active" {
		t.Fatalf("expected stored state, got %v", state.State)
	}
}

func TestMergeSeverity(t *testing.T) {
	if got := MergeSeverity(SeverityLow, SeverityCritical); got != SeverityCritical {
		t.Fatalf("expected critical, got %s", got)
	}
	if got := MergeSeverity(SeverityHigh, SeverityMedium); got != SeverityHigh {
		t.Fatalf("expected high, got %s", got)
	}
}
