package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ops-guardian/pkg/clients/telemetrysource"
	"ops-guardian/pkg/correlation"
)

type stubSource struct {
	metrics map[string]telemetrysource.ServiceMetrics
	errs    map[string]error
	calls   int
}

func (s *stubSource) GetServiceMetrics(ctx context.Context, serviceName string) (telemetrysource.ServiceMetrics, error) {
	s.calls++
	if err := s.errs[serviceName]; err != nil {
		return telemetrysource.ServiceMetrics{}, err
	}
	return s.metrics[serviceName], nil
}

type stubSink struct {
	events []correlation.AgentEvent
}

func (s *stubSink) Ingest(event correlation.AgentEvent) string {
	s.events = append(s.events, event)
	return event.CorrelationID
}

func TestCollectAppendsHistory(t *testing.T) {
	source := &stubSource{metrics: map[string]telemetrysource.ServiceMetrics{
		"frontend": {ServiceName: "frontend", CPUUsage: 42, CurrentReplicas: 2},
	}}
	c := New(source, nil, nil, 100, 3)

	m, err := c.Collect(context.Background(), "frontend")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.CPUUsage != 42 {
		t.Fatalf("expected collected metrics returned, got %+v", m)
	}

	latest, ok := c.Latest("frontend")
	if !ok || latest.CPUUsage != 42 {
		t.Fatalf("expected latest snapshot, got %+v ok=%v", latest, ok)
	}
}

func TestHistoryCapped(t *testing.T) {
	source := &stubSource{metrics: map[string]telemetrysource.ServiceMetrics{}}
	c := New(source, nil, nil, 5, 3)

	for i := 0; i < 8; i++ {
		source.metrics["frontend"] = telemetrysource.ServiceMetrics{ServiceName: "frontend", CPUUsage: float64(i)}
		if _, err := c.Collect(context.Background(), "frontend"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	history := c.History("frontend", 0)
	if len(history) != 5 {
		t.Fatalf("expected history capped at 5, got %d", len(history))
	}
	if history[0].CPUUsage != 3 || history[4].CPUUsage != 7 {
		t.Fatalf("expected oldest entries dropped, got first=%v last=%v", history[0].CPUUsage, history[4].CPUUsage)
	}
}

func TestFailureIsolation(t *testing.T) {
	source := &stubSource{
		metrics: map[string]telemetrysource.ServiceMetrics{
			"frontend": {ServiceName: "frontend", CPUUsage: 42},
		},
		errs: map[string]error{
			"userservice": errors.New("boom"),
		},
	}
	c := New(source, nil, nil, 100, 3)

	if _, err := c.Collect(context.Background(), "userservice"); err == nil {
		t.Fatal("expected error for failing service")
	}
	if _, err := c.Collect(context.Background(), "frontend"); err != nil {
		t.Fatalf("healthy service must be unaffected: %v", err)
	}
	if c.ConsecutiveFailures("userservice") != 1 {
		t.Fatalf("expected streak 1, got %d", c.ConsecutiveFailures("userservice"))
	}
	if c.ConsecutiveFailures("frontend") != 0 {
		t.Fatalf("expected streak 0, got %d", c.ConsecutiveFailures("frontend"))
	}
}

func TestDegradedEventAfterConsecutiveFailures(t *testing.T) {
	source := &stubSource{errs: map[string]error{"frontend": errors.New("boom")}}
	sink := &stubSink{}
	c := New(source, nil, sink, 100, 3)

	for i := 0; i < 4; i++ {
		c.Collect(context.Background(), "frontend")
	}

	if len(sink.events) != 1 {
		t.Fatalf("expected exactly one degraded event, got %d", len(sink.events))
	}
	event := sink.events[0]
	if event.EventType != "monitoring_degraded" {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
	if event.Severity != correlation.SeverityHigh {
		t.Fatalf("expected high severity, got %s", event.Severity)
	}
}

func TestFailureStreakResetsOnSuccess(t *testing.T) {
	source := &stubSource{errs: map[string]error{"frontend": errors.New("boom")}}
	sink := &stubSink{}
	c := New(source, nil, sink, 100, 3)

	c.Collect(context.Background(), "frontend")
	c.Collect(context.Background(), "frontend")

	delete(source.errs, "frontend")
	source.metrics = map[string]telemetrysource.ServiceMetrics{"frontend": {ServiceName: "frontend"}}
	if _, err := c.Collect(context.Background(), "frontend"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.ConsecutiveFailures("frontend") != 0 {
		t.Fatalf("expected streak reset, got %d", c.ConsecutiveFailures("frontend"))
	}
	if len(sink.events) != 0 {
		t.Fatalf("expected no degraded event before threshold, got %d", len(sink.events))
	}
}

type failingExporter struct{}

func (failingExporter) WriteServiceMetrics(ctx context.Context, m telemetrysource.ServiceMetrics) error {
	return fmt.Errorf("influx down")
}

func TestExportFailureDoesNotFailCollection(t *testing.T) {
	source := &stubSource{metrics: map[string]telemetrysource.ServiceMetrics{
		"frontend": {ServiceName: "frontend"},
	}}
	c := New(source, failingExporter{}, nil, 100, 3)

	if _, err := c.Collect(context.Background(), "frontend"); err != nil {
		t.Fatalf("export failure must not fail collection: %v", err)
	}
	if _, ok := c.Latest("frontend"); !ok {
		t.Fatal("expected snapshot recorded despite export failure")
	}
}
