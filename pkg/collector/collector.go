package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ops-guardian/pkg/clients/telemetrysource"
	"ops-guardian/pkg/correlation"
	"ops-guardian/pkg/logger"
)

// Source fetches the current reading for one service.
type Source interface {
	GetServiceMetrics(ctx context.Context, serviceName string) (telemetrysource.ServiceMetrics, error)
}

// Exporter receives successful snapshots for long-term storage. May be nil.
type Exporter interface {
	WriteServiceMetrics(ctx context.Context, m telemetrysource.ServiceMetrics) error
}

// EventSink receives degraded-health events; satisfied by the correlation engine.
type EventSink interface {
	Ingest(event correlation.AgentEvent) string
}

// Collector polls the telemetry source and owns the per-service rolling
// history. It is the only writer of the history; readers get copies.
type Collector struct {
	source        Source
	exporter      Exporter
	events        EventSink
	maxEntries    int
	degradedAfter int

	mu        sync.RWMutex
	histories map[string][]telemetrysource.ServiceMetrics
	failures  map[string]int
}

func New(source Source, exporter Exporter, events EventSink, maxEntries, degradedAfter int) *Collector {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	if degradedAfter <= 0 {
		degradedAfter = 3
	}
	return &Collector{
		source:        source,
		exporter:      exporter,
		events:        events,
		maxEntries:    maxEntries,
		degradedAfter: degradedAfter,
		histories:     make(map[string][]telemetrysource.ServiceMetrics),
		failures:      make(map[string]int),
	}
}

// Collect fetches a fresh reading for one service and appends it to the
// rolling history, trimming to the cap. A failure for one service never
// affects any other; after degradedAfter consecutive failures a
// monitoring_degraded event is emitted and collection keeps retrying.
func (c *Collector) Collect(ctx context.Context, serviceName string) (telemetrysource.ServiceMetrics, error) {
	m, err := c.source.GetServiceMetrics(ctx, serviceName)
	if err != nil {
		c.recordFailure(serviceName, err)
		return telemetrysource.ServiceMetrics{}, err
	}

	c.mu.Lock()
	c.failures[serviceName] = 0
	history := append(c.histories[serviceName], m)
	if len(history) > c.maxEntries {
		history = history[len(history)-c.maxEntries:]
	}
	c.histories[serviceName] = history
	c.mu.Unlock()

	if c.exporter != nil {
		if err := c.exporter.WriteServiceMetrics(ctx, m); err != nil {
			logger.Error(fmt.Sprintf("[Collector] Telemetry export failed for %s", serviceName), err)
		}
	}

	return m, nil
}

// Latest returns the most recent snapshot for a service.
func (c *Collector) Latest(serviceName string) (telemetrysource.ServiceMetrics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	history := c.histories[serviceName]
	if len(history) == 0 {
		return telemetrysource.ServiceMetrics{}, false
	}
	return history[len(history)-1], true
}

// History returns up to the last n snapshots for a service, oldest first.
func (c *Collector) History(serviceName string, n int) []telemetrysource.ServiceMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	history := c.histories[serviceName]
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	return append([]telemetrysource.ServiceMetrics(nil), history...)
}

// Snapshot returns the latest reading per service that has one.
func (c *Collector) Snapshot() map[string]telemetrysource.ServiceMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]telemetrysource.ServiceMetrics, len(c.histories))
	for name, history := range c.histories {
		if len(history) > 0 {
			out[name] = history[len(history)-1]
		}
	}
	return out
}

// ConsecutiveFailures reports the current failure streak for a service.
func (c *Collector) ConsecutiveFailures(serviceName string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failures[serviceName]
}

func (c *Collector) recordFailure(serviceName string, cause error) {
	c.mu.Lock()
	c.failures[serviceName]++
	streak := c.failures[serviceName]
	c.mu.Unlock()

	logger.Error(fmt.Sprintf("[Collector] Telemetry fetch failed for %s (streak %d)", serviceName, streak), cause)

	if streak == c.degradedAfter && c.events != nil {
		c.events.Ingest(correlation.AgentEvent{
			EventType:   "monitoring_degraded",
			SourceAgent: "ops-guardian",
			Severity:    correlation.SeverityHigh,
			Context: map[string]interface{}{
				"serviceName":         serviceName,
				"consecutiveFailures": streak,
			},
			Audience:  correlation.AudienceOperator,
			Timestamp: time.Now().UTC(),
		})
	}
}
