package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ops-guardian/pkg/collector"
	"ops-guardian/pkg/config"
	"ops-guardian/pkg/coordination"
	"ops-guardian/pkg/correlation"
	"ops-guardian/pkg/decision"
	"ops-guardian/pkg/logger"
	"ops-guardian/pkg/metrics"
	"ops-guardian/pkg/storage"
)

const agentName = "ops-guardian"

// ErrServiceNotMonitored rejects operations against services outside the
// configured monitoring set.
var ErrServiceNotMonitored = errors.New("service not monitored")

// Actuator applies a replica-count change to a named service.
type Actuator interface {
	Scale(ctx context.Context, serviceName string, targetReplicas int) error
}

// PriorityChecker reports active higher-priority work from peer agents.
type PriorityChecker interface {
	ActiveInvestigations(ctx context.Context) int
}

// Journal persists decisions and their execution outcome. May be nil.
type Journal interface {
	LogDecision(d decision.ScalingDecision, executed bool, executionError, correlationID string) (*storage.DecisionRecord, error)
}

// EventSink receives scaling events; satisfied by the correlation engine.
type EventSink interface {
	Ingest(event correlation.AgentEvent) string
}

// Monitor drives the collect -> decide -> gate -> actuate loop for every
// monitored service on a fixed period. Cycles for a single service never
// overlap; services are independent of each other.
type Monitor struct {
	cfg       *config.Config
	collector *collector.Collector
	engine    *decision.Engine
	gate      *coordination.Gate
	actuator  Actuator
	guardian  PriorityChecker
	events    EventSink
	journal   Journal

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	runLock sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]bool

	recentMu sync.Mutex
	recent   []decision.ScalingDecision
}

func NewMonitor(cfg *config.Config, c *collector.Collector, engine *decision.Engine, gate *coordination.Gate, act Actuator, gdn PriorityChecker, events EventSink, journal Journal) *Monitor {
	return &Monitor{
		cfg:       cfg,
		collector: c,
		engine:    engine,
		gate:      gate,
		actuator:  act,
		guardian:  gdn,
		events:    events,
		journal:   journal,
		inflight:  make(map[string]bool),
	}
}

// Start launches the periodic monitoring loop. Calling Start on a running
// monitor is a no-op.
func (m *Monitor) Start() {
	m.runLock.Lock()
	if m.running {
		m.runLock.Unlock()
		logger.Info("monitor_already_running", nil)
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.runLock.Unlock()

	logger.Info("monitor_starting", map[string]interface{}{
		"interval": m.cfg.Monitoring.PollInterval.String(),
		"services": len(m.cfg.Monitoring.Services),
	})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.tick()

		ticker := time.NewTicker(m.cfg.Monitoring.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				m.tick()
			}
		}
	}()
}

// Stop halts the loop and waits for in-flight cycles to finish, so no
// service is left mid-actuation and unobserved.
func (m *Monitor) Stop() {
	m.runLock.Lock()
	if !m.running {
		m.runLock.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.runLock.Unlock()

	logger.Info("monitor_stopping", nil)
	m.wg.Wait()
	logger.Info("monitor_stopped", nil)
}

// IsRunning reports whether the background loop is active.
func (m *Monitor) IsRunning() bool {
	m.runLock.Lock()
	defer m.runLock.Unlock()
	return m.running
}

// IsMonitored reports whether a service is in the configured set.
func (m *Monitor) IsMonitored(serviceName string) bool {
	for _, s := range m.cfg.Monitoring.Services {
		if s == serviceName {
			return true
		}
	}
	return false
}

// RecentDecisions returns the newest-last ring of recent decisions.
func (m *Monitor) RecentDecisions() []decision.ScalingDecision {
	m.recentMu.Lock()
	defer m.recentMu.Unlock()
	return append([]decision.ScalingDecision(nil), m.recent...)
}

// tick fires one cycle per service; a service whose previous cycle is still
// in flight is skipped rather than overlapped.
func (m *Monitor) tick() {
	for _, serviceName := range m.cfg.Monitoring.Services {
		m.inflightMu.Lock()
		if m.inflight[serviceName] {
			m.inflightMu.Unlock()
			logger.Info("cycle_skipped_inflight", map[string]interface{}{"service": serviceName})
			continue
		}
		m.inflight[serviceName] = true
		m.inflightMu.Unlock()

		m.wg.Add(1)
		go func(name string) {
			defer m.wg.Done()
			defer func() {
				m.inflightMu.Lock()
				delete(m.inflight, name)
				m.inflightMu.Unlock()
			}()
			m.runCycle(name)
		}(serviceName)
	}
}

func (m *Monitor) runCycle(serviceName string) {
	ctx := context.Background()

	snapshot, err := m.collector.Collect(ctx, serviceName)
	metrics.ObservePollCycle(serviceName, err)
	if err != nil {
		// Transient; retried on the next scheduled cycle.
		return
	}

	d := m.engine.Decide(ctx, snapshot, m.collector.History(serviceName, 5))
	metrics.ObserveDecision(d.Source)
	m.Execute(ctx, d)
}

// Execute arbitrates and applies one decision. Decisions that hold the
// current replica count are recorded but never reach the actuator; closed
// gate and priority deferrals are logged skips, not errors.
func (m *Monitor) Execute(ctx context.Context, d decision.ScalingDecision) (executed bool, reason string) {
	defer m.remember(d)

	if d.TargetReplicas == d.CurrentReplicas {
		return false, "no change required"
	}

	if !m.gate.IsOpen() {
		state := m.gate.Status()
		reason = "coordination blocked: " + state.PausedReason
		logger.Info("scaling_skipped", map[string]interface{}{
			"service": d.ServiceName,
			"target":  d.TargetReplicas,
			"reason":  reason,
		})
		metrics.ObserveCoordinationBlocked()
		m.journalLog(d, false, reason, "")
		return false, reason
	}

	corrID := uuid.New().String()

	if d.CoordinationNeeded && m.guardian != nil {
		if n := m.guardian.ActiveInvestigations(ctx); n > 0 {
			reason = fmt.Sprintf("deferred: %d active investigation(s) take priority", n)
			logger.Info("scaling_deferred", map[string]interface{}{
				"service": d.ServiceName,
				"reason":  reason,
			})
			m.emit("scaling_deferred", correlation.SeverityMedium, corrID, map[string]interface{}{
				"serviceName":          d.ServiceName,
				"reason":               reason,
				"activeInvestigations": n,
			})
			m.journalLog(d, false, reason, corrID)
			return false, reason
		}
	}

	if m.actuator == nil {
		reason = "actuator not configured"
		m.journalLog(d, false, reason, corrID)
		return false, reason
	}

	err := m.actuator.Scale(ctx, d.ServiceName, d.TargetReplicas)
	metrics.ObserveActuation(err)
	if err != nil {
		// No same-cycle retry; the next cycle re-evaluates from fresh metrics.
		logger.Error(fmt.Sprintf("[Monitor] Failed to scale %s to %d", d.ServiceName, d.TargetReplicas), err)
		m.journalLog(d, false, err.Error(), corrID)
		return false, err.Error()
	}

	logger.Info("service_scaled", map[string]interface{}{
		"service": d.ServiceName,
		"from":    d.CurrentReplicas,
		"to":      d.TargetReplicas,
		"source":  d.Source,
	})
	m.emit("system_scaling", correlation.SeverityMedium, corrID, map[string]interface{}{
		"serviceName":  d.ServiceName,
		"fromReplicas": d.CurrentReplicas,
		"toReplicas":   d.TargetReplicas,
		"rationale":    d.Rationale,
		"confidence":   d.Confidence,
	})
	m.journalLog(d, true, "", corrID)
	return true, ""
}

// DecideNow runs a single collect-and-decide cycle on demand without
// executing the result.
func (m *Monitor) DecideNow(ctx context.Context, serviceName string) (decision.ScalingDecision, error) {
	if !m.IsMonitored(serviceName) {
		return decision.ScalingDecision{}, fmt.Errorf("%w: %s", ErrServiceNotMonitored, serviceName)
	}

	snapshot, err := m.collector.Collect(ctx, serviceName)
	if err != nil {
		return decision.ScalingDecision{}, err
	}

	d := m.engine.Decide(ctx, snapshot, m.collector.History(serviceName, 5))
	metrics.ObserveDecision(d.Source)
	m.remember(d)
	return d, nil
}

// ManualScale applies an operator-requested replica count, clamped to the
// configured band and still subject to the coordination gate.
func (m *Monitor) ManualScale(ctx context.Context, serviceName string, targetReplicas int) (int, bool, string, error) {
	if !m.IsMonitored(serviceName) {
		return 0, false, "", fmt.Errorf("%w: %s", ErrServiceNotMonitored, serviceName)
	}

	if targetReplicas < m.cfg.Scaling.MinReplicas {
		targetReplicas = m.cfg.Scaling.MinReplicas
	}
	if targetReplicas > m.cfg.Scaling.MaxReplicas {
		targetReplicas = m.cfg.Scaling.MaxReplicas
	}

	current := 0
	if latest, ok := m.collector.Latest(serviceName); ok {
		current = latest.CurrentReplicas
	}

	d := decision.ScalingDecision{
		ServiceName:     serviceName,
		CurrentReplicas: current,
		TargetReplicas:  targetReplicas,
		Rationale:       "manual scale request",
		Confidence:      1.0,
		Source:          "manual",
		Timestamp:       time.Now().UTC(),
	}

	if !m.gate.IsOpen() {
		state := m.gate.Status()
		reason := "coordination blocked: " + state.PausedReason
		metrics.ObserveCoordinationBlocked()
		m.journalLog(d, false, reason, "")
		m.remember(d)
		return targetReplicas, false, reason, nil
	}

	if m.actuator == nil {
		return targetReplicas, false, "actuator not configured", nil
	}

	corrID := uuid.New().String()
	err := m.actuator.Scale(ctx, serviceName, targetReplicas)
	metrics.ObserveActuation(err)
	if err != nil {
		m.journalLog(d, false, err.Error(), corrID)
		m.remember(d)
		return targetReplicas, false, "", err
	}

	m.emit("manual_scaling", correlation.SeverityMedium, corrID, map[string]interface{}{
		"serviceName":    serviceName,
		"targetReplicas": targetReplicas,
		"operator":       "manual_request",
	})
	m.journalLog(d, true, "", corrID)
	m.remember(d)
	return targetReplicas, true, "", nil
}

func (m *Monitor) remember(d decision.ScalingDecision) {
	keep := m.cfg.Scaling.RecentDecisionsToKeep
	if keep <= 0 {
		keep = 50
	}

	m.recentMu.Lock()
	m.recent = append(m.recent, d)
	if len(m.recent) > keep {
		m.recent = m.recent[len(m.recent)-keep:]
	}
	m.recentMu.Unlock()
}

func (m *Monitor) emit(eventType string, severity correlation.Severity, corrID string, context map[string]interface{}) {
	if m.events == nil {
		return
	}
	m.events.Ingest(correlation.AgentEvent{
		EventType:     eventType,
		SourceAgent:   agentName,
		Severity:      severity,
		Context:       context,
		Audience:      correlation.AudienceOperator,
		CorrelationID: corrID,
		Timestamp:     time.Now().UTC(),
	})
}

func (m *Monitor) journalLog(d decision.ScalingDecision, executed bool, executionError, correlationID string) {
	if m.journal == nil {
		return
	}
	if _, err := m.journal.LogDecision(d, executed, executionError, correlationID); err != nil {
		logger.Error("[Monitor] Failed to journal decision", err)
	}
}
