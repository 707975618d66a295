package decision

import (
	"context"
	"fmt"
	"time"

	"ops-guardian/pkg/clients/advisor"
	"ops-guardian/pkg/clients/telemetrysource"
	"ops-guardian/pkg/config"
	"ops-guardian/pkg/logger"
)

// historyContextSize bounds how many prior snapshots are forwarded to the
// advisory service.
const historyContextSize = 5

// Advisor suggests a scaling target from current metrics and temporal
// context. Implementations may fail or return low-confidence output; the
// engine validates and falls back to deterministic rules either way.
type Advisor interface {
	Advise(ctx context.Context, req advisor.Request) (*advisor.Suggestion, error)
}

// Engine produces validated scaling decisions. Advisory suggestions never
// bypass the clamp or the business-hours scale-down guard.
type Engine struct {
	advisor        Advisor
	cfg            config.ScalingConfig
	advisorTimeout time.Duration
	now            func() time.Time
}

func NewEngine(adv Advisor, cfg config.ScalingConfig, advisorTimeout time.Duration) *Engine {
	return &Engine{
		advisor:        adv,
		cfg:            cfg,
		advisorTimeout: advisorTimeout,
		now:            time.Now,
	}
}

// Temporal computes the time-of-day context used for rule evaluation and
// forwarded to the advisory service.
func (e *Engine) Temporal() TemporalContext {
	t := e.now().UTC()
	hour := t.Hour()
	weekday := t.Weekday()
	weekend := weekday == time.Saturday || weekday == time.Sunday

	return TemporalContext{
		HourOfDay:       hour,
		DayOfWeek:       int(weekday),
		IsWeekend:       weekend,
		IsBusinessHours: !weekend && hour >= e.cfg.BusinessHoursStart && hour <= e.cfg.BusinessHoursEnd,
	}
}

// Decide derives a ScalingDecision for the given metrics. The advisory
// service is consulted under its own timeout when available; anything
// invalid, late, or below the confidence floor is discarded in favour of
// the deterministic rules.
func (e *Engine) Decide(ctx context.Context, m telemetrysource.ServiceMetrics, history []telemetrysource.ServiceMetrics) ScalingDecision {
	temporal := e.Temporal()
	ruleTarget, ruleRationale := ruleBasedTarget(m, temporal, e.cfg)

	target := ruleTarget
	rationale := ruleRationale
	confidence := ruleConfidence
	source := SourceRules

	if e.advisor != nil {
		suggestion, err := e.advise(ctx, m, temporal, history)
		switch {
		case err != nil:
			rationale = "fallback: advisory unavailable; " + ruleRationale
		case suggestion.Confidence < e.cfg.ConfidenceFloor:
			rationale = fmt.Sprintf("fallback: advisory confidence %.2f below floor %.2f; %s",
				suggestion.Confidence, e.cfg.ConfidenceFloor, ruleRationale)
		default:
			target = suggestion.TargetReplicas
			rationale = suggestion.Rationale
			confidence = suggestion.Confidence
			source = SourceAdvisory
		}
	}

	target = e.clamp(target)

	// Never drop below current replicas during business hours on advisory
	// say-so; the deterministic rules must independently justify it.
	if temporal.IsBusinessHours && target < m.CurrentReplicas && ruleTarget >= m.CurrentReplicas {
		target = m.CurrentReplicas
		rationale += "; scale-down held during business hours"
	}

	return ScalingDecision{
		ServiceName:        m.ServiceName,
		CurrentReplicas:    m.CurrentReplicas,
		TargetReplicas:     target,
		Rationale:          rationale,
		Confidence:         confidence,
		CoordinationNeeded: e.coordinationNeeded(m.CurrentReplicas, target),
		EstimatedImpact:    estimatedImpact(m.CurrentReplicas, target),
		Source:             source,
		Timestamp:          e.now().UTC(),
	}
}

func (e *Engine) advise(ctx context.Context, m telemetrysource.ServiceMetrics, temporal TemporalContext, history []telemetrysource.ServiceMetrics) (*advisor.Suggestion, error) {
	if len(history) > historyContextSize {
		history = history[len(history)-historyContextSize:]
	}

	adviseCtx, cancel := context.WithTimeout(ctx, e.advisorTimeout)
	defer cancel()

	suggestion, err := e.advisor.Advise(adviseCtx, advisor.Request{
		ServiceName:     m.ServiceName,
		Metrics:         m,
		HourOfDay:       temporal.HourOfDay,
		DayOfWeek:       temporal.DayOfWeek,
		IsWeekend:       temporal.IsWeekend,
		IsBusinessHours: temporal.IsBusinessHours,
		History:         history,
	})
	if err != nil {
		logger.Error(fmt.Sprintf("[Decision] Advisory failed for %s, using rules", m.ServiceName), err)
		return nil, err
	}
	return suggestion, nil
}

func (e *Engine) clamp(target int) int {
	if target < e.cfg.MinReplicas {
		return e.cfg.MinReplicas
	}
	if target > e.cfg.MaxReplicas {
		return e.cfg.MaxReplicas
	}
	return target
}

// coordinationNeeded flags changes whose magnitude exceeds the configured
// factor in either direction (default: more than doubling or halving).
// Advisory metadata for coordination callers, not a gate by itself.
func (e *Engine) coordinationNeeded(current, target int) bool {
	if current <= 0 || target <= 0 || current == target {
		return false
	}
	ratio := float64(target) / float64(current)
	if ratio < 1 {
		ratio = 1 / ratio
	}
	return ratio > e.cfg.CoordinationFactor
}

func estimatedImpact(current, target int) string {
	switch {
	case target > current:
		return fmt.Sprintf("expected to improve performance (%d -> %d replicas)", current, target)
	case target < current:
		return fmt.Sprintf("expected to reduce cost (%d -> %d replicas)", current, target)
	default:
		return "no change expected"
	}
}
