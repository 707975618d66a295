package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful operations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed operations.
	OutcomeError = "error"
)

var (
	pollCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ops_guardian",
			Name:      "poll_cycles_total",
			Help:      "Telemetry collection attempts, partitioned by service and outcome.",
		},
		[]string{"service", "outcome"},
	)

	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ops_guardian",
			Name:      "scaling_decisions_total",
			Help:      "Scaling decisions computed, partitioned by source (advisory or rules).",
		},
		[]string{"source"},
	)

	actuationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ops_guardian",
			Name:      "actuations_total",
			Help:      "Actuator calls, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	coordinationBlockedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ops_guardian",
			Name:      "coordination_blocked_total",
			Help:      "Decision executions skipped because the coordination gate was closed.",
		},
	)

	openCorrelationGroups = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ops_guardian",
			Name:      "open_correlation_groups",
			Help:      "Correlation groups currently buffered inside their window.",
		},
	)
)

// Register attaches ops-guardian collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pollCyclesTotal,
		decisionsTotal,
		actuationsTotal,
		coordinationBlockedTotal,
		openCorrelationGroups,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePollCycle records one collection attempt for a service.
func ObservePollCycle(service string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	pollCyclesTotal.WithLabelValues(service, outcome).Inc()
}

// ObserveDecision records a computed decision by its source.
func ObserveDecision(source string) {
	decisionsTotal.WithLabelValues(source).Inc()
}

// ObserveActuation records an actuator call outcome.
func ObserveActuation(err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	actuationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCoordinationBlocked counts a skipped execution while paused.
func ObserveCoordinationBlocked() {
	coordinationBlockedTotal.Inc()
}

// SetOpenCorrelationGroups tracks the correlation buffer size.
func SetOpenCorrelationGroups(n int) {
	openCorrelationGroups.Set(float64(n))
}
