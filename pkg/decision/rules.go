package decision

import (
	"fmt"
	"strings"

	"ops-guardian/pkg/clients/telemetrysource"
	"ops-guardian/pkg/config"
)

// Deterministic thresholds. Scale-up fires on any breach; scale-down needs
// every metric comfortably idle and only applies outside business hours.
const (
	scaleUpCPU     = 75.0
	scaleUpMemory  = 80.0
	scaleUpLatency = 500.0
	scaleUpErrors  = 1.0

	scaleDownCPU     = 30.0
	scaleDownMemory  = 40.0
	scaleDownLatency = 200.0
	scaleDownErrors  = 0.1

	ruleConfidence = 0.8
)

// ruleBasedTarget applies the deterministic fallback rules and returns the
// target replica count before clamping, plus the rationale for it.
func ruleBasedTarget(m telemetrysource.ServiceMetrics, temporal TemporalContext, cfg config.ScalingConfig) (int, string) {
	var triggers []string
	if m.CPUUsage > scaleUpCPU {
		triggers = append(triggers, fmt.Sprintf("CPU %.1f%% > %.0f%%", m.CPUUsage, scaleUpCPU))
	}
	if m.MemoryUsage > scaleUpMemory {
		triggers = append(triggers, fmt.Sprintf("memory %.1f%% > %.0f%%", m.MemoryUsage, scaleUpMemory))
	}
	if m.ResponseTimeAvg > scaleUpLatency {
		triggers = append(triggers, fmt.Sprintf("latency %.0fms > %.0fms", m.ResponseTimeAvg, scaleUpLatency))
	}
	if m.ErrorRate > scaleUpErrors {
		triggers = append(triggers, fmt.Sprintf("error rate %.2f%% > %.1f%%", m.ErrorRate, scaleUpErrors))
	}

	if len(triggers) > 0 {
		return m.CurrentReplicas + 1, "high resource usage (" + strings.Join(triggers, ", ") + ")"
	}

	idle := m.CPUUsage < scaleDownCPU &&
		m.MemoryUsage < scaleDownMemory &&
		m.ResponseTimeAvg < scaleDownLatency &&
		m.ErrorRate < scaleDownErrors

	if idle && m.CurrentReplicas > cfg.MinReplicas {
		if temporal.IsBusinessHours {
			return m.CurrentReplicas, "all scale-down thresholds met but holding during business hours"
		}
		return m.CurrentReplicas - 1, fmt.Sprintf("low resource usage during off-hours (CPU %.1f%%)", m.CPUUsage)
	}

	return m.CurrentReplicas, "metrics within acceptable ranges"
}
