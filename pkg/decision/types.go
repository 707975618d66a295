package decision

import "time"

// Decision sources recorded on every ScalingDecision.
const (
	SourceAdvisory = "advisory"
	SourceRules    = "rules"
)

// ScalingDecision is the validated output of one decision cycle. It is
// created fresh every cycle and never mutated afterwards; TargetReplicas is
// always inside the configured [min, max] band regardless of source.
type ScalingDecision struct {
	ServiceName        string    `json:"serviceName"`
	CurrentReplicas    int       `json:"currentReplicas"`
	TargetReplicas     int       `json:"targetReplicas"`
	Rationale          string    `json:"rationale"`
	Confidence         float64   `json:"confidence"`
	CoordinationNeeded bool      `json:"coordinationNeeded"`
	EstimatedImpact    string    `json:"estimatedImpact"`
	Source             string    `json:"source"`
	Timestamp          time.Time `json:"timestamp"`
}

// TemporalContext carries the time-of-day signals computed once per cycle.
// Rule evaluation reads these flags instead of consulting the wall clock.
type TemporalContext struct {
	HourOfDay       int  `json:"hourOfDay"`
	DayOfWeek       int  `json:"dayOfWeek"`
	IsWeekend       bool `json:"isWeekend"`
	IsBusinessHours bool `json:"isBusinessHours"`
}
