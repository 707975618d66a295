package correlation

import "time"

// Severity levels for agent events, in ascending order of impact.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// MergeSeverity returns the higher of two severities; unknown values rank
// lowest.
func MergeSeverity(a, b Severity) Severity {
	if severityRank[b] > severityRank[a] {
		return b
	}
	return a
}

// Target audiences for explanation drafts.
const (
	AudienceUser     = "user"
	AudienceOperator = "operator"
	AudienceBoth     = "both"
)

// AgentEvent is an immutable record emitted by an independent agent.
type AgentEvent struct {
	EventID       string                 `json:"eventId"`
	EventType     string                 `json:"eventType"`
	SourceAgent   string                 `json:"sourceAgent"`
	Severity      Severity               `json:"severity"`
	Context       map[string]interface{} `json:"context,omitempty"`
	Audience      string                 `json:"audience"`
	CorrelationID string                 `json:"correlationId,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

// Group holds the events sharing one correlation id that arrived inside the
// active window. At most one open group exists per id.
type Group struct {
	ID           string
	Events       []AgentEvent
	FirstEventAt time.Time
}

// InvolvedAgents returns the distinct source agents in arrival order.
func (g *Group) InvolvedAgents() []string {
	seen := make(map[string]bool)
	var agents []string
	for _, e := range g.Events {
		if !seen[e.SourceAgent] {
			seen[e.SourceAgent] = true
			agents = append(agents, e.SourceAgent)
		}
	}
	return agents
}

// MaxSeverity returns the merged severity across all member events.
func (g *Group) MaxSeverity() Severity {
	severity := SeverityLow
	for _, e := range g.Events {
		severity = MergeSeverity(severity, e.Severity)
	}
	return severity
}

// ExplanationDraft is the audience-tailored narrative produced on read.
type ExplanationDraft struct {
	GroupID        string    `json:"groupId"`
	CorrelationID  string    `json:"correlationId,omitempty"`
	Audience       string    `json:"audience"`
	Kind           string    `json:"kind"`
	Title          string    `json:"title"`
	Summary        string    `json:"summary"`
	Timeline       []string  `json:"timeline,omitempty"`
	InvolvedAgents []string  `json:"involvedAgents"`
	Severity       Severity  `json:"severity"`
	EventCount     int       `json:"eventCount"`
	GeneratedAt    time.Time `json:"generatedAt"`
}

// Draft kinds.
const (
	KindSingleAgent = "single_agent"
	KindMultiAgent  = "multi_agent"
)

// AgentState is a registered self-report from a peer agent.
type AgentState struct {
	AgentName  string                 `json:"agentName"`
	State      map[string]interface{} `json:"state"`
	LastUpdate time.Time              `json:"lastUpdate"`
}
