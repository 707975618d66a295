package correlation

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Context keys surfaced only to operators. User-facing drafts must read as
// plain narrative with no internal identifiers or coordination mechanics.
var operatorOnlyContextKeys = map[string]bool{
	"correlationId":       true,
	"coordination":        true,
	"coordinationDetails": true,
	"decision":            true,
	"eventId":             true,
	"groupId":             true,
}

func buildDraft(group *Group, audience string, generatedAt time.Time) *ExplanationDraft {
	if audience != AudienceUser {
		audience = AudienceOperator
	}

	agents := group.InvolvedAgents()
	draft := &ExplanationDraft{
		GroupID:        group.ID,
		Audience:       audience,
		InvolvedAgents: agents,
		Severity:       group.MaxSeverity(),
		EventCount:     len(group.Events),
		GeneratedAt:    generatedAt,
	}
	if audience == AudienceOperator {
		draft.CorrelationID = group.ID
	}

	if len(agents) >= 2 {
		draft.Kind = KindMultiAgent
		draft.Title = "Multi-Agent Response"
		draft.Summary = fmt.Sprintf("Coordinated response from %d agents across %d events", len(agents), len(group.Events))
	} else {
		draft.Kind = KindSingleAgent
		draft.Title = "System Event"
		source := "unknown"
		if len(agents) == 1 {
			source = agents[0]
		}
		draft.Summary = fmt.Sprintf("%s reported %d event(s)", source, len(group.Events))
	}

	if audience == AudienceOperator {
		draft.Timeline = buildTimeline(group.Events)
	} else {
		draft.Timeline = buildUserTimeline(group.Events)
	}

	return draft
}

func buildTimeline(events []AgentEvent) []string {
	var lines []string
	for i, e := range events {
		line := fmt.Sprintf("%d. [%s] %s: %s (%s)", i+1, e.Timestamp.UTC().Format("15:04:05"), e.SourceAgent, e.EventType, e.Severity)
		if detail := contextDetail(e.Context, false); detail != "" {
			line += " — " + detail
		}
		lines = append(lines, line)
	}
	return lines
}

func buildUserTimeline(events []AgentEvent) []string {
	var lines []string
	for _, e := range events {
		line := fmt.Sprintf("[%s] %s", e.Timestamp.UTC().Format("15:04"), humanEventType(e.EventType))
		if detail := contextDetail(e.Context, true); detail != "" {
			line += " — " + detail
		}
		lines = append(lines, line)
	}
	return lines
}

func contextDetail(context map[string]interface{}, userFacing bool) string {
	if len(context) == 0 {
		return ""
	}

	keys := make([]string, 0, len(context))
	for k := range context {
		if userFacing && operatorOnlyContextKeys[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, context[k]))
	}
	return strings.Join(parts, ", ")
}

func humanEventType(eventType string) string {
	switch eventType {
	case "system_scaling", "manual_scaling":
		return "We adjusted service capacity to keep things running smoothly"
	case "scaling_paused", "scaling_deferred":
		return "Automatic adjustments were temporarily put on hold"
	case "scaling_resumed":
		return "Automatic adjustments resumed"
	case "fraud_detection":
		return "A security check was completed on your account"
	case "monitoring_degraded":
		return "We noticed a temporary monitoring hiccup"
	default:
		return strings.ReplaceAll(eventType, "_", " ")
	}
}
