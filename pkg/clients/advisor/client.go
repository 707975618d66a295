package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ops-guardian/pkg/clients/telemetrysource"
	"ops-guardian/pkg/common"
	"ops-guardian/pkg/config"
)

// ErrInvalid covers every way an advisory call can fail to produce a usable
// suggestion: transport error, timeout, non-2xx, or a body that does not
// parse into the expected shape. Callers treat all of them as unavailability.
var ErrInvalid = errors.New("advisory unavailable or invalid")

// Request is the payload sent to the predictive advisory service: current
// metrics, temporal context and up to the last five snapshots.
type Request struct {
	ServiceName     string                           `json:"serviceName"`
	Metrics         telemetrysource.ServiceMetrics   `json:"metrics"`
	HourOfDay       int                              `json:"hourOfDay"`
	DayOfWeek       int                              `json:"dayOfWeek"`
	IsWeekend       bool                             `json:"isWeekend"`
	IsBusinessHours bool                             `json:"isBusinessHours"`
	History         []telemetrysource.ServiceMetrics `json:"history,omitempty"`
}

// Suggestion is the advisory response shape. Anything that fails to parse
// into it is discarded by the caller.
type Suggestion struct {
	TargetReplicas int     `json:"targetReplicas"`
	Rationale      string  `json:"rationale"`
	Confidence     float64 `json:"confidence"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns nil when no base URL is configured; a nil client means
// the engine always falls back to deterministic rules.
func NewClient(cfg config.AdvisorConfig) *Client {
	if cfg.BaseURL == "" {
		return nil
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *Client) Advise(ctx context.Context, req Request) (*Suggestion, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrInvalid, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/advise", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if cid, ok := ctx.Value(common.CorrelationIDKey).(string); ok {
		httpReq.Header.Set("X-Correlation-Id", cid)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrInvalid, resp.StatusCode)
	}

	var suggestion Suggestion
	dec := json.NewDecoder(resp.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&suggestion); err != nil {
		return nil, fmt.Errorf("%w: malformed body: %v", ErrInvalid, err)
	}

	if suggestion.TargetReplicas <= 0 {
		return nil, fmt.Errorf("%w: non-positive target %d", ErrInvalid, suggestion.TargetReplicas)
	}
	if suggestion.Confidence < 0 || suggestion.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %.2f outside [0,1]", ErrInvalid, suggestion.Confidence)
	}

	return &suggestion, nil
}
