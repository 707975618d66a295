package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ops-guardian/pkg/common"
	"ops-guardian/pkg/config"
)

// ErrActuationFailed signals that the actuator rejected or failed a replica
// change. The cycle ends without retry; the next scheduled cycle re-evaluates
// from fresh metrics.
var ErrActuationFailed = errors.New("actuation failed")

type scaleRequest struct {
	ServiceName    string `json:"serviceName"`
	TargetReplicas int    `json:"targetReplicas"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns nil when no base URL is configured; a nil client makes
// every scale attempt fail with ErrActuationFailed.
func NewClient(cfg config.ActuatorConfig) *Client {
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

func (c *Client) Scale(ctx context.Context, serviceName string, targetReplicas int) error {
	if c == nil {
		return fmt.Errorf("%w: actuator not configured", ErrActuationFailed)
	}

	body, err := json.Marshal(scaleRequest{ServiceName: serviceName, TargetReplicas: targetReplicas})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrActuationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/scale", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrActuationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cid, ok := ctx.Value(common.CorrelationIDKey).(string); ok {
		req.Header.Set("X-Correlation-Id", cid)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrActuationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d scaling %s to %d", ErrActuationFailed, resp.StatusCode, serviceName, targetReplicas)
	}
	return nil
}
