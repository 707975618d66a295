package telemetrysource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ops-guardian/pkg/common"
	"ops-guardian/pkg/config"
	"ops-guardian/pkg/logger"
)

// ErrUnavailable marks a transient telemetry source failure; callers retry
// on the next cycle instead of treating it as fatal.
var ErrUnavailable = errors.New("telemetry source unavailable")

// ServiceMetrics is a point-in-time resource reading for one monitored
// service. Instances are immutable once captured and passed by value.
type ServiceMetrics struct {
	ServiceName     string    `json:"serviceName"`
	CPUUsage        float64   `json:"cpuUsage"`
	MemoryUsage     float64   `json:"memoryUsage"`
	CurrentReplicas int       `json:"currentReplicas"`
	DesiredReplicas int       `json:"desiredReplicas"`
	ResponseTimeAvg float64   `json:"responseTimeAvg"`
	RequestRate     float64   `json:"requestRate"`
	ErrorRate       float64   `json:"errorRate"`
	Timestamp       time.Time `json:"timestamp"`
}

type HealthResponse struct {
	Status                string `json:"status"`
	Stale                 bool   `json:"stale"`
	LastUpdatedSecondsAgo int    `json:"lastUpdatedSecondsAgo"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg config.TelemetryConfig) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *Client) CheckHealth(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetServiceMetrics fetches the current reading for one service. Missing
// fields are normalised: an absent timestamp becomes the fetch time and the
// service name is always the requested one.
func (c *Client) GetServiceMetrics(ctx context.Context, serviceName string) (ServiceMetrics, error) {
	path := fmt.Sprintf("/metrics/%s", url.PathEscape(serviceName))

	var m ServiceMetrics
	if err := c.get(ctx, path, &m); err != nil {
		return ServiceMetrics{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, serviceName, err)
	}

	m.ServiceName = serviceName
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if m.CurrentReplicas < 0 {
		m.CurrentReplicas = 0
	}
	return m, nil
}

func (c *Client) get(ctx context.Context, path string, dest interface{}) error {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}

	if cid, ok := ctx.Value(common.CorrelationIDKey).(string); ok {
		req.Header.Set("X-Correlation-Id", cid)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error(fmt.Sprintf("[TelemetrySource] Request failed for %s", url), err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Error(fmt.Sprintf("[TelemetrySource] HTTP %d for %s", resp.StatusCode, url), nil)
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON response: %w", err)
	}

	return nil
}
