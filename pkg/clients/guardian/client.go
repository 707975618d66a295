package guardian

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"ops-guardian/pkg/config"
	"ops-guardian/pkg/logger"
)

// Client queries a peer guardian agent for active investigations. Scaling
// decisions flagged as coordination-needed are deferred while any
// high-priority investigation is open: investigations outrank scaling.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type alertsResponse struct {
	Alerts []struct {
		Priority string `json:"priority"`
	} `json:"alerts"`
}

// NewClient returns nil when no base URL is configured; a nil client reports
// zero active investigations.
func NewClient(cfg config.GuardianConfig) *Client {
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

// ActiveInvestigations counts open high-priority alerts. Failures are
// treated as zero so an unreachable peer never blocks scaling outright.
func (c *Client) ActiveInvestigations(ctx context.Context) int {
	if c == nil {
		return 0
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/fraud/alerts", nil)
	if err != nil {
		return 0
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("[Guardian] Could not check investigations", err)
		return 0
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Error(fmt.Sprintf("[Guardian] HTTP %d checking investigations", resp.StatusCode), nil)
		return 0
	}

	var alerts alertsResponse
	if err := json.NewDecoder(resp.Body).Decode(&alerts); err != nil {
		return 0
	}

	count := 0
	for _, a := range alerts.Alerts {
		if a.Priority == "high" {
			count++
		}
	}
	return count
}
