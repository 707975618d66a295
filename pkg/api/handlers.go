package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ops-guardian/pkg/clients/telemetrysource"
	"ops-guardian/pkg/collector"
	"ops-guardian/pkg/config"
	"ops-guardian/pkg/coordination"
	"ops-guardian/pkg/telemetry"
	"ops-guardian/pkg/worker"
)

type Handler struct {
	Config    *config.Config
	Monitor   *worker.Monitor
	Collector *collector.Collector
	Gate      *coordination.Gate
	Telemetry *telemetrysource.Client
	Exporter  *telemetry.Exporter
	StartTime time.Time
}

func NewHandler(cfg *config.Config, monitor *worker.Monitor, c *collector.Collector, gate *coordination.Gate, ts *telemetrysource.Client, exporter *telemetry.Exporter) *Handler {
	return &Handler{
		Config:    cfg,
		Monitor:   monitor,
		Collector: c,
		Gate:      gate,
		Telemetry: ts,
		Exporter:  exporter,
		StartTime: time.Now(),
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	uptimeSeconds := time.Since(h.StartTime).Seconds()
	uptimeSeconds = float64(int(uptimeSeconds*10)) / 10.0

	ctx := r.Context()
	tsHealth, err := h.Telemetry.CheckHealth(ctx)

	status := "ok"
	var telemetrySource interface{}

	if err == nil {
		telemetrySource = map[string]interface{}{
			"connected": true,
			"status":    tsHealth.Status,
			"baseUrl":   h.Config.Telemetry.BaseURL,
		}
	} else {
		status = "degraded"
		telemetrySource = map[string]interface{}{
			"connected": false,
			"error":     err.Error(),
			"baseUrl":   h.Config.Telemetry.BaseURL,
		}
	}

	influxEnabled, influxStatus := h.Exporter.CheckStatus()
	gateState := h.Gate.Status()

	resp := map[string]interface{}{
		"status":          status,
		"provider":        "ops-guardian",
		"telemetrySource": telemetrySource,
		"monitoring": map[string]interface{}{
			"active":          h.Monitor.IsRunning(),
			"services":        h.Config.Monitoring.Services,
			"pollIntervalSec": int(h.Config.Monitoring.PollInterval.Seconds()),
		},
		"coordination": map[string]interface{}{
			"scalingAllowed": gateState.Active,
		},
		"telemetryExport": map[string]interface{}{
			"enabled": influxEnabled,
			"status":  influxStatus,
		},
		"uptimeSeconds": uptimeSeconds,
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Telemetry.CheckHealth(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"ready": false,
			"error": "telemetry source unreachable",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ready": true})
}

// StartMonitoringHandler godoc
// @Summary Start monitoring
// @Description Starts the periodic telemetry collection and scaling loop
// @Tags monitoring
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /monitoring/start [post]
func (h *Handler) StartMonitoringHandler(w http.ResponseWriter, r *http.Request) {
	alreadyRunning := h.Monitor.IsRunning()
	if !alreadyRunning {
		h.Monitor.Start()
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"monitoring":     "active",
		"alreadyRunning": alreadyRunning,
		"services":       h.Config.Monitoring.Services,
		"intervalSec":    int(h.Config.Monitoring.PollInterval.Seconds()),
	})
}

// StopMonitoringHandler godoc
// @Summary Stop monitoring
// @Description Stops the periodic loop after in-flight cycles drain
// @Tags monitoring
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /monitoring/stop [post]
func (h *Handler) StopMonitoringHandler(w http.ResponseWriter, r *http.Request) {
	wasRunning := h.Monitor.IsRunning()
	if wasRunning {
		h.Monitor.Stop()
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"monitoring": "stopped",
		"wasRunning": wasRunning,
	})
}

func (h *Handler) MonitoringStatusHandler(w http.ResponseWriter, r *http.Request) {
	failures := map[string]int{}
	for _, s := range h.Config.Monitoring.Services {
		failures[s] = h.Collector.ConsecutiveFailures(s)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"active":              h.Monitor.IsRunning(),
		"scalingAllowed":      h.Gate.IsOpen(),
		"services":            h.Config.Monitoring.Services,
		"pollIntervalSec":     int(h.Config.Monitoring.PollInterval.Seconds()),
		"consecutiveFailures": failures,
		"recentDecisions":     h.Monitor.RecentDecisions(),
	})
}

// MetricsSnapshotHandler returns the latest collected metrics per service.
func (h *Handler) MetricsSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := h.Collector.Snapshot()

	services := map[string]interface{}{}
	for name, m := range snapshot {
		services[name] = m
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":          len(services),
		"services":       services,
		"scalingAllowed": h.Gate.IsOpen(),
	})
}

// DecisionHandler godoc
// @Summary Compute a scaling decision
// @Description Collects fresh metrics for a service and returns the resulting decision without executing it
// @Tags scaling
// @Accept json
// @Produce json
// @Param request body object true "Service name"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /scaling/decision [post]
func (h *Handler) DecisionHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServiceName string `json:"serviceName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ServiceName == "" {
		respondError(w, http.StatusBadRequest, "serviceName is required")
		return
	}

	d, err := h.Monitor.DecideNow(r.Context(), req.ServiceName)
	if err != nil {
		if errors.Is(err, worker.ErrServiceNotMonitored) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		if errors.Is(err, telemetrysource.ErrUnavailable) {
			respondError(w, http.StatusServiceUnavailable, "Telemetry source unavailable")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"decision":       d,
		"scalingAllowed": h.Gate.IsOpen(),
	})
}

// ManualScaleHandler godoc
// @Summary Manually scale a service
// @Description Applies an operator-requested replica count, clamped to the configured band
// @Tags scaling
// @Accept json
// @Produce json
// @Param request body object true "Service name and target replicas"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /scaling/manual [post]
func (h *Handler) ManualScaleHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServiceName    string `json:"serviceName"`
		TargetReplicas *int   `json:"targetReplicas"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ServiceName == "" || req.TargetReplicas == nil {
		respondError(w, http.StatusBadRequest, "serviceName and targetReplicas are required")
		return
	}

	applied, executed, reason, err := h.Monitor.ManualScale(r.Context(), req.ServiceName, *req.TargetReplicas)
	if err != nil {
		if errors.Is(err, worker.ErrServiceNotMonitored) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusBadGateway, "Failed to scale service: "+err.Error())
		return
	}

	resp := map[string]interface{}{
		"serviceName":    req.ServiceName,
		"targetReplicas": applied,
		"executed":       executed,
	}
	if reason != "" {
		resp["reason"] = reason
	}
	respondJSON(w, http.StatusOK, resp)
}

// PauseHandler godoc
// @Summary Pause scaling
// @Description Closes the coordination gate; the first pause reason is kept until resume
// @Tags coordination
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /coordination/pause [post]
func (h *Handler) PauseHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Reason == "" {
		respondError(w, http.StatusBadRequest, "reason is required")
		return
	}

	state := h.Gate.Pause(req.Reason)
	respondJSON(w, http.StatusOK, coordinationStatusBody(state))
}

func (h *Handler) ResumeHandler(w http.ResponseWriter, r *http.Request) {
	state := h.Gate.Resume()
	respondJSON(w, http.StatusOK, coordinationStatusBody(state))
}

func (h *Handler) CoordinationStatusHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, coordinationStatusBody(h.Gate.Status()))
}

func coordinationStatusBody(state coordination.State) map[string]interface{} {
	body := map[string]interface{}{
		"scalingAllowed": state.Active,
	}
	if !state.Active {
		body["pausedReason"] = state.PausedReason
	}
	if !state.ChangedAt.IsZero() {
		body["changedAt"] = state.ChangedAt.UTC().Format(time.RFC3339)
	}
	return body
}
