package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ops-guardian/pkg/correlation"
)

type EventsHandler struct {
	Engine *correlation.Engine
}

func (h *EventsHandler) RegisterRoutes(r *chi.Mux) {
	r.Post("/events", h.IngestEvent)
	r.Get("/events/correlations/{groupID}", h.GetCorrelation)
	r.Post("/agents/register", h.RegisterAgent)
	r.Get("/agents", h.ListAgents)
}

// IngestEvent godoc
// @Summary Ingest an agent event
// @Description Accepts an event from a peer agent and files it into its correlation group
// @Tags events
// @Accept json
// @Produce json
// @Param request body correlation.AgentEvent true "Agent event"
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /events [post]
func (h *EventsHandler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var event correlation.AgentEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if event.EventType == "" || event.SourceAgent == "" {
		respondError(w, http.StatusBadRequest, "eventType and sourceAgent are required")
		return
	}

	groupID := h.Engine.Ingest(event)

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"groupId":    groupID,
		"groupSize":  h.Engine.GroupSize(groupID),
		"openGroups": h.Engine.OpenGroups(),
	})
}

// GetCorrelation godoc
// @Summary Read a correlation group
// @Description Returns an audience-tailored explanation draft for a correlation group
// @Tags events
// @Produce json
// @Param groupID path string true "Correlation group id"
// @Param audience query string false "Target audience (operator or user)" default(operator)
// @Success 200 {object} correlation.ExplanationDraft
// @Failure 404 {object} map[string]string
// @Router /events/correlations/{groupID} [get]
func (h *EventsHandler) GetCorrelation(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	audience := r.URL.Query().Get("audience")

	draft := h.Engine.Read(groupID, audience)
	if draft == nil {
		respondError(w, http.StatusNotFound, "Correlation group not found or expired")
		return
	}

	respondJSON(w, http.StatusOK, draft)
}

func (h *EventsHandler) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentName string                 `json:"agentName"`
		State     map[string]interface{} `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AgentName == "" {
		respondError(w, http.StatusBadRequest, "agentName is required")
		return
	}

	h.Engine.RegisterAgentState(req.AgentName, req.State)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"registered": req.AgentName,
	})
}

func (h *EventsHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	states := h.Engine.AgentStates()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(states),
		"agents": states,
	})
}
