package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ops-guardian/pkg/storage"
)

type DecisionsHandler struct {
	Store *storage.DecisionStore
}

func (h *DecisionsHandler) RegisterRoutes(r *chi.Mux) {
	r.Get("/decisions/history", h.GetHistory)
}

// GetHistory godoc
// @Summary Get Decision History
// @Description Retrieves journaled scaling decisions with pagination
// @Tags decisions
// @Produce json
// @Param limit query int false "Limit number of records" default(50)
// @Param offset query int false "Offset for pagination" default(0)
// @Param service query string false "Filter by service name"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /decisions/history [get]
func (h *DecisionsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "Decision journal not available. Check SQLite configuration.")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil {
			limit = v
		}
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil {
			offset = v
		}
	}

	service := r.URL.Query().Get("service")

	records, err := h.Store.GetHistory(storage.GetHistoryOptions{
		Limit:   limit,
		Offset:  offset,
		Service: service,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if records == nil {
		records = []storage.DecisionRecord{}
	}

	count, err := h.Store.GetCount(service)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"decisions": records,
		"pagination": map[string]interface{}{
			"limit":  limit,
			"offset": offset,
			"total":  count,
		},
	})
}
