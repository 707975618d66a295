package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"ops-guardian/pkg/config"
	"ops-guardian/pkg/coordination"
	"ops-guardian/pkg/correlation"
)

func TestPauseResumeRoundTrip(t *testing.T) {
	h := &Handler{Gate: coordination.NewGate(nil, "ops-guardian")}

	req := httptest.NewRequest("POST", "/coordination/pause", strings.NewReader(`{"reason": "fraud investigation"}`))
	rec := httptest.NewRecorder()
	h.PauseHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&body)
	if body["scalingAllowed"] != false {
		t.Fatalf("expected scaling disallowed, got %v", body)
	}
	if body["pausedReason"] != "fraud investigation" {
		t.Fatalf("expected reason in response, got %v", body)
	}

	rec = httptest.NewRecorder()
	h.ResumeHandler(rec, httptest.NewRequest("POST", "/coordination/resume", nil))

	body = map[string]interface{}{}
	json.NewDecoder(rec.Body).Decode(&body)
	if body["scalingAllowed"] != true {
		t.Fatalf("expected scaling allowed after resume, got %v", body)
	}
}

func TestPauseRequiresReason(t *testing.T) {
	h := &Handler{Gate: coordination.NewGate(nil, "ops-guardian")}

	rec := httptest.NewRecorder()
	h.PauseHandler(rec, httptest.NewRequest("POST", "/coordination/pause", strings.NewReader(`{}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without reason, got %d", rec.Code)
	}
	if !h.Gate.IsOpen() {
		t.Fatal("expected gate untouched by rejected pause")
	}
}

func newEventsRouter(t *testing.T) (*chi.Mux, *correlation.Engine) {
	t.Helper()
	engine := correlation.NewEngine(config.CorrelationConfig{Window: 5 * time.Minute})
	t.Cleanup(engine.Close)

	r := chi.NewRouter()
	(&EventsHandler{Engine: engine}).RegisterRoutes(r)
	return r, engine
}

func TestIngestAndReadCorrelation(t *testing.T) {
	r, _ := newEventsRouter(t)

	payload := `{"eventType": "fraud_detection", "sourceAgent": "financial-guardian", "severity": "high", "correlationId": "corr-1"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/events", strings.NewReader(payload)))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	var ingest map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&ingest)
	if ingest["groupId"] != "corr-1" {
		t.Fatalf("expected group corr-1, got %v", ingest)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/events/correlations/corr-1?audience=operator", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var draft correlation.ExplanationDraft
	json.NewDecoder(rec.Body).Decode(&draft)
	if draft.GroupID != "corr-1" || draft.EventCount != 1 {
		t.Fatalf("unexpected draft %+v", draft)
	}
}

func TestIngestRejectsIncompleteEvent(t *testing.T) {
	r, _ := newEventsRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/events", strings.NewReader(`{"severity": "low"}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestReadUnknownCorrelationReturns404(t *testing.T) {
	r, _ := newEventsRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/events/correlations/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRegisterAndListAgents(t *testing.T) {
	r, _ := newEventsRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/agents/register", strings.NewReader(`{"agentName": "financial-guardian", "state": {"status": "active"}}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/agents", nil))

	var body map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&body)
	if body["count"] != float64(1) {
		t.Fatalf("expected one registered agent, got %v", body)
	}
}

func TestDecisionHistoryWithoutStore(t *testing.T) {
	h := &DecisionsHandler{Store: nil}

	rec := httptest.NewRecorder()
	h.GetHistory(rec, httptest.NewRequest("GET", "/decisions/history", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without store, got %d", rec.Code)
	}
}
