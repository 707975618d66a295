package guardian

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ops-guardian/pkg/config"
)

func newClientFor(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.GuardianConfig{BaseURL: server.URL, Timeout: time.Second})
}

func TestActiveInvestigationsCountsHighPriority(t *testing.T) {
	client := newClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fraud/alerts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"alerts": [{"priority": "high"}, {"priority": "low"}, {"priority": "high"}]}`))
	})

	if n := client.ActiveInvestigations(context.Background()); n != 2 {
		t.Fatalf("expected 2 high-priority alerts, got %d", n)
	}
}

func TestActiveInvestigationsZeroOnError(t *testing.T) {
	client := newClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if n := client.ActiveInvestigations(context.Background()); n != 0 {
		t.Fatalf("expected 0 on server error, got %d", n)
	}
}

func TestActiveInvestigationsZeroOnBadBody(t *testing.T) {
	client := newClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	if n := client.ActiveInvestigations(context.Background()); n != 0 {
		t.Fatalf("expected 0 on malformed body, got %d", n)
	}
}

func TestNilClientReportsZero(t *testing.T) {
	var client *Client
	if n := client.ActiveInvestigations(context.Background()); n != 0 {
		t.Fatalf("expected nil client to report 0, got %d", n)
	}
}
