package advisor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ops-guardian/pkg/config"
)

func newClientFor(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(config.AdvisorConfig{BaseURL: server.URL, Timeout: time.Second})
	if client == nil {
		t.Fatal("expected client for configured base URL")
	}
	return client, server
}

func TestNewClientNilWithoutBaseURL(t *testing.T) {
	if c := NewClient(config.AdvisorConfig{}); c != nil {
		t.Fatal("expected nil client without base URL")
	}
}

func TestAdviseParsesSuggestion(t *testing.T) {
	client, _ := newClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/advise" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"targetReplicas": 4, "rationale": "traffic growth", "confidence": 0.85}`))
	})

	suggestion, err := client.Advise(context.Background(), Request{ServiceName: "frontend"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if suggestion.TargetReplicas != 4 || suggestion.Confidence != 0.85 {
		t.Fatalf("unexpected suggestion %+v", suggestion)
	}
}

func TestAdviseRejectsMalformedBody(t *testing.T) {
	client, _ := newClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"targetReplicas": "lots"}`))
	})

	_, err := client.Advise(context.Background(), Request{ServiceName: "frontend"})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestAdviseRejectsUnknownFields(t *testing.T) {
	client, _ := newClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"targetReplicas": 4, "confidence": 0.9, "surprise": true}`))
	})

	_, err := client.Advise(context.Background(), Request{ServiceName: "frontend"})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown fields, got %v", err)
	}
}

func TestAdviseRejectsNonPositiveTarget(t *testing.T) {
	client, _ := newClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"targetReplicas": 0, "confidence": 0.9}`))
	})

	_, err := client.Advise(context.Background(), Request{ServiceName: "frontend"})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for zero target, got %v", err)
	}
}

func TestAdviseRejectsOutOfRangeConfidence(t *testing.T) {
	client, _ := newClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"targetReplicas": 4, "confidence": 1.5}`))
	})

	_, err := client.Advise(context.Background(), Request{ServiceName: "frontend"})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for confidence > 1, got %v", err)
	}
}

func TestAdviseRejectsServerError(t *testing.T) {
	client, _ := newClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Advise(context.Background(), Request{ServiceName: "frontend"})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for HTTP 500, got %v", err)
	}
}

func TestAdviseTimesOut(t *testing.T) {
	client, _ := newClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Advise(ctx, Request{ServiceName: "frontend"})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid on timeout, got %v", err)
	}
}
