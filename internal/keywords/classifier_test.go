package keywords

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClassifierDecodesVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req classifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Keyword != "cheap replica" {
			t.Errorf("keyword = %q", req.Keyword)
		}
		json.NewEncoder(w).Encode(Classification{
			IsSpam:    true,
			SpamScore: 0.9,
			Reasons:   []string{"counterfeit_term"},
		})
	}))
	defer srv.Close()

	classifier := NewHTTPClassifier(srv.URL, time.Second)
	cls, err := classifier.Classify(context.Background(), "cheap replica")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cls.IsSpam || cls.SpamScore != 0.9 {
		t.Errorf("classification = %+v", cls)
	}
}

func TestHTTPClassifierErrorsOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	classifier := NewHTTPClassifier(srv.URL, time.Second)
	if _, err := classifier.Classify(context.Background(), "kw"); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestHTTPClassifierOpensCircuitAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	classifier := NewHTTPClassifier(srv.URL, time.Second)
	for i := 0; i < 5; i++ {
		_, _ = classifier.Classify(context.Background(), "kw")
	}

	// Circuit is now open; calls fail fast without touching the server.
	srv.Close()
	_, err := classifier.Classify(context.Background(), "kw")
	if err == nil {
		t.Fatal("expected fast failure with open circuit")
	}
}
