package tavily

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rivalscan/rivalscan/tools/web_search/models"
)

func TestDiscoverParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		if body["query"] != "acme competitors" {
			t.Errorf("unexpected query: %v", body["query"])
		}
		if body["api_key"] != "tvly-key" {
			t.Errorf("api_key not forwarded: %v", body["api_key"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"query": "acme competitors",
			"answer": "Acme competes with Initech.",
			"response_time": 0.42,
			"results": [
				{"title": "Initech", "url": "https://initech.example", "content": "ERP vendor", "score": 0.91}
			]
		}`))
	}))
	defer srv.Close()

	s := New("tvly-key", srv.URL, 5*time.Second)
	resp, err := s.Discover(context.Background(), "acme competitors", models.Params{MaxResults: 5, Depth: "advanced", Topic: "general", IncludeAnswer: true})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Results))
	}
	if resp.Results[0].URL != "https://initech.example" {
		t.Errorf("unexpected url: %s", resp.Results[0].URL)
	}
	if resp.Answer == "" {
		t.Errorf("answer not carried through")
	}
}

func TestDiscoverStatusErrors(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrInvalidAPIKey},
		{http.StatusTooManyRequests, ErrRateLimited},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.status)
		}))
		s := New("tvly-key", srv.URL, 5*time.Second)
		_, err := s.Discover(context.Background(), "q", models.Params{MaxResults: 1, Depth: "basic", Topic: "general"})
		if !errors.Is(err, c.want) {
			t.Errorf("status %d: expected %v, got %v", c.status, c.want, err)
		}
		srv.Close()
	}
}

func TestValidateRejectsBadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := New("bad-key", srv.URL, 5*time.Second)
	if err := s.Validate(context.Background()); !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("expected ErrInvalidAPIKey, got %v", err)
	}
}

func TestValidateToleratesThrottling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := New("tvly-key", srv.URL, 5*time.Second)
	if err := s.Validate(context.Background()); err != nil {
		t.Fatalf("throttled probe should pass validation, got %v", err)
	}
}
