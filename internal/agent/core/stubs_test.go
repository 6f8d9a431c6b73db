package core

import (
	"context"
	"sync"
	"time"

	"github.com/rivalscan/rivalscan/config"
	"github.com/rivalscan/rivalscan/internal/agent/telemetry"
	"github.com/rivalscan/rivalscan/tools/web_search/models"
)

// stubLLM returns canned text or delegates to a responder.
type stubLLM struct {
	response  string
	err       error
	inTokens  int64
	outTokens int64
	panicMsg  string
	responder func(prompt string, options map[string]interface{}) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, options map[string]interface{}) (string, error) {
	text, _, _, err := s.GenerateWithTokens(ctx, prompt, options)
	return text, err
}

func (s *stubLLM) GenerateWithTokens(ctx context.Context, prompt string, options map[string]interface{}) (string, int64, int64, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	if s.responder != nil {
		text, err := s.responder(prompt, options)
		return text, s.inTokens, s.outTokens, err
	}
	return s.response, s.inTokens, s.outTokens, s.err
}

func (s *stubLLM) CalculateCost(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens+outputTokens) / 1000.0 * 0.01
}

func (s *stubLLM) Model() string { return "stub-model" }

// stubSearcher implements web_search.WebSearcher and tracks concurrency.
type stubSearcher struct {
	validateErr error
	discover    func(ctx context.Context, query string, params models.Params) (models.Response, error)

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	queries     []string
}

func (s *stubSearcher) Discover(ctx context.Context, query string, params models.Params) (models.Response, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()
	if s.discover != nil {
		return s.discover(ctx, query, params)
	}
	return models.Response{Query: query}, nil
}

func (s *stubSearcher) Validate(ctx context.Context) error { return s.validateErr }

func testCoreConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Search.MaxResults = 5
	cfg.Search.Depth = "basic"
	cfg.Search.Topic = "general"
	cfg.Search.Timeout = 2 * time.Second
	cfg.Search.MaxRetries = 3
	cfg.Agents.MaxConcurrentSearches = 5
	cfg.Output.IncludeCitations = true
	return cfg
}

func newTestTelemetry() *telemetry.Telemetry {
	return telemetry.NewTelemetry(config.TelemetryConfig{Enabled: true, CostTrackingEnabled: true})
}
