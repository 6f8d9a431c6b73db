package telemetry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rivalscan/rivalscan/config"
)

// Telemetry provides monitoring and cost tracking for research runs
type Telemetry struct {
	config      config.TelemetryConfig
	logger      *log.Logger
	metrics     *Metrics
	costTracker *CostTracker
	mu          sync.RWMutex

	runsTotal      *prometheus.CounterVec
	agentDuration  *prometheus.HistogramVec
	searchesTotal  *prometheus.CounterVec
	tokensTotal    prometheus.Counter
	costTotalGauge prometheus.Gauge
}

// Metrics holds various performance metrics
type Metrics struct {
	// Run metrics
	TotalRuns             int64
	SuccessfulRuns        int64
	FailedRuns            int64
	AverageProcessingTime time.Duration

	// Agent metrics
	AgentExecutions   map[string]int64
	AgentSuccessRates map[string]float64
	AgentAverageTimes map[string]time.Duration

	// Search metrics
	SearchRequests     map[string]int64 // source -> count ("web", "knowledge_base")
	SearchSuccessRates map[string]float64

	// LLM metrics
	LLMRequests   int64
	LLMTokensUsed int64
}

// CostTracker tracks LLM spend across runs
type CostTracker struct {
	ModelCosts  map[string]float64
	TotalCost   float64
	TotalTokens int64
}

// RunEvent represents a complete research run
type RunEvent struct {
	WorkflowID     string
	Query          string
	StartTime      time.Time
	EndTime        time.Time
	ProcessingTime time.Duration
	Success        bool
	Error          string
	Cost           float64
	TokensUsed     int64
	Competitors    int
	Searches       int
}

// AgentEvent represents an agent stage execution
type AgentEvent struct {
	WorkflowID string
	AgentType  string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Success    bool
	Error      string
	Cost       float64
	TokensUsed int64
	ModelUsed  string
}

// SearchEvent represents a single search call
type SearchEvent struct {
	Query    string
	Source   string // "web" or "knowledge_base"
	Duration time.Duration
	Success  bool
	Results  int
}

// NewTelemetry creates a new telemetry instance
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: &Metrics{
			AgentExecutions:    make(map[string]int64),
			AgentSuccessRates:  make(map[string]float64),
			AgentAverageTimes:  make(map[string]time.Duration),
			SearchRequests:     make(map[string]int64),
			SearchSuccessRates: make(map[string]float64),
		},
		costTracker: &CostTracker{
			ModelCosts: make(map[string]float64),
		},
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rivalscan_runs_total",
			Help: "Research runs by final status.",
		}, []string{"status"}),
		agentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rivalscan_agent_duration_seconds",
			Help:    "Per-agent stage duration.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"agent"}),
		searchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rivalscan_searches_total",
			Help: "Search calls by source type.",
		}, []string{"source"}),
		tokensTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rivalscan_llm_tokens_total",
			Help: "Total LLM tokens consumed.",
		}),
		costTotalGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rivalscan_llm_cost_usd",
			Help: "Accumulated LLM cost estimate in USD.",
		}),
	}
	return t
}

// Register attaches the prometheus collectors to a registerer. Called once
// by the server; library and CLI callers can skip it.
func (t *Telemetry) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{t.runsTotal, t.agentDuration, t.searchesTotal, t.tokensTotal, t.costTotalGauge} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// RecordRunEvent records a complete research run
func (t *Telemetry) RecordRunEvent(ctx context.Context, event RunEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.TotalRuns++
	status := "completed"
	if event.Success {
		t.metrics.SuccessfulRuns++
	} else {
		t.metrics.FailedRuns++
		status = "failed"
	}
	t.runsTotal.WithLabelValues(status).Inc()

	if t.metrics.TotalRuns == 1 {
		t.metrics.AverageProcessingTime = event.ProcessingTime
	} else {
		total := t.metrics.AverageProcessingTime * time.Duration(t.metrics.TotalRuns-1)
		t.metrics.AverageProcessingTime = (total + event.ProcessingTime) / time.Duration(t.metrics.TotalRuns)
	}

	t.costTracker.TotalCost += event.Cost
	t.costTracker.TotalTokens += event.TokensUsed
	t.costTotalGauge.Set(t.costTracker.TotalCost)

	t.logger.Printf("Run Event: ID=%s, Success=%t, Duration=%v, Cost=$%.4f, Competitors=%d, Searches=%d",
		event.WorkflowID, event.Success, event.ProcessingTime, event.Cost, event.Competitors, event.Searches)
}

// RecordAgentEvent records an agent execution event
func (t *Telemetry) RecordAgentEvent(ctx context.Context, event AgentEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.AgentExecutions[event.AgentType]++
	executions := t.metrics.AgentExecutions[event.AgentType]

	currentSuccess := t.metrics.AgentSuccessRates[event.AgentType] * float64(executions-1)
	if event.Success {
		currentSuccess += 1.0
	}
	t.metrics.AgentSuccessRates[event.AgentType] = currentSuccess / float64(executions)

	currentAvg := t.metrics.AgentAverageTimes[event.AgentType]
	if executions == 1 {
		t.metrics.AgentAverageTimes[event.AgentType] = event.Duration
	} else {
		total := currentAvg * time.Duration(executions-1)
		t.metrics.AgentAverageTimes[event.AgentType] = (total + event.Duration) / time.Duration(executions)
	}

	if event.TokensUsed > 0 {
		t.metrics.LLMRequests++
		t.metrics.LLMTokensUsed += event.TokensUsed
		t.tokensTotal.Add(float64(event.TokensUsed))
	}

	if t.config.CostTrackingEnabled {
		t.costTracker.TotalCost += event.Cost
		t.costTracker.TotalTokens += event.TokensUsed
		t.costTracker.ModelCosts[event.ModelUsed] += event.Cost
		t.costTotalGauge.Set(t.costTracker.TotalCost)
	}
	t.agentDuration.WithLabelValues(event.AgentType).Observe(event.Duration.Seconds())

	t.logger.Printf("Agent Event: Type=%s, Success=%t, Duration=%v, Cost=$%.4f",
		event.AgentType, event.Success, event.Duration, event.Cost)
}

// RecordSearchEvent records a single search call
func (t *Telemetry) RecordSearchEvent(ctx context.Context, event SearchEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.SearchRequests[event.Source]++
	requests := t.metrics.SearchRequests[event.Source]

	currentSuccess := t.metrics.SearchSuccessRates[event.Source] * float64(requests-1)
	if event.Success {
		currentSuccess += 1.0
	}
	t.metrics.SearchSuccessRates[event.Source] = currentSuccess / float64(requests)
	t.searchesTotal.WithLabelValues(event.Source).Inc()

	if t.config.LogIntermediate {
		t.logger.Printf("Search Event: Source=%s, Success=%t, Duration=%v, Results=%d",
			event.Source, event.Success, event.Duration, event.Results)
	}
}

// GetMetrics returns a snapshot of current metrics
func (t *Telemetry) GetMetrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := *t.metrics
	snapshot.AgentExecutions = copyMap(t.metrics.AgentExecutions)
	snapshot.AgentSuccessRates = copyMap(t.metrics.AgentSuccessRates)
	snapshot.AgentAverageTimes = copyMap(t.metrics.AgentAverageTimes)
	snapshot.SearchRequests = copyMap(t.metrics.SearchRequests)
	snapshot.SearchSuccessRates = copyMap(t.metrics.SearchSuccessRates)
	return snapshot
}

// CostSummary is an aggregate view of LLM spend
type CostSummary struct {
	TotalCost   float64            `json:"total_cost"`
	TotalTokens int64              `json:"total_tokens"`
	ModelCosts  map[string]float64 `json:"model_costs"`
}

// GetCostSummary returns a snapshot of accumulated cost
func (t *Telemetry) GetCostSummary() CostSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return CostSummary{
		TotalCost:   t.costTracker.TotalCost,
		TotalTokens: t.costTracker.TotalTokens,
		ModelCosts:  copyMap(t.costTracker.ModelCosts),
	}
}

// GetPerformanceReport returns a human readable metrics summary
func (t *Telemetry) GetPerformanceReport() string {
	m := t.GetMetrics()
	c := t.GetCostSummary()
	return fmt.Sprintf(
		"Runs: %d (ok=%d failed=%d), avg duration %v, LLM tokens %d, cost $%.4f",
		m.TotalRuns, m.SuccessfulRuns, m.FailedRuns, m.AverageProcessingTime, c.TotalTokens, c.TotalCost)
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
