package core

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rivalscan/rivalscan/config"
	"github.com/rivalscan/rivalscan/internal/agent/telemetry"
	"github.com/rivalscan/rivalscan/internal/cache"
	"github.com/rivalscan/rivalscan/tools/web_search"
)

// Orchestrator coordinates the four-stage research workflow:
// planning, web search, gap analysis and report generation.
type Orchestrator struct {
	config    *config.Config
	logger    *log.Logger
	telemetry *telemetry.Telemetry
	tracer    trace.Tracer
	llm       LLMProvider

	planner     *PlannerAgent
	webSearcher *WebSearcherAgent
	gapAnalyzer *GapAnalyzerAgent
	curator     *ResponseCuratorAgent

	mu        sync.RWMutex
	workflows map[string]*WorkflowExecution
}

// NewOrchestrator wires the agents from configuration. Missing provider
// credentials fail here, before any work is accepted.
func NewOrchestrator(ctx context.Context, cfg *config.Config, tele *telemetry.Telemetry) (*Orchestrator, error) {
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	llm, err := NewLLMProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}

	searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Search.Provider), cfg.Search.APIKey, cfg.Search.BaseURL, cfg.Search.Timeout)
	if err != nil {
		return nil, fmt.Errorf("creating web searcher: %w", err)
	}

	var sc *cache.SearchCache
	if cfg.Cache.Addr != "" {
		sc, err = cache.New(ctx, cfg.Cache)
		if err != nil {
			// cache is an optimization, not a dependency
			log.Printf("[ORCH] Warning: search cache unavailable: %v", err)
			sc = nil
		}
	}

	o := &Orchestrator{
		config:      cfg,
		logger:      log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
		telemetry:   tele,
		tracer:      otel.Tracer("orchestrator"),
		llm:         llm,
		planner:     NewPlannerAgent(cfg, llm),
		webSearcher: NewWebSearcherAgent(cfg, llm, searcher, sc, tele),
		gapAnalyzer: NewGapAnalyzerAgent(cfg, llm),
		curator:     NewResponseCuratorAgent(cfg, llm),
		workflows:   make(map[string]*WorkflowExecution),
	}
	o.logger.Printf("Orchestrator initialized with all sub-agents")
	return o, nil
}

// newOrchestratorWithAgents is the test seam: it wires pre-built agents
// without touching live providers.
func newOrchestratorWithAgents(cfg *config.Config, tele *telemetry.Telemetry, planner *PlannerAgent, searcher *WebSearcherAgent, gap *GapAnalyzerAgent, curator *ResponseCuratorAgent) *Orchestrator {
	return &Orchestrator{
		config:      cfg,
		logger:      log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
		telemetry:   tele,
		tracer:      otel.Tracer("orchestrator"),
		llm:         planner.llm,
		planner:     planner,
		webSearcher: searcher,
		gapAnalyzer: gap,
		curator:     curator,
		workflows:   make(map[string]*WorkflowExecution),
	}
}

// ExecuteResearch runs the complete workflow for one query. It never
// returns an error: failures are reported in the outcome envelope together
// with whatever completed stages produced.
func (o *Orchestrator) ExecuteResearch(ctx context.Context, query ResearchQuery) (outcome ResearchOutcome) {
	workflowID := uuid.New().String()
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "orchestrator.ExecuteResearch",
		trace.WithAttributes(
			attribute.String("workflow.id", workflowID),
			attribute.String("research.depth", string(query.Depth)),
		))
	defer span.End()

	workflow := &WorkflowExecution{
		WorkflowID: workflowID,
		Query:      query,
		Steps: []WorkflowStep{
			{StepName: "planning", AgentName: "PlannerAgent", Status: StatusPending},
			{StepName: "web_search", AgentName: "WebSearcherAgent", Status: StatusPending},
			{StepName: "gap_analysis", AgentName: "GapAnalyzerAgent", Status: StatusPending},
			{StepName: "report_generation", AgentName: "ResponseCuratorAgent", Status: StatusPending},
		},
		Status:    StatusInProgress,
		StartedAt: start,
	}
	o.trackWorkflow(workflow)

	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, fmt.Sprint(r))
			outcome = o.handleWorkflowFailure(ctx, workflow, start, "Unexpected error", fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := query.Normalize(); err != nil {
		return o.handleWorkflowFailure(ctx, workflow, start, "Invalid query", err.Error())
	}
	workflow.Query = query

	o.logger.Printf("Starting research workflow %s for query: %.50s...", workflowID, query.Query)

	var totalTokens int64
	var totalCost float64

	// Step 1: planning
	o.logger.Printf("Step 1: Creating research plan...")
	o.beginStep(workflow, 0)
	plan, planResp := runStageSpan(o, ctx, "planning", func(ctx context.Context) (ResearchPlan, AgentResponse) {
		return o.planner.CreateResearchPlan(ctx, query)
	})
	if planResp.Status == StatusFailed {
		return o.handleWorkflowFailure(ctx, workflow, start, "Planning failed", planResp.Error)
	}
	o.completeStep(workflow, 0, planResp)
	totalTokens += planResp.TokensUsed
	totalCost += planResp.CostUSD
	o.logger.Printf("Research plan created: %s", plan.MainObjective)

	// Step 2: web search
	o.logger.Printf("Step 2: Executing web searches...")
	o.beginStep(workflow, 1)
	searchOutcome, searchResp := runStageSpan(o, ctx, "web_search", func(ctx context.Context) (SearchOutcome, AgentResponse) {
		return o.webSearcher.ExecuteResearch(ctx, plan)
	})
	if searchResp.Status == StatusFailed {
		return o.handleWorkflowFailure(ctx, workflow, start, "Web search failed", searchResp.Error)
	}
	o.completeStep(workflow, 1, searchResp)
	totalTokens += searchResp.TokensUsed
	totalCost += searchResp.CostUSD
	o.logger.Printf("Web search completed: %d competitors found", len(searchOutcome.Competitors))

	// Step 3: gap analysis
	o.logger.Printf("Step 3: Analyzing research gaps...")
	o.beginStep(workflow, 2)
	gapAnalysis, gapResp := runStageSpan(o, ctx, "gap_analysis", func(ctx context.Context) (GapAnalysis, AgentResponse) {
		return o.gapAnalyzer.AnalyzeResearchGaps(ctx, plan, searchOutcome.Competitors, searchOutcome.Results)
	})
	if gapResp.Status == StatusFailed {
		return o.handleWorkflowFailure(ctx, workflow, start, "Gap analysis failed", gapResp.Error)
	}
	o.completeStep(workflow, 2, gapResp)
	totalTokens += gapResp.TokensUsed
	totalCost += gapResp.CostUSD
	o.logger.Printf("Gap analysis completed: %.0f%% data quality", gapAnalysis.DataQualityScore*100)

	// Step 4: insights + report
	o.logger.Printf("Step 4: Generating insights and final report...")
	o.beginStep(workflow, 3)
	insights, insightsResp := runStageSpan(o, ctx, "insights", func(ctx context.Context) (CompetitiveInsights, AgentResponse) {
		return o.curator.GenerateCompetitiveInsights(ctx, searchOutcome.Competitors, plan, gapAnalysis)
	})
	if insightsResp.Status == StatusFailed {
		return o.handleWorkflowFailure(ctx, workflow, start, "Insights generation failed", insightsResp.Error)
	}
	totalTokens += insightsResp.TokensUsed
	totalCost += insightsResp.CostUSD

	totalDuration := time.Since(start).Seconds()
	report, reportResp := runStageSpan(o, ctx, "report_generation", func(ctx context.Context) (ResearchReport, AgentResponse) {
		return o.curator.CreateResearchReport(ctx, query, plan, searchOutcome.Competitors, gapAnalysis, insights, searchOutcome.Results, totalDuration)
	})
	if reportResp.Status == StatusFailed {
		return o.handleWorkflowFailure(ctx, workflow, start, "Report generation failed", reportResp.Error)
	}
	o.completeStep(workflow, 3, reportResp)
	totalTokens += reportResp.TokensUsed
	totalCost += reportResp.CostUSD

	markdown := o.curator.FormatMarkdownReport(report)

	now := time.Now()
	workflow.Status = StatusCompleted
	workflow.CompletedAt = &now
	workflow.TotalDurationSeconds = time.Since(start).Seconds()
	workflow.FinalReport = &report
	o.trackWorkflow(workflow)

	o.logger.Printf("Research workflow completed successfully in %.2fs", workflow.TotalDurationSeconds)
	if o.telemetry != nil {
		o.telemetry.RecordRunEvent(ctx, telemetry.RunEvent{
			WorkflowID:     workflowID,
			Query:          query.Query,
			StartTime:      start,
			EndTime:        now,
			ProcessingTime: now.Sub(start),
			Success:        true,
			Cost:           totalCost,
			TokensUsed:     totalTokens,
			Competitors:    len(searchOutcome.Competitors),
			Searches:       searchOutcome.TotalSearches,
		})
	}

	return ResearchOutcome{
		Success:        true,
		WorkflowID:     workflowID,
		Report:         &report,
		MarkdownReport: markdown,
		Workflow:       *workflow,
		Metrics: RunMetrics{
			DurationSeconds:   workflow.TotalDurationSeconds,
			CompetitorsFound:  len(searchOutcome.Competitors),
			SearchesPerformed: len(searchOutcome.Results),
			DataQualityScore:  gapAnalysis.DataQualityScore,
			EstimatedCostUSD:  totalCost,
			TotalTokens:       totalTokens,
		},
	}
}

// runStage wraps one agent call in a span and an agent telemetry event.
func runStageSpan[T any](o *Orchestrator, ctx context.Context, name string, fn func(context.Context) (T, AgentResponse)) (T, AgentResponse) {
	ctx, span := o.tracer.Start(ctx, "stage."+name)
	defer span.End()

	stageStart := time.Now()
	artifact, resp := fn(ctx)

	if resp.Status == StatusFailed {
		span.SetStatus(codes.Error, resp.Error)
	} else if resp.Error != "" {
		span.SetAttributes(attribute.String("stage.advisory", resp.Error))
	}
	if o.telemetry != nil {
		model := ""
		if o.llm != nil {
			model = o.llm.Model()
		}
		o.telemetry.RecordAgentEvent(ctx, telemetry.AgentEvent{
			AgentType:  resp.AgentName,
			StartTime:  stageStart,
			EndTime:    time.Now(),
			Duration:   time.Since(stageStart),
			Success:    resp.Status != StatusFailed,
			Error:      resp.Error,
			Cost:       resp.CostUSD,
			TokensUsed: resp.TokensUsed,
			ModelUsed:  model,
		})
	}
	return artifact, resp
}

func (o *Orchestrator) beginStep(workflow *WorkflowExecution, idx int) {
	now := time.Now()
	workflow.CurrentStep = idx
	workflow.Steps[idx].Status = StatusInProgress
	workflow.Steps[idx].StartedAt = &now
	o.trackWorkflow(workflow)
}

func (o *Orchestrator) completeStep(workflow *WorkflowExecution, idx int, resp AgentResponse) {
	now := time.Now()
	workflow.Steps[idx].Status = StatusCompleted
	workflow.Steps[idx].CompletedAt = &now
	workflow.Steps[idx].OutputData = resp.Data
	if resp.Error != "" {
		// advisory from a soft fallback, recorded but non-fatal
		workflow.Steps[idx].ErrorMessage = resp.Error
	}
	o.trackWorkflow(workflow)
}

// handleWorkflowFailure finalizes a failed workflow and packages partial
// results from the steps that completed before the failure.
func (o *Orchestrator) handleWorkflowFailure(ctx context.Context, workflow *WorkflowExecution, start time.Time, errorType, errorMessage string) ResearchOutcome {
	now := time.Now()
	workflow.Status = StatusFailed
	workflow.CompletedAt = &now
	workflow.TotalDurationSeconds = now.Sub(start).Seconds()

	failedStep := ""
	if workflow.CurrentStep < len(workflow.Steps) {
		step := &workflow.Steps[workflow.CurrentStep]
		step.Status = StatusFailed
		step.ErrorMessage = errorMessage
		step.CompletedAt = &now
		failedStep = step.StepName
	}
	o.trackWorkflow(workflow)

	o.logger.Printf("Workflow %s failed: %s - %s", workflow.WorkflowID, errorType, errorMessage)
	if o.telemetry != nil {
		o.telemetry.RecordRunEvent(ctx, telemetry.RunEvent{
			WorkflowID:     workflow.WorkflowID,
			Query:          workflow.Query.Query,
			StartTime:      start,
			EndTime:        now,
			ProcessingTime: now.Sub(start),
			Success:        false,
			Error:          errorMessage,
		})
	}

	return ResearchOutcome{
		Success:        false,
		WorkflowID:     workflow.WorkflowID,
		Workflow:       *workflow,
		ErrorType:      errorType,
		ErrorMessage:   errorMessage,
		FailedStep:     failedStep,
		PartialResults: extractPartialResults(workflow),
		Metrics: RunMetrics{
			DurationSeconds: workflow.TotalDurationSeconds,
		},
	}
}

// extractPartialResults collects output payloads from completed steps.
func extractPartialResults(workflow *WorkflowExecution) map[string]map[string]interface{} {
	partial := make(map[string]map[string]interface{})
	for _, step := range workflow.Steps {
		if step.Status == StatusCompleted && len(step.OutputData) > 0 {
			partial[step.StepName] = step.OutputData
		}
	}
	return partial
}

func (o *Orchestrator) trackWorkflow(workflow *WorkflowExecution) {
	snapshot := *workflow
	snapshot.Steps = append([]WorkflowStep(nil), workflow.Steps...)
	o.mu.Lock()
	o.workflows[workflow.WorkflowID] = &snapshot
	o.mu.Unlock()
}

// GetWorkflowStatus returns the tracked state of a workflow, if known.
// State is in-memory only and does not survive restarts.
func (o *Orchestrator) GetWorkflowStatus(workflowID string) (*WorkflowExecution, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	wf, ok := o.workflows[workflowID]
	return wf, ok
}

// ValidateSystem probes each component and reports overall health.
func (o *Orchestrator) ValidateSystem(ctx context.Context) ValidationReport {
	o.logger.Printf("Validating system components...")

	report := ValidationReport{
		Components: make(map[string]ComponentStatus),
		CheckedAt:  time.Now(),
	}

	if err := o.config.ValidateCredentials(); err != nil {
		report.Components["configuration"] = ComponentStatus{Status: "error", Details: err.Error()}
		report.Recommendations = append(report.Recommendations, "Check your configuration and API keys")
	} else {
		report.Components["configuration"] = ComponentStatus{Status: "ok", Details: "Configuration and API keys present"}
	}

	testQuery := ResearchQuery{Query: "test market analysis", Depth: DepthBasic, MaxResults: 3}
	_, planResp := o.planner.CreateResearchPlan(ctx, testQuery)
	switch {
	case planResp.Status == StatusCompleted && planResp.Error == "":
		report.Components["planner_agent"] = ComponentStatus{Status: "ok", Details: "Planning agent produced a plan"}
	case planResp.Status == StatusCompleted:
		report.Components["planner_agent"] = ComponentStatus{Status: "warn", Details: planResp.Error}
		report.Recommendations = append(report.Recommendations, "Check your OPENAI_API_KEY")
	default:
		report.Components["planner_agent"] = ComponentStatus{Status: "error", Details: planResp.Error}
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := o.webSearcher.search.Validate(probeCtx)
	cancel()
	if err != nil {
		report.Components["web_searcher_agent"] = ComponentStatus{Status: "error", Details: fmt.Sprintf("search provider probe failed: %v", err)}
		report.Recommendations = append(report.Recommendations, "Check your TAVILY_API_KEY")
	} else {
		report.Components["web_searcher_agent"] = ComponentStatus{Status: "ok", Details: "Search provider credential validated"}
	}

	report.Components["gap_analyzer_agent"] = ComponentStatus{Status: "ok", Details: "Gap analyzer agent initialized"}
	report.Components["response_curator_agent"] = ComponentStatus{Status: "ok", Details: "Response curator agent initialized"}

	hasError, hasWarn := false, false
	for _, comp := range report.Components {
		switch comp.Status {
		case "error":
			hasError = true
		case "warn":
			hasWarn = true
		}
	}
	switch {
	case hasError:
		report.OverallStatus = "error"
	case hasWarn:
		report.OverallStatus = "degraded"
	default:
		report.OverallStatus = "operational"
	}

	o.logger.Printf("System validation completed: %s", report.OverallStatus)
	return report
}
