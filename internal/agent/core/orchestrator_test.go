package core

import (
	"context"
	"strings"
	"testing"

	"github.com/rivalscan/rivalscan/tools/web_search/models"
)

// pipelineLLM answers each stage's prompt with a plausible canned payload.
func pipelineLLM() *stubLLM {
	return &stubLLM{
		inTokens:  100,
		outTokens: 50,
		responder: func(prompt string, options map[string]interface{}) (string, error) {
			switch {
			case strings.Contains(prompt, "strategic competitive research plan"):
				return `{
					"main_objective": "Map CRM vendors",
					"research_questions": ["Who leads?"],
					"priority_areas": ["pricing"],
					"search_keywords": ["CRM software"],
					"competitor_names": ["Acme"]
				}`, nil
			case strings.Contains(prompt, "Extract competitor information"):
				// one full profile, one thin one
				return `{"competitors": [
					{"name": "Acme", "website": "https://acme.example.com", "description": "Chatbot vendor",
					 "products": ["Acme Bot", "Acme Voice"],
					 "pricing_info": {"basic": "$10"},
					 "key_features": ["automation", "reporting", "integrations"],
					 "target_market": "SMB",
					 "market_position": "challenger"},
					{"name": "Globex", "website": "https://globex.example.com", "description": "Chatbot startup"}
				]}`, nil
			case strings.Contains(prompt, "Analyze the completeness"):
				return `{
					"missing_information": [],
					"incomplete_areas": {},
					"confidence_scores": {"pricing": 0.7},
					"suggested_queries": [],
					"priority_gaps": []
				}`, nil
			case strings.Contains(prompt, "competitive landscape"):
				return `{"market_opportunities": ["SMB gap"], "strategic_recommendations": ["focus SMB"]}`, nil
			case strings.Contains(prompt, "executive summary"):
				return "Executive summary.", nil
			default:
				return `{"results": []}`, nil
			}
		},
	}
}

func healthySearcher() *stubSearcher {
	return &stubSearcher{
		discover: func(ctx context.Context, query string, params models.Params) (models.Response, error) {
			return models.Response{
				Query:   query,
				Results: []models.Result{{Title: "Acme CRM", URL: "https://acme.example.com", Content: "Acme sells CRM software with pricing tiers"}},
			}, nil
		},
	}
}

func newTestOrchestrator(llm *stubLLM, search *stubSearcher) *Orchestrator {
	cfg := testCoreConfig()
	tele := newTestTelemetry()
	searcher := NewWebSearcherAgent(cfg, llm, search, nil, tele)
	searcher.backoff = 1
	return newOrchestratorWithAgents(cfg, tele,
		NewPlannerAgent(cfg, llm),
		searcher,
		NewGapAnalyzerAgent(cfg, llm),
		NewResponseCuratorAgent(cfg, llm),
	)
}

func TestExecuteResearchEndToEnd(t *testing.T) {
	orch := newTestOrchestrator(pipelineLLM(), healthySearcher())

	outcome := orch.ExecuteResearch(context.Background(), ResearchQuery{Query: "AI chatbot companies", Depth: DepthStandard})

	if !outcome.Success {
		t.Fatalf("outcome failed: %s (%s)", outcome.ErrorMessage, outcome.FailedStep)
	}
	if outcome.Report == nil {
		t.Fatal("expected a report")
	}
	if len(outcome.Report.Competitors) != 2 {
		t.Fatalf("competitors = %v", outcome.Report.Competitors)
	}
	if outcome.Report.Competitors[0].Name != "Acme" || outcome.Report.Competitors[1].Name != "Globex" {
		t.Fatalf("competitor names = %q, %q", outcome.Report.Competitors[0].Name, outcome.Report.Competitors[1].Name)
	}
	// (1 + 2/7)/2*0.4 + 2/3*0.3 + (1+0)/2*0.3, rounded
	if outcome.Metrics.DataQualityScore != 0.61 {
		t.Fatalf("data quality score = %v, want 0.61", outcome.Metrics.DataQualityScore)
	}
	if outcome.Report.ExecutiveSummary == "" {
		t.Fatal("executive summary must be populated")
	}
	if outcome.MarkdownReport == "" || !strings.Contains(outcome.MarkdownReport, "# Competitive Research Report") {
		t.Fatal("markdown report missing")
	}
	if outcome.Workflow.Status != StatusCompleted {
		t.Fatalf("workflow status = %q", outcome.Workflow.Status)
	}
	for _, step := range outcome.Workflow.Steps {
		if step.Status != StatusCompleted {
			t.Fatalf("step %s status = %q", step.StepName, step.Status)
		}
	}
	if outcome.Metrics.CompetitorsFound != 2 {
		t.Fatalf("metrics = %+v", outcome.Metrics)
	}
	if outcome.Metrics.TotalTokens == 0 {
		t.Fatal("token usage must be aggregated across stages")
	}

	wf, ok := orch.GetWorkflowStatus(outcome.WorkflowID)
	if !ok {
		t.Fatal("workflow must be tracked")
	}
	if wf.Status != StatusCompleted {
		t.Fatalf("tracked status = %q", wf.Status)
	}
}

func TestExecuteResearchAttributesCostToModel(t *testing.T) {
	cfg := testCoreConfig()
	tele := newTestTelemetry()
	llm := pipelineLLM()
	searcher := NewWebSearcherAgent(cfg, llm, healthySearcher(), nil, tele)
	searcher.backoff = 1
	orch := newOrchestratorWithAgents(cfg, tele,
		NewPlannerAgent(cfg, llm), searcher, NewGapAnalyzerAgent(cfg, llm), NewResponseCuratorAgent(cfg, llm))

	outcome := orch.ExecuteResearch(context.Background(), ResearchQuery{Query: "AI chatbot companies"})
	if !outcome.Success {
		t.Fatalf("outcome failed: %s", outcome.ErrorMessage)
	}

	costs := tele.GetCostSummary()
	if costs.ModelCosts["stub-model"] <= 0 {
		t.Fatalf("model costs = %v, want spend recorded under the provider model", costs.ModelCosts)
	}
	if _, ok := costs.ModelCosts[""]; ok {
		t.Fatalf("model costs = %v, must not accumulate under an empty model name", costs.ModelCosts)
	}
}

func TestExecuteResearchInvalidQuery(t *testing.T) {
	orch := newTestOrchestrator(pipelineLLM(), healthySearcher())

	outcome := orch.ExecuteResearch(context.Background(), ResearchQuery{Query: "x"})
	if outcome.Success {
		t.Fatal("expected failure for invalid query")
	}
	if outcome.ErrorType != "Invalid query" {
		t.Fatalf("error type = %q", outcome.ErrorType)
	}
	if len(outcome.PartialResults) != 0 {
		t.Fatalf("partial results = %v, want none", outcome.PartialResults)
	}
}

func TestExecuteResearchSearchHardFailure(t *testing.T) {
	search := healthySearcher()
	search.validateErr = context.DeadlineExceeded
	orch := newTestOrchestrator(pipelineLLM(), search)

	outcome := orch.ExecuteResearch(context.Background(), ResearchQuery{Query: "CRM software"})
	if outcome.Success {
		t.Fatal("expected failure when the search probe fails")
	}
	if outcome.FailedStep != "web_search" {
		t.Fatalf("failed step = %q, want web_search", outcome.FailedStep)
	}
	if _, ok := outcome.PartialResults["planning"]; !ok {
		t.Fatalf("planning output must survive the failure, got %v", outcome.PartialResults)
	}
	if _, ok := outcome.PartialResults["web_search"]; ok {
		t.Fatal("failed step must not appear in partial results")
	}
}

func TestExecuteResearchGapPanicRecovered(t *testing.T) {
	llm := pipelineLLM()
	base := llm.responder
	llm.responder = func(prompt string, options map[string]interface{}) (string, error) {
		if strings.Contains(prompt, "Analyze the completeness") {
			panic("corrupt analyzer state")
		}
		return base(prompt, options)
	}
	orch := newTestOrchestrator(llm, healthySearcher())

	outcome := orch.ExecuteResearch(context.Background(), ResearchQuery{Query: "CRM software"})
	if outcome.Success {
		t.Fatal("expected failure from the gap analysis panic")
	}
	if outcome.FailedStep != "gap_analysis" {
		t.Fatalf("failed step = %q, want gap_analysis", outcome.FailedStep)
	}
	if len(outcome.PartialResults) != 2 {
		t.Fatalf("partial results = %v, want planning and web_search", outcome.PartialResults)
	}
	for _, name := range []string{"planning", "web_search"} {
		if _, ok := outcome.PartialResults[name]; !ok {
			t.Fatalf("partial results missing %s: %v", name, outcome.PartialResults)
		}
	}
}

func TestExecuteResearchSoftFallbacksStillSucceed(t *testing.T) {
	// planner LLM down entirely: every stage degrades but the run completes
	llm := &stubLLM{err: context.DeadlineExceeded}
	orch := newTestOrchestrator(llm, healthySearcher())

	outcome := orch.ExecuteResearch(context.Background(), ResearchQuery{Query: "CRM software"})
	if !outcome.Success {
		t.Fatalf("soft fallbacks must not fail the run: %s (%s)", outcome.ErrorMessage, outcome.FailedStep)
	}
	planStep := outcome.Workflow.Steps[0]
	if planStep.ErrorMessage == "" {
		t.Fatal("planning step must record the fallback advisory")
	}
	if outcome.Report == nil || outcome.Report.ExecutiveSummary == "" {
		t.Fatal("report must carry the stock executive summary")
	}
}

func TestValidateSystemDegraded(t *testing.T) {
	cfg := testCoreConfig()
	cfg.LLM.APIKey = "sk-test"
	cfg.LLM.Model = "gpt-5-mini"
	cfg.Search.APIKey = "tvly-test"
	tele := newTestTelemetry()
	llm := &stubLLM{err: context.DeadlineExceeded} // planner degrades to fallback
	search := healthySearcher()
	searcher := NewWebSearcherAgent(cfg, llm, search, nil, tele)
	orch := newOrchestratorWithAgents(cfg, tele,
		NewPlannerAgent(cfg, llm), searcher, NewGapAnalyzerAgent(cfg, llm), NewResponseCuratorAgent(cfg, llm))

	report := orch.ValidateSystem(context.Background())
	if report.OverallStatus != "degraded" {
		t.Fatalf("overall = %q, want degraded", report.OverallStatus)
	}
	if report.Components["planner_agent"].Status != "warn" {
		t.Fatalf("planner component = %+v", report.Components["planner_agent"])
	}
	found := false
	for _, rec := range report.Recommendations {
		if strings.Contains(rec, "OPENAI_API_KEY") {
			found = true
		}
	}
	if !found {
		t.Fatalf("recommendations = %v", report.Recommendations)
	}
}

func TestValidateSystemOperational(t *testing.T) {
	cfg := testCoreConfig()
	cfg.LLM.APIKey = "sk-test"
	cfg.LLM.Model = "gpt-5-mini"
	cfg.Search.APIKey = "tvly-test"
	tele := newTestTelemetry()
	llm := pipelineLLM()
	searcher := NewWebSearcherAgent(cfg, llm, healthySearcher(), nil, tele)
	orch := newOrchestratorWithAgents(cfg, tele,
		NewPlannerAgent(cfg, llm), searcher, NewGapAnalyzerAgent(cfg, llm), NewResponseCuratorAgent(cfg, llm))

	report := orch.ValidateSystem(context.Background())
	if report.OverallStatus != "operational" {
		t.Fatalf("overall = %q: %+v", report.OverallStatus, report.Components)
	}
	if len(report.Components) != 5 {
		t.Fatalf("components = %d, want 5", len(report.Components))
	}
}
