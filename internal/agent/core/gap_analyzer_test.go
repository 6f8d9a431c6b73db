package core

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
)

func fullProfile(name string) CompetitorInfo {
	return CompetitorInfo{
		Name:           name,
		Website:        "https://" + strings.ToLower(name) + ".example.com",
		Description:    "desc",
		Products:       []string{"P1", "P2"},
		PricingInfo:    map[string]string{"pro": "$10"},
		KeyFeatures:    []string{"f1", "f2", "f3"},
		TargetMarket:   "SMB",
		MarketPosition: "leader",
	}
}

func TestCalculateDataQualityScoreEmpty(t *testing.T) {
	if got := CalculateDataQualityScore(nil, ResearchPlan{}); got != 0 {
		t.Fatalf("score = %v, want 0", got)
	}
}

func TestCalculateDataQualityScorePerfect(t *testing.T) {
	competitors := []CompetitorInfo{fullProfile("A"), fullProfile("B"), fullProfile("C")}
	got := CalculateDataQualityScore(competitors, ResearchPlan{})
	if got != 1.0 {
		t.Fatalf("score = %v, want 1.0", got)
	}
}

func TestCalculateDataQualityScoreCoverageFloor(t *testing.T) {
	// one full profile against an implicit expectation of three competitors
	competitors := []CompetitorInfo{fullProfile("A")}
	got := CalculateDataQualityScore(competitors, ResearchPlan{})
	// completeness 1.0*0.4 + coverage (1/3)*0.3 + depth 1.0*0.3 = 0.8
	if want := 0.8; math.Abs(got-want) > 1e-9 {
		t.Fatalf("score = %v, want %v", got, want)
	}
}

func TestCalculateDataQualityScorePlannedCompetitors(t *testing.T) {
	plan := ResearchPlan{CompetitorNames: []string{"a", "b", "c", "d", "e"}}
	competitors := []CompetitorInfo{fullProfile("A"), fullProfile("B"), fullProfile("C"), fullProfile("D"), fullProfile("E")}
	if got := CalculateDataQualityScore(competitors, plan); got != 1.0 {
		t.Fatalf("score = %v, want 1.0", got)
	}
	// more found than planned never exceeds full coverage credit
	extra := append(competitors, fullProfile("F"))
	if got := CalculateDataQualityScore(extra, plan); got != 1.0 {
		t.Fatalf("score with surplus = %v, want 1.0", got)
	}
}

func TestCalculateDataQualityScoreRounding(t *testing.T) {
	competitors := []CompetitorInfo{{Name: "Thin", Website: "https://thin.example.com"}}
	got := CalculateDataQualityScore(competitors, ResearchPlan{})
	// completeness (1/7)*0.4 + coverage (1/3)*0.3 + depth 0 = 0.157..., rounds to 0.16
	if got != 0.16 {
		t.Fatalf("score = %v, want 0.16", got)
	}
}

func TestAnalyzeResearchGapsUsesModelOutput(t *testing.T) {
	llm := &stubLLM{response: `{
		"missing_information": ["funding data"],
		"incomplete_areas": {"pricing": ["no enterprise tiers"]},
		"confidence_scores": {"pricing": 0.6},
		"suggested_queries": ["acme pricing enterprise"],
		"priority_gaps": ["pricing detail"]
	}`, inTokens: 40, outTokens: 20}
	agent := NewGapAnalyzerAgent(testCoreConfig(), llm)

	plan := ResearchPlan{MainObjective: "obj", PriorityAreas: []string{"pricing"}}
	analysis, resp := agent.AnalyzeResearchGaps(context.Background(), plan, []CompetitorInfo{fullProfile("A")}, nil)

	if resp.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", resp.Status)
	}
	if len(analysis.MissingInformation) != 1 || analysis.MissingInformation[0] != "funding data" {
		t.Fatalf("missing info = %v", analysis.MissingInformation)
	}
	if analysis.DataQualityScore == 0 {
		t.Fatal("quality score must be computed deterministically")
	}
	if resp.TokensUsed != 60 {
		t.Fatalf("tokens = %d, want 60", resp.TokensUsed)
	}
}

func TestAnalyzeResearchGapsFallsBack(t *testing.T) {
	llm := &stubLLM{err: errors.New("provider down")}
	agent := NewGapAnalyzerAgent(testCoreConfig(), llm)

	plan := ResearchPlan{
		MainObjective:  "obj",
		PriorityAreas:  []string{"pricing", "features", "funding"},
		SearchKeywords: []string{"CRM software"},
	}
	searchResults := []SearchResult{
		{Query: "CRM pricing plans", Content: "pricing info", URL: "https://a.example.com"},
		{Query: "CRM features", Content: "features pricing", URL: "https://b.example.com"},
		{Query: "CRM features list", Content: "features", URL: "https://c.example.com"},
		{Query: "more features", Content: "features", URL: "https://d.example.com"},
	}
	analysis, resp := agent.AnalyzeResearchGaps(context.Background(), plan, []CompetitorInfo{fullProfile("A")}, searchResults)

	if resp.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", resp.Status)
	}
	// pricing appears twice, features four times, funding never
	if got := analysis.ConfidenceScores["pricing"]; got != 0.3 {
		t.Fatalf("pricing confidence = %v, want 0.3", got)
	}
	if got := analysis.ConfidenceScores["features"]; got != 0.7 {
		t.Fatalf("features confidence = %v, want 0.7", got)
	}
	if got := analysis.ConfidenceScores["funding"]; got != 0.0 {
		t.Fatalf("funding confidence = %v, want 0.0", got)
	}
	if _, ok := analysis.IncompleteAreas["funding"]; !ok {
		t.Fatal("zero-coverage area must be flagged incomplete")
	}
	foundSuggested := false
	for _, q := range analysis.SuggestedQueries {
		if strings.Contains(q, "funding") {
			foundSuggested = true
		}
	}
	if !foundSuggested {
		t.Fatalf("expected a funding follow-up query, got %v", analysis.SuggestedQueries)
	}
}

func TestAnalyzeResearchGapsRecoversPanic(t *testing.T) {
	llm := &stubLLM{panicMsg: "unexpected state"}
	agent := NewGapAnalyzerAgent(testCoreConfig(), llm)

	_, resp := agent.AnalyzeResearchGaps(context.Background(), ResearchPlan{PriorityAreas: []string{"pricing"}}, []CompetitorInfo{fullProfile("A")}, nil)
	if resp.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", resp.Status)
	}
	if !strings.Contains(resp.Error, "gap analysis failed") {
		t.Fatalf("error = %q", resp.Error)
	}
}

func TestFallbackGapAnalysisCaps(t *testing.T) {
	agent := NewGapAnalyzerAgent(testCoreConfig(), &stubLLM{})

	areas := make([]string, 12)
	for i := range areas {
		areas[i] = strings.Repeat("z", i+1) // unique, never matched by results
	}
	summary := DataSummary{
		FoundCompetitors: 0,
		PriorityAreas:    areas,
		AreaCoverage:     map[string]int{},
	}
	analysis := agent.fallbackGapAnalysis(summary, ResearchPlan{SearchKeywords: []string{"CRM"}})

	if len(analysis.SuggestedQueries) > 8 {
		t.Fatalf("suggested queries = %d, want <= 8", len(analysis.SuggestedQueries))
	}
	if len(analysis.PriorityGaps) > 5 {
		t.Fatalf("priority gaps = %d, want <= 5", len(analysis.PriorityGaps))
	}
	if len(analysis.MissingInformation) == 0 {
		t.Fatal("zero competitors must be reported missing")
	}
}

func TestGenerateImprovementRecommendationsFallback(t *testing.T) {
	agent := NewGapAnalyzerAgent(testCoreConfig(), &stubLLM{err: errors.New("down")})

	recs, resp := agent.GenerateImprovementRecommendations(context.Background(), GapAnalysis{}, nil)
	if len(recs) != 7 {
		t.Fatalf("fallback recommendations = %d, want 7", len(recs))
	}
	if !strings.HasPrefix(resp.Error, "Used fallback recommendations:") {
		t.Fatalf("advisory = %q", resp.Error)
	}
	if resp.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", resp.Status)
	}
}
