package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/rivalscan/rivalscan/config"
)

// GapAnalyzerAgent measures how complete the gathered data is, identifies
// what is missing and scores the overall data quality.
type GapAnalyzerAgent struct {
	config *config.Config
	llm    LLMProvider
	logger *log.Logger
}

func NewGapAnalyzerAgent(cfg *config.Config, llm LLMProvider) *GapAnalyzerAgent {
	return &GapAnalyzerAgent{
		config: cfg,
		llm:    llm,
		logger: log.New(log.Writer(), "[GAP] ", log.LstdFlags),
	}
}

// DataSummary aggregates the run's findings for gap analysis.
type DataSummary struct {
	ResearchObjective  string               `json:"research_objective"`
	ResearchQuestions  []string             `json:"research_questions"`
	PriorityAreas      []string             `json:"priority_areas"`
	PlannedCompetitors []string             `json:"planned_competitors"`
	FoundCompetitors   int                  `json:"found_competitors"`
	CompetitorAnalysis []CompetitorCoverage `json:"competitor_analysis"`
	TotalSearches      int                  `json:"total_searches"`
	TotalResults       int                  `json:"total_results"`
	UniqueSources      int                  `json:"unique_sources"`
	AreaCoverage       map[string]int       `json:"coverage_by_priority_area"`
	EstimatedSearches  int                  `json:"estimated_searches"`
	ActualSearches     int                  `json:"actual_searches"`
}

// CompetitorCoverage describes one competitor's profile completeness.
type CompetitorCoverage struct {
	Name              string  `json:"name"`
	HasWebsite        bool    `json:"has_website"`
	HasDescription    bool    `json:"has_description"`
	ProductsCount     int     `json:"products_count"`
	HasPricing        bool    `json:"has_pricing"`
	FeaturesCount     int     `json:"features_count"`
	HasTargetMarket   bool    `json:"has_target_market"`
	HasMarketPosition bool    `json:"has_market_position"`
	HasFundingInfo    bool    `json:"has_funding_info"`
	RecentNewsCount   int     `json:"recent_news_count"`
	CompletenessScore float64 `json:"completeness_score"`
}

// AnalyzeResearchGaps performs stage 3. LLM failures degrade to a
// deterministic coverage-based analysis; only an unrecoverable fault fails
// the stage.
func (a *GapAnalyzerAgent) AnalyzeResearchGaps(ctx context.Context, plan ResearchPlan, competitors []CompetitorInfo, searchResults []SearchResult) (analysis GapAnalysis, resp AgentResponse) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			analysis = GapAnalysis{}
			resp = AgentResponse{
				AgentName:            "GapAnalyzerAgent",
				Status:               StatusFailed,
				Error:                fmt.Sprintf("gap analysis failed: %v", r),
				ExecutionTimeSeconds: time.Since(start).Seconds(),
				Timestamp:            time.Now(),
			}
		}
	}()

	a.logger.Printf("Analyzing research gaps for %d competitors...", len(competitors))

	summary := a.createDataSummary(plan, competitors, searchResults)
	analysis, tokens, cost := a.performGapAnalysis(ctx, summary, plan)
	analysis.DataQualityScore = CalculateDataQualityScore(competitors, plan)

	elapsed := time.Since(start).Seconds()
	a.logger.Printf("Gap analysis completed in %.2fs with quality score: %.2f", elapsed, analysis.DataQualityScore)

	resp = AgentResponse{
		AgentName:            "GapAnalyzerAgent",
		Status:               StatusCompleted,
		Data:                 map[string]interface{}{"gap_analysis": analysis},
		ExecutionTimeSeconds: elapsed,
		TokensUsed:           tokens,
		CostUSD:              cost,
		Timestamp:            time.Now(),
	}
	return analysis, resp
}

func (a *GapAnalyzerAgent) createDataSummary(plan ResearchPlan, competitors []CompetitorInfo, searchResults []SearchResult) DataSummary {
	var coverage []CompetitorCoverage
	for _, comp := range competitors {
		coverage = append(coverage, CompetitorCoverage{
			Name:              comp.Name,
			HasWebsite:        comp.Website != "",
			HasDescription:    comp.Description != "",
			ProductsCount:     len(comp.Products),
			HasPricing:        len(comp.PricingInfo) > 0,
			FeaturesCount:     len(comp.KeyFeatures),
			HasTargetMarket:   comp.TargetMarket != "",
			HasMarketPosition: comp.MarketPosition != "",
			HasFundingInfo:    len(comp.FundingInfo) > 0,
			RecentNewsCount:   len(comp.RecentNews),
			CompletenessScore: comp.CompletenessScore(),
		})
	}

	uniqueQueries := make(map[string]struct{})
	uniqueSources := make(map[string]struct{})
	for _, r := range searchResults {
		uniqueQueries[r.Query] = struct{}{}
		if r.URL != "" {
			uniqueSources[r.URL] = struct{}{}
		}
	}

	areaCoverage := make(map[string]int, len(plan.PriorityAreas))
	for _, area := range plan.PriorityAreas {
		lower := strings.ToLower(area)
		count := 0
		for _, r := range searchResults {
			if strings.Contains(strings.ToLower(r.Query), lower) || strings.Contains(strings.ToLower(r.Content), lower) {
				count++
			}
		}
		areaCoverage[area] = count
	}

	return DataSummary{
		ResearchObjective:  plan.MainObjective,
		ResearchQuestions:  plan.ResearchQuestions,
		PriorityAreas:      plan.PriorityAreas,
		PlannedCompetitors: plan.CompetitorNames,
		FoundCompetitors:   len(competitors),
		CompetitorAnalysis: coverage,
		TotalSearches:      len(uniqueQueries),
		TotalResults:       len(searchResults),
		UniqueSources:      len(uniqueSources),
		AreaCoverage:       areaCoverage,
		EstimatedSearches:  plan.EstimatedSearches,
		ActualSearches:     len(uniqueQueries),
	}
}

func (a *GapAnalyzerAgent) performGapAnalysis(ctx context.Context, summary DataSummary, plan ResearchPlan) (GapAnalysis, int64, float64) {
	var completeness, areas strings.Builder
	for _, comp := range summary.CompetitorAnalysis {
		fmt.Fprintf(&completeness, "- %s: %.0f%% complete\n", comp.Name, comp.CompletenessScore*100)
	}
	for area, count := range summary.AreaCoverage {
		fmt.Fprintf(&areas, "- %s: %d results\n", area, count)
	}

	prompt := fmt.Sprintf(`Analyze the completeness and gaps in this competitive research data:

RESEARCH OBJECTIVE: %s

RESEARCH QUESTIONS TO ANSWER:
- %s

PRIORITY AREAS: %s

RESEARCH FINDINGS:
- Competitors found: %d (planned: %d)
- Total search results: %d
- Unique sources: %d

COMPETITOR COMPLETENESS:
%s
PRIORITY AREA COVERAGE:
%s
Analyze this research for:

1. MISSING CRITICAL INFORMATION: What essential information is completely missing?
2. INCOMPLETE AREAS: Which areas have some data but need more detail?
3. CONFIDENCE SCORES: Rate confidence level (0-1) for each priority area based on data quality and completeness
4. SUGGESTED QUERIES: Specific follow-up searches needed to fill gaps
5. PRIORITY GAPS: Most important gaps to address first

Consider which research questions remain unanswered and what information would be most valuable for competitive positioning.

Format as JSON:
{
    "missing_information": ["Critical info 1", "Critical info 2"],
    "incomplete_areas": {"pricing": ["specific gaps in pricing data"]},
    "confidence_scores": {"pricing": 0.7, "features": 0.8},
    "suggested_queries": ["Specific search query 1"],
    "priority_gaps": ["Highest priority gap 1"]
}`,
		summary.ResearchObjective,
		strings.Join(summary.ResearchQuestions, "\n- "),
		strings.Join(summary.PriorityAreas, ", "),
		summary.FoundCompetitors, len(summary.PlannedCompetitors),
		summary.TotalResults, summary.UniqueSources,
		completeness.String(), areas.String())

	raw, inTok, outTok, err := a.llm.GenerateWithTokens(ctx, prompt, map[string]interface{}{
		"system": "You are a research gap analysis expert. Identify missing information and suggest specific improvements.",
		"json":   true,
	})
	if err != nil {
		a.logger.Printf("Error in LLM gap analysis: %v", err)
		return a.fallbackGapAnalysis(summary, plan), 0, 0
	}

	var payload struct {
		MissingInformation []string            `json:"missing_information"`
		IncompleteAreas    map[string][]string `json:"incomplete_areas"`
		ConfidenceScores   map[string]float64  `json:"confidence_scores"`
		SuggestedQueries   []string            `json:"suggested_queries"`
		PriorityGaps       []string            `json:"priority_gaps"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		a.logger.Printf("Unusable gap analysis payload: %v", err)
		return a.fallbackGapAnalysis(summary, plan), inTok + outTok, a.llm.CalculateCost(inTok, outTok)
	}

	return GapAnalysis{
		MissingInformation: payload.MissingInformation,
		IncompleteAreas:    payload.IncompleteAreas,
		ConfidenceScores:   payload.ConfidenceScores,
		SuggestedQueries:   payload.SuggestedQueries,
		PriorityGaps:       payload.PriorityGaps,
	}, inTok + outTok, a.llm.CalculateCost(inTok, outTok)
}

// fallbackGapAnalysis derives gaps mechanically from coverage counts when
// the model cannot be used: zero results in an area means no confidence,
// one or two means low, three or more gets a moderate 0.7.
func (a *GapAnalyzerAgent) fallbackGapAnalysis(summary DataSummary, plan ResearchPlan) GapAnalysis {
	var missing, suggested, priorityGaps []string
	incomplete := make(map[string][]string)
	confidence := make(map[string]float64)

	firstKeyword := "competitors"
	if len(plan.SearchKeywords) > 0 {
		firstKeyword = plan.SearchKeywords[0]
	}

	if summary.FoundCompetitors == 0 {
		missing = append(missing, "No competitors identified")
		priorityGaps = append(priorityGaps, "Identify main competitors in the market")
	}
	if summary.FoundCompetitors < 3 {
		missing = append(missing, "Insufficient competitor coverage")
		suggested = append(suggested, fmt.Sprintf("%s market leaders", firstKeyword))
	}

	for _, area := range summary.PriorityAreas {
		count := summary.AreaCoverage[area]
		switch {
		case count == 0:
			incomplete[area] = []string{fmt.Sprintf("No data found for %s", area)}
			confidence[area] = 0.0
			suggested = append(suggested, strings.TrimSpace(fmt.Sprintf("%s analysis %s", area, firstKeyword)))
		case count < 3:
			incomplete[area] = []string{fmt.Sprintf("Limited data for %s", area)}
			confidence[area] = 0.3
		default:
			confidence[area] = 0.7
		}
	}

	if len(priorityGaps) == 0 {
		priorityGaps = []string{
			"Expand competitor identification",
			"Gather more detailed pricing information",
			"Collect feature comparison data",
		}
	}
	if len(suggested) > 8 {
		suggested = suggested[:8]
	}
	if len(priorityGaps) > 5 {
		priorityGaps = priorityGaps[:5]
	}

	return GapAnalysis{
		MissingInformation: missing,
		IncompleteAreas:    incomplete,
		ConfidenceScores:   confidence,
		SuggestedQueries:   suggested,
		PriorityGaps:       priorityGaps,
	}
}

// CalculateDataQualityScore combines average profile completeness (40%),
// coverage against the larger of three or the planned competitor count
// (30%) and information depth (30%), rounded to two decimals.
func CalculateDataQualityScore(competitors []CompetitorInfo, plan ResearchPlan) float64 {
	if len(competitors) == 0 {
		return 0.0
	}

	var totalCompleteness float64
	for _, comp := range competitors {
		totalCompleteness += comp.CompletenessScore()
	}
	completenessFactor := totalCompleteness / float64(len(competitors)) * 0.4

	expected := len(plan.CompetitorNames)
	if expected < 3 {
		expected = 3
	}
	coverage := float64(len(competitors)) / float64(expected)
	if coverage > 1.0 {
		coverage = 1.0
	}
	coverageFactor := coverage * 0.3

	var totalDepth float64
	for _, comp := range competitors {
		indicators := 0
		if len(comp.PricingInfo) > 0 {
			indicators++
		}
		if len(comp.KeyFeatures) > 2 {
			indicators++
		}
		if comp.TargetMarket != "" {
			indicators++
		}
		if comp.MarketPosition != "" {
			indicators++
		}
		if len(comp.Products) > 1 {
			indicators++
		}
		totalDepth += float64(indicators) / 5.0
	}
	depthFactor := totalDepth / float64(len(competitors)) * 0.3

	return math.Round((completenessFactor+coverageFactor+depthFactor)*100) / 100
}

// GenerateImprovementRecommendations produces follow-up actions from a gap
// analysis. Falls back to a stock action list when the model is
// unavailable.
func (a *GapAnalyzerAgent) GenerateImprovementRecommendations(ctx context.Context, analysis GapAnalysis, competitors []CompetitorInfo) ([]string, AgentResponse) {
	start := time.Now()
	a.logger.Printf("Generating improvement recommendations...")

	names := make([]string, 0, 5)
	for _, comp := range competitors {
		if len(names) == 5 {
			break
		}
		names = append(names, comp.Name)
	}

	var scores strings.Builder
	for area, score := range analysis.ConfidenceScores {
		fmt.Fprintf(&scores, "- %s: %.0f%%\n", area, score*100)
	}

	prompt := fmt.Sprintf(`Based on this gap analysis, provide specific improvement recommendations:

CURRENT COMPETITORS: %s

PRIORITY GAPS:
- %s

CONFIDENCE SCORES:
%s
SUGGESTED QUERIES:
- %s

Provide 5-7 actionable recommendations for:
1. Improving data collection strategy
2. Filling critical information gaps
3. Enhancing competitive intelligence
4. Next steps for market analysis
5. Research methodology improvements

Format as a JSON object: {"recommendations": ["Recommendation 1", "Recommendation 2"]}`,
		strings.Join(names, ", "),
		strings.Join(analysis.PriorityGaps, "\n- "),
		scores.String(),
		strings.Join(analysis.SuggestedQueries, "\n- "))

	raw, inTok, outTok, err := a.llm.GenerateWithTokens(ctx, prompt, map[string]interface{}{
		"system": "You are a strategic research advisor. Provide actionable recommendations for improving competitive research.",
		"json":   true,
	})

	var recommendations []string
	if err == nil {
		var payload struct {
			Recommendations []string `json:"recommendations"`
		}
		if jsonErr := json.Unmarshal([]byte(raw), &payload); jsonErr == nil {
			recommendations = payload.Recommendations
		} else {
			err = jsonErr
		}
	}

	resp := AgentResponse{
		AgentName:            "GapAnalyzerAgent",
		Status:               StatusCompleted,
		ExecutionTimeSeconds: time.Since(start).Seconds(),
		TokensUsed:           inTok + outTok,
		CostUSD:              a.llm.CalculateCost(inTok, outTok),
		Timestamp:            time.Now(),
	}
	if err != nil || len(recommendations) == 0 {
		recommendations = []string{
			"Conduct deeper searches for top 3 competitors",
			"Focus on collecting pricing information",
			"Gather more detailed feature comparisons",
			"Research recent company news and developments",
			"Analyze customer reviews and feedback",
			"Investigate partnership and acquisition activity",
			"Monitor competitor social media and marketing",
		}
		if err != nil {
			resp.Error = fmt.Sprintf("Used fallback recommendations: %v", err)
		}
	}
	resp.Data = map[string]interface{}{"recommendations": recommendations}

	a.logger.Printf("Generated %d recommendations in %.2fs", len(recommendations), resp.ExecutionTimeSeconds)
	return recommendations, resp
}
