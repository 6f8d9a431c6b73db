package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rivalscan/rivalscan/config"
)

// ResponseCuratorAgent synthesizes insights and assembles the final report.
type ResponseCuratorAgent struct {
	config *config.Config
	llm    LLMProvider
	logger *log.Logger
}

func NewResponseCuratorAgent(cfg *config.Config, llm LLMProvider) *ResponseCuratorAgent {
	return &ResponseCuratorAgent{
		config: cfg,
		llm:    llm,
		logger: log.New(log.Writer(), "[CURATOR] ", log.LstdFlags),
	}
}

// GenerateCompetitiveInsights produces the strategic synthesis. Model
// failures degrade to generic stock insights rather than failing the run.
func (a *ResponseCuratorAgent) GenerateCompetitiveInsights(ctx context.Context, competitors []CompetitorInfo, plan ResearchPlan, analysis GapAnalysis) (CompetitiveInsights, AgentResponse) {
	start := time.Now()
	a.logger.Printf("Generating competitive insights for %d competitors...", len(competitors))

	insights, tokens, cost, advisory := a.generateInsights(ctx, a.competitorSummary(competitors), plan, analysis)

	elapsed := time.Since(start).Seconds()
	a.logger.Printf("Competitive insights generated in %.2fs", elapsed)

	return insights, AgentResponse{
		AgentName:            "ResponseCuratorAgent",
		Status:               StatusCompleted,
		Data:                 map[string]interface{}{"competitive_insights": insights},
		Error:                advisory,
		ExecutionTimeSeconds: elapsed,
		TokensUsed:           tokens,
		CostUSD:              cost,
		Timestamp:            time.Now(),
	}
}

// CreateResearchReport assembles the final report from all stage artifacts.
func (a *ResponseCuratorAgent) CreateResearchReport(
	ctx context.Context,
	query ResearchQuery,
	plan ResearchPlan,
	competitors []CompetitorInfo,
	analysis GapAnalysis,
	insights CompetitiveInsights,
	searchResults []SearchResult,
	researchDuration float64,
) (ResearchReport, AgentResponse) {
	start := time.Now()
	a.logger.Printf("Creating comprehensive research report...")

	summary, tokens, cost := a.generateExecutiveSummary(ctx, query, competitors, insights, analysis)

	uniqueQueries := make(map[string]struct{})
	for _, r := range searchResults {
		uniqueQueries[r.Query] = struct{}{}
	}

	report := ResearchReport{
		Query:                   query,
		Plan:                    plan,
		Competitors:             competitors,
		GapAnalysis:             analysis,
		Insights:                insights,
		ExecutiveSummary:        summary,
		Methodology:             a.methodologyDescription(plan, len(searchResults)),
		DataSources:             a.extractDataSources(searchResults),
		Limitations:             generateLimitations(analysis),
		NextSteps:               generateNextSteps(analysis, insights),
		GeneratedAt:             time.Now().UTC(),
		TotalSearchesPerformed:  len(uniqueQueries),
		ResearchDurationSeconds: researchDuration,
	}

	elapsed := time.Since(start).Seconds()
	a.logger.Printf("Research report created in %.2fs", elapsed)

	return report, AgentResponse{
		AgentName:            "ResponseCuratorAgent",
		Status:               StatusCompleted,
		Data:                 map[string]interface{}{"research_report": report},
		ExecutionTimeSeconds: elapsed,
		TokensUsed:           tokens,
		CostUSD:              cost,
		Timestamp:            time.Now(),
	}
}

func (a *ResponseCuratorAgent) competitorSummary(competitors []CompetitorInfo) string {
	if len(competitors) == 0 {
		return "No competitors identified in the research."
	}

	limited := competitors
	if len(limited) > 10 {
		limited = limited[:10]
	}
	var parts []string
	for _, comp := range limited {
		summary := fmt.Sprintf("**%s**", comp.Name)
		if comp.Website != "" {
			summary += fmt.Sprintf(" (%s)", comp.Website)
		}
		if comp.Description != "" {
			desc := comp.Description
			if len(desc) > 150 {
				desc = desc[:150] + "..."
			}
			summary += " - " + desc
		}

		var details []string
		if len(comp.Products) > 0 {
			products := comp.Products
			if len(products) > 3 {
				products = products[:3]
			}
			details = append(details, "Products: "+strings.Join(products, ", "))
		}
		if len(comp.PricingInfo) > 0 {
			details = append(details, "Pricing available")
		}
		if len(comp.KeyFeatures) > 0 {
			details = append(details, fmt.Sprintf("%d key features", len(comp.KeyFeatures)))
		}
		if len(details) > 0 {
			summary += " | " + strings.Join(details, " | ")
		}
		parts = append(parts, summary)
	}
	return strings.Join(parts, "\n")
}

func (a *ResponseCuratorAgent) generateInsights(ctx context.Context, competitorSummary string, plan ResearchPlan, analysis GapAnalysis) (CompetitiveInsights, int64, float64, string) {
	var confidence strings.Builder
	for area, score := range analysis.ConfidenceScores {
		fmt.Fprintf(&confidence, "- %s: %.0f%%\n", area, score*100)
	}

	prompt := fmt.Sprintf(`Analyze this competitive landscape and provide strategic insights:

RESEARCH OBJECTIVE: %s

COMPETITORS FOUND:
%s

DATA QUALITY SCORE: %.0f%%

CONFIDENCE LEVELS:
%s
Based on this competitive analysis, identify:

1. MARKET OPPORTUNITIES: Gaps or underserved areas in the market
2. COMPETITIVE ADVANTAGES: Potential advantages to leverage
3. THREATS AND RISKS: Competitive threats to be aware of
4. STRATEGIC RECOMMENDATIONS: Actionable strategic advice
5. POSITIONING SUGGESTIONS: How to position in this market
6. FEATURE GAPS: Missing features or capabilities in the market
7. PRICING INSIGHTS: Pricing strategy observations

Focus on actionable insights that can inform business strategy and competitive positioning.

Format as JSON:
{
    "market_opportunities": ["Opportunity 1"],
    "competitive_advantages": ["Advantage 1"],
    "threats_and_risks": ["Threat 1"],
    "strategic_recommendations": ["Recommendation 1"],
    "positioning_suggestions": ["Position 1"],
    "feature_gaps": ["Gap 1"],
    "pricing_insights": ["Insight 1"]
}`,
		plan.MainObjective, competitorSummary, analysis.DataQualityScore*100, confidence.String())

	raw, inTok, outTok, err := a.llm.GenerateWithTokens(ctx, prompt, map[string]interface{}{
		"system": "You are a strategic business analyst specializing in competitive intelligence. Provide actionable strategic insights.",
		"json":   true,
	})
	if err == nil {
		var insights CompetitiveInsights
		if jsonErr := json.Unmarshal([]byte(raw), &insights); jsonErr == nil {
			return insights, inTok + outTok, a.llm.CalculateCost(inTok, outTok), ""
		} else {
			err = jsonErr
		}
	}

	a.logger.Printf("Error generating insights: %v", err)
	fallback := CompetitiveInsights{
		MarketOpportunities:      []string{"Identify underserved market segments"},
		CompetitiveAdvantages:    []string{"Leverage unique capabilities"},
		ThreatsAndRisks:          []string{"Monitor competitive actions"},
		StrategicRecommendations: []string{"Continue market research", "Develop differentiation strategy"},
		PositioningSuggestions:   []string{"Focus on unique value proposition"},
		FeatureGaps:              []string{"Analyze feature completeness"},
		PricingInsights:          []string{"Research competitive pricing"},
	}
	return fallback, inTok + outTok, a.llm.CalculateCost(inTok, outTok), fmt.Sprintf("Used fallback insights: %v", err)
}

func (a *ResponseCuratorAgent) generateExecutiveSummary(ctx context.Context, query ResearchQuery, competitors []CompetitorInfo, insights CompetitiveInsights, analysis GapAnalysis) (string, int64, float64) {
	names := make([]string, 0, 5)
	for _, comp := range competitors {
		if len(names) == 5 {
			break
		}
		names = append(names, comp.Name)
	}

	prompt := fmt.Sprintf(`Create a concise executive summary for this competitive research:

RESEARCH QUERY: %s
COMPETITORS FOUND: %d (%s)
DATA QUALITY: %.0f%%

KEY INSIGHTS:
- Market Opportunities: %d
- Strategic Recommendations: %d
- Identified Threats: %d

Write a 2-3 paragraph executive summary that covers:
1. What was researched and key findings
2. Main competitive landscape insights
3. Strategic implications and recommendations

Keep it concise but comprehensive, suitable for executive decision-making.`,
		query.Query, len(competitors), strings.Join(names, ", "), analysis.DataQualityScore*100,
		len(insights.MarketOpportunities), len(insights.StrategicRecommendations), len(insights.ThreatsAndRisks))

	raw, inTok, outTok, err := a.llm.GenerateWithTokens(ctx, prompt, map[string]interface{}{
		"system": "You are writing an executive summary for competitive research. Be concise, strategic, and actionable.",
	})
	if err == nil && strings.TrimSpace(raw) != "" {
		return strings.TrimSpace(raw), inTok + outTok, a.llm.CalculateCost(inTok, outTok)
	}

	a.logger.Printf("Error generating executive summary: %v", err)
	fallback := fmt.Sprintf(`This competitive research analyzed %d competitors in the %s space. The research identified key market players, their positioning, and strategic opportunities.

Based on the analysis, several market opportunities and competitive advantages were identified, along with potential threats and risks. The findings suggest specific strategic recommendations for competitive positioning and market entry.

Further research is recommended to address identified gaps and enhance competitive intelligence.`,
		len(competitors), query.Query)
	return fallback, inTok + outTok, a.llm.CalculateCost(inTok, outTok)
}

func (a *ResponseCuratorAgent) methodologyDescription(plan ResearchPlan, totalResults int) string {
	return fmt.Sprintf(`This competitive research employed a multi-agent approach combining an LLM analysis model with Tavily AI web search technology.

**Research Process:**
1. Strategic planning based on the research query
2. Systematic web search using %d keywords across %d priority areas
3. Automated data extraction and competitor profiling
4. Gap analysis to identify missing information
5. Synthesis of findings into strategic insights

**Data Collection:**
- %d planned searches executed
- %d search results analyzed
- Focus areas: %s
- Search depth: Advanced web search with AI-powered content extraction

**Analysis Methods:**
- Automated competitor profiling and feature extraction
- Gap analysis with confidence scoring
- Strategic insight generation using AI analysis
- Cross-validation of findings across multiple sources`,
		len(plan.SearchKeywords), len(plan.PriorityAreas),
		plan.EstimatedSearches, totalResults, strings.Join(plan.PriorityAreas, ", "))
}

func (a *ResponseCuratorAgent) extractDataSources(searchResults []SearchResult) []string {
	sources := make(map[string]struct{})
	for _, r := range searchResults {
		if !strings.HasPrefix(r.URL, "http") {
			continue
		}
		if u, err := url.Parse(r.URL); err == nil && u.Host != "" {
			sources[u.Host] = struct{}{}
		} else if len(r.URL) > 50 {
			sources[r.URL[:50]+"..."] = struct{}{}
		} else {
			sources[r.URL] = struct{}{}
		}
	}
	sources["Tavily AI Web Search"] = struct{}{}
	sources[a.llm.Model()+" Analysis"] = struct{}{}

	out := make([]string, 0, len(sources))
	for s := range sources {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func generateLimitations(analysis GapAnalysis) []string {
	var limitations []string

	if analysis.DataQualityScore > 0 && analysis.DataQualityScore < 0.7 {
		limitations = append(limitations, fmt.Sprintf("Data completeness score of %.0f%% indicates some information gaps", analysis.DataQualityScore*100))
	}
	if len(analysis.MissingInformation) > 0 {
		limitations = append(limitations, fmt.Sprintf("Missing critical information in %d areas", len(analysis.MissingInformation)))
	}
	var lowConfidence []string
	for area, score := range analysis.ConfidenceScores {
		if score < 0.6 {
			lowConfidence = append(lowConfidence, area)
		}
	}
	if len(lowConfidence) > 0 {
		sort.Strings(lowConfidence)
		limitations = append(limitations, "Lower confidence in data for: "+strings.Join(lowConfidence, ", "))
	}

	limitations = append(limitations,
		"Information accuracy dependent on publicly available sources",
		"Market conditions and competitor data subject to rapid change",
		"Some proprietary information not accessible through public research",
	)
	if len(limitations) > 5 {
		limitations = limitations[:5]
	}
	return limitations
}

func generateNextSteps(analysis GapAnalysis, insights CompetitiveInsights) []string {
	var steps []string

	if len(analysis.SuggestedQueries) > 0 {
		steps = append(steps, "Conduct additional research using suggested follow-up queries")
	}
	if len(analysis.PriorityGaps) > 0 {
		steps = append(steps, "Address priority information gaps for more complete analysis")
	}
	if len(insights.StrategicRecommendations) > 0 {
		steps = append(steps, "Implement strategic recommendations based on competitive analysis")
	}

	steps = append(steps,
		"Monitor competitor activities and market developments continuously",
		"Validate findings through direct market research or customer interviews",
		"Develop detailed competitive response strategies",
		"Schedule regular competitive intelligence updates",
	)
	if len(steps) > 6 {
		steps = steps[:6]
	}
	return steps
}

// FormatMarkdownReport renders the report as professional markdown.
func (a *ResponseCuratorAgent) FormatMarkdownReport(report ResearchReport) string {
	var b strings.Builder

	timestamp := report.GeneratedAt.Format("2006-01-02 15:04:05 UTC")
	fmt.Fprintf(&b, `# Competitive Research Report

**Generated:** %s
**Research Duration:** %.1f minutes
**Searches Performed:** %d
**Competitors Analyzed:** %d

---

## Executive Summary

%s

## Research Objective

**Query:** %s
**Research Depth:** %s
**Main Objective:** %s

### Key Research Questions
%s

---

## Competitive Landscape

### Competitors Identified (%d)

`,
		timestamp, report.ResearchDurationSeconds/60,
		report.TotalSearchesPerformed, len(report.Competitors),
		report.ExecutiveSummary,
		report.Query.Query, report.Query.Depth, report.Plan.MainObjective,
		bulleted(report.Plan.ResearchQuestions),
		len(report.Competitors))

	for i, comp := range report.Competitors {
		fmt.Fprintf(&b, `
#### %d. %s

- **Website:** %s
- **Description:** %s
- **Products:** %s
- **Target Market:** %s
- **Market Position:** %s

`,
			i+1, comp.Name,
			orDefault(comp.Website, "Not available"),
			orDefault(comp.Description, "Not available"),
			orDefault(strings.Join(comp.Products, ", "), "Not specified"),
			orDefault(comp.TargetMarket, "Not specified"),
			orDefault(comp.MarketPosition, "Not specified"))

		if len(comp.KeyFeatures) > 0 {
			features := comp.KeyFeatures
			if len(features) > 5 {
				features = features[:5]
			}
			fmt.Fprintf(&b, "**Key Features:**\n%s\n\n", bulleted(features))
		}
		if len(comp.PricingInfo) > 0 {
			b.WriteString("**Pricing Information:**\n")
			plans := make([]string, 0, len(comp.PricingInfo))
			for name := range comp.PricingInfo {
				plans = append(plans, name)
			}
			sort.Strings(plans)
			for _, name := range plans {
				fmt.Fprintf(&b, "- %s: %s\n", name, comp.PricingInfo[name])
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, `---

## Strategic Analysis

### Market Opportunities
%s

### Competitive Advantages
%s

### Threats and Risks
%s

### Strategic Recommendations
%s

`,
		bulleted(report.Insights.MarketOpportunities),
		bulleted(report.Insights.CompetitiveAdvantages),
		bulleted(report.Insights.ThreatsAndRisks),
		bulleted(report.Insights.StrategicRecommendations))

	if len(report.GapAnalysis.PriorityGaps) > 0 {
		fmt.Fprintf(&b, `---

## Research Gaps Analysis

**Data Quality Score:** %.0f%%

### Priority Gaps
%s

### Missing Information
%s

`,
			report.GapAnalysis.DataQualityScore*100,
			bulleted(report.GapAnalysis.PriorityGaps),
			bulleted(report.GapAnalysis.MissingInformation))
	}

	if len(report.GapAnalysis.ConfidenceScores) > 0 {
		b.WriteString("### Confidence Levels\n")
		areas := make([]string, 0, len(report.GapAnalysis.ConfidenceScores))
		for area := range report.GapAnalysis.ConfidenceScores {
			areas = append(areas, area)
		}
		sort.Strings(areas)
		for _, area := range areas {
			fmt.Fprintf(&b, "- **%s:** %.0f%%\n", titleCase(area), report.GapAnalysis.ConfidenceScores[area]*100)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, `---

## Methodology

%s

## Limitations

%s

## Next Steps

%s

`,
		report.Methodology,
		bulleted(report.Limitations),
		bulleted(report.NextSteps))

	if a.config.Output.IncludeCitations && len(report.DataSources) > 0 {
		sources := report.DataSources
		if len(sources) > 10 {
			sources = sources[:10]
		}
		fmt.Fprintf(&b, "---\n\n## Data Sources\n\n%s\n", bulleted(sources))
	}

	b.WriteString("\n---\n\n*Report generated by the rivalscan multi-agent research pipeline*\n*Powered by OpenAI and Tavily AI*\n")
	return b.String()
}

func bulleted(items []string) string {
	if len(items) == 0 {
		return "- None identified"
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + item)
	}
	return b.String()
}

func titleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
