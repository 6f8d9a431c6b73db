package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rivalscan/rivalscan/config"
)

// PlannerAgent turns a research query into a structured research plan.
// Planning never hard-fails: any provider or parsing problem degrades to a
// deterministic fallback plan with an advisory error on the envelope.
type PlannerAgent struct {
	config *config.Config
	llm    LLMProvider
	logger *log.Logger
}

func NewPlannerAgent(cfg *config.Config, llm LLMProvider) *PlannerAgent {
	return &PlannerAgent{
		config: cfg,
		llm:    llm,
		logger: log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

// planPayload is the JSON shape requested from the model.
type planPayload struct {
	MainObjective     string   `json:"main_objective"`
	ResearchQuestions []string `json:"research_questions"`
	PriorityAreas     []string `json:"priority_areas"`
	SearchKeywords    []string `json:"search_keywords"`
	CompetitorNames   []string `json:"competitor_names"`
}

// CreateResearchPlan builds the stage-1 plan for a query.
func (a *PlannerAgent) CreateResearchPlan(ctx context.Context, query ResearchQuery) (ResearchPlan, AgentResponse) {
	start := time.Now()
	a.logger.Printf("Creating research plan for: %.50s...", query.Query)

	raw, inTok, outTok, err := a.llm.GenerateWithTokens(ctx, a.buildPlanningPrompt(query), map[string]interface{}{
		"system": "You are a strategic research planner specializing in competitive analysis. Create detailed, actionable research plans.",
		"json":   true,
	})
	if err != nil {
		return a.fallbackPlan(query, start, fmt.Sprintf("LLM error: %v", err))
	}

	var payload planPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return a.fallbackPlan(query, start, fmt.Sprintf("JSON parsing error: %v", err))
	}

	plan := a.parsePlanResponse(payload, query)
	elapsed := time.Since(start).Seconds()
	a.logger.Printf("Research plan created successfully in %.2fs", elapsed)

	return plan, AgentResponse{
		AgentName:            "PlannerAgent",
		Status:               StatusCompleted,
		Data:                 planData(plan),
		ExecutionTimeSeconds: elapsed,
		TokensUsed:           inTok + outTok,
		CostUSD:              a.llm.CalculateCost(inTok, outTok),
		Timestamp:            time.Now(),
	}
}

// RefinePlan adjusts an existing plan based on caller feedback. Unlike
// initial planning this can hard-fail: a refinement that silently fell back
// would discard the feedback it was asked to honor.
func (a *PlannerAgent) RefinePlan(ctx context.Context, plan ResearchPlan, feedback string) (ResearchPlan, AgentResponse) {
	start := time.Now()
	a.logger.Printf("Refining research plan based on feedback: %.50s...", feedback)

	questions, _ := json.Marshal(plan.ResearchQuestions)
	areas, _ := json.Marshal(plan.PriorityAreas)
	keywords, _ := json.Marshal(plan.SearchKeywords)
	names, _ := json.Marshal(plan.CompetitorNames)

	prompt := fmt.Sprintf(`Refine this existing research plan based on new feedback:

CURRENT PLAN:
Main Objective: %s
Research Questions: %s
Priority Areas: %s
Search Keywords: %s
Competitor Names: %s

FEEDBACK/REQUIREMENTS:
%s

Create an improved plan that addresses the feedback while maintaining the core research objective.

Format as JSON with the same structure as the original plan.`,
		plan.MainObjective, questions, areas, keywords, names, feedback)

	raw, inTok, outTok, err := a.llm.GenerateWithTokens(ctx, prompt, map[string]interface{}{
		"system": "You are refining a competitive research plan based on feedback. Improve the plan while maintaining its core objectives.",
		"json":   true,
	})
	if err != nil {
		return plan, AgentResponse{
			AgentName:            "PlannerAgent",
			Status:               StatusFailed,
			Error:                fmt.Sprintf("failed to refine plan: %v", err),
			ExecutionTimeSeconds: time.Since(start).Seconds(),
			Timestamp:            time.Now(),
		}
	}

	var payload planPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return plan, AgentResponse{
			AgentName:            "PlannerAgent",
			Status:               StatusFailed,
			Error:                fmt.Sprintf("failed to refine plan: %v", err),
			ExecutionTimeSeconds: time.Since(start).Seconds(),
			Timestamp:            time.Now(),
		}
	}

	refined := ResearchPlan{
		MainObjective:     firstNonEmpty(payload.MainObjective, plan.MainObjective),
		ResearchQuestions: firstNonEmptyList(payload.ResearchQuestions, plan.ResearchQuestions),
		PriorityAreas:     firstNonEmptyList(payload.PriorityAreas, plan.PriorityAreas),
		SearchKeywords:    firstNonEmptyList(payload.SearchKeywords, plan.SearchKeywords),
		CompetitorNames:   firstNonEmptyList(payload.CompetitorNames, plan.CompetitorNames),
		CreatedAt:         time.Now(),
	}
	refined.EstimatedSearches = clampEstimatedSearches(refined)

	elapsed := time.Since(start).Seconds()
	a.logger.Printf("Plan refined successfully in %.2fs", elapsed)

	return refined, AgentResponse{
		AgentName:            "PlannerAgent",
		Status:               StatusCompleted,
		Data:                 planData(refined),
		ExecutionTimeSeconds: elapsed,
		TokensUsed:           inTok + outTok,
		CostUSD:              a.llm.CalculateCost(inTok, outTok),
		Timestamp:            time.Now(),
	}
}

func (a *PlannerAgent) buildPlanningPrompt(query ResearchQuery) string {
	var focus, exclude string
	if len(query.FocusAreas) > 0 {
		focus = fmt.Sprintf("\nSpecific focus areas requested: %s", strings.Join(query.FocusAreas, ", "))
	}
	if len(query.ExcludeCompetitors) > 0 {
		exclude = fmt.Sprintf("\nExclude these competitors: %s", strings.Join(query.ExcludeCompetitors, ", "))
	}

	depthInstructions := map[ResearchDepth]string{
		DepthBasic:         "Focus on 3-5 main competitors and essential information only.",
		DepthStandard:      "Provide comprehensive analysis of 5-8 competitors with detailed information.",
		DepthComprehensive: "Conduct thorough research of 8-12 competitors with deep market analysis.",
	}

	return fmt.Sprintf(`You are creating a strategic competitive research plan to find and analyze companies that operate in the same market space.

Research Query: "%s"
Research Depth: %s - %s
Maximum Results per Search: %d%s%s

IMPORTANT: You are looking for companies that provide products/services in the "%s" market space, NOT companies that provide competitive research services.

Create a detailed research plan with:

1. MAIN OBJECTIVE: Clear, specific goal to identify and analyze companies in the "%s" market
2. RESEARCH QUESTIONS: 5-8 key questions about competitors in this specific market
3. PRIORITY AREAS: Specific areas to investigate (e.g., pricing, features, market position, funding, technology, customer base, partnerships)
4. SEARCH KEYWORDS: 8-12 strategic keywords and phrases that identify companies in this market (avoid words like "competitors", "analysis", "research")
5. COMPETITOR NAMES: Specific company/product names in this market (if mentioned or inferable)

Focus on finding actual companies that operate in the "%s" space, not companies that provide research services.

Format your response as JSON with this exact structure:
{
    "main_objective": "Clear, specific research objective",
    "research_questions": ["..."],
    "priority_areas": ["pricing", "features", "market_position"],
    "search_keywords": ["..."],
    "competitor_names": ["..."]
}`,
		query.Query, query.Depth, depthInstructions[query.Depth], query.MaxResults,
		focus, exclude, query.Query, query.Query, query.Query)
}

func (a *PlannerAgent) parsePlanResponse(payload planPayload, query ResearchQuery) ResearchPlan {
	plan := ResearchPlan{
		MainObjective:     firstNonEmpty(payload.MainObjective, query.Query),
		ResearchQuestions: firstNonEmptyList(payload.ResearchQuestions, []string{fmt.Sprintf("Who are the main competitors for %s?", query.Query)}),
		PriorityAreas:     firstNonEmptyList(payload.PriorityAreas, []string{"market_position", "features", "pricing"}),
		SearchKeywords:    firstNonEmptyList(payload.SearchKeywords, []string{query.Query}),
		CompetitorNames:   payload.CompetitorNames,
		CreatedAt:         time.Now(),
	}
	plan.EstimatedSearches = clampEstimatedSearches(plan)
	return plan
}

// clampEstimatedSearches sizes the search budget from plan complexity and
// keeps it within [5,25].
func clampEstimatedSearches(plan ResearchPlan) int {
	estimated := len(plan.PriorityAreas)*2 + len(plan.CompetitorNames) + len(plan.SearchKeywords)/2
	if estimated < 5 {
		estimated = 5
	}
	if estimated > 25 {
		estimated = 25
	}
	return estimated
}

func (a *PlannerAgent) fallbackPlan(query ResearchQuery, start time.Time, errMsg string) (ResearchPlan, AgentResponse) {
	a.logger.Printf("Creating fallback plan due to: %s", errMsg)

	priorityAreas := query.FocusAreas
	if len(priorityAreas) == 0 {
		priorityAreas = []string{"market_position", "features", "pricing", "target_market"}
	}
	keywords := append([]string{query.Query}, query.FocusAreas...)
	if len(query.FocusAreas) == 0 {
		keywords = append(keywords, "competitors", "market analysis")
	}

	plan := ResearchPlan{
		MainObjective: fmt.Sprintf("Competitive analysis for: %s", query.Query),
		ResearchQuestions: []string{
			fmt.Sprintf("Who are the main competitors in the %s space?", query.Query),
			"What are their key products and services?",
			"How do they price their offerings?",
			"What are their main competitive advantages?",
			"Who is their target market?",
		},
		PriorityAreas:     priorityAreas,
		SearchKeywords:    keywords,
		CompetitorNames:   []string{},
		EstimatedSearches: 8,
		CreatedAt:         time.Now(),
	}

	return plan, AgentResponse{
		AgentName:            "PlannerAgent",
		Status:               StatusCompleted,
		Data:                 planData(plan),
		Error:                fmt.Sprintf("Used fallback plan: %s", errMsg),
		ExecutionTimeSeconds: time.Since(start).Seconds(),
		Timestamp:            time.Now(),
	}
}

func planData(plan ResearchPlan) map[string]interface{} {
	return map[string]interface{}{"research_plan": plan}
}

func firstNonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) != "" {
		return s
	}
	return fallback
}

func firstNonEmptyList(list, fallback []string) []string {
	if len(list) > 0 {
		return list
	}
	return fallback
}
