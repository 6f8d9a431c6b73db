package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ResearchDepth selects how aggressively the pipeline searches.
type ResearchDepth string

const (
	DepthBasic         ResearchDepth = "basic"
	DepthStandard      ResearchDepth = "standard"
	DepthComprehensive ResearchDepth = "comprehensive"
)

// ResearchStatus is the lifecycle state of a workflow or a single step.
type ResearchStatus string

const (
	StatusPending    ResearchStatus = "pending"
	StatusInProgress ResearchStatus = "in_progress"
	StatusCompleted  ResearchStatus = "completed"
	StatusFailed     ResearchStatus = "failed"
)

// ResearchQuery is the caller's request.
type ResearchQuery struct {
	Query              string        `json:"query"`
	Depth              ResearchDepth `json:"research_depth"`
	FocusAreas         []string      `json:"focus_areas,omitempty"`
	ExcludeCompetitors []string      `json:"exclude_competitors,omitempty"`
	MaxResults         int           `json:"max_results"`
}

// Normalize trims the query, applies defaults and rejects unusable input.
func (q *ResearchQuery) Normalize() error {
	q.Query = strings.TrimSpace(q.Query)
	if len(q.Query) < 3 {
		return fmt.Errorf("query must be at least 3 characters")
	}
	switch q.Depth {
	case DepthBasic, DepthStandard, DepthComprehensive:
	case "":
		q.Depth = DepthStandard
	default:
		return fmt.Errorf("unknown research depth %q", q.Depth)
	}
	if q.MaxResults <= 0 {
		q.MaxResults = 10
	}
	if q.MaxResults > 50 {
		q.MaxResults = 50
	}
	return nil
}

// ResearchPlan is the stage-1 artifact driving the search stage.
type ResearchPlan struct {
	MainObjective     string    `json:"main_objective"`
	ResearchQuestions []string  `json:"research_questions"`
	PriorityAreas     []string  `json:"priority_areas"`
	SearchKeywords    []string  `json:"search_keywords"`
	CompetitorNames   []string  `json:"competitors_to_analyze"`
	EstimatedSearches int       `json:"estimated_searches"`
	CreatedAt         time.Time `json:"created_at"`
}

// SearchResult is one hit from the search stage, from the web or from
// model knowledge when live search for a query failed.
type SearchResult struct {
	Query         string   `json:"query"`
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Snippet       string   `json:"snippet"`
	Content       string   `json:"content,omitempty"`
	Score         *float64 `json:"relevance_score,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	SourceType    string   `json:"source_type"` // "web" or "knowledge_base"
}

// CompetitorInfo is the structured profile extracted for one competitor.
type CompetitorInfo struct {
	Name           string            `json:"name"`
	Website        string            `json:"website,omitempty"`
	Description    string            `json:"description,omitempty"`
	Products       []string          `json:"products,omitempty"`
	PricingInfo    map[string]string `json:"pricing_info,omitempty"`
	KeyFeatures    []string          `json:"key_features,omitempty"`
	TargetMarket   string            `json:"target_market,omitempty"`
	MarketPosition string            `json:"market_position,omitempty"`
	Strengths      []string          `json:"strengths,omitempty"`
	Weaknesses     []string          `json:"weaknesses,omitempty"`
	RecentNews     []string          `json:"recent_news,omitempty"`
	FundingInfo    map[string]string `json:"funding_info,omitempty"`
	EmployeeCount  string            `json:"employee_count,omitempty"`
	FoundedYear    string            `json:"founded_year,omitempty"`
}

// completenessFields is the fixed set of profile fields counted by
// CompletenessScore. Keep in sync with the struct above.
const completenessFields = 7

// CompletenessScore returns the filled fraction of the seven core profile
// fields: website, description, products, pricing, key features, target
// market and market position.
func (c CompetitorInfo) CompletenessScore() float64 {
	filled := 0
	if strings.TrimSpace(c.Website) != "" {
		filled++
	}
	if strings.TrimSpace(c.Description) != "" {
		filled++
	}
	if len(c.Products) > 0 {
		filled++
	}
	if len(c.PricingInfo) > 0 {
		filled++
	}
	if len(c.KeyFeatures) > 0 {
		filled++
	}
	if strings.TrimSpace(c.TargetMarket) != "" {
		filled++
	}
	if strings.TrimSpace(c.MarketPosition) != "" {
		filled++
	}
	return float64(filled) / float64(completenessFields)
}

// GapAnalysis is the stage-3 artifact.
type GapAnalysis struct {
	MissingInformation []string            `json:"missing_information"`
	IncompleteAreas    map[string][]string `json:"incomplete_areas"`
	ConfidenceScores   map[string]float64  `json:"confidence_scores"`
	SuggestedQueries   []string            `json:"suggested_queries"`
	PriorityGaps       []string            `json:"priority_gaps"`
	DataQualityScore   float64             `json:"data_quality_score"`
}

// CompetitiveInsights is the strategic synthesis produced in stage 4.
type CompetitiveInsights struct {
	MarketOpportunities      []string `json:"market_opportunities"`
	CompetitiveAdvantages    []string `json:"competitive_advantages"`
	ThreatsAndRisks          []string `json:"threats_and_risks"`
	StrategicRecommendations []string `json:"strategic_recommendations"`
	PositioningSuggestions   []string `json:"positioning_suggestions"`
	FeatureGaps              []string `json:"feature_gaps"`
	PricingInsights          []string `json:"pricing_insights"`
}

// ResearchReport is the final assembled artifact.
type ResearchReport struct {
	Query                   ResearchQuery       `json:"query"`
	Plan                    ResearchPlan        `json:"research_plan"`
	Competitors             []CompetitorInfo    `json:"competitors"`
	GapAnalysis             GapAnalysis         `json:"gap_analysis"`
	Insights                CompetitiveInsights `json:"insights"`
	ExecutiveSummary        string              `json:"executive_summary"`
	Methodology             string              `json:"methodology"`
	DataSources             []string            `json:"data_sources"`
	Limitations             []string            `json:"limitations"`
	NextSteps               []string            `json:"next_steps"`
	GeneratedAt             time.Time           `json:"generated_at"`
	TotalSearchesPerformed  int                 `json:"total_searches_performed"`
	ResearchDurationSeconds float64             `json:"research_duration_seconds"`
}

// AgentResponse is the uniform envelope every agent operation returns
// alongside its typed artifact. Data is an opaque snapshot recorded on the
// workflow step for diagnostics and partial-result recovery; control flow
// keys off Status only.
type AgentResponse struct {
	AgentName            string                 `json:"agent_name"`
	Status               ResearchStatus         `json:"status"`
	Data                 map[string]interface{} `json:"data,omitempty"`
	Error                string                 `json:"error,omitempty"`
	ExecutionTimeSeconds float64                `json:"execution_time_seconds"`
	TokensUsed           int64                  `json:"tokens_used,omitempty"`
	CostUSD              float64                `json:"cost_usd,omitempty"`
	Timestamp            time.Time              `json:"timestamp"`
}

// WorkflowStep tracks a single pipeline stage.
type WorkflowStep struct {
	StepName     string                 `json:"step_name"`
	AgentName    string                 `json:"agent_name"`
	Status       ResearchStatus         `json:"status"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	OutputData   map[string]interface{} `json:"output_data,omitempty"`
}

// WorkflowExecution tracks a full pipeline run.
type WorkflowExecution struct {
	WorkflowID           string          `json:"workflow_id"`
	Query                ResearchQuery   `json:"query"`
	Steps                []WorkflowStep  `json:"steps"`
	CurrentStep          int             `json:"current_step"`
	Status               ResearchStatus  `json:"status"`
	StartedAt            time.Time       `json:"started_at"`
	CompletedAt          *time.Time      `json:"completed_at,omitempty"`
	TotalDurationSeconds float64         `json:"total_duration_seconds"`
	FinalReport          *ResearchReport `json:"-"`
}

// RunMetrics summarizes a completed run for callers and telemetry.
type RunMetrics struct {
	DurationSeconds   float64 `json:"research_duration_seconds"`
	CompetitorsFound  int     `json:"competitors_found"`
	SearchesPerformed int     `json:"searches_performed"`
	DataQualityScore  float64 `json:"data_quality_score"`
	EstimatedCostUSD  float64 `json:"estimated_cost_usd"`
	TotalTokens       int64   `json:"total_tokens"`
}

// ResearchOutcome is what ExecuteResearch hands back: either a report or a
// structured failure with whatever the completed steps produced.
type ResearchOutcome struct {
	Success        bool                              `json:"success"`
	WorkflowID     string                            `json:"workflow_id"`
	Report         *ResearchReport                   `json:"report,omitempty"`
	MarkdownReport string                            `json:"markdown_report,omitempty"`
	Workflow       WorkflowExecution                 `json:"workflow"`
	Metrics        RunMetrics                        `json:"metrics"`
	ErrorType      string                            `json:"error_type,omitempty"`
	ErrorMessage   string                            `json:"error,omitempty"`
	FailedStep     string                            `json:"failed_step,omitempty"`
	PartialResults map[string]map[string]interface{} `json:"partial_results,omitempty"`
}

// ValidationReport is the result of a system probe.
type ValidationReport struct {
	OverallStatus   string                     `json:"overall_status"` // operational, degraded, error
	Components      map[string]ComponentStatus `json:"components"`
	Recommendations []string                   `json:"recommendations,omitempty"`
	CheckedAt       time.Time                  `json:"checked_at"`
}

// ComponentStatus describes one probed subsystem.
type ComponentStatus struct {
	Status  string `json:"status"` // ok, warn, error
	Details string `json:"details,omitempty"`
}

// LLMProvider abstracts the chat-completion backend.
type LLMProvider interface {
	Generate(ctx context.Context, prompt string, options map[string]interface{}) (string, error)
	GenerateWithTokens(ctx context.Context, prompt string, options map[string]interface{}) (text string, inputTokens int64, outputTokens int64, err error)
	CalculateCost(inputTokens, outputTokens int64) float64
	Model() string
}
