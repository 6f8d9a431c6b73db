package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/rivalscan/rivalscan/config"
	"github.com/rivalscan/rivalscan/internal/agent/telemetry"
	"github.com/rivalscan/rivalscan/internal/cache"
	"github.com/rivalscan/rivalscan/tools/web_search"
	"github.com/rivalscan/rivalscan/tools/web_search/models"
	"github.com/rivalscan/rivalscan/tools/web_search/tavily"
)

const snippetMaxLen = 500

// SearchOutcome is the stage-2 artifact bundle.
type SearchOutcome struct {
	Results       []SearchResult
	Competitors   []CompetitorInfo
	TotalSearches int
}

// WebSearcherAgent executes the search stage: credential probe, concurrent
// query fan-out against the search provider, model-knowledge fallback for
// failed queries, and competitor extraction from the merged results.
type WebSearcherAgent struct {
	config    *config.Config
	llm       LLMProvider
	search    web_search.WebSearcher
	cache     *cache.SearchCache // nil disables caching
	telemetry *telemetry.Telemetry
	logger    *log.Logger

	// base delay for rate-limit and timeout backoff, shortened in tests
	backoff time.Duration
}

func NewWebSearcherAgent(cfg *config.Config, llm LLMProvider, search web_search.WebSearcher, sc *cache.SearchCache, tele *telemetry.Telemetry) *WebSearcherAgent {
	return &WebSearcherAgent{
		config:    cfg,
		llm:       llm,
		search:    search,
		cache:     sc,
		telemetry: tele,
		logger:    log.New(log.Writer(), "[SEARCHER] ", log.LstdFlags),
		backoff:   time.Second,
	}
}

// ExecuteResearch runs all searches for a plan and extracts competitors.
// A failed credential probe is the only hard failure: individual query
// failures degrade to model knowledge, extraction failures degrade to an
// empty competitor list.
func (a *WebSearcherAgent) ExecuteResearch(ctx context.Context, plan ResearchPlan) (SearchOutcome, AgentResponse) {
	start := time.Now()
	a.logger.Printf("Starting web research execution for: %.50s...", plan.MainObjective)

	var inTok, outTok atomic.Int64

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := a.search.Validate(probeCtx)
	cancel()
	if err != nil {
		a.logger.Printf("Search provider validation failed: %v", err)
		return SearchOutcome{}, AgentResponse{
			AgentName: "WebSearcherAgent",
			Status:    StatusFailed,
			Data: map[string]interface{}{
				"search_results": []SearchResult{},
				"competitors":    []CompetitorInfo{},
				"total_searches": 0,
				"total_results":  0,
			},
			Error:                fmt.Sprintf("search provider validation failed: %v", err),
			ExecutionTimeSeconds: time.Since(start).Seconds(),
			Timestamp:            time.Now(),
		}
	}

	queries := a.generateSearchQueries(plan)
	a.logger.Printf("Generated %d search queries", len(queries))

	results := a.executeConcurrentSearches(ctx, queries, &inTok, &outTok)
	if a.config.Search.EnrichContent {
		a.enrichResults(ctx, results)
	}

	competitors := a.extractCompetitorInfo(ctx, results, plan, &inTok, &outTok)

	elapsed := time.Since(start).Seconds()
	a.logger.Printf("Research execution completed in %.2fs with %d competitors found", elapsed, len(competitors))

	outcome := SearchOutcome{
		Results:       results,
		Competitors:   competitors,
		TotalSearches: len(queries),
	}
	return outcome, AgentResponse{
		AgentName: "WebSearcherAgent",
		Status:    StatusCompleted,
		Data: map[string]interface{}{
			"search_results": results,
			"competitors":    competitors,
			"total_searches": len(queries),
			"total_results":  len(results),
		},
		ExecutionTimeSeconds: elapsed,
		TokensUsed:           inTok.Load() + outTok.Load(),
		CostUSD:              a.llm.CalculateCost(inTok.Load(), outTok.Load()),
		Timestamp:            time.Now(),
	}
}

// generateSearchQueries derives the query set from the plan: priority-area
// by keyword combinations, direct company-list lookups, named competitor
// profiles and one market-leaders query. Duplicates are dropped keeping
// first-seen order and the total is capped by max_concurrent_searches.
func (a *WebSearcherAgent) generateSearchQueries(plan ResearchPlan) []string {
	var queries []string

	areas := plan.PriorityAreas
	if len(areas) > 4 {
		areas = areas[:4]
	}
	keywords := plan.SearchKeywords
	if len(keywords) > 3 {
		keywords = keywords[:3]
	}
	for _, area := range areas {
		for _, keyword := range keywords {
			queries = append(queries, fmt.Sprintf("%s %s companies", keyword, area))
		}
	}

	for _, keyword := range keywords {
		queries = append(queries, fmt.Sprintf("%s companies list", keyword))
	}

	names := plan.CompetitorNames
	if len(names) > 5 {
		names = names[:5]
	}
	for _, competitor := range names {
		queries = append(queries, fmt.Sprintf("%s company profile products pricing features", competitor))
	}

	if len(plan.SearchKeywords) > 0 {
		queries = append(queries, fmt.Sprintf("%s market leaders companies", plan.SearchKeywords[0]))
	}

	seen := make(map[string]struct{}, len(queries))
	unique := queries[:0]
	for _, q := range queries {
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		unique = append(unique, q)
	}
	if max := a.config.Agents.MaxConcurrentSearches; len(unique) > max {
		unique = unique[:max]
	}
	return unique
}

// executeConcurrentSearches fans queries out under a counting semaphore and
// merges per-query results after all workers finish. A failed query only
// loses its own results.
func (a *WebSearcherAgent) executeConcurrentSearches(ctx context.Context, queries []string, inTok, outTok *atomic.Int64) []SearchResult {
	sem := make(chan struct{}, a.config.Agents.MaxConcurrentSearches)
	perQuery := make([][]SearchResult, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			perQuery[i] = a.searchOne(ctx, q, inTok, outTok)
		}(i, q)
	}
	wg.Wait()

	var all []SearchResult
	for _, rs := range perQuery {
		all = append(all, rs...)
	}
	a.logger.Printf("Completed %d searches with %d total results", len(queries), len(all))
	return all
}

// searchOne runs a single query with retries, falling back to model
// knowledge when the provider cannot serve it.
func (a *WebSearcherAgent) searchOne(ctx context.Context, query string, inTok, outTok *atomic.Int64) []SearchResult {
	if cached, ok := a.cacheGet(ctx, query); ok {
		return cached
	}

	params := models.Params{
		MaxResults:    a.config.Search.MaxResults,
		Depth:         a.config.Search.Depth,
		Topic:         a.config.Search.Topic,
		IncludeAnswer: a.config.Search.IncludeAnswer,
		IncludeImages: a.config.Search.IncludeImages,
	}

	for attempt := 0; attempt < a.config.Search.MaxRetries; attempt++ {
		callStart := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, a.config.Search.Timeout)
		resp, err := a.search.Discover(callCtx, query, params)
		cancel()

		if err == nil {
			results := parseSearchResponse(query, resp)
			a.recordSearch(ctx, query, "web", time.Since(callStart), true, len(results))
			a.cacheSet(ctx, query, results)
			return results
		}

		a.recordSearch(ctx, query, "web", time.Since(callStart), false, 0)
		switch {
		case errors.Is(err, tavily.ErrRateLimited):
			a.logger.Printf("Rate limited on attempt %d for query: %s", attempt+1, query)
			if !sleepCtx(ctx, a.backoff*time.Duration(1<<attempt)) {
				return nil
			}
		case errors.Is(err, context.DeadlineExceeded):
			a.logger.Printf("Timeout on attempt %d for query: %s", attempt+1, query)
			if attempt < a.config.Search.MaxRetries-1 && !sleepCtx(ctx, a.backoff) {
				return nil
			}
		default:
			// 401 and unexpected statuses are not retried
			a.logger.Printf("Error searching for %q: %v", query, err)
			return a.fallbackSearch(ctx, query, inTok, outTok)
		}
	}

	a.logger.Printf("Search failed for %q, using model knowledge fallback", query)
	return a.fallbackSearch(ctx, query, inTok, outTok)
}

func parseSearchResponse(query string, resp models.Response) []SearchResult {
	var results []SearchResult
	for _, item := range resp.Results {
		results = append(results, SearchResult{
			Query:         query,
			Title:         item.Title,
			URL:           item.URL,
			Snippet:       truncate(item.Content, snippetMaxLen),
			Content:       item.Content,
			Score:         item.Score,
			PublishedDate: item.PublishedDate,
			SourceType:    "web",
		})
	}
	return results
}

// fallbackSearch answers a query from model knowledge when live search is
// unavailable. Results are marked source_type=knowledge_base. Anything the
// model returns outside the requested JSON shape yields an empty list;
// there is no partial text scraping.
func (a *WebSearcherAgent) fallbackSearch(ctx context.Context, query string, inTok, outTok *atomic.Int64) []SearchResult {
	prompt := fmt.Sprintf(`Based on your knowledge, provide information about: "%s"

Focus on providing factual, current information about:
- Company websites and official sources
- Recent product updates and announcements
- Pricing information when available
- Key features and capabilities
- Market positioning

Format as a JSON object:
{
    "results": [
        {
            "title": "Company Name - Brief Description",
            "url": "https://company-website.com (if known)",
            "snippet": "Brief description of 100-200 words",
            "content": "More detailed information about the company, products, pricing, etc."
        }
    ]
}

Provide 3-5 relevant entries if information is available.`, query)

	callStart := time.Now()
	raw, in, out, err := a.llm.GenerateWithTokens(ctx, prompt, map[string]interface{}{
		"system": "You are a business information provider. Provide factual, structured information about companies and markets.",
		"json":   true,
	})
	if err != nil {
		a.logger.Printf("Fallback search error for %q: %v", query, err)
		a.recordSearch(ctx, query, "knowledge_base", time.Since(callStart), false, 0)
		return nil
	}
	inTok.Add(in)
	outTok.Add(out)

	var payload struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		a.logger.Printf("Fallback search returned unusable payload for %q: %v", query, err)
		a.recordSearch(ctx, query, "knowledge_base", time.Since(callStart), false, 0)
		return nil
	}

	var results []SearchResult
	for _, item := range payload.Results {
		title := item.Title
		if title == "" {
			title = "Knowledge Base Result"
		}
		results = append(results, SearchResult{
			Query:      query,
			Title:      title,
			URL:        item.URL,
			Snippet:    truncate(item.Snippet, snippetMaxLen),
			Content:    item.Content,
			SourceType: "knowledge_base",
		})
	}
	a.recordSearch(ctx, query, "knowledge_base", time.Since(callStart), true, len(results))
	return results
}

// enrichResults fetches full article text for the first few thin web
// results. Best effort: a fetch failure leaves the result untouched.
func (a *WebSearcherAgent) enrichResults(ctx context.Context, results []SearchResult) {
	enriched := 0
	for i := range results {
		if enriched >= 5 {
			break
		}
		r := &results[i]
		if r.SourceType != "web" || r.URL == "" || len(r.Content) >= snippetMaxLen {
			continue
		}
		article, err := readability.FromURL(r.URL, a.config.Search.Timeout)
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(article.TextContent); text != "" {
			r.Content = text
			enriched++
		}
	}
}

// competitorPayload tolerates the looser numeric/string typing models
// produce for profile fields.
type competitorPayload struct {
	Name           string                     `json:"name"`
	Website        string                     `json:"website"`
	Description    string                     `json:"description"`
	Products       []string                   `json:"products"`
	PricingInfo    map[string]json.RawMessage `json:"pricing_info"`
	KeyFeatures    []string                   `json:"key_features"`
	TargetMarket   string                     `json:"target_market"`
	MarketPosition string                     `json:"market_position"`
	RecentNews     []string                   `json:"recent_news"`
	FundingInfo    map[string]json.RawMessage `json:"funding_info"`
	EmployeeCount  json.RawMessage            `json:"employee_count"`
	FoundedYear    json.RawMessage            `json:"founded_year"`
}

// extractCompetitorInfo pulls structured competitor profiles out of the
// merged search results. Extraction failures degrade to an empty list so a
// thin search never kills the pipeline.
func (a *WebSearcherAgent) extractCompetitorInfo(ctx context.Context, results []SearchResult, plan ResearchPlan, inTok, outTok *atomic.Int64) []CompetitorInfo {
	corpus := results
	if len(corpus) > 15 {
		corpus = corpus[:15]
	}
	var blocks []string
	for _, r := range corpus {
		blocks = append(blocks, fmt.Sprintf("Title: %s\nURL: %s\nContent: %s\n", r.Title, r.URL, r.Snippet))
	}

	prompt := fmt.Sprintf(`Extract competitor information from these search results for: %s

SEARCH RESULTS:
%s

Extract information for each competitor company found. For each competitor, identify:
- Company name
- Official website URL
- Company description
- Products and services offered
- Pricing information (if mentioned)
- Key features and capabilities
- Target market or customer base
- Market positioning
- Recent news or developments
- Funding information (if available)

Format as a JSON object:
{
    "competitors": [
        {
            "name": "Company Name",
            "website": "https://company.com",
            "description": "Company description...",
            "products": ["Product 1", "Product 2"],
            "pricing_info": {"plan_name": "price_info"},
            "key_features": ["Feature 1", "Feature 2"],
            "target_market": "Description of target market",
            "market_position": "Market positioning description",
            "recent_news": ["Recent development 1"],
            "funding_info": {"stage": "Series A", "amount": "$10M"},
            "employee_count": "50-100",
            "founded_year": 2020
        }
    ]
}

Only include companies that are actual competitors or relevant to the research objective. Provide accurate information based on the search results.`,
		plan.MainObjective, strings.Join(blocks, "\n---\n"))

	raw, in, out, err := a.llm.GenerateWithTokens(ctx, prompt, map[string]interface{}{
		"system": "You are a data extraction specialist. Extract accurate, structured competitor information from search results.",
		"json":   true,
	})
	if err != nil {
		a.logger.Printf("Error extracting competitor info: %v", err)
		return nil
	}
	inTok.Add(in)
	outTok.Add(out)

	payloads := decodeCompetitorPayloads([]byte(raw))
	if len(payloads) > 10 {
		payloads = payloads[:10]
	}

	var competitors []CompetitorInfo
	for _, p := range payloads {
		name := p.Name
		if strings.TrimSpace(name) == "" {
			name = "Unknown Company"
		}
		competitors = append(competitors, CompetitorInfo{
			Name:           name,
			Website:        p.Website,
			Description:    p.Description,
			Products:       p.Products,
			PricingInfo:    stringifyMap(p.PricingInfo),
			KeyFeatures:    p.KeyFeatures,
			TargetMarket:   p.TargetMarket,
			MarketPosition: p.MarketPosition,
			RecentNews:     p.RecentNews,
			FundingInfo:    stringifyMap(p.FundingInfo),
			EmployeeCount:  rawToString(p.EmployeeCount),
			FoundedYear:    rawToString(p.FoundedYear),
		})
	}
	a.logger.Printf("Extracted information for %d competitors", len(competitors))
	return competitors
}

// decodeCompetitorPayloads accepts the shapes models actually return: an
// object with a "competitors" key, a bare array, or an object whose first
// array value holds the entries.
func decodeCompetitorPayloads(raw []byte) []competitorPayload {
	var withKey struct {
		Competitors []competitorPayload `json:"competitors"`
	}
	if err := json.Unmarshal(raw, &withKey); err == nil && len(withKey.Competitors) > 0 {
		return withKey.Competitors
	}

	var asList []competitorPayload
	if err := json.Unmarshal(raw, &asList); err == nil && len(asList) > 0 {
		return asList
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asObject); err == nil {
		for _, v := range asObject {
			var list []competitorPayload
			if err := json.Unmarshal(v, &list); err == nil && len(list) > 0 {
				return list
			}
		}
	}
	return nil
}

func (a *WebSearcherAgent) recordSearch(ctx context.Context, query, source string, d time.Duration, success bool, results int) {
	if a.telemetry == nil {
		return
	}
	a.telemetry.RecordSearchEvent(ctx, telemetry.SearchEvent{
		Query:    query,
		Source:   source,
		Duration: d,
		Success:  success,
		Results:  results,
	})
}

func (a *WebSearcherAgent) cacheGet(ctx context.Context, query string) ([]SearchResult, bool) {
	if a.cache == nil {
		return nil, false
	}
	data, err := a.cache.Get(ctx, searchCacheKey(query))
	if err != nil {
		return nil, false
	}
	var results []SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, false
	}
	return results, true
}

func (a *WebSearcherAgent) cacheSet(ctx context.Context, query string, results []SearchResult) {
	if a.cache == nil || len(results) == 0 {
		return
	}
	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, searchCacheKey(query), data); err != nil {
		a.logger.Printf("Failed to cache results for %q: %v", query, err)
	}
}

func searchCacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "search:" + hex.EncodeToString(sum[:8])
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func stringifyMap(in map[string]json.RawMessage) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = rawToString(v)
	}
	return out
}

func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return strings.Trim(string(raw), `"`)
}
