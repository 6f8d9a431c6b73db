package models

import "errors"

// Params carries per-call search options.
type Params struct {
	MaxResults    int    `json:"max_results"`
	Depth         string `json:"search_depth"`
	Topic         string `json:"topic"`
	IncludeAnswer bool   `json:"include_answer"`
	IncludeImages bool   `json:"include_images"`
}

// Result is a single hit returned by a search provider.
type Result struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Snippet       string   `json:"snippet"`
	Content       string   `json:"content,omitempty"`
	Score         *float64 `json:"score,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
}

// Response is a provider answer for one query.
type Response struct {
	Query           string   `json:"query"`
	Results         []Result `json:"results"`
	Answer          string   `json:"answer,omitempty"`
	Images          []string `json:"images,omitempty"`
	ResponseTimeSec float64  `json:"response_time,omitempty"`
}

// ErrInvalidAPIKey means the provider rejected the credential. Callers
// must not retry: the key will not become valid on the next attempt.
var ErrInvalidAPIKey = errors.New("web_search: invalid api key")

// ErrRateLimited means the provider throttled the call. Callers may retry
// after backing off.
var ErrRateLimited = errors.New("web_search: rate limited")
