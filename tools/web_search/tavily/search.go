package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rivalscan/rivalscan/tools/web_search/models"
)

// https://docs.tavily.com/docs/rest-api/api-reference
const defaultBaseURL = "https://api.tavily.com"

// ErrInvalidAPIKey means the key was rejected (HTTP 401). Callers must not
// retry: the key will not become valid on the next attempt.
var ErrInvalidAPIKey = models.ErrInvalidAPIKey

// ErrRateLimited means the provider returned HTTP 429. Callers may retry
// after backing off.
var ErrRateLimited = models.ErrRateLimited

type Search struct {
	ApiKey  string
	BaseURL string
	Client  *http.Client
}

func New(apiKey, baseURL string, timeout time.Duration) Search {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return Search{ApiKey: apiKey, BaseURL: baseURL, Client: &http.Client{Timeout: timeout}}
}

func (s Search) httpClient() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

// Discover runs one search query against the Tavily REST API.
func (s Search) Discover(ctx context.Context, q string, p models.Params) (models.Response, error) {
	body := map[string]interface{}{
		"api_key":        s.ApiKey,
		"query":          q,
		"search_depth":   p.Depth,
		"topic":          p.Topic,
		"max_results":    p.MaxResults,
		"include_answer": p.IncludeAnswer,
		"include_images": p.IncludeImages,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return models.Response{}, fmt.Errorf("tavily: encoding request: %w", err)
	}

	base := s.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/search", bytes.NewReader(payload))
	if err != nil {
		return models.Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return models.Response{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return models.Response{}, ErrInvalidAPIKey
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.Response{}, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return models.Response{}, fmt.Errorf("tavily: status %d: %s", resp.StatusCode, string(b))
	}

	var raw struct {
		Query        string   `json:"query"`
		Answer       string   `json:"answer"`
		Images       []string `json:"images"`
		ResponseTime float64  `json:"response_time"`
		Results      []struct {
			Title         string   `json:"title"`
			URL           string   `json:"url"`
			Content       string   `json:"content"`
			Score         *float64 `json:"score"`
			PublishedDate string   `json:"published_date"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.Response{}, fmt.Errorf("tavily: decoding response: %w", err)
	}

	out := models.Response{
		Query:           q,
		Answer:          raw.Answer,
		Images:          raw.Images,
		ResponseTimeSec: raw.ResponseTime,
	}
	for _, r := range raw.Results {
		out.Results = append(out.Results, models.Result{
			Title:         r.Title,
			URL:           r.URL,
			Snippet:       r.Content,
			Content:       r.Content,
			Score:         r.Score,
			PublishedDate: r.PublishedDate,
		})
	}
	return out, nil
}

// Validate probes the API with a minimal search so credential problems
// surface before any real work is scheduled.
func (s Search) Validate(ctx context.Context) error {
	_, err := s.Discover(ctx, "test query", models.Params{
		MaxResults: 1,
		Depth:      "basic",
		Topic:      "general",
	})
	if errors.Is(err, ErrInvalidAPIKey) {
		return err
	}
	if errors.Is(err, ErrRateLimited) {
		// key is valid, the account is just throttled
		return nil
	}
	return err
}
