package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rivalscan/rivalscan/tools/web_search/models"
)

// https://api.search.brave.com/app/documentation/web-search
const defaultBaseURL = "https://api.search.brave.com"

// Search is a Brave Web Search API client. Brave has no answer or image
// support, so those params are ignored.
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

func (s Search) Discover(ctx context.Context, q string, p models.Params) (models.Response, error) {
	endpoint := fmt.Sprintf("%s/res/v1/web/search?q=%s&count=%d", s.BaseURL, url.QueryEscape(q), p.MaxResults)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Response{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.ApiKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return models.Response{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.Response{}, models.ErrInvalidAPIKey
	case http.StatusTooManyRequests:
		return models.Response{}, models.ErrRateLimited
	default:
		return models.Response{}, fmt.Errorf("brave search returned status %d", resp.StatusCode)
	}

	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.Response{}, err
	}

	out := models.Response{Query: q}
	for i, r := range raw.Web.Results {
		if p.MaxResults > 0 && i >= p.MaxResults {
			break
		}
		out.Results = append(out.Results, models.Result{Title: r.Title, URL: r.URL, Snippet: r.Snippet, Content: r.Snippet})
	}
	return out, nil
}

// Validate probes the credential with a minimal query.
func (s Search) Validate(ctx context.Context) error {
	_, err := s.Discover(ctx, "test query", models.Params{MaxResults: 1})
	if err == models.ErrRateLimited {
		// throttled means the key itself was accepted
		return nil
	}
	return err
}
