package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rivalscan/rivalscan/tools/web_search/models"
)

// https://serper.dev/
const defaultBaseURL = "https://google.serper.dev"

// Search is a Serper (Google SERP) API client. Serper returns organic web
// hits only; answer and image params are ignored.
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
	body, err := json.Marshal(map[string]interface{}{"q": q, "num": p.MaxResults})
	if err != nil {
		return models.Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return models.Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.ApiKey)

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
		return models.Response{}, fmt.Errorf("serper search returned status %d", resp.StatusCode)
	}

	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
			Date    string `json:"date"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.Response{}, err
	}

	out := models.Response{Query: q}
	for i, r := range raw.Organic {
		if p.MaxResults > 0 && i >= p.MaxResults {
			break
		}
		out.Results = append(out.Results, models.Result{Title: r.Title, URL: r.Link, Snippet: r.Snippet, Content: r.Snippet, PublishedDate: r.Date})
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
