package web_search

import (
	"context"
	"time"

	"github.com/rivalscan/rivalscan/tools/web_search/brave"
	"github.com/rivalscan/rivalscan/tools/web_search/models"
	"github.com/rivalscan/rivalscan/tools/web_search/serper"
	"github.com/rivalscan/rivalscan/tools/web_search/tavily"
)

// WebSearcher is the provider-agnostic search surface the research
// pipeline consumes.
type WebSearcher interface {
	Discover(ctx context.Context, q string, p models.Params) (models.Response, error)
	Validate(ctx context.Context) error
}

type Provider string

const (
	TavilyProvider Provider = "tavily"
	BraveProvider  Provider = "brave"
	SerperProvider Provider = "serper"
)

var ErrUnsupportedProvider = &Error{"unsupported provider"}

type Error struct{ msg string }

func (e *Error) Error() string { return e.msg }

// NewWebSearcher builds the configured provider. Tavily is the primary
// provider; brave and serper serve as drop-in alternatives.
func NewWebSearcher(provider Provider, apiKey, baseURL string, timeout time.Duration) (WebSearcher, error) {
	switch provider {
	case TavilyProvider:
		return tavily.New(apiKey, baseURL, timeout), nil
	case BraveProvider:
		return brave.New(apiKey, baseURL, timeout), nil
	case SerperProvider:
		return serper.New(apiKey, baseURL, timeout), nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
