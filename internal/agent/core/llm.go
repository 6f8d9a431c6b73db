package core

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/rivalscan/rivalscan/config"
)

// OpenAIProvider implements LLMProvider against the OpenAI chat-completions
// API (or any compatible endpoint via llm.base_url).
type OpenAIProvider struct {
	config config.LLMConfig
	http   *HTTPClient
}

// NewLLMProvider creates the configured LLM provider.
func NewLLMProvider(cfg config.LLMConfig) (LLMProvider, error) {
	if cfg.APIKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}
	return NewOpenAIProvider(cfg), nil
}

// NewOpenAIProvider creates a new OpenAI provider. llm.max_retries bounds
// the total attempts per call; rate limits and server errors are retried,
// auth and request errors are not.
func NewOpenAIProvider(cfg config.LLMConfig) *OpenAIProvider {
	return &OpenAIProvider{
		config: cfg,
		http: NewHTTPClient(cfg.Timeout, cfg.MaxRetries-1, 0).WithRetryable(func(status int) bool {
			return status == http.StatusTooManyRequests || status >= 500
		}),
	}
}

func (p *OpenAIProvider) Model() string { return p.config.Model }

// Generate generates text using OpenAI.
//
// Recognized options: "temperature" (float64), "max_tokens" (int),
// "system" (string system message), "json" (bool, request strict JSON
// object output).
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, options map[string]interface{}) (string, error) {
	resp, _, _, err := p.GenerateWithTokens(ctx, prompt, options)
	return resp, err
}

// GenerateWithTokens generates text and returns token usage
func (p *OpenAIProvider) GenerateWithTokens(ctx context.Context, prompt string, options map[string]interface{}) (string, int64, int64, error) {
	apiKey := p.config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return "", 0, 0, fmt.Errorf("OpenAI API key not configured")
	}

	temperature := p.config.Temperature
	if t, ok := options["temperature"].(float64); ok {
		temperature = t
	}
	maxTokens := p.config.MaxTokens
	if mt, ok := options["max_tokens"].(int); ok {
		maxTokens = mt
	}

	type chatMsg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type respFormat struct {
		Type string `json:"type"`
	}
	type chatReq struct {
		Model          string      `json:"model"`
		Messages       []chatMsg   `json:"messages"`
		Temperature    float64     `json:"temperature,omitempty"`
		MaxTokens      int         `json:"max_tokens,omitempty"`
		ResponseFormat *respFormat `json:"response_format,omitempty"`
	}

	var messages []chatMsg
	if system, ok := options["system"].(string); ok && system != "" {
		messages = append(messages, chatMsg{Role: "system", Content: system})
	}
	messages = append(messages, chatMsg{Role: "user", Content: prompt})

	reqBody := chatReq{
		Model:       p.config.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if jsonMode, ok := options["json"].(bool); ok && jsonMode {
		reqBody.ResponseFormat = &respFormat{Type: "json_object"}
	}

	baseURL := p.config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	headers := map[string]string{"Authorization": "Bearer " + apiKey}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := p.http.DoJSON(ctx, http.MethodPost, baseURL+"/chat/completions", headers, reqBody, &out); err != nil {
		return "", 0, 0, fmt.Errorf("chat completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", 0, 0, fmt.Errorf("no choices")
	}

	return out.Choices[0].Message.Content, int64(out.Usage.PromptTokens), int64(out.Usage.CompletionTokens), nil
}

// CalculateCost calculates the cost for a given number of tokens
func (p *OpenAIProvider) CalculateCost(inputTokens, outputTokens int64) float64 {
	inputCost := float64(inputTokens) / 1000.0 * p.config.CostPer1KInput
	outputCost := float64(outputTokens) / 1000.0 * p.config.CostPer1KOutput
	return inputCost + outputCost
}
