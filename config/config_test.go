package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TAVILY_API_KEY", "tvly-test")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("explicit missing config file must error")
	}

	cfg, err = LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.Model != "gpt-5-mini" {
		t.Fatalf("model = %q", cfg.LLM.Model)
	}
	if cfg.Search.MaxResults != 10 || cfg.Search.Depth != "advanced" || cfg.Search.Provider != "tavily" {
		t.Fatalf("search defaults = %+v", cfg.Search)
	}
	if cfg.Search.Timeout != 30*time.Second {
		t.Fatalf("timeout = %v", cfg.Search.Timeout)
	}
	if cfg.Agents.MaxConcurrentSearches != 5 {
		t.Fatalf("max concurrent = %d", cfg.Agents.MaxConcurrentSearches)
	}
	if cfg.LLM.APIKey != "sk-test" || cfg.Search.APIKey != "tvly-test" {
		t.Fatal("credential env fallbacks not applied")
	}
	if cfg.Output.ReportsDir != "reports" {
		t.Fatalf("reports dir = %q", cfg.Output.ReportsDir)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TAVILY_API_KEY", "tvly-test")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"search": {"max_results": 7, "depth": "basic"},
		"agents": {"max_concurrent_searches": 2},
		"llm": {"model": "gpt-5"}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Search.MaxResults != 7 || cfg.Search.Depth != "basic" {
		t.Fatalf("search = %+v", cfg.Search)
	}
	if cfg.Agents.MaxConcurrentSearches != 2 {
		t.Fatalf("agents = %+v", cfg.Agents)
	}
	if cfg.LLM.Model != "gpt-5" {
		t.Fatalf("model = %q", cfg.LLM.Model)
	}
	// unset fields keep their defaults
	if cfg.Search.Topic != "general" {
		t.Fatalf("topic = %q", cfg.Search.Topic)
	}
}

func TestLoadConfigRejectsBadShape(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TAVILY_API_KEY", "tvly-test")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"search": {"max_results": 99}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("max_results outside [1,20] must be rejected")
	}

	if err := os.WriteFile(path, []byte(`{"search": {"depth": "extreme"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("unknown search depth must be rejected")
	}

	if err := os.WriteFile(path, []byte(`{"search": {"provider": "bing"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("unknown search provider must be rejected")
	}
}

func TestValidateCredentials(t *testing.T) {
	cfg := &Config{}
	cfg.LLM.Model = "gpt-5-mini"
	if err := cfg.ValidateCredentials(); err == nil {
		t.Fatal("missing llm key must error")
	}
	cfg.LLM.APIKey = "sk-test"
	if err := cfg.ValidateCredentials(); err == nil {
		t.Fatal("missing search key must error")
	}
	cfg.Search.APIKey = "tvly-test"
	if err := cfg.ValidateCredentials(); err != nil {
		t.Fatalf("ValidateCredentials: %v", err)
	}
}

func TestSummaryMasksCredentials(t *testing.T) {
	cfg := &Config{}
	cfg.LLM.APIKey = "sk-secret"
	cfg.Search.APIKey = "tvly-secret"

	summary := cfg.Summary()
	llm := summary["llm"].(map[string]interface{})
	if llm["api_key_set"] != true {
		t.Fatalf("llm summary = %v", llm)
	}
	for _, section := range summary {
		m := section.(map[string]interface{})
		for k, v := range m {
			if s, ok := v.(string); ok && (s == "sk-secret" || s == "tvly-secret") {
				t.Fatalf("credential leaked via %s", k)
			}
		}
	}
}
