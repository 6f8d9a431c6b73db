package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research system
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Output    OutputConfig    `mapstructure:"output"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug             bool          `mapstructure:"debug"`
	LogLevel          string        `mapstructure:"log_level"`
	MaxProcessingTime time.Duration `mapstructure:"max_processing_time"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig contains the OpenAI-compatible provider configuration
type LLMConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	CostPer1KInput  float64       `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64       `mapstructure:"cost_per_1k_output"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key (or OPENAI_API_KEY) is required")
	}
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model is required")
	}
	return nil
}

// SearchConfig contains the Tavily search provider configuration
type SearchConfig struct {
	Provider      string        `mapstructure:"provider"` // tavily, brave or serper
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	MaxResults    int           `mapstructure:"max_results"`
	Depth         string        `mapstructure:"depth"` // basic or advanced
	Topic         string        `mapstructure:"topic"` // general or news
	IncludeAnswer bool          `mapstructure:"include_answer"`
	IncludeImages bool          `mapstructure:"include_images"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	EnrichContent bool          `mapstructure:"enrich_content"`
}

func (s SearchConfig) Validate() error {
	switch s.Provider {
	case "tavily", "brave", "serper":
	default:
		return fmt.Errorf("search.provider must be tavily, brave or serper, got %q", s.Provider)
	}
	switch s.Depth {
	case "basic", "advanced":
	default:
		return fmt.Errorf("search.depth must be basic or advanced, got %q", s.Depth)
	}
	if s.MaxResults < 1 || s.MaxResults > 20 {
		return fmt.Errorf("search.max_results must be in [1,20], got %d", s.MaxResults)
	}
	return nil
}

// AgentsConfig contains agent pipeline settings
type AgentsConfig struct {
	MaxConcurrentSearches int    `mapstructure:"max_concurrent_searches"`
	ResearchDepth         string `mapstructure:"research_depth"`
}

func (a AgentsConfig) Validate() error {
	if a.MaxConcurrentSearches < 1 {
		return fmt.Errorf("agents.max_concurrent_searches must be >= 1, got %d", a.MaxConcurrentSearches)
	}
	return nil
}

// OutputConfig controls report rendering and persistence
type OutputConfig struct {
	Format           string `mapstructure:"format"`
	IncludeCitations bool   `mapstructure:"include_citations"`
	SaveRawData      bool   `mapstructure:"save_raw_data"`
	ReportsDir       string `mapstructure:"reports_dir"`
}

// CacheConfig contains the optional redis search cache configuration.
// Caching is disabled when Addr is empty.
type CacheConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	CostTrackingEnabled bool `mapstructure:"cost_tracking_enabled"`
	LogIntermediate     bool `mapstructure:"log_intermediate"`
}

// LoadConfig loads config from file (optional) and environment.
// Environment variables use the RIVALSCAN_ prefix with dots replaced by
// underscores, e.g. RIVALSCAN_SEARCH_MAX_RESULTS. The provider credentials
// additionally honor the conventional OPENAI_API_KEY and TAVILY_API_KEY.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.max_processing_time", 10*time.Minute)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-5-mini")
	v.SetDefault("llm.temperature", 1.0)
	v.SetDefault("llm.max_tokens", 4000)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.cost_per_1k_input", 0.00015)
	v.SetDefault("llm.cost_per_1k_output", 0.0006)
	v.SetDefault("search.provider", "tavily")
	v.SetDefault("search.base_url", "")
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.depth", "advanced")
	v.SetDefault("search.topic", "general")
	v.SetDefault("search.include_answer", true)
	v.SetDefault("search.include_images", false)
	v.SetDefault("search.timeout", 30*time.Second)
	v.SetDefault("search.max_retries", 3)
	v.SetDefault("search.enrich_content", false)
	v.SetDefault("agents.max_concurrent_searches", 5)
	v.SetDefault("agents.research_depth", "standard")
	v.SetDefault("output.format", "markdown")
	v.SetDefault("output.include_citations", true)
	v.SetDefault("output.save_raw_data", true)
	v.SetDefault("output.reports_dir", "reports")
	v.SetDefault("cache.ttl", 1*time.Hour)
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.cost_tracking_enabled", true)
	v.SetDefault("telemetry.log_intermediate", false)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("RIVALSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// a config file is optional; env and defaults are enough
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if config.LLM.APIKey == "" {
		config.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if config.Search.APIKey == "" {
		config.Search.APIKey = os.Getenv("TAVILY_API_KEY")
	}

	if err := config.Search.Validate(); err != nil {
		return nil, err
	}
	if err := config.Agents.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ValidateCredentials reports whether both provider credentials are set.
// Called before constructing the orchestrator so a missing key fails fast
// instead of surfacing as a mid-run provider error.
func (c *Config) ValidateCredentials() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Search.APIKey) == "" {
		return fmt.Errorf("search.api_key (or TAVILY_API_KEY) is required")
	}
	return nil
}

// Summary returns the effective configuration with credentials masked,
// suitable for printing or serving over the API.
func (c *Config) Summary() map[string]interface{} {
	return map[string]interface{}{
		"llm": map[string]interface{}{
			"model":       c.LLM.Model,
			"base_url":    c.LLM.BaseURL,
			"temperature": c.LLM.Temperature,
			"max_tokens":  c.LLM.MaxTokens,
			"api_key_set": c.LLM.APIKey != "",
		},
		"search": map[string]interface{}{
			"provider":       c.Search.Provider,
			"max_results":    c.Search.MaxResults,
			"depth":          c.Search.Depth,
			"topic":          c.Search.Topic,
			"include_answer": c.Search.IncludeAnswer,
			"include_images": c.Search.IncludeImages,
			"timeout":        c.Search.Timeout.String(),
			"max_retries":    c.Search.MaxRetries,
			"api_key_set":    c.Search.APIKey != "",
		},
		"agents": map[string]interface{}{
			"max_concurrent_searches": c.Agents.MaxConcurrentSearches,
			"research_depth":          c.Agents.ResearchDepth,
		},
		"output": map[string]interface{}{
			"format":            c.Output.Format,
			"include_citations": c.Output.IncludeCitations,
			"save_raw_data":     c.Output.SaveRawData,
			"reports_dir":       c.Output.ReportsDir,
		},
	}
}
