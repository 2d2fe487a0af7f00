// Package config loads and validates the research engine configuration.
// Configuration is read from an optional YAML file, an optional .env file,
// and environment variables, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all research engine configuration.
type Config struct {
	// Research loop settings
	Research ResearchConfig `yaml:"research"`

	// LLM provider settings
	LLM LLMConfig `yaml:"llm"`

	// Search provider settings
	Search SearchConfig `yaml:"search"`

	// Content retrieval settings
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Output
	OutputFilename string `yaml:"output_filename"`

	// Report/prompt language, e.g. "English", "Japanese".
	Language string `yaml:"language"`
}

// ResearchConfig configures the orchestration loop.
type ResearchConfig struct {
	MaxResearchLoops               int     `yaml:"max_research_loops"`
	MaxSearchResultsPerQuery       int     `yaml:"max_search_results_per_query"`
	SummarizationChunkSizeChars    int     `yaml:"summarization_chunk_size_chars"`
	SummarizationChunkOverlapChars int     `yaml:"summarization_chunk_overlap_chars"`
	MaxConcurrentChunks            int     `yaml:"max_concurrent_chunks"`
	InteractiveMode                bool    `yaml:"interactive_mode"`
	UseSnippetsOnlyMode            bool    `yaml:"use_snippets_only_mode"`
	EnableRelevanceFiltering       bool    `yaml:"enable_relevance_filtering"`
	RelevanceThreshold             float64 `yaml:"relevance_threshold"`
	MaxRelevantResults             int     `yaml:"max_relevant_results"`
	EnableQueryRegeneration        bool    `yaml:"enable_query_regeneration"`
	PlanMinSections                int     `yaml:"plan_min_sections"`
	PlanMaxSections                int     `yaml:"plan_max_sections"`
	MaxQueryWords                  int     `yaml:"max_query_words"`
}

// LLMConfig configures the LLM provider and rate gate.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, ollama, gemini
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     string  `yaml:"timeout"`
	RateLimitRPM int    `yaml:"rate_limit_rpm"`
}

// SearchConfig configures the search provider.
type SearchConfig struct {
	Provider     string `yaml:"provider"` // duckduckgo, tavily, brave
	TavilyAPIKey string `yaml:"tavily_api_key"`
	BraveAPIKey  string `yaml:"brave_api_key"`
}

// RetrievalConfig configures content retrieval.
type RetrievalConfig struct {
	MaxContentChars int    `yaml:"max_content_chars"`
	Timeout         string `yaml:"timeout"`
	EnablePDF       bool   `yaml:"enable_pdf"`
	PDFWorkers      int    `yaml:"pdf_workers"`
	UserAgent       string `yaml:"user_agent"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	Level   string `yaml:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Research: ResearchConfig{
			MaxResearchLoops:               3,
			MaxSearchResultsPerQuery:       3,
			SummarizationChunkSizeChars:    6000,
			SummarizationChunkOverlapChars: 300,
			MaxConcurrentChunks:            3,
			InteractiveMode:                false,
			UseSnippetsOnlyMode:            false,
			EnableRelevanceFiltering:       true,
			RelevanceThreshold:             0.5,
			MaxRelevantResults:             3,
			EnableQueryRegeneration:        true,
			PlanMinSections:                3,
			PlanMaxSections:                5,
			MaxQueryWords:                  12,
		},
		LLM: LLMConfig{
			Provider:     "ollama",
			Model:        "llama3",
			BaseURL:      "http://localhost:11434/v1",
			Temperature:  0.7,
			MaxTokens:    2048,
			Timeout:      "120s",
			RateLimitRPM: 30,
		},
		Search: SearchConfig{
			Provider: "duckduckgo",
		},
		Retrieval: RetrievalConfig{
			MaxContentChars: 20000,
			Timeout:         "20s",
			EnablePDF:       true,
			PDFWorkers:      2,
			UserAgent:       "deepresearch/1.0 (+research agent)",
		},
		Logging: LoggingConfig{
			Enabled: false,
			Dir:     ".deepresearch",
			Level:   "info",
		},
		OutputFilename: "research_report.md",
		Language:       "English",
	}
}

// Load reads configuration from the given YAML path (optional), applies
// .env and environment overrides, and validates the result.
// An empty path loads defaults plus environment.
func Load(path string) (*Config, error) {
	// .env is best-effort; a missing file is not an error.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies DEEPRESEARCH_* and provider key environment
// variables on top of the loaded file.
func (c *Config) applyEnvOverrides() {
	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setInt("DEEPRESEARCH_MAX_RESEARCH_LOOPS", &c.Research.MaxResearchLoops)
	setInt("DEEPRESEARCH_MAX_SEARCH_RESULTS_PER_QUERY", &c.Research.MaxSearchResultsPerQuery)
	setInt("DEEPRESEARCH_SUMMARIZATION_CHUNK_SIZE_CHARS", &c.Research.SummarizationChunkSizeChars)
	setInt("DEEPRESEARCH_SUMMARIZATION_CHUNK_OVERLAP_CHARS", &c.Research.SummarizationChunkOverlapChars)
	setInt("DEEPRESEARCH_MAX_CONCURRENT_CHUNKS", &c.Research.MaxConcurrentChunks)
	setBool("DEEPRESEARCH_INTERACTIVE_MODE", &c.Research.InteractiveMode)
	setBool("DEEPRESEARCH_USE_SNIPPETS_ONLY_MODE", &c.Research.UseSnippetsOnlyMode)
	setBool("DEEPRESEARCH_ENABLE_RELEVANCE_FILTERING", &c.Research.EnableRelevanceFiltering)
	setFloat("DEEPRESEARCH_RELEVANCE_THRESHOLD", &c.Research.RelevanceThreshold)
	setInt("DEEPRESEARCH_MAX_RELEVANT_RESULTS", &c.Research.MaxRelevantResults)
	setBool("DEEPRESEARCH_ENABLE_QUERY_REGENERATION", &c.Research.EnableQueryRegeneration)
	setInt("DEEPRESEARCH_PLAN_MIN_SECTIONS", &c.Research.PlanMinSections)
	setInt("DEEPRESEARCH_PLAN_MAX_SECTIONS", &c.Research.PlanMaxSections)
	setInt("DEEPRESEARCH_MAX_QUERY_WORDS", &c.Research.MaxQueryWords)

	setStr("DEEPRESEARCH_LLM_PROVIDER", &c.LLM.Provider)
	setStr("DEEPRESEARCH_LLM_MODEL", &c.LLM.Model)
	setStr("DEEPRESEARCH_LLM_BASE_URL", &c.LLM.BaseURL)
	setInt("DEEPRESEARCH_LLM_RATE_LIMIT_RPM", &c.LLM.RateLimitRPM)

	// Provider keys keep their conventional names. A key implies its
	// provider only when none was chosen explicitly.
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
		if os.Getenv("DEEPRESEARCH_LLM_PROVIDER") == "" && c.LLM.Provider == "ollama" {
			c.LLM.Provider = "openai"
		}
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.LLM.Provider == "gemini" {
		c.LLM.APIKey = v
	}

	setStr("DEEPRESEARCH_SEARCH_PROVIDER", &c.Search.Provider)
	setStr("TAVILY_API_KEY", &c.Search.TavilyAPIKey)
	setStr("BRAVE_API_KEY", &c.Search.BraveAPIKey)

	setInt("DEEPRESEARCH_MAX_CONTENT_CHARS", &c.Retrieval.MaxContentChars)
	setBool("DEEPRESEARCH_ENABLE_PDF", &c.Retrieval.EnablePDF)

	setBool("DEEPRESEARCH_LOGGING_ENABLED", &c.Logging.Enabled)
	setStr("DEEPRESEARCH_LOGGING_DIR", &c.Logging.Dir)
	setStr("DEEPRESEARCH_LOGGING_LEVEL", &c.Logging.Level)

	setStr("DEEPRESEARCH_LANGUAGE", &c.Language)
	setStr("DEEPRESEARCH_OUTPUT_FILENAME", &c.OutputFilename)
}

// Validate checks configuration invariants. Called by Load; callers that
// build a Config by hand should call it themselves.
func (c *Config) Validate() error {
	r := &c.Research
	if r.MaxResearchLoops < 1 {
		return fmt.Errorf("max_research_loops must be >= 1, got %d", r.MaxResearchLoops)
	}
	if r.SummarizationChunkSizeChars <= 0 {
		return fmt.Errorf("summarization_chunk_size_chars must be positive, got %d", r.SummarizationChunkSizeChars)
	}
	if r.SummarizationChunkOverlapChars < 0 ||
		r.SummarizationChunkOverlapChars >= r.SummarizationChunkSizeChars {
		return fmt.Errorf("chunk overlap %d must be non-negative and smaller than chunk size %d",
			r.SummarizationChunkOverlapChars, r.SummarizationChunkSizeChars)
	}
	if r.MaxConcurrentChunks < 1 {
		return fmt.Errorf("max_concurrent_chunks must be >= 1, got %d", r.MaxConcurrentChunks)
	}
	if r.RelevanceThreshold < 0 || r.RelevanceThreshold > 1 {
		return fmt.Errorf("relevance_threshold must be in [0,1], got %g", r.RelevanceThreshold)
	}
	if r.PlanMinSections < 1 || r.PlanMaxSections < r.PlanMinSections {
		return fmt.Errorf("invalid plan section bounds: min=%d max=%d", r.PlanMinSections, r.PlanMaxSections)
	}
	if c.LLM.RateLimitRPM <= 0 {
		return fmt.Errorf("rate_limit_rpm must be positive, got %d", c.LLM.RateLimitRPM)
	}
	if _, err := c.LLMTimeout(); err != nil {
		return fmt.Errorf("invalid llm timeout: %w", err)
	}
	if _, err := c.RetrievalTimeout(); err != nil {
		return fmt.Errorf("invalid retrieval timeout: %w", err)
	}
	return nil
}

// LLMTimeout parses the LLM transport timeout.
func (c *Config) LLMTimeout() (time.Duration, error) {
	if c.LLM.Timeout == "" {
		return 120 * time.Second, nil
	}
	return time.ParseDuration(c.LLM.Timeout)
}

// RetrievalTimeout parses the per-request retrieval timeout.
func (c *Config) RetrievalTimeout() (time.Duration, error) {
	if c.Retrieval.Timeout == "" {
		return 20 * time.Second, nil
	}
	return time.ParseDuration(c.Retrieval.Timeout)
}
