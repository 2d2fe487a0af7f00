package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero research loops", func(c *Config) { c.Research.MaxResearchLoops = 0 }},
		{"overlap equals chunk size", func(c *Config) {
			c.Research.SummarizationChunkSizeChars = 100
			c.Research.SummarizationChunkOverlapChars = 100
		}},
		{"overlap exceeds chunk size", func(c *Config) {
			c.Research.SummarizationChunkSizeChars = 100
			c.Research.SummarizationChunkOverlapChars = 150
		}},
		{"negative overlap", func(c *Config) { c.Research.SummarizationChunkOverlapChars = -1 }},
		{"zero concurrent chunks", func(c *Config) { c.Research.MaxConcurrentChunks = 0 }},
		{"threshold above one", func(c *Config) { c.Research.RelevanceThreshold = 1.5 }},
		{"max sections below min", func(c *Config) {
			c.Research.PlanMinSections = 4
			c.Research.PlanMaxSections = 2
		}},
		{"zero rpm", func(c *Config) { c.LLM.RateLimitRPM = 0 }},
		{"bad llm timeout", func(c *Config) { c.LLM.Timeout = "soon" }},
		{"bad retrieval timeout", func(c *Config) { c.Retrieval.Timeout = "-" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadAppliesYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
research:
  max_research_loops: 5
  relevance_threshold: 0.7
llm:
  provider: openai
  model: gpt-4o-mini
  rate_limit_rpm: 10
language: Japanese
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DEEPRESEARCH_MAX_RESEARCH_LOOPS", "7")
	t.Setenv("DEEPRESEARCH_LLM_RATE_LIMIT_RPM", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Research.MaxResearchLoops != 7 {
		t.Errorf("env must override file: loops = %d, want 7", cfg.Research.MaxResearchLoops)
	}
	if cfg.Research.RelevanceThreshold != 0.7 {
		t.Errorf("file must override default: threshold = %g", cfg.Research.RelevanceThreshold)
	}
	if cfg.LLM.RateLimitRPM != 10 {
		t.Errorf("empty env var must not clobber file value: rpm = %d", cfg.LLM.RateLimitRPM)
	}
	if cfg.Language != "Japanese" {
		t.Errorf("language = %q", cfg.Language)
	}
	if cfg.Research.MaxSearchResultsPerQuery != 3 {
		t.Errorf("untouched defaults must survive, got %d", cfg.Research.MaxSearchResultsPerQuery)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("research:\n  max_research_loops: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("invalid config should fail validation on load")
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("explicit missing config path should error")
	}
}

func TestTimeoutParsing(t *testing.T) {
	cfg := Default()
	cfg.LLM.Timeout = ""
	if d, err := cfg.LLMTimeout(); err != nil || d <= 0 {
		t.Errorf("empty timeout should use default, got %v %v", d, err)
	}
	cfg.LLM.Timeout = "45s"
	if d, err := cfg.LLMTimeout(); err != nil || d.Seconds() != 45 {
		t.Errorf("LLMTimeout = %v %v", d, err)
	}
}
