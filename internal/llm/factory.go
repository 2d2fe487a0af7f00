package llm

import (
	"context"
	"fmt"

	"deepresearch/internal/config"
)

// NewClientFromConfig builds the provider client named by the configuration.
// Ollama speaks the OpenAI chat API, so it shares the OpenAI client with its
// local base URL and no key.
func NewClientFromConfig(ctx context.Context, cfg *config.Config) (Client, error) {
	timeout, err := cfg.LLMTimeout()
	if err != nil {
		return nil, err
	}

	switch cfg.LLM.Provider {
	case "openai":
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     timeout,
		}), nil
	case "ollama", "":
		baseURL := cfg.LLM.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:      "ollama",
			BaseURL:     baseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     timeout,
		}), nil
	case "gemini":
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

// NewFacadeFromConfig builds the rate-gated facade for the configured
// provider.
func NewFacadeFromConfig(ctx context.Context, cfg *config.Config) (*Facade, error) {
	client, err := NewClientFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	gate, err := NewRateGate(cfg.LLM.RateLimitRPM)
	if err != nil {
		return nil, err
	}
	return NewFacade(client, gate), nil
}
