// Package search provides web search providers behind a common interface.
// The engine-facing wrapper absorbs provider failures: a failed search is
// an empty result list, never an error.
package search

import (
	"context"
	"fmt"
	"strings"

	"deepresearch/internal/config"
	"deepresearch/internal/logging"
	"deepresearch/internal/state"
)

// Provider executes a single web search query.
type Provider interface {
	Search(ctx context.Context, query string) ([]state.SearchResult, error)
	Name() string
}

// NewProvider builds the provider named by the configuration.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.Search.Provider {
	case "duckduckgo", "":
		return NewDuckDuckGo(), nil
	case "tavily":
		if cfg.Search.TavilyAPIKey == "" {
			return nil, fmt.Errorf("tavily provider requires TAVILY_API_KEY")
		}
		return NewTavily(cfg.Search.TavilyAPIKey), nil
	case "brave":
		if cfg.Search.BraveAPIKey == "" {
			return nil, fmt.Errorf("brave provider requires BRAVE_API_KEY")
		}
		return NewBrave(cfg.Search.BraveAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Search.Provider)
	}
}

// Engine wraps a provider with the never-fail contract the research loop
// relies on.
type Engine struct {
	provider Provider
}

// NewEngine wraps the given provider.
func NewEngine(provider Provider) *Engine {
	return &Engine{provider: provider}
}

// Search runs the query and caps the results at max. Provider failures and
// empty queries yield an empty slice; the research loop treats that as
// "nothing found" and moves on.
func (e *Engine) Search(ctx context.Context, query string, max int) []state.SearchResult {
	if strings.TrimSpace(query) == "" {
		return []state.SearchResult{}
	}
	results, err := e.provider.Search(ctx, query)
	if err != nil {
		logging.Search("%s search failed for %q: %v", e.provider.Name(), query, err)
		return []state.SearchResult{}
	}
	if results == nil {
		results = []state.SearchResult{}
	}
	if max > 0 && len(results) > max {
		results = results[:max]
	}
	logging.SearchDebug("%s returned %d results for %q", e.provider.Name(), len(results), query)
	return results
}
