package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"deepresearch/internal/state"
)

// Tavily calls the Tavily search API. Tavily returns relevance scores,
// which feed directly into relevance filtering when present.
type Tavily struct {
	apiKey string
	client *http.Client
	depth  string
}

// NewTavily constructs a Tavily provider with basic search depth.
func NewTavily(apiKey string) *Tavily {
	return &Tavily{
		apiKey: apiKey,
		depth:  "basic",
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name implements Provider.
func (t *Tavily) Name() string { return "tavily" }

// Search posts the query to Tavily.
func (t *Tavily) Search(ctx context.Context, query string) ([]state.SearchResult, error) {
	payload, err := json.Marshal(map[string]any{
		"query":   query,
		"api_key": t.apiKey,
		"depth":   t.depth,
	})
	if err != nil {
		return nil, err
	}

	var resp *http.Response
	delay := time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.tavily.com/search", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err = t.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily http %d", resp.StatusCode)
	}

	var response struct {
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	results := make([]state.SearchResult, 0, len(response.Results))
	for _, r := range response.Results {
		results = append(results, state.SearchResult{
			Title:   r.Title,
			Link:    r.URL,
			Snippet: r.Content,
			Score:   r.Score,
		})
	}
	return results, nil
}
