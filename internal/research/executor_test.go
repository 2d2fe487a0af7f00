package research

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepresearch/internal/search"
	"deepresearch/internal/state"
)

// scoringResponder scores results by snippet and answers every other
// prompt kind with a fixed script.
func scoringResponder(scores map[string]string) func(string) (string, error) {
	return func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Rate how relevant"):
			for snippet, score := range scores {
				if strings.Contains(prompt, snippet) {
					return fmt.Sprintf(`{"score": %s}`, score), nil
				}
			}
			return `{"score": 0.0}`, nil
		case strings.Contains(prompt, "alternative query"):
			return "rephrased query", nil
		case strings.Contains(prompt, "Summarize the information"):
			return "chunk summary", nil
		case strings.Contains(prompt, "Combine the partial summaries"):
			return "consolidated summary", nil
		default:
			return "", fmt.Errorf("unexpected prompt: %.60s", prompt)
		}
	}
}

func resultsFixture() []state.SearchResult {
	return []state.SearchResult{
		{Title: "Low", Link: "https://example.com/low", Snippet: "snippet-low"},
		{Title: "High", Link: "https://example.com/high", Snippet: "snippet-high"},
		{Title: "Mid", Link: "https://example.com/mid", Snippet: "snippet-mid"},
	}
}

func newTestExecutor(t *testing.T, respond func(string) (string, error), provider *fakeSearch) (*Executor, *fakeClient) {
	t.Helper()
	cfg := testConfig()
	cfg.Research.MaxSearchResultsPerQuery = 3
	facade, client := newTestFacade(t, respond)
	planner := NewPlanner(facade, cfg)
	exec := NewExecutor(facade, search.NewEngine(provider), &fakeRetriever{}, planner, cfg)
	return exec, client
}

func TestSelectAutomaticOrdersByScoreDescending(t *testing.T) {
	provider := &fakeSearch{results: resultsFixture()}
	exec, _ := newTestExecutor(t, scoringResponder(map[string]string{
		"snippet-low":  "0.2",
		"snippet-high": "0.9",
		"snippet-mid":  "0.6",
	}), provider)

	st := state.New("topic", "English")
	st.SetCurrentQuery("test query")
	st.SearchResults = resultsFixture()
	st.PendingSourceSelection = true

	require.NoError(t, exec.SelectAutomatic(context.Background(), st, sectionFixture()))

	require.Len(t, st.SelectedResults, 2, "score 0.2 is below the 0.5 threshold")
	assert.Equal(t, "High", st.SelectedResults[0].Title)
	assert.Equal(t, "Mid", st.SelectedResults[1].Title)
	assert.False(t, st.PendingSourceSelection)
}

func TestSelectAutomaticCapsAtMaxRelevantResults(t *testing.T) {
	provider := &fakeSearch{results: resultsFixture()}
	exec, _ := newTestExecutor(t, scoringResponder(map[string]string{
		"snippet-low":  "0.8",
		"snippet-high": "0.9",
		"snippet-mid":  "0.85",
	}), provider)
	exec.cfg.Research.MaxRelevantResults = 1

	st := state.New("topic", "English")
	st.SetCurrentQuery("test query")
	st.SearchResults = resultsFixture()
	st.PendingSourceSelection = true

	require.NoError(t, exec.SelectAutomatic(context.Background(), st, sectionFixture()))
	require.Len(t, st.SelectedResults, 1)
	assert.Equal(t, "High", st.SelectedResults[0].Title)
}

func TestSelectAutomaticHalvesThresholdWhenEmpty(t *testing.T) {
	// All scores sit between threshold/2 and threshold, and regeneration
	// is disabled, so only the halving fallback can select anything.
	provider := &fakeSearch{results: resultsFixture()}
	exec, _ := newTestExecutor(t, scoringResponder(map[string]string{
		"snippet-low":  "0.3",
		"snippet-high": "0.4",
		"snippet-mid":  "0.26",
	}), provider)
	exec.cfg.Research.EnableQueryRegeneration = false

	st := state.New("topic", "English")
	st.SetCurrentQuery("test query")
	st.SearchResults = resultsFixture()
	st.PendingSourceSelection = true

	require.NoError(t, exec.SelectAutomatic(context.Background(), st, sectionFixture()))
	require.Len(t, st.SelectedResults, 3)
	assert.Equal(t, "High", st.SelectedResults[0].Title)
}

func TestSelectAutomaticRegeneratesOnce(t *testing.T) {
	provider := &fakeSearch{results: resultsFixture()}
	exec, client := newTestExecutor(t, scoringResponder(map[string]string{}), provider)

	st := state.New("topic", "English")
	st.SetCurrentQuery("dead-end query")
	st.SearchResults = resultsFixture()
	st.PendingSourceSelection = true

	require.NoError(t, exec.SelectAutomatic(context.Background(), st, sectionFixture()))

	assert.True(t, st.RegeneratedQueries["dead-end query"], "original query must be recorded in the guard set")
	assert.Equal(t, "rephrased query", st.CurrentQuery)
	assert.Contains(t, provider.queries, "rephrased query", "replacement query must be re-searched")

	regens := 0
	for _, p := range client.recorded() {
		if strings.Contains(p, "alternative query") {
			regens++
		}
	}
	assert.Equal(t, 1, regens)
}

func TestSelectAutomaticNeverRegeneratesGuardedQuery(t *testing.T) {
	provider := &fakeSearch{results: resultsFixture()}
	exec, client := newTestExecutor(t, scoringResponder(map[string]string{}), provider)

	st := state.New("topic", "English")
	st.SetCurrentQuery("dead-end query")
	st.RegeneratedQueries["dead-end query"] = true
	st.SearchResults = resultsFixture()
	st.PendingSourceSelection = true

	require.NoError(t, exec.SelectAutomatic(context.Background(), st, sectionFixture()))

	for _, p := range client.recorded() {
		assert.NotContains(t, p, "alternative query",
			"a query already in regenerated_queries must never be regenerated again")
	}
	assert.Empty(t, st.SelectedResults)
}

func TestSummarizeWithNoSelectedResults(t *testing.T) {
	exec, _ := newTestExecutor(t, scoringResponder(nil), &fakeSearch{})

	st := state.New("topic", "English")
	st.SetCurrentQuery("empty query")

	summary, err := exec.Summarize(context.Background(), st)
	require.NoError(t, err)
	assert.Contains(t, summary, "No relevant information was found")
	assert.Contains(t, summary, "empty query")
}

func TestSummarizeConsolidatesMultipleChunks(t *testing.T) {
	exec, client := newTestExecutor(t, scoringResponder(nil), &fakeSearch{})
	exec.cfg.Research.SummarizationChunkSizeChars = 20
	exec.cfg.Research.SummarizationChunkOverlapChars = 5

	st := state.New("topic", "English")
	st.SetCurrentQuery("test query")
	st.SelectedResults = []state.SearchResult{
		{Title: "Doc", Link: "https://example.com/doc", Snippet: strings.Repeat("lorem ipsum ", 10)},
	}

	summary, err := exec.Summarize(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, "consolidated summary", summary)

	chunkCalls := 0
	for _, p := range client.recorded() {
		if strings.Contains(p, "Summarize the information") {
			chunkCalls++
		}
	}
	assert.Greater(t, chunkCalls, 1, "long content must be summarized in multiple chunks")
}

func TestSummarizeReportsTotalChunkFailure(t *testing.T) {
	respond := func(prompt string) (string, error) {
		if strings.Contains(prompt, "Summarize the information") {
			return noRelevantMarker, nil
		}
		return "", fmt.Errorf("unexpected prompt")
	}
	exec, _ := newTestExecutor(t, respond, &fakeSearch{})

	st := state.New("topic", "English")
	st.SetCurrentQuery("test query")
	st.SelectedResults = []state.SearchResult{
		{Title: "Doc", Link: "https://example.com/doc", Snippet: "irrelevant text"},
	}

	summary, err := exec.Summarize(context.Background(), st)
	require.NoError(t, err)
	assert.Contains(t, summary, "Summarization failed")
}

func TestContentFetchedOncePerURL(t *testing.T) {
	fetches := 0
	retriever := &countingRetriever{content: "full page text", fetches: &fetches}

	cfg := testConfig()
	cfg.Research.UseSnippetsOnlyMode = false
	facade, _ := newTestFacade(t, func(prompt string) (string, error) {
		return "chunk summary", nil
	})
	exec := NewExecutor(facade, search.NewEngine(&fakeSearch{}), retriever, NewPlanner(facade, cfg), cfg)

	st := state.New("topic", "English")
	st.SetCurrentQuery("q")
	st.SelectedResults = []state.SearchResult{
		{Title: "Doc", Link: "https://example.com/doc", Snippet: "snippet"},
	}

	for i := 0; i < 3; i++ {
		_, err := exec.Summarize(context.Background(), st)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fetches, "content must be cached per URL for the session")
}

type countingRetriever struct {
	content string
	fetches *int
}

func (r *countingRetriever) Fetch(ctx context.Context, pageURL string) string {
	*r.fetches++
	return r.content
}
