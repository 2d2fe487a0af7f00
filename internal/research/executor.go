package research

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"deepresearch/internal/config"
	"deepresearch/internal/llm"
	"deepresearch/internal/logging"
	"deepresearch/internal/retrieval"
	"deepresearch/internal/search"
	"deepresearch/internal/state"
)

// Executor turns an active query into relevant, summarized text: search,
// relevance filtering, content retrieval, and bounded-concurrency chunk
// summarization.
type Executor struct {
	llm       *llm.Facade
	search    *search.Engine
	retriever retrieval.Retriever
	planner   *Planner
	cfg       *config.Config
}

// NewExecutor creates an executor.
func NewExecutor(facade *llm.Facade, engine *search.Engine, retriever retrieval.Retriever, planner *Planner, cfg *config.Config) *Executor {
	return &Executor{
		llm:       facade,
		search:    engine,
		retriever: retriever,
		planner:   planner,
		cfg:       cfg,
	}
}

const noRelevantMarker = "NO RELEVANT INFORMATION"

// Search runs the active query and stores the capped raw results on the
// state, flagging them for source selection.
func (e *Executor) Search(ctx context.Context, st *state.ResearchState) {
	st.SearchResults = e.search.Search(ctx, st.CurrentQuery, e.cfg.Research.MaxSearchResultsPerQuery)
	st.PendingSourceSelection = true
	logging.Executor("search for %q returned %d results", st.CurrentQuery, len(st.SearchResults))
}

type relevanceScore struct {
	Score float64 `json:"score" validate:"gte=0,lte=1"`
}

// scoreResults rates every result's snippet against the query in
// parallel. Scores land back in submission order; a scoring failure
// leaves that result at 0.
func (e *Executor) scoreResults(ctx context.Context, query string, results []state.SearchResult) []state.SearchResult {
	scored := make([]state.SearchResult, len(results))
	copy(scored, results)

	g, gctx := errgroup.WithContext(ctx)
	for i := range scored {
		g.Go(func() error {
			resp, err := llm.GenerateStructured[relevanceScore](gctx, e.llm, relevancePrompt(query, scored[i]))
			if err != nil {
				logging.Executor("relevance scoring failed for %q: %v", scored[i].Link, err)
				return nil
			}
			scored[i].Score = resp.Score
			return nil
		})
	}
	_ = g.Wait()
	return scored
}

// filterByThreshold keeps results at or above the threshold, sorted by
// descending score and capped at MaxRelevantResults. The sort is stable
// so ties keep provider order.
func (e *Executor) filterByThreshold(scored []state.SearchResult, threshold float64) []state.SearchResult {
	var kept []state.SearchResult
	for _, r := range scored {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if max := e.cfg.Research.MaxRelevantResults; max > 0 && len(kept) > max {
		kept = kept[:max]
	}
	return kept
}

// SelectAutomatic picks sources without human input. When relevance
// filtering leaves nothing, it tries in order: regenerate the query once
// (guarded per section by the regenerated-queries set), refilter at half
// the threshold, and finally accept zero results so summarization emits
// an explicit "nothing found" message instead of fabricating content.
func (e *Executor) SelectAutomatic(ctx context.Context, st *state.ResearchState, section *state.Section) error {
	if !e.cfg.Research.EnableRelevanceFiltering {
		st.SelectedResults = st.SearchResults
		st.PendingSourceSelection = false
		return nil
	}

	threshold := e.cfg.Research.RelevanceThreshold
	scored := e.scoreResults(ctx, st.CurrentQuery, st.SearchResults)
	selected := e.filterByThreshold(scored, threshold)

	if len(selected) == 0 && e.cfg.Research.EnableQueryRegeneration && !st.RegeneratedQueries[st.CurrentQuery] {
		original := st.CurrentQuery
		st.RegeneratedQueries[original] = true
		replacement, err := e.planner.RegenerateQuery(ctx, original, st.Topic, section, st.Language)
		if err != nil {
			return err
		}
		if replacement != "" && replacement != original {
			st.SetCurrentQuery(replacement)
			st.SearchResults = e.search.Search(ctx, replacement, e.cfg.Research.MaxSearchResultsPerQuery)
			scored = e.scoreResults(ctx, replacement, st.SearchResults)
			selected = e.filterByThreshold(scored, threshold)
		}
	}

	if len(selected) == 0 {
		logging.Executor("no results above threshold %.2f for %q, retrying at %.2f",
			threshold, st.CurrentQuery, threshold/2)
		selected = e.filterByThreshold(scored, threshold/2)
	}

	st.SelectedResults = selected
	st.PendingSourceSelection = false
	logging.Executor("selected %d of %d results for %q", len(selected), len(st.SearchResults), st.CurrentQuery)
	return nil
}

// Summarize retrieves content for the selected results and produces one
// consolidated summary for the active query. It degrades rather than
// fails: per-chunk errors are skipped, and only a total absence of
// usable material yields the explicit failure message.
func (e *Executor) Summarize(ctx context.Context, st *state.ResearchState) (string, error) {
	if len(st.SelectedResults) == 0 {
		return fmt.Sprintf("No relevant information was found for the query %q.", st.CurrentQuery), nil
	}

	chunks, err := e.collectChunks(ctx, st)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return fmt.Sprintf("No relevant information was found for the query %q.", st.CurrentQuery), nil
	}

	partials := e.summarizeChunks(ctx, st.CurrentQuery, st.Language, chunks)
	if len(partials) == 0 {
		return fmt.Sprintf("Summarization failed for the query %q: none of the retrieved content could be summarized.", st.CurrentQuery), nil
	}
	if len(partials) == 1 {
		return partials[0], nil
	}

	consolidated, err := e.llm.GenerateText(ctx, consolidatePrompt(st.CurrentQuery, partials, st.Language))
	if err != nil {
		logging.Executor("consolidation failed for %q: %v, joining partial summaries", st.CurrentQuery, err)
		return strings.Join(partials, "\n\n"), nil
	}
	return strings.TrimSpace(consolidated), nil
}

// collectChunks fetches content for every selected result (once per URL
// per session via the cache) and splits it into overlapping chunks in
// result order. A failed or disabled fetch falls back to the snippet.
func (e *Executor) collectChunks(ctx context.Context, st *state.ResearchState) ([]string, error) {
	var chunks []string
	for _, result := range st.SelectedResults {
		content := e.contentFor(ctx, st, result)
		if strings.TrimSpace(content) == "" {
			continue
		}
		cs, err := SplitChunks(content,
			e.cfg.Research.SummarizationChunkSizeChars,
			e.cfg.Research.SummarizationChunkOverlapChars)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, cs...)
	}
	return chunks, nil
}

func (e *Executor) contentFor(ctx context.Context, st *state.ResearchState, result state.SearchResult) string {
	if e.cfg.Research.UseSnippetsOnlyMode || result.Link == "" {
		return result.Snippet
	}
	if cached, ok := st.FetchedContent[result.Link]; ok {
		return cached
	}
	content := e.retriever.Fetch(ctx, result.Link)
	if content == "" {
		content = result.Snippet
	}
	st.FetchedContent[result.Link] = content
	return content
}

// summarizeChunks fans chunk summaries out under the concurrency cap and
// reassembles the survivors in submission order. Chunks whose summary
// fails or comes back as the no-information marker are dropped.
func (e *Executor) summarizeChunks(ctx context.Context, query, language string, chunks []string) []string {
	results := make([]string, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Research.MaxConcurrentChunks)
	for i, chunk := range chunks {
		g.Go(func() error {
			summary, err := e.llm.GenerateText(gctx, chunkSummaryPrompt(query, chunk, language))
			if err != nil {
				logging.Executor("chunk %d/%d summarization failed: %v", i+1, len(chunks), err)
				return nil
			}
			summary = strings.TrimSpace(summary)
			if strings.EqualFold(summary, noRelevantMarker) {
				return nil
			}
			results[i] = summary
			return nil
		})
	}
	_ = g.Wait()

	var partials []string
	for _, r := range results {
		if r != "" {
			partials = append(partials, r)
		}
	}
	logging.Executor("summarized %d/%d chunks for %q", len(partials), len(chunks), query)
	return partials
}
