package research

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepresearch/internal/search"
	"deepresearch/internal/state"
)

// pipelineResponder scripts a full automatic run: plan, queries, chunk
// summaries, knowledge-graph extraction, reflection and the report.
func pipelineResponder() func(string) (string, error) {
	return func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "research planner"):
			return `{"sections": [
				{"title": "Solar History", "description": "How solar power developed"},
				{"title": "Solar Future", "description": "Where solar power is heading"}
			]}`, nil
		case strings.Contains(prompt, "ONE web search query"):
			return "solar power research", nil
		case strings.Contains(prompt, "Summarize the information"):
			return "Key findings about solar power.", nil
		case strings.Contains(prompt, "Combine the partial summaries"):
			return "Key findings about solar power.", nil
		case strings.Contains(prompt, "Extract entities"):
			return `{"nodes": [{"id": "solar_power", "label": "Solar Power", "type": "technology"}],
				"edges": []}`, nil
		case strings.Contains(prompt, "evaluating research coverage"):
			return "EVALUATION: CONCLUDE\nQUERY: None", nil
		case strings.Contains(prompt, "Write a complete research report"):
			return "# Solar Power\n\n## Solar History\n\nFindings [1].\n\n## Solar Future\n\nMore findings [1].", nil
		default:
			return "EVALUATION: CONCLUDE\nQUERY: None", nil
		}
	}
}

func newTestLoop(t *testing.T, respond func(string) (string, error), provider *fakeSearch) (*Loop, *fakeClient) {
	t.Helper()
	cfg := testConfig()
	cfg.Research.EnableRelevanceFiltering = false
	facade, client := newTestFacade(t, respond)
	loop := NewLoop(facade, search.NewEngine(provider), &fakeRetriever{}, cfg, nil)
	return loop, client
}

func TestRunAutomaticEndToEnd(t *testing.T) {
	provider := &fakeSearch{results: []state.SearchResult{
		{Title: "Solar Study", Link: "https://example.com/solar", Snippet: "solar power study results"},
	}}
	loop, _ := newTestLoop(t, pipelineResponder(), provider)

	st := state.New("solar power", "English")
	outcome, err := loop.Run(context.Background(), st)
	require.NoError(t, err)
	require.False(t, outcome.IsPaused())

	assert.Contains(t, outcome.Report, "## Sources")
	assert.Contains(t, outcome.Report, "https://example.com/solar")
	assert.Equal(t, outcome.Report, st.FinalReport)

	require.Len(t, st.Sections, 2)
	for _, sec := range st.Sections {
		assert.Equal(t, state.SectionCompleted, sec.Status)
		assert.Contains(t, sec.Summary, "solar power")
		assert.NotEmpty(t, sec.Sources)
	}
	assert.Contains(t, outcome.Report, "Solar History")
	assert.Contains(t, outcome.Report, "Solar Future")

	node, ok := st.NodeByID("solar_power")
	require.True(t, ok, "extraction results must land in the knowledge graph")
	assert.Equal(t, "2", node.Properties[state.MentionCountKey],
		"the same entity extracted in both sections merges instead of duplicating")
}

func TestRunInterruptedBeforeFirstSectionStillReports(t *testing.T) {
	loop, _ := newTestLoop(t, errResponder(errProvider), &fakeSearch{})

	st := state.New("solar power", "English")
	st.Interrupted = true

	outcome, err := loop.Run(context.Background(), st)
	require.NoError(t, err)
	require.False(t, outcome.IsPaused())
	assert.Contains(t, outcome.Report, "## Sources")
	assert.Contains(t, outcome.Report, "No information was gathered")
}

func TestRunHonorsMaxResearchLoops(t *testing.T) {
	// Reflection always asks to continue; the loop cap must conclude the
	// section anyway.
	respond := pipelineResponder()
	alwaysContinue := func(prompt string) (string, error) {
		if strings.Contains(prompt, "evaluating research coverage") {
			return "EVALUATION: CONTINUE\nQUERY: yet another angle", nil
		}
		return respond(prompt)
	}
	provider := &fakeSearch{results: []state.SearchResult{
		{Title: "Doc", Link: "https://example.com/doc", Snippet: "text"},
	}}
	loop, _ := newTestLoop(t, alwaysContinue, provider)
	loop.cfg.Research.MaxResearchLoops = 2

	st := state.New("solar power", "English")
	outcome, err := loop.Run(context.Background(), st)
	require.NoError(t, err)
	require.False(t, outcome.IsPaused())
	for _, sec := range st.Sections {
		assert.Equal(t, state.SectionCompleted, sec.Status)
	}
}

func TestRunInteractiveGates(t *testing.T) {
	provider := &fakeSearch{results: []state.SearchResult{
		{Title: "A", Link: "https://example.com/a", Snippet: "aaa"},
		{Title: "B", Link: "https://example.com/b", Snippet: "bbb"},
	}}
	cfg := testConfig()
	cfg.Research.EnableRelevanceFiltering = false
	cfg.Research.InteractiveMode = true
	facade, _ := newTestFacade(t, pipelineResponder())
	loop := NewLoop(facade, search.NewEngine(provider), &fakeRetriever{}, cfg, nil)

	st := state.New("solar power", "English")
	ctx := context.Background()

	outcome, err := loop.Run(ctx, st)
	require.NoError(t, err)
	require.Equal(t, PausePlanApproval, outcome.Paused)
	require.True(t, st.HasPlan())
	loop.ApprovePlan(st)

	for outcome.IsPaused() {
		outcome, err = loop.Run(ctx, st)
		require.NoError(t, err)
		switch outcome.Paused {
		case PauseQueryApproval:
			assert.NotEmpty(t, st.ProposedQuery)
			loop.SetQuery(st, "")
			assert.NotEmpty(t, st.CurrentQuery)
			assert.Empty(t, st.ProposedQuery, "current and proposed query are mutually exclusive")
		case PauseSourceSelection:
			assert.Len(t, st.SearchResults, 2)
			loop.SelectSources(st, []int{1})
			require.Len(t, st.SelectedResults, 1)
			assert.Equal(t, "B", st.SelectedResults[0].Title)
		}
	}

	assert.Contains(t, outcome.Report, "## Sources")
	for _, sec := range st.Sections {
		assert.Equal(t, state.SectionCompleted, sec.Status)
	}
}

func TestRunNotifiesProgress(t *testing.T) {
	provider := &fakeSearch{results: []state.SearchResult{
		{Title: "Doc", Link: "https://example.com/doc", Snippet: "text"},
	}}
	cfg := testConfig()
	cfg.Research.EnableRelevanceFiltering = false
	facade, _ := newTestFacade(t, pipelineResponder())
	sink := &recordingProgress{}
	loop := NewLoop(facade, search.NewEngine(provider), &fakeRetriever{}, cfg, sink)

	st := state.New("solar power", "English")
	_, err := loop.Run(context.Background(), st)
	require.NoError(t, err)

	joined := strings.Join(sink.messages, "\n")
	assert.Contains(t, joined, "Planning research sections")
	assert.Contains(t, joined, "Writing final report")
}

type recordingProgress struct {
	mu       sync.Mutex
	messages []string
}

func (p *recordingProgress) Notify(ctx context.Context, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
}
