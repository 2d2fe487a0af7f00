package research

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"deepresearch/internal/config"
	"deepresearch/internal/llm"
	"deepresearch/internal/logging"
	"deepresearch/internal/retrieval"
	"deepresearch/internal/search"
	"deepresearch/internal/state"
)

// PauseReason names the interactive gate a run is blocked on.
type PauseReason string

const (
	PausePlanApproval    PauseReason = "plan_approval"
	PauseQueryApproval   PauseReason = "query_approval"
	PauseSourceSelection PauseReason = "source_selection"
)

// Outcome is the result of one Run invocation: either a final report or
// a pause awaiting external input.
type Outcome struct {
	Report string
	Paused PauseReason
}

// IsPaused reports whether the run is blocked on interactive input.
func (o Outcome) IsPaused() bool { return o.Paused != "" }

// Loop drives one section at a time through plan, query, search,
// summarize and reflect, then hands completed sections to the reporter.
// Run is resumable: in interactive mode it returns a paused Outcome at
// each approval gate, the caller mutates state (ApprovePlan, SetQuery,
// SelectSources) and invokes Run again.
type Loop struct {
	planner   *Planner
	executor  *Executor
	reflector *Reflector
	reporter  *Reporter
	cfg       *config.Config
	progress  Progress
}

// NewLoop wires the research pipeline. progress may be nil.
func NewLoop(facade *llm.Facade, engine *search.Engine, retriever retrieval.Retriever, cfg *config.Config, progress Progress) *Loop {
	planner := NewPlanner(facade, cfg)
	return &Loop{
		planner:   planner,
		executor:  NewExecutor(facade, engine, retriever, planner, cfg),
		reflector: NewReflector(facade),
		reporter:  NewReporter(facade),
		cfg:       cfg,
		progress:  progress,
	}
}

// Run advances the research session until it produces a final report or
// hits an interactive gate. Transport-level LLM failures with no safe
// fallback propagate as errors; everything else degrades within the run.
func (l *Loop) Run(ctx context.Context, st *state.ResearchState) (Outcome, error) {
	interactive := l.cfg.Research.InteractiveMode

	for {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		if st.Interrupted {
			logging.Loop("session %s interrupted, finalizing with completed sections", st.SessionID)
			break
		}

		// Phase 1: plan.
		if !st.HasPlan() {
			notify(ctx, l.progress, "Planning research sections...")
			st.Sections = l.planner.GeneratePlan(ctx, st.Topic, st.Language)
			if !interactive {
				st.PlanApproved = true
			}
		}
		if !st.PlanApproved {
			logging.Loop("pausing for plan approval (%d sections)", len(st.Sections))
			return Outcome{Paused: PausePlanApproval}, nil
		}

		// Phase 2: pick the active section.
		active := st.Active()
		if active == nil || active.Status == state.SectionCompleted {
			next := nextPending(st)
			if next < 0 {
				break
			}
			st.ActiveSection = next
			active = st.Sections[next]
			active.Status = state.SectionResearching
			logging.Loop("section %d/%d: %q", next+1, len(st.Sections), active.Title)
			notify(ctx, l.progress, fmt.Sprintf("Researching section: %s", active.Title))
		}

		// Phase 3: activate a query.
		if st.CurrentQuery == "" {
			if st.ProposedQuery == "" {
				q, err := l.planner.GenerateInitialQuery(ctx, st.Topic, active, st.Language)
				if err != nil {
					return Outcome{}, fmt.Errorf("initial query for section %q: %w", active.Title, err)
				}
				st.ProposeQuery(q)
			}
			if interactive {
				logging.Loop("pausing for query approval: %q", st.ProposedQuery)
				return Outcome{Paused: PauseQueryApproval}, nil
			}
			st.SetCurrentQuery(st.ProposedQuery)
		}

		// Phase 4: search, then select sources.
		if !st.PendingSourceSelection && st.SelectedResults == nil {
			notify(ctx, l.progress, fmt.Sprintf("Searching: %s", st.CurrentQuery))
			l.executor.Search(ctx, st)
		}
		if st.PendingSourceSelection {
			if interactive {
				logging.Loop("pausing for source selection (%d results)", len(st.SearchResults))
				return Outcome{Paused: PauseSourceSelection}, nil
			}
			if err := l.executor.SelectAutomatic(ctx, st, active); err != nil {
				return Outcome{}, fmt.Errorf("source selection for %q: %w", st.CurrentQuery, err)
			}
		}

		// Phase 5: retrieve and summarize.
		notify(ctx, l.progress, "Reading and summarizing sources...")
		summary, err := l.executor.Summarize(ctx, st)
		if err != nil {
			return Outcome{}, fmt.Errorf("summarization for %q: %w", st.CurrentQuery, err)
		}
		st.NewInformation = summary
		if st.AccumulatedSummary == "" {
			st.AccumulatedSummary = summary
		} else {
			st.AccumulatedSummary += "\n\n" + summary
		}

		var sourceURLs []string
		for _, r := range st.SelectedResults {
			st.AddSource(state.Source{Title: r.Title, Link: r.Link})
			sourceURLs = append(sourceURLs, r.Link)
		}

		st.CompletedLoops++
		st.ClearQueryScratch()

		// Phase 6: knowledge-graph extraction and reflection, concurrently.
		// Extraction mutates only the KG collections and reflection reads
		// only its arguments, so the two never touch the same state.
		var decision Decision
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			l.reflector.ExtractGraph(gctx, st, summary, sourceURLs)
			return nil
		})
		g.Go(func() error {
			decision = l.reflector.Reflect(gctx, st.Topic, active, st.AccumulatedSummary, st.Language)
			return nil
		})
		_ = g.Wait()

		if decision.Continue && st.CompletedLoops < l.cfg.Research.MaxResearchLoops && !st.Interrupted {
			st.ProposeQuery(sanitizeQuery(decision.NextQuery, l.cfg.Research.MaxQueryWords))
			continue
		}

		// Phase 7: conclude the section.
		l.concludeSection(st, active)
	}

	notify(ctx, l.progress, "Writing final report...")
	report := l.reporter.Finalize(ctx, st)
	st.FinalReport = report
	logging.Loop("session %s finished: %s", st.SessionID, st.String())
	return Outcome{Report: report}, nil
}

func (l *Loop) concludeSection(st *state.ResearchState, section *state.Section) {
	section.Summary = strings.TrimSpace(st.AccumulatedSummary)
	section.Sources = append([]state.Source(nil), st.SourcesGathered...)
	section.Status = state.SectionCompleted
	logging.Loop("section %q completed after %d loops (%d sources)",
		section.Title, st.CompletedLoops, len(section.Sources))
	st.ResetSectionScratch()
}

func nextPending(st *state.ResearchState) int {
	for i, sec := range st.Sections {
		if sec.Status != state.SectionCompleted {
			return i
		}
	}
	return -1
}

// ApprovePlan marks the proposed plan as accepted. The caller may edit
// st.Sections first.
func (l *Loop) ApprovePlan(st *state.ResearchState) {
	st.PlanApproved = true
}

// SetQuery activates a query at the query-approval gate. An empty
// argument accepts the proposed query as-is.
func (l *Loop) SetQuery(st *state.ResearchState, query string) {
	if query == "" {
		query = st.ProposedQuery
	}
	st.SetCurrentQuery(sanitizeQuery(query, l.cfg.Research.MaxQueryWords))
}

// SelectSources resolves the source-selection gate with the chosen
// result indices. Out-of-range indices are ignored; an empty selection
// is honored and yields a "nothing found" summary.
func (l *Loop) SelectSources(st *state.ResearchState, indices []int) {
	selected := make([]state.SearchResult, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(st.SearchResults) {
			selected = append(selected, st.SearchResults[idx])
		}
	}
	st.SelectedResults = selected
	st.PendingSourceSelection = false
}
