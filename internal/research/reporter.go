package research

import (
	"context"
	"fmt"
	"strings"

	"deepresearch/internal/llm"
	"deepresearch/internal/logging"
	"deepresearch/internal/state"
)

// Reporter synthesizes completed sections into one cited report.
type Reporter struct {
	llm *llm.Facade
}

// NewReporter creates a reporter.
func NewReporter(facade *llm.Facade) *Reporter {
	return &Reporter{llm: facade}
}

// Finalize writes the final report. It always returns a report: if the
// synthesis call fails, the completed section summaries are assembled
// directly, and an empty session still yields a valid "no information
// gathered" report. The ## Sources appendix is always attached.
func (r *Reporter) Finalize(ctx context.Context, st *state.ResearchState) string {
	sources := dedupeSources(st)
	numbered := make([]string, len(sources))
	for i, src := range sources {
		title := src.Title
		if title == "" {
			title = src.Link
		}
		numbered[i] = fmt.Sprintf("[%d] %s - %s", i+1, title, src.Link)
	}

	body, err := r.llm.GenerateText(ctx, reportPrompt(st.Topic, st.Sections, numbered, st.Language))
	if err != nil {
		logging.Reporter("report synthesis failed: %v, assembling sections directly", err)
		body = assembleFallback(st)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		body = assembleFallback(st)
	}

	var sb strings.Builder
	sb.WriteString(body)
	sb.WriteString("\n\n## Sources\n")
	if len(numbered) == 0 {
		sb.WriteString("No sources were gathered.\n")
	} else {
		for _, line := range numbered {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	report := sb.String()
	logging.Reporter("final report: %d chars, %d sources", len(report), len(numbered))
	return report
}

// FollowUp answers a question against the finished report.
func (r *Reporter) FollowUp(ctx context.Context, st *state.ResearchState, question string) (string, error) {
	if st.FinalReport == "" {
		return "", fmt.Errorf("no report to answer from")
	}
	answer, err := r.llm.GenerateText(ctx, followUpPrompt(st.FinalReport, question, st.Language))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// assembleFallback concatenates completed section material without an
// LLM in the way.
func assembleFallback(st *state.ResearchState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n", st.Topic)
	if st.Interrupted {
		sb.WriteString("\n*Research was interrupted; this report covers the sections completed so far.*\n")
	}
	wrote := false
	for _, sec := range st.Sections {
		if sec.Status != state.SectionCompleted || strings.TrimSpace(sec.Summary) == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n## %s\n\n%s\n", sec.Title, sec.Summary)
		wrote = true
	}
	if !wrote {
		sb.WriteString("\nNo information was gathered for this topic.\n")
	}
	return sb.String()
}

// dedupeSources merges section sources and loose gathered sources,
// deduplicated by URL in first-seen order.
func dedupeSources(st *state.ResearchState) []state.Source {
	seen := make(map[string]bool)
	var out []state.Source
	add := func(src state.Source) {
		if src.Link == "" || seen[src.Link] {
			return
		}
		seen[src.Link] = true
		out = append(out, src)
	}
	for _, sec := range st.Sections {
		for _, src := range sec.Sources {
			add(src)
		}
	}
	for _, src := range st.SourcesGathered {
		add(src)
	}
	return out
}
