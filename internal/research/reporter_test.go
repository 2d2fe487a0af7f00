package research

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepresearch/internal/state"
)

func completedState() *state.ResearchState {
	st := state.New("solar power", "English")
	st.Sections = []*state.Section{
		{
			Title: "History", Status: state.SectionCompleted, Summary: "Solar power began...",
			Sources: []state.Source{
				{Title: "Study A", Link: "https://a.example"},
				{Title: "Study B", Link: "https://b.example"},
			},
		},
		{
			Title: "Future", Status: state.SectionCompleted, Summary: "Solar power will...",
			Sources: []state.Source{
				{Title: "Study A again", Link: "https://a.example"},
				{Title: "Study C", Link: "https://c.example"},
			},
		},
	}
	return st
}

func TestFinalizeNumbersAndDeduplicatesSources(t *testing.T) {
	var captured string
	facade, _ := newTestFacade(t, func(prompt string) (string, error) {
		captured = prompt
		return "# Solar Power\n\nReport body [1][3].", nil
	})

	report := NewReporter(facade).Finalize(context.Background(), completedState())

	assert.Contains(t, report, "## Sources")
	assert.Contains(t, report, "[1] Study A - https://a.example")
	assert.Contains(t, report, "[3] Study C - https://c.example")
	assert.Equal(t, 1, strings.Count(report, "https://a.example"),
		"duplicate URL across sections must appear once")

	assert.Contains(t, captured, "[1] Study A - https://a.example", "prompt must carry the numbered list")
	assert.Contains(t, captured, "STRICTLY")
}

func TestFinalizeWithoutSourcesForbidsCitations(t *testing.T) {
	var captured string
	facade, _ := newTestFacade(t, func(prompt string) (string, error) {
		captured = prompt
		return "# Report\n\nBody.", nil
	})

	st := state.New("topic", "English")
	st.Sections = []*state.Section{{Title: "Only", Status: state.SectionCompleted, Summary: "text"}}

	report := NewReporter(facade).Finalize(context.Background(), st)
	assert.Contains(t, captured, "Do not use any citations")
	assert.Contains(t, report, "## Sources")
	assert.Contains(t, report, "No sources were gathered")
}

func TestFinalizeSurvivesSynthesisFailure(t *testing.T) {
	facade, _ := newTestFacade(t, errResponder(errProvider))

	report := NewReporter(facade).Finalize(context.Background(), completedState())
	require.NotEmpty(t, report)
	assert.Contains(t, report, "## History")
	assert.Contains(t, report, "## Future")
	assert.Contains(t, report, "## Sources")
}

func TestFinalizeEmptySessionStillReports(t *testing.T) {
	facade, _ := newTestFacade(t, errResponder(errProvider))

	report := NewReporter(facade).Finalize(context.Background(), state.New("topic", "English"))
	require.NotEmpty(t, report)
	assert.Contains(t, report, "No information was gathered")
}

func TestFollowUpRequiresReport(t *testing.T) {
	facade, _ := newTestFacade(t, func(prompt string) (string, error) {
		return "The answer.", nil
	})
	reporter := NewReporter(facade)

	st := state.New("topic", "English")
	_, err := reporter.FollowUp(context.Background(), st, "what about costs?")
	require.Error(t, err)

	st.FinalReport = "# Report\n\nCosts are falling."
	answer, err := reporter.FollowUp(context.Background(), st, "what about costs?")
	require.NoError(t, err)
	assert.Equal(t, "The answer.", answer)
}
