package research

import (
	"context"
	"strings"

	"deepresearch/internal/config"
	"deepresearch/internal/llm"
	"deepresearch/internal/logging"
	"deepresearch/internal/state"
)

// Planner turns a topic into an ordered section plan and generates the
// search queries that drive each section.
type Planner struct {
	llm *llm.Facade
	cfg *config.Config
}

// NewPlanner creates a planner.
func NewPlanner(facade *llm.Facade, cfg *config.Config) *Planner {
	return &Planner{llm: facade, cfg: cfg}
}

type planResponse struct {
	Sections []planSection `json:"sections"`
}

type planSection struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

// GeneratePlan requests a structured section plan. The pipeline must never
// stall with zero sections, so any failure falls back to a single
// "General Research" section covering the whole topic.
func (p *Planner) GeneratePlan(ctx context.Context, topic, language string) []*state.Section {
	prompt := planPrompt(topic, language, p.cfg.Research.PlanMinSections, p.cfg.Research.PlanMaxSections)
	resp, err := llm.GenerateStructured[planResponse](ctx, p.llm, prompt)
	if err != nil {
		logging.Planner("plan generation failed for %q: %v, using fallback section", topic, err)
		return fallbackPlan(topic)
	}

	var sections []*state.Section
	for _, ps := range resp.Sections {
		title := strings.TrimSpace(ps.Title)
		if title == "" {
			continue
		}
		sections = append(sections, &state.Section{
			Title:       title,
			Description: strings.TrimSpace(ps.Description),
			Status:      state.SectionPending,
		})
		if len(sections) == p.cfg.Research.PlanMaxSections {
			break
		}
	}
	if len(sections) == 0 {
		logging.Planner("plan for %q came back empty, using fallback section", topic)
		return fallbackPlan(topic)
	}

	logging.Planner("plan for %q: %d sections", topic, len(sections))
	return sections
}

func fallbackPlan(topic string) []*state.Section {
	return []*state.Section{{
		Title:       "General Research",
		Description: "General research covering: " + topic,
		Status:      state.SectionPending,
	}}
}

// GenerateInitialQuery asks for the first search query of a section.
func (p *Planner) GenerateInitialQuery(ctx context.Context, topic string, section *state.Section, language string) (string, error) {
	raw, err := p.llm.GenerateText(ctx, initialQueryPrompt(topic, section, language))
	if err != nil {
		return "", err
	}
	q := sanitizeQuery(raw, p.cfg.Research.MaxQueryWords)
	logging.PlannerDebug("initial query for %q: %q", section.Title, q)
	return q, nil
}

// RegenerateQuery asks for an alternative phrasing after a query produced
// no usable results.
func (p *Planner) RegenerateQuery(ctx context.Context, original, topic string, section *state.Section, language string) (string, error) {
	raw, err := p.llm.GenerateText(ctx, regenerateQueryPrompt(original, topic, section, language))
	if err != nil {
		return "", err
	}
	q := sanitizeQuery(raw, p.cfg.Research.MaxQueryWords)
	logging.Planner("regenerated query %q -> %q", original, q)
	return q, nil
}

// maxQueryChars bounds a sanitized query; search providers reject or
// silently truncate anything longer.
const maxQueryChars = 100

// sanitizeQuery normalizes raw LLM output into a usable search query:
// markdown emphasis and quote characters are stripped, only the first
// non-empty line survives, and the result is cut at a word boundary near
// maxQueryChars and capped at maxWords words.
func sanitizeQuery(raw string, maxWords int) string {
	line := ""
	for _, candidate := range strings.Split(raw, "\n") {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			line = trimmed
			break
		}
	}

	line = strings.Map(func(r rune) rune {
		switch r {
		case '*', '_', '`', '"', '\'', '#':
			return -1
		}
		return r
	}, line)
	line = strings.TrimSpace(line)

	if len(line) > maxQueryChars {
		cut := strings.LastIndex(line[:maxQueryChars], " ")
		if cut <= 0 {
			cut = maxQueryChars
		}
		line = strings.TrimSpace(line[:cut])
	}

	if maxWords > 0 {
		words := strings.Fields(line)
		if len(words) > maxWords {
			line = strings.Join(words[:maxWords], " ")
		}
	}
	return line
}
