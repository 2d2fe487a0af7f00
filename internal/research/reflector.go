package research

import (
	"context"
	"strings"

	"deepresearch/internal/llm"
	"deepresearch/internal/logging"
	"deepresearch/internal/state"
)

// Reflector extracts knowledge-graph deltas from summarized text and
// decides whether a section needs another research pass.
type Reflector struct {
	llm *llm.Facade
}

// NewReflector creates a reflector.
func NewReflector(facade *llm.Facade) *Reflector {
	return &Reflector{llm: facade}
}

type kgExtraction struct {
	Nodes []kgNode `json:"nodes"`
	Edges []kgEdge `json:"edges"`
}

type kgNode struct {
	ID         string            `json:"id" validate:"required"`
	Label      string            `json:"label"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

type kgEdge struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Label  string `json:"label"`
}

// ExtractGraph folds entities and relations from the text into the
// session's knowledge graph. Extraction failure is logged and skipped;
// it never blocks reflection or section completion.
func (r *Reflector) ExtractGraph(ctx context.Context, st *state.ResearchState, text string, sourceURLs []string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	resp, err := llm.GenerateStructured[kgExtraction](ctx, r.llm, kgExtractionPrompt(text, sourceURLs))
	if err != nil {
		logging.Reflector("knowledge-graph extraction failed: %v", err)
		return
	}

	for _, n := range resp.Nodes {
		st.MergeNode(state.Node{
			ID:         n.ID,
			Label:      n.Label,
			Type:       n.Type,
			Properties: n.Properties,
			SourceURLs: sourceURLs,
		})
	}
	for _, e := range resp.Edges {
		st.MergeEdge(state.Edge{
			Source:     e.Source,
			Target:     e.Target,
			Label:      e.Label,
			SourceURLs: sourceURLs,
		})
	}
	logging.Reflector("merged %d nodes, %d edges (graph now %d/%d)",
		len(resp.Nodes), len(resp.Edges), len(st.Nodes), len(st.Edges))
}

// Decision is the outcome of reflect-and-decide for one research pass.
type Decision struct {
	Continue  bool
	NextQuery string
}

// Reflect evaluates section coverage and returns either a follow-up
// query or the decision to conclude. Transport failure concludes: the
// safe, loop-terminating choice.
func (r *Reflector) Reflect(ctx context.Context, topic string, section *state.Section, summary, language string) Decision {
	raw, err := r.llm.GenerateText(ctx, reflectionPrompt(topic, section, summary, language))
	if err != nil {
		logging.Reflector("reflection call failed for %q: %v, concluding section", section.Title, err)
		return Decision{}
	}
	d := parseReflection(raw)
	logging.Reflector("reflection for %q: continue=%v next=%q", section.Title, d.Continue, d.NextQuery)
	return d
}

// parseReflection scans the response for EVALUATION:/QUERY: lines. Any
// ambiguity, a missing evaluation, or a None query defaults to CONCLUDE;
// the parser never defaults to an infinite continue.
func parseReflection(raw string) Decision {
	evaluation := ""
	query := ""
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "EVALUATION:"):
			evaluation = strings.ToUpper(strings.TrimSpace(line[len("EVALUATION:"):]))
		case strings.HasPrefix(upper, "QUERY:"):
			query = strings.TrimSpace(line[len("QUERY:"):])
		}
	}

	if evaluation != "CONTINUE" {
		return Decision{}
	}
	if query == "" || strings.EqualFold(query, "None") {
		return Decision{}
	}
	return Decision{Continue: true, NextQuery: query}
}
