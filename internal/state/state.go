// Package state holds the mutable session record threaded through every
// research phase, plus the knowledge-graph collections and the JSON
// snapshot used for pause/resume across process boundaries.
package state

import (
	"fmt"

	"github.com/google/uuid"
)

// SectionStatus is the lifecycle status of a plan section.
type SectionStatus string

const (
	SectionPending     SectionStatus = "pending"
	SectionResearching SectionStatus = "researching"
	SectionCompleted   SectionStatus = "completed"
)

// SearchResult is one raw result from a search provider.
type SearchResult struct {
	Title   string  `json:"title"`
	Link    string  `json:"link"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score,omitempty"` // relevance in [0,1], set by filtering
}

// Source is a cited source, deduplicated by URL.
type Source struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Section is one unit of the research plan. Created by the planner, mutated
// only by the loop, frozen once Status becomes SectionCompleted.
type Section struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      SectionStatus `json:"status"`
	Summary     string        `json:"summary"`
	Sources     []Source      `json:"sources"`
}

// ResearchState is the session record for one research request.
// All mutation happens between suspension points on the loop's goroutine;
// the only fields shared with fan-out tasks are read-only during fan-out.
type ResearchState struct {
	SessionID string `json:"session_id"`
	Topic     string `json:"topic"`
	Language  string `json:"language"`

	Sections      []*Section `json:"sections"`
	ActiveSection int        `json:"active_section"`
	PlanApproved  bool       `json:"plan_approved"`

	// Per-query working fields, reset when a section concludes.
	// Invariant: ProposedQuery and CurrentQuery are never both non-empty;
	// only CurrentQuery is searchable.
	ProposedQuery          string         `json:"proposed_query"`
	CurrentQuery           string         `json:"current_query"`
	SearchResults          []SearchResult `json:"search_results"`
	SelectedResults        []SearchResult `json:"selected_results"`
	PendingSourceSelection bool           `json:"pending_source_selection"`
	NewInformation         string         `json:"new_information"`

	AccumulatedSummary string   `json:"accumulated_summary"`
	SourcesGathered    []Source `json:"sources_gathered"`
	CompletedLoops     int      `json:"completed_loops"`

	// FetchedContent caches retrieved page text per URL for the session.
	FetchedContent map[string]string `json:"fetched_content"`

	// RegeneratedQueries guards against regeneration loops. Exact string
	// match only: a semantically equivalent rephrasing is a different key.
	// Known limitation, kept deliberately.
	RegeneratedQueries map[string]bool `json:"regenerated_queries"`

	Nodes []*Node `json:"knowledge_graph_nodes"`
	Edges []*Edge `json:"knowledge_graph_edges"`

	Interrupted bool   `json:"is_interrupted"`
	FinalReport string `json:"final_report"`

	nodeIndex map[string]*Node
	edgeIndex map[edgeKey]*Edge
}

// New creates a fresh session for a topic.
func New(topic, language string) *ResearchState {
	if language == "" {
		language = "English"
	}
	return &ResearchState{
		SessionID:          uuid.NewString(),
		Topic:              topic,
		Language:           language,
		ActiveSection:      -1,
		FetchedContent:     make(map[string]string),
		RegeneratedQueries: make(map[string]bool),
		nodeIndex:          make(map[string]*Node),
		edgeIndex:          make(map[edgeKey]*Edge),
	}
}

// HasPlan reports whether a research plan exists.
func (s *ResearchState) HasPlan() bool {
	return len(s.Sections) > 0
}

// Active returns the section currently being researched, or nil when the
// plan is exhausted.
func (s *ResearchState) Active() *Section {
	if s.ActiveSection < 0 || s.ActiveSection >= len(s.Sections) {
		return nil
	}
	return s.Sections[s.ActiveSection]
}

// SetCurrentQuery promotes a query to active, clearing any proposal.
func (s *ResearchState) SetCurrentQuery(q string) {
	s.CurrentQuery = q
	s.ProposedQuery = ""
}

// ProposeQuery records a query awaiting promotion (or interactive approval).
func (s *ResearchState) ProposeQuery(q string) {
	s.ProposedQuery = q
	s.CurrentQuery = ""
}

// ClearQueryScratch resets the per-query working fields after a loop pass.
func (s *ResearchState) ClearQueryScratch() {
	s.CurrentQuery = ""
	s.ProposedQuery = ""
	s.SearchResults = nil
	s.SelectedResults = nil
	s.PendingSourceSelection = false
}

// ResetSectionScratch resets everything that belongs to the finished
// section so the next one starts clean.
func (s *ResearchState) ResetSectionScratch() {
	s.ClearQueryScratch()
	s.NewInformation = ""
	s.AccumulatedSummary = ""
	s.SourcesGathered = nil
	s.CompletedLoops = 0
	s.RegeneratedQueries = make(map[string]bool)
}

// AddSource appends a source unless the URL is already gathered.
func (s *ResearchState) AddSource(src Source) {
	for _, existing := range s.SourcesGathered {
		if existing.Link == src.Link {
			return
		}
	}
	s.SourcesGathered = append(s.SourcesGathered, src)
}

// String summarizes the session for logs.
func (s *ResearchState) String() string {
	return fmt.Sprintf("ResearchState{topic=%q sections=%d active=%d loops=%d nodes=%d edges=%d interrupted=%v}",
		s.Topic, len(s.Sections), s.ActiveSection, s.CompletedLoops, len(s.Nodes), len(s.Edges), s.Interrupted)
}
