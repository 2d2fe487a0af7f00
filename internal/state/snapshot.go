package state

import (
	"encoding/json"
	"fmt"
)

// Snapshot serializes the complete session as JSON. The snapshot is
// self-contained: Restore on another process resumes exactly where the
// loop paused.
func (s *ResearchState) Snapshot() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize session %s: %w", s.SessionID, err)
	}
	return data, nil
}

// Restore deserializes a session snapshot and rebuilds the in-memory
// knowledge-graph indexes, which are derived state and not serialized.
func Restore(data []byte) (*ResearchState, error) {
	var s ResearchState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session snapshot: %w", err)
	}
	if s.FetchedContent == nil {
		s.FetchedContent = make(map[string]string)
	}
	if s.RegeneratedQueries == nil {
		s.RegeneratedQueries = make(map[string]bool)
	}
	s.rebuildIndexes()
	return &s, nil
}

func (s *ResearchState) rebuildIndexes() {
	s.nodeIndex = make(map[string]*Node, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.Properties == nil {
			n.Properties = make(map[string]string)
		}
		s.nodeIndex[n.ID] = n
	}
	s.edgeIndex = make(map[edgeKey]*Edge, len(s.Edges))
	for _, e := range s.Edges {
		if e.Properties == nil {
			e.Properties = make(map[string]string)
		}
		s.edgeIndex[edgeKey{e.Source, e.Target, e.Label}] = e
	}
}
