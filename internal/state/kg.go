package state

import "strconv"

// MentionCountKey is the node property used as a cheap centrality proxy.
const MentionCountKey = "mention_count"

// Node is a merged knowledge-graph entity. ID is the stable identity key.
type Node struct {
	ID         string            `json:"id"`
	Label      string            `json:"label"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
	SourceURLs []string          `json:"source_urls"`
}

// Edge is a merged relationship. (Source, Target, Label) is the identity key.
type Edge struct {
	Source     string            `json:"source"`
	Target     string            `json:"target"`
	Label      string            `json:"label"`
	Properties map[string]string `json:"properties"`
	SourceURLs []string          `json:"source_urls"`
}

type edgeKey struct {
	source, target, label string
}

// MergeNode folds a freshly extracted node into the graph. An unknown ID is
// appended and indexed immediately, so a duplicate later in the same batch
// still merges. A known ID unions properties and source URLs and increments
// mention_count instead of duplicating.
func (s *ResearchState) MergeNode(n Node) *Node {
	if n.ID == "" {
		return nil
	}
	if existing, ok := s.nodeIndex[n.ID]; ok {
		for k, v := range n.Properties {
			if k == MentionCountKey {
				continue
			}
			if _, have := existing.Properties[k]; !have {
				existing.Properties[k] = v
			}
		}
		existing.SourceURLs = unionURLs(existing.SourceURLs, n.SourceURLs)
		bumpMentionCount(existing)
		return existing
	}

	stored := &Node{
		ID:         n.ID,
		Label:      n.Label,
		Type:       n.Type,
		Properties: make(map[string]string, len(n.Properties)+1),
		SourceURLs: unionURLs(nil, n.SourceURLs),
	}
	for k, v := range n.Properties {
		stored.Properties[k] = v
	}
	if _, ok := stored.Properties[MentionCountKey]; !ok {
		stored.Properties[MentionCountKey] = "1"
	}
	s.Nodes = append(s.Nodes, stored)
	s.nodeIndex[stored.ID] = stored
	return stored
}

// MergeEdge folds a freshly extracted edge into the graph, keyed by
// (source, target, label). Unions, never duplicates.
func (s *ResearchState) MergeEdge(e Edge) *Edge {
	if e.Source == "" || e.Target == "" {
		return nil
	}
	key := edgeKey{e.Source, e.Target, e.Label}
	if existing, ok := s.edgeIndex[key]; ok {
		for k, v := range e.Properties {
			if _, have := existing.Properties[k]; !have {
				existing.Properties[k] = v
			}
		}
		existing.SourceURLs = unionURLs(existing.SourceURLs, e.SourceURLs)
		return existing
	}

	stored := &Edge{
		Source:     e.Source,
		Target:     e.Target,
		Label:      e.Label,
		Properties: make(map[string]string, len(e.Properties)),
		SourceURLs: unionURLs(nil, e.SourceURLs),
	}
	for k, v := range e.Properties {
		stored.Properties[k] = v
	}
	s.Edges = append(s.Edges, stored)
	s.edgeIndex[key] = stored
	return stored
}

// NodeByID returns the merged node for an identity key, if known.
func (s *ResearchState) NodeByID(id string) (*Node, bool) {
	n, ok := s.nodeIndex[id]
	return n, ok
}

func bumpMentionCount(n *Node) {
	count := 1
	if raw, ok := n.Properties[MentionCountKey]; ok {
		if parsed, err := strconv.Atoi(raw); err == nil {
			count = parsed
		}
	}
	n.Properties[MentionCountKey] = strconv.Itoa(count + 1)
}

func unionURLs(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, u := range existing {
		seen[u] = true
	}
	for _, u := range incoming {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		existing = append(existing, u)
	}
	return existing
}
