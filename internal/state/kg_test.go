package state

import "testing"

func TestMergeNodeIdempotence(t *testing.T) {
	s := New("topic", "English")

	s.MergeNode(Node{ID: "go", Label: "Go", Type: "technology", SourceURLs: []string{"https://a.example"}})
	s.MergeNode(Node{ID: "go", Label: "Go", Type: "technology", SourceURLs: []string{"https://b.example"}})

	if len(s.Nodes) != 1 {
		t.Fatalf("expected 1 merged node, got %d", len(s.Nodes))
	}
	node := s.Nodes[0]
	if got := node.Properties[MentionCountKey]; got != "2" {
		t.Errorf("mention_count = %q, want \"2\"", got)
	}
	if len(node.SourceURLs) != 2 {
		t.Errorf("source URLs should union, got %v", node.SourceURLs)
	}
}

func TestMergeNodeUnionsProperties(t *testing.T) {
	s := New("topic", "English")

	s.MergeNode(Node{ID: "go", Properties: map[string]string{"kind": "language"}})
	s.MergeNode(Node{ID: "go", Properties: map[string]string{"kind": "something else", "year": "2009"}})

	node, ok := s.NodeByID("go")
	if !ok {
		t.Fatal("node not indexed")
	}
	if node.Properties["kind"] != "language" {
		t.Errorf("existing property must not be overwritten, got %q", node.Properties["kind"])
	}
	if node.Properties["year"] != "2009" {
		t.Errorf("new property must be added, got %q", node.Properties["year"])
	}
}

func TestMergeNodeInBatchDuplicate(t *testing.T) {
	// A new node must be indexed immediately so a duplicate later in the
	// same extraction batch merges instead of appending.
	s := New("topic", "English")

	batch := []Node{
		{ID: "rust", Label: "Rust"},
		{ID: "go", Label: "Go"},
		{ID: "rust", Label: "Rust"},
	}
	for _, n := range batch {
		s.MergeNode(n)
	}

	if len(s.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(s.Nodes))
	}
	rust, _ := s.NodeByID("rust")
	if rust.Properties[MentionCountKey] != "2" {
		t.Errorf("in-batch duplicate should bump mention_count, got %q", rust.Properties[MentionCountKey])
	}
}

func TestMergeNodeIgnoresEmptyID(t *testing.T) {
	s := New("topic", "English")
	if got := s.MergeNode(Node{Label: "anonymous"}); got != nil {
		t.Error("node without id should be rejected")
	}
	if len(s.Nodes) != 0 {
		t.Errorf("expected no nodes, got %d", len(s.Nodes))
	}
}

func TestMergeEdgeIdentityKey(t *testing.T) {
	s := New("topic", "English")

	s.MergeEdge(Edge{Source: "go", Target: "google", Label: "created_by", SourceURLs: []string{"https://a.example"}})
	s.MergeEdge(Edge{Source: "go", Target: "google", Label: "created_by", SourceURLs: []string{"https://b.example"}})
	s.MergeEdge(Edge{Source: "go", Target: "google", Label: "used_by"})

	if len(s.Edges) != 2 {
		t.Fatalf("expected 2 edges (same endpoints, different labels), got %d", len(s.Edges))
	}
	if len(s.Edges[0].SourceURLs) != 2 {
		t.Errorf("duplicate edge should union source URLs, got %v", s.Edges[0].SourceURLs)
	}
}

func TestMergeEdgeRejectsDanglingEndpoints(t *testing.T) {
	s := New("topic", "English")
	if got := s.MergeEdge(Edge{Source: "go"}); got != nil {
		t.Error("edge without target should be rejected")
	}
	if got := s.MergeEdge(Edge{Target: "go"}); got != nil {
		t.Error("edge without source should be rejected")
	}
}
