package models

import (
	"testing"
)

func ptr(s string) *string { return &s }

func TestConnectionsDerivedFromParents(t *testing.T) {
	tree := &Tree{
		Nodes: []Node{
			{ID: "root", Kind: NodeKindStandard},
			{ID: "a", ParentID: ptr("root"), Kind: NodeKindStandard, UsePercent: true},
			{ID: "b", ParentID: ptr("a"), Kind: NodeKindStandard, UseFixed: true},
			{ID: "loose", Kind: NodeKindStandard, UseFixed: true},
		},
	}

	conns := tree.Connections()
	if len(conns) != 2 {
		t.Fatalf("got %d connections, want 2", len(conns))
	}

	want := map[string]Connection{
		"root->a": {ID: "root->a", From: "root", To: "a"},
		"a->b":    {ID: "a->b", From: "a", To: "b"},
	}
	for _, c := range conns {
		if want[c.ID] != c {
			t.Errorf("unexpected connection %+v", c)
		}
		delete(want, c.ID)
	}
	for id := range want {
		t.Errorf("missing connection %s", id)
	}
}

func TestConnectionIDsStableAcrossCalls(t *testing.T) {
	tree := &Tree{
		Nodes: []Node{
			{ID: "root", Kind: NodeKindStandard},
			{ID: "a", ParentID: ptr("root"), Kind: NodeKindStandard, UsePercent: true},
		},
	}
	first := tree.Connections()
	second := tree.Connections()
	if first[0].ID != second[0].ID {
		t.Errorf("edge id changed between calls: %s vs %s", first[0].ID, second[0].ID)
	}
}

func TestChildrenSortedByOrder(t *testing.T) {
	tree := &Tree{
		Nodes: []Node{
			{ID: "root", Kind: NodeKindStandard},
			{ID: "second", ParentID: ptr("root"), Order: 1},
			{ID: "first", ParentID: ptr("root"), Order: 0},
			{ID: "third", ParentID: ptr("root"), Order: 2},
			{ID: "elsewhere", ParentID: ptr("first")},
		},
	}

	children := tree.Children("root")
	if len(children) != 3 {
		t.Fatalf("got %d children, want 3", len(children))
	}
	for i, wantID := range []string{"first", "second", "third"} {
		if children[i].ID != wantID {
			t.Errorf("children[%d] = %s, want %s", i, children[i].ID, wantID)
		}
	}
}

func TestNodeLookup(t *testing.T) {
	tree := &Tree{Nodes: []Node{{ID: "a"}, {ID: "b"}}}
	if tree.Node("b") == nil {
		t.Error("Node(b) = nil, want node")
	}
	if tree.Node("ghost") != nil {
		t.Error("Node(ghost) != nil, want nil")
	}

	// The pointer must address the slice element, so edits stick.
	tree.Node("a").Label = "edited"
	if tree.Nodes[0].Label != "edited" {
		t.Error("Node returned a copy instead of a slice element")
	}
}

func TestDefaultTemplateShape(t *testing.T) {
	nodes, rootID := DefaultTemplate()

	tree := &Tree{Nodes: nodes}
	var roots []string
	for _, n := range nodes {
		if n.ParentID == nil {
			roots = append(roots, n.ID)
		}
	}
	if len(roots) != 1 || roots[0] != rootID {
		t.Fatalf("roots = %v, want exactly [%s]", roots, rootID)
	}

	pool := tree.Node("agent_pool")
	if pool == nil || !pool.Expandable {
		t.Error("template must include an expandable agent pool")
	}

	group := tree.Node("combined_incentive")
	if group == nil || group.Kind != NodeKindGroup {
		t.Error("template must include the combined incentive group")
	}
	if len(tree.Children("combined_incentive")) != 2 {
		t.Error("incentive group should have two children")
	}

	for _, n := range nodes {
		if n.Generated {
			t.Errorf("template node %s is marked generated", n.ID)
		}
	}
}
