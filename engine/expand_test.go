package engine

import (
	"errors"
	"testing"

	"github.com/paysplit/paysplit_backend/models"
)

// poolTree builds root -> pool(50%), so the pool resolves to half the payout.
func poolTree(payout float64) *models.Tree {
	return &models.Tree{
		RootID: "root",
		Payout: payout,
		Nodes: []models.Node{
			rootNode("root"),
			pctNode("pool", strPtr("root"), 50),
		},
	}
}

func leads(t *models.Tree) []models.Node {
	var out []models.Node
	for _, n := range t.Nodes {
		if n.Generated {
			out = append(out, n)
		}
	}
	return out
}

func TestExpandEqualSplit(t *testing.T) {
	tree := poolTree(2000) // pool resolves to 1000

	if err := Expand(tree, "pool", 4); err != nil {
		t.Fatalf("Expand: %v", err)
	}

	got := leads(tree)
	if len(got) != 4 {
		t.Fatalf("generated %d leaves, want 4", len(got))
	}

	amounts := ResolveAll(tree.Nodes, tree.RootID, tree.Payout)
	for i, n := range got {
		wantID := "pool_lead_" + string(rune('1'+i))
		if n.ID != wantID {
			t.Errorf("leaf %d id = %s, want %s", i, n.ID, wantID)
		}
		if !n.UseFixed || len(n.Fixed) != 1 || !almostEqual(n.Fixed[0], 250.00) {
			t.Errorf("leaf %s fixed = %v, want [250.00]", n.ID, n.Fixed)
		}
		if !almostEqual(amounts[n.ID], 250.00) {
			t.Errorf("leaf %s resolved to %v, want 250.00", n.ID, amounts[n.ID])
		}
		if n.ParentID == nil || *n.ParentID != "pool" {
			t.Errorf("leaf %s parent = %v, want pool", n.ID, n.ParentID)
		}
	}
}

func TestExpandRemainderGoesToLastLeaf(t *testing.T) {
	tree := poolTree(2000) // pool resolves to 1000

	if err := Expand(tree, "pool", 3); err != nil {
		t.Fatalf("Expand: %v", err)
	}

	got := leads(tree)
	if len(got) != 3 {
		t.Fatalf("generated %d leaves, want 3", len(got))
	}

	want := []float64{333.33, 333.33, 333.34}
	var sum float64
	for i, n := range got {
		if !almostEqual(n.Fixed[0], want[i]) {
			t.Errorf("leaf %d fixed = %v, want %v", i+1, n.Fixed[0], want[i])
		}
		sum += n.Fixed[0]
	}
	if !almostEqual(RoundCents(sum), 1000.00) {
		t.Errorf("leaf shares sum to %v, want exactly 1000.00", sum)
	}
}

func TestReExpandReplacesPreviousSet(t *testing.T) {
	tree := poolTree(2000)

	if err := Expand(tree, "pool", 4); err != nil {
		t.Fatalf("first Expand: %v", err)
	}
	if err := Expand(tree, "pool", 3); err != nil {
		t.Fatalf("second Expand: %v", err)
	}

	got := leads(tree)
	if len(got) != 3 {
		t.Fatalf("after re-expansion got %d leaves, want 3", len(got))
	}
	for _, n := range got {
		if n.ID == "pool_lead_4" {
			t.Errorf("stale leaf %s survived re-expansion", n.ID)
		}
	}
}

func TestReExpandReseedsFromFreshAmount(t *testing.T) {
	tree := poolTree(2000)
	if err := Expand(tree, "pool", 4); err != nil {
		t.Fatalf("Expand: %v", err)
	}

	// The payout doubles; re-expansion must snapshot the new pool amount,
	// not reuse the old 250 shares.
	tree.Payout = 4000
	if err := Expand(tree, "pool", 4); err != nil {
		t.Fatalf("re-Expand: %v", err)
	}

	for _, n := range leads(tree) {
		if !almostEqual(n.Fixed[0], 500.00) {
			t.Errorf("leaf %s fixed = %v, want 500.00", n.ID, n.Fixed[0])
		}
	}
}

func TestExpandSingleLeafTakesAll(t *testing.T) {
	tree := poolTree(2000)
	if err := Expand(tree, "pool", 1); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	got := leads(tree)
	if len(got) != 1 || !almostEqual(got[0].Fixed[0], 1000.00) {
		t.Errorf("single leaf = %+v, want one leaf at 1000.00", got)
	}
}

func TestExpandUnknownNode(t *testing.T) {
	tree := poolTree(2000)
	if err := Expand(tree, "ghost", 3); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("err = %v, want ErrUnknownNode", err)
	}
}

func TestExpandBadCount(t *testing.T) {
	tree := poolTree(2000)
	for _, count := range []int{0, -1} {
		if err := Expand(tree, "pool", count); !errors.Is(err, ErrBadCount) {
			t.Errorf("count %d: err = %v, want ErrBadCount", count, err)
		}
	}
}

func TestGeneratedLeafRefusesReparent(t *testing.T) {
	tree := poolTree(2000)
	if err := Expand(tree, "pool", 2); err != nil {
		t.Fatalf("Expand: %v", err)
	}

	if err := SetParent(tree, "pool_lead_1", strPtr("root")); !errors.Is(err, ErrGeneratedNode) {
		t.Errorf("SetParent on generated leaf: err = %v, want ErrGeneratedNode", err)
	}
	if err := Disconnect(tree, "pool_lead_1"); !errors.Is(err, ErrGeneratedNode) {
		t.Errorf("Disconnect on generated leaf: err = %v, want ErrGeneratedNode", err)
	}
}

func TestGeneratedLeavesRefuseReorder(t *testing.T) {
	tree := poolTree(2000)
	if err := Expand(tree, "pool", 2); err != nil {
		t.Fatalf("Expand: %v", err)
	}

	err := Reorder(tree, "pool", []string{"pool_lead_2", "pool_lead_1"})
	if !errors.Is(err, ErrGeneratedNode) {
		t.Fatalf("err = %v, want ErrGeneratedNode", err)
	}

	// Positions stay as expansion assigned them.
	if tree.Node("pool_lead_1").Order != 0 || tree.Node("pool_lead_2").Order != 1 {
		t.Errorf("rejected reorder moved generated leaves: lead_1=%d lead_2=%d",
			tree.Node("pool_lead_1").Order, tree.Node("pool_lead_2").Order)
	}
}

func TestGeneratedLeafStaysEditable(t *testing.T) {
	tree := poolTree(2000)
	if err := Expand(tree, "pool", 2); err != nil {
		t.Fatalf("Expand: %v", err)
	}

	err := UpdateNode(tree, "pool_lead_1", models.NodeRequest{
		Label:    "Alice",
		UseFixed: true,
		Fixed:    []float64{600},
	})
	if err != nil {
		t.Fatalf("UpdateNode on generated leaf: %v", err)
	}

	n := tree.Node("pool_lead_1")
	if n.Label != "Alice" || !almostEqual(n.Fixed[0], 600) {
		t.Errorf("leaf after edit = %+v", n)
	}
	if !n.Generated || n.ParentID == nil || *n.ParentID != "pool" {
		t.Errorf("edit must not change the leaf's structural fields: %+v", n)
	}
}
