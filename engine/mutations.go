package engine

import (
	"errors"

	"github.com/paysplit/paysplit_backend/models"
	"github.com/paysplit/paysplit_backend/utils"
)

// Mutation failures surfaced to callers. The resolver itself never errors;
// validation only happens at the mutation boundary.
var (
	ErrInvalidRule   = errors.New("node rule must enable a percent or fixed allocation")
	ErrUnknownNode   = errors.New("node not found in tree")
	ErrSelfParent    = errors.New("node cannot be its own parent")
	ErrGeneratedNode = errors.New("generated nodes cannot be moved")
	ErrBadCount      = errors.New("expansion count must be a positive integer")
)

// ValidateRule rejects a rule with neither percent nor fixed enabled. Group
// nodes aggregate their children and formula nodes evaluate as fixed, so both
// pass without flags.
func ValidateRule(n models.Node) error {
	if n.Kind == models.NodeKindGroup || n.Kind == models.NodeKindFormula {
		return nil
	}
	if !n.UsePercent && !n.UseFixed {
		return ErrInvalidRule
	}
	return nil
}

// AddNode inserts a node and returns its id. The parent reference is not
// checked for existence: resolution treats missing references as disconnected
// and worth zero.
func AddNode(t *models.Tree, n models.Node) (string, error) {
	if err := ValidateRule(n); err != nil {
		return "", err
	}
	if n.ID == "" {
		n.ID = utils.NewNodeID()
	}
	if n.Kind == "" {
		n.Kind = models.NodeKindStandard
	}
	if n.ParentID != nil {
		n.Order = len(t.Children(*n.ParentID))
	}
	t.Nodes = append(t.Nodes, n)
	return n.ID, nil
}

// SetParent reparents a node, replacing any existing parent reference. Only
// the trivial self-cycle is rejected here; deeper cycles are tolerated and
// papered over by the resolver's runtime check.
func SetParent(t *models.Tree, nodeID string, parentID *string) error {
	n := t.Node(nodeID)
	if n == nil {
		return ErrUnknownNode
	}
	if n.Generated {
		return ErrGeneratedNode
	}
	if parentID != nil && *parentID == nodeID {
		return ErrSelfParent
	}
	n.ParentID = parentID
	return nil
}

// Connect creates the single inbound edge from -> to. A node has at most one
// parent, so any previous edge into to is implicitly removed.
func Connect(t *models.Tree, from, to string) error {
	return SetParent(t, to, &from)
}

// Disconnect detaches a node; it becomes a detached root and resolves via the
// fixed-sum fallback.
func Disconnect(t *models.Tree, nodeID string) error {
	return SetParent(t, nodeID, nil)
}

// DeleteNode removes a node and clears the parent reference of its children.
// Children are not cascade-deleted: they become detached roots.
func DeleteNode(t *models.Tree, nodeID string) error {
	idx := -1
	for i := range t.Nodes {
		if t.Nodes[i].ID == nodeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrUnknownNode
	}
	t.Nodes = append(t.Nodes[:idx], t.Nodes[idx+1:]...)
	for i := range t.Nodes {
		if t.Nodes[i].ParentID != nil && *t.Nodes[i].ParentID == nodeID {
			t.Nodes[i].ParentID = nil
		}
	}
	return nil
}

// DuplicateNode clones a node under a fresh id. The duplicate starts detached
// regardless of the original's position, and sheds the generated flag so it
// can be placed manually.
func DuplicateNode(t *models.Tree, nodeID string) (string, error) {
	src := t.Node(nodeID)
	if src == nil {
		return "", ErrUnknownNode
	}
	dup := *src
	dup.ID = utils.NewNodeID()
	dup.ParentID = nil
	dup.Generated = false
	dup.Percents = append([]float64(nil), src.Percents...)
	dup.Fixed = append([]float64(nil), src.Fixed...)
	t.Nodes = append(t.Nodes, dup)
	return dup.ID, nil
}

// Reorder sets the display order of a parent's children. Ordering is purely
// presentational and never changes resolved amounts. The whole list is
// validated before any position is written, so a bad id leaves the tree
// untouched. Generated leaves hold the position their expansion assigned.
func Reorder(t *models.Tree, parentID string, ordered []string) error {
	for _, id := range ordered {
		n := t.Node(id)
		if n == nil || n.ParentID == nil || *n.ParentID != parentID {
			return ErrUnknownNode
		}
		if n.Generated {
			return ErrGeneratedNode
		}
	}
	for pos, id := range ordered {
		t.Node(id).Order = pos
	}
	return nil
}

// UpdateNode edits a node's display text and allocation rule in place.
// Structural fields (id, parent, generated) are untouched, which keeps
// generated leaves editable without letting them move.
func UpdateNode(t *models.Tree, nodeID string, req models.NodeRequest) error {
	n := t.Node(nodeID)
	if n == nil {
		return ErrUnknownNode
	}
	kind := req.Kind
	if kind == "" {
		kind = models.NodeKindStandard
	}
	candidate := models.Node{
		Kind:       kind,
		UsePercent: req.UsePercent,
		UseFixed:   req.UseFixed,
	}
	if err := ValidateRule(candidate); err != nil {
		return err
	}
	n.Label = req.Label
	n.Description = req.Description
	n.Kind = kind
	n.UsePercent = req.UsePercent
	n.UseFixed = req.UseFixed
	n.Percents = append([]float64(nil), req.Percents...)
	n.Fixed = append([]float64(nil), req.Fixed...)
	return nil
}
