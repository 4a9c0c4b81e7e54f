package models

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ViewState carries the canvas position of a tree. It has no effect on
// computation; the backend stores it opaquely for the editor.
type ViewState struct {
	OffsetX float64 `bson:"offsetX" json:"offsetX"`
	OffsetY float64 `bson:"offsetY" json:"offsetY"`
	Zoom    float64 `bson:"zoom" json:"zoom"`
}

// Tree is the persisted commission split document. Version is an optimistic
// concurrency counter incremented on every write; DeletedAt marks a soft
// delete.
type Tree struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID   primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	Name      string             `bson:"name" json:"name"`
	Payout    float64            `bson:"payout" json:"payout"`
	RootID    string             `bson:"rootId" json:"rootId"`
	Nodes     []Node             `bson:"nodes" json:"nodes"`
	View      ViewState          `bson:"view" json:"view"`
	Version   int64              `bson:"version" json:"version"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
	DeletedAt *time.Time         `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
}

// Node returns the node with the given id, or nil.
func (t *Tree) Node(id string) *Node {
	for i := range t.Nodes {
		if t.Nodes[i].ID == id {
			return &t.Nodes[i]
		}
	}
	return nil
}

// Children returns the direct children of a node in display order.
func (t *Tree) Children(id string) []*Node {
	var out []*Node
	for i := range t.Nodes {
		if t.Nodes[i].ParentID != nil && *t.Nodes[i].ParentID == id {
			out = append(out, &t.Nodes[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Connections derives the edge list from parent references. ParentID is the
// single source of truth; the edge id is deterministic so clients can key on
// it across recomputes.
func (t *Tree) Connections() []Connection {
	var out []Connection
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.ParentID == nil {
			continue
		}
		out = append(out, Connection{
			ID:   *n.ParentID + "->" + n.ID,
			From: *n.ParentID,
			To:   n.ID,
		})
	}
	return out
}

// DefaultTemplate returns the canonical starting tree: a developer payout
// root, an agency percent split, an expandable agent pool, and a combined
// incentive group whose percent children share against the agency amount.
func DefaultTemplate() ([]Node, string) {
	rootID := "developer_payout"
	agencyID := "agency"
	incentiveID := "combined_incentive"

	nodes := []Node{
		{
			ID:    rootID,
			Label: "Developer Payout",
			Kind:  NodeKindStandard,
		},
		{
			ID:         agencyID,
			Label:      "Agency",
			ParentID:   &rootID,
			Kind:       NodeKindStandard,
			UsePercent: true,
			Percents:   []float64{70},
		},
		{
			ID:         "agent_pool",
			Label:      "Agent Pool",
			ParentID:   &agencyID,
			Kind:       NodeKindStandard,
			UsePercent: true,
			Percents:   []float64{60},
			Expandable: true,
		},
		{
			ID:       incentiveID,
			Label:    "Combined Incentive",
			ParentID: &agencyID,
			Kind:     NodeKindGroup,
			Order:    1,
		},
		{
			ID:         "processing_fee",
			Label:      "Processing Fee",
			ParentID:   &incentiveID,
			Kind:       NodeKindStandard,
			UsePercent: true,
			Percents:   []float64{2.5},
		},
		{
			ID:       "bonus",
			Label:    "Bonus",
			ParentID: &incentiveID,
			Kind:     NodeKindStandard,
			UseFixed: true,
			Fixed:    []float64{500},
			Order:    1,
		},
	}
	return nodes, rootID
}

// CreateTreeRequest creates a tree. When Nodes is empty the default template
// is instantiated.
type CreateTreeRequest struct {
	Name   string    `json:"name" validate:"required"`
	Payout float64   `json:"payout" validate:"min=0"`
	Nodes  []Node    `json:"nodes"`
	RootID string    `json:"rootId"`
	View   ViewState `json:"view"`
}

// UpdateTreeRequest replaces a tree's content. Version must match the stored
// document or the update is rejected.
type UpdateTreeRequest struct {
	Name    string    `json:"name"`
	Payout  float64   `json:"payout" validate:"min=0"`
	Nodes   []Node    `json:"nodes"`
	RootID  string    `json:"rootId"`
	View    ViewState `json:"view"`
	Version int64     `json:"version"`
}
