package models

// Node kinds. A "group" node displays the sum of its children instead of
// applying its own rule. A "formula" node is accepted as an amount-type tag
// but evaluates the same as a fixed allocation.
const (
	NodeKindStandard = "standard"
	NodeKindGroup    = "group"
	NodeKindFormula  = "formula"
)

// Node represents one point in a commission split tree.
type Node struct {
	ID          string    `bson:"id" json:"id"`
	Label       string    `bson:"label" json:"label"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	ParentID    *string   `bson:"parentId" json:"parentId"`
	Kind        string    `bson:"kind" json:"kind"`
	UsePercent  bool      `bson:"usePercent" json:"usePercent"`
	UseFixed    bool      `bson:"useFixed" json:"useFixed"`
	Percents    []float64 `bson:"percents" json:"percents"`
	Fixed       []float64 `bson:"fixed" json:"fixed"`
	Order       int       `bson:"order" json:"order"`
	Expandable  bool      `bson:"expandable" json:"expandable"`
	Generated   bool      `bson:"generated" json:"generated"`
}

// Connection is the edge view of a parent link. Connections are always
// derived from ParentID; they are never stored or mutated independently.
type Connection struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

// NodeRequest is the payload for creating or updating a node.
type NodeRequest struct {
	Label       string    `json:"label" validate:"required"`
	Description string    `json:"description"`
	ParentID    *string   `json:"parentId"`
	Kind        string    `json:"kind"`
	UsePercent  bool      `json:"usePercent"`
	UseFixed    bool      `json:"useFixed"`
	Percents    []float64 `json:"percents"`
	Fixed       []float64 `json:"fixed"`
}

// ConnectRequest reparents To under From.
type ConnectRequest struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

// ReorderRequest sets the display order of a node's children.
type ReorderRequest struct {
	Children []string `json:"children" validate:"required"`
}

// ExpandRequest materializes Count equal-share leaves under an expandable node.
type ExpandRequest struct {
	Count int `json:"count" validate:"required,min=1"`
}

// PayoutRequest updates the root scalar of a tree.
type PayoutRequest struct {
	Payout float64 `json:"payout" validate:"min=0"`
}
