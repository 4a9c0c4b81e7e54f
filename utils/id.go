package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewNodeID generates an opaque node id. Ids only need to be unique within a
// tree, so a short uuid slice keeps documents and canvas payloads small.
func NewNodeID() string {
	return "node_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
