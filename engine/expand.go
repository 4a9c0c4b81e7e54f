package engine

import (
	"fmt"
	"math"

	"github.com/paysplit/paysplit_backend/models"
)

// leadSuffix marks dynamically generated leaves: <expandableID>_lead_<n>.
const leadSuffix = "_lead_"

// Expand materializes count equal-share leaves under an expandable node,
// replacing any previously generated set. The per-leaf fixed value is a
// snapshot of the expandable node's freshly resolved amount divided by count,
// not a live formula.
//
// Division rarely lands on whole cents; each leaf gets the floor share and the
// remainder cents go to the last generated leaf, so the leaves always sum to
// the expandable amount exactly (1000/3 -> 333.33, 333.33, 333.34).
func Expand(t *models.Tree, expandableID string, count int) error {
	if t.Node(expandableID) == nil {
		return ErrUnknownNode
	}
	if count < 1 {
		return ErrBadCount
	}

	// Drop the previous synthetic leaf set before resolving, so a stale
	// generation can never leak into the new snapshot.
	kept := t.Nodes[:0]
	for _, n := range t.Nodes {
		if n.Generated && n.ParentID != nil && *n.ParentID == expandableID {
			continue
		}
		kept = append(kept, n)
	}
	t.Nodes = kept

	total := Resolve(t.Nodes, t.RootID, t.Payout, expandableID)

	base := math.Floor(total*100/float64(count)) / 100
	last := RoundCents(total - base*float64(count-1))

	for i := 1; i <= count; i++ {
		share := base
		if i == count {
			share = last
		}
		parentID := expandableID
		t.Nodes = append(t.Nodes, models.Node{
			ID:        fmt.Sprintf("%s%s%d", expandableID, leadSuffix, i),
			Label:     fmt.Sprintf("Lead %d", i),
			ParentID:  &parentID,
			Kind:      models.NodeKindStandard,
			UseFixed:  true,
			Fixed:     []float64{share},
			Order:     i - 1,
			Generated: true,
		})
	}
	return nil
}
