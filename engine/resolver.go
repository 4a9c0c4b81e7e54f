// Package engine computes dollar amounts for commission split trees.
//
// The resolver is a pure function over a node set and a root scalar: calling
// it twice with the same inputs yields identical maps. Malformed input (cycles,
// missing parents, empty rules) degrades to zero amounts instead of failing,
// because a half-built tree is the normal state of an interactive editor.
package engine

import (
	"log"
	"math"

	"github.com/paysplit/paysplit_backend/models"
)

// RoundCents rounds to whole cents. Rounding happens at every node's
// resolution step, so each generation's rounding is visible to its children.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

type resolver struct {
	byID   map[string]*models.Node
	order  []string
	rootID string
	payout float64
	memo   map[string]float64
}

func newResolver(nodes []models.Node, rootID string, payout float64) *resolver {
	r := &resolver{
		byID:   make(map[string]*models.Node, len(nodes)),
		order:  make([]string, 0, len(nodes)),
		rootID: rootID,
		payout: payout,
		memo:   make(map[string]float64, len(nodes)),
	}
	for i := range nodes {
		r.byID[nodes[i].ID] = &nodes[i]
		r.order = append(r.order, nodes[i].ID)
	}
	return r
}

// ResolveAll computes the resolved amount of every node in the set. The
// canonical root resolves to payout; detached roots fall back to their own
// fixed sum; group nodes report the sum of their direct children.
func ResolveAll(nodes []models.Node, rootID string, payout float64) map[string]float64 {
	r := newResolver(nodes, rootID, payout)
	for i := range nodes {
		r.resolve(nodes[i].ID, make(map[string]bool))
	}

	out := make(map[string]float64, len(nodes))
	for i := range nodes {
		out[nodes[i].ID] = r.memo[nodes[i].ID]
	}

	// Group amounts are a derived view over the memo pass, so a group's own
	// rule never collides with its displayed aggregate.
	for i := range nodes {
		if nodes[i].Kind == models.NodeKindGroup {
			out[nodes[i].ID] = r.aggregate(nodes[i].ID, make(map[string]bool))
		}
	}
	return out
}

// Resolve computes a single node's rule amount against the current node set.
// Dynamic expansion uses it to snapshot the expandable node's amount.
func Resolve(nodes []models.Node, rootID string, payout float64, nodeID string) float64 {
	r := newResolver(nodes, rootID, payout)
	return r.resolve(nodeID, make(map[string]bool))
}

func (r *resolver) resolve(id string, visited map[string]bool) float64 {
	if visited[id] {
		// Re-entering a node that is still being resolved higher in the same
		// call stack means the parent chain loops.
		log.Printf("engine: cycle detected at node %q, resolving to 0", id)
		r.memo[id] = 0
		return 0
	}
	if amt, ok := r.memo[id]; ok {
		return amt
	}
	n, ok := r.byID[id]
	if !ok {
		// Unknown reference: disconnected, worth nothing, not an error.
		return 0
	}

	if n.ParentID == nil {
		amt := r.rootAmount(n)
		r.memo[id] = amt
		return amt
	}

	visited[id] = true
	base := r.resolve(r.percentBaseID(n), visited)
	delete(visited, id)

	// The recursive walk may have closed a cycle through this node and
	// already recorded it as zero.
	if amt, ok := r.memo[id]; ok {
		return amt
	}

	amt := RoundCents(r.share(n, base))
	r.memo[id] = amt
	return amt
}

// percentBaseID returns the id of the ancestor a percent rule shares against:
// normally the direct parent, but group nodes have no amount of their own to
// share, so the walk skips past group-kind ancestors to the nearest one that
// resolves by rule. A parent loop made entirely of groups would walk forever,
// so re-entry stops the walk; resolve then zeroes the cycle through its own
// visited set.
func (r *resolver) percentBaseID(n *models.Node) string {
	id := *n.ParentID
	seen := make(map[string]bool)
	for {
		p, ok := r.byID[id]
		if !ok || p.Kind != models.NodeKindGroup || p.ParentID == nil {
			return id
		}
		if seen[id] {
			return id
		}
		seen[id] = true
		id = *p.ParentID
	}
}

// rootAmount resolves a node with no parent. Only the canonical root is
// seeded with the payout; any other detached root falls back to its own
// fixed sum.
func (r *resolver) rootAmount(n *models.Node) float64 {
	if n.ID == r.rootID {
		return r.payout
	}
	if n.UseFixed || n.Kind == models.NodeKindFormula {
		return RoundCents(sum(n.Fixed))
	}
	return 0
}

// share applies a node's allocation rule against its percent base.
func (r *resolver) share(n *models.Node, base float64) float64 {
	if n.Kind == models.NodeKindFormula {
		// Formula is an accepted amount-type tag that evaluates as fixed.
		return sum(n.Fixed)
	}
	var amt float64
	if n.UsePercent {
		amt += base * sum(n.Percents) / 100
	}
	if n.UseFixed {
		amt += sum(n.Fixed)
	}
	return amt
}

// aggregate sums a group's direct children. Nested groups aggregate
// recursively; the seen set guards against malformed parent loops.
func (r *resolver) aggregate(id string, seen map[string]bool) float64 {
	if seen[id] {
		return 0
	}
	seen[id] = true

	// Iterate in input order so float summation stays deterministic.
	var total float64
	for _, childID := range r.order {
		n := r.byID[childID]
		if n.ParentID == nil || *n.ParentID != id {
			continue
		}
		if n.Kind == models.NodeKindGroup {
			total += r.aggregate(childID, seen)
		} else {
			total += r.memo[childID]
		}
	}
	return RoundCents(total)
}

func sum(vs []float64) float64 {
	var s float64
	for _, v := range vs {
		s += v
	}
	return s
}
