package engine

import (
	"math"
	"testing"

	"github.com/paysplit/paysplit_backend/models"
)

func strPtr(s string) *string { return &s }

func pctNode(id string, parent *string, percents ...float64) models.Node {
	return models.Node{
		ID:         id,
		Label:      id,
		ParentID:   parent,
		Kind:       models.NodeKindStandard,
		UsePercent: true,
		Percents:   percents,
	}
}

func fixedNode(id string, parent *string, values ...float64) models.Node {
	return models.Node{
		ID:       id,
		Label:    id,
		ParentID: parent,
		Kind:     models.NodeKindStandard,
		UseFixed: true,
		Fixed:    values,
	}
}

func rootNode(id string) models.Node {
	return models.Node{ID: id, Label: id, Kind: models.NodeKindStandard}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRootIdentity(t *testing.T) {
	for _, payout := range []float64{0, 250.50, 1000, 123456.78} {
		nodes := []models.Node{rootNode("root")}
		got := ResolveAll(nodes, "root", payout)
		if !almostEqual(got["root"], payout) {
			t.Errorf("payout %v: root resolved to %v", payout, got["root"])
		}
	}
}

func TestPercentOnlyPropagation(t *testing.T) {
	nodes := []models.Node{
		rootNode("root"),
		pctNode("child", strPtr("root"), 50),
	}
	got := ResolveAll(nodes, "root", 1000)
	if !almostEqual(got["child"], 500.00) {
		t.Errorf("child = %v, want 500.00", got["child"])
	}
}

func TestCombinedPropagation(t *testing.T) {
	child := pctNode("child", strPtr("root"), 10)
	child.UseFixed = true
	child.Fixed = []float64{50}

	nodes := []models.Node{rootNode("root"), child}
	got := ResolveAll(nodes, "root", 1000)
	if !almostEqual(got["child"], 150.00) {
		t.Errorf("child = %v, want 150.00", got["child"])
	}
}

func TestMultiValueSummation(t *testing.T) {
	split := []models.Node{rootNode("root"), pctNode("child", strPtr("root"), 5, 5, 5)}
	single := []models.Node{rootNode("root"), pctNode("child", strPtr("root"), 15)}

	a := ResolveAll(split, "root", 1000)
	b := ResolveAll(single, "root", 1000)
	if !almostEqual(a["child"], b["child"]) {
		t.Errorf("percents [5,5,5] = %v, percents [15] = %v", a["child"], b["child"])
	}
}

func TestDeterminism(t *testing.T) {
	nodes, rootID := models.DefaultTemplate()
	first := ResolveAll(nodes, rootID, 12345.67)
	second := ResolveAll(nodes, rootID, 12345.67)

	if len(first) != len(second) {
		t.Fatalf("map sizes differ: %d vs %d", len(first), len(second))
	}
	for id, amt := range first {
		if second[id] != amt {
			t.Errorf("node %s: %v vs %v", id, amt, second[id])
		}
	}
}

func TestCycleSafety(t *testing.T) {
	nodes := []models.Node{
		pctNode("a", strPtr("b"), 50),
		pctNode("b", strPtr("a"), 50),
	}
	got := ResolveAll(nodes, "root", 1000)
	if got["a"] != 0 || got["b"] != 0 {
		t.Errorf("cyclic nodes resolved to a=%v b=%v, want both 0", got["a"], got["b"])
	}
}

func TestGroupOnlyParentCycleTerminates(t *testing.T) {
	// Two groups parenting each other form a cycle the percent-base walk has
	// to step through; it must terminate and zero the cycle like any other.
	nodes := []models.Node{
		rootNode("root"),
		{ID: "a", ParentID: strPtr("b"), Kind: models.NodeKindGroup},
		{ID: "b", ParentID: strPtr("a"), Kind: models.NodeKindGroup},
		pctNode("child", strPtr("a"), 50),
	}
	got := ResolveAll(nodes, "root", 1000)
	if got["a"] != 0 || got["b"] != 0 || got["child"] != 0 {
		t.Errorf("group cycle resolved to a=%v b=%v child=%v, want all 0",
			got["a"], got["b"], got["child"])
	}
	if !almostEqual(got["root"], 1000) {
		t.Errorf("root = %v, want 1000", got["root"])
	}
}

func TestMissingParentResolvesZero(t *testing.T) {
	nodes := []models.Node{
		rootNode("root"),
		pctNode("orphan", strPtr("ghost"), 50),
	}
	got := ResolveAll(nodes, "root", 1000)
	if got["orphan"] != 0 {
		t.Errorf("orphan = %v, want 0", got["orphan"])
	}
}

func TestMissingParentFixedStillCounts(t *testing.T) {
	n := fixedNode("n", strPtr("ghost"), 20)
	got := ResolveAll([]models.Node{n}, "root", 1000)
	if !almostEqual(got["n"], 20.00) {
		t.Errorf("n = %v, want 20.00", got["n"])
	}
}

func TestDetachedRootFallback(t *testing.T) {
	detached := fixedNode("detached", nil, 75)
	nodes := []models.Node{rootNode("root"), detached}

	for _, payout := range []float64{0, 1000, 999999} {
		got := ResolveAll(nodes, "root", payout)
		if !almostEqual(got["detached"], 75.00) {
			t.Errorf("payout %v: detached = %v, want 75.00", payout, got["detached"])
		}
	}
}

func TestDetachedRootWithoutFixedIsZero(t *testing.T) {
	detached := pctNode("detached", nil, 50)
	got := ResolveAll([]models.Node{rootNode("root"), detached}, "root", 1000)
	if got["detached"] != 0 {
		t.Errorf("detached = %v, want 0", got["detached"])
	}
}

func TestGroupAggregation(t *testing.T) {
	group := models.Node{
		ID:         "group",
		ParentID:   strPtr("root"),
		Kind:       models.NodeKindGroup,
		UsePercent: true,
		Percents:   []float64{99}, // ignored for the group's own display amount
	}
	nodes := []models.Node{
		rootNode("root"),
		group,
		fixedNode("a", strPtr("group"), 300.00),
		fixedNode("b", strPtr("group"), 450.25),
	}
	got := ResolveAll(nodes, "root", 1000)
	if !almostEqual(got["group"], 750.25) {
		t.Errorf("group = %v, want 750.25", got["group"])
	}
}

func TestGroupPercentBaseSkipsGroupAncestors(t *testing.T) {
	nodes := []models.Node{
		rootNode("root"),
		pctNode("agency", strPtr("root"), 50),
		{ID: "incentive", ParentID: strPtr("agency"), Kind: models.NodeKindGroup},
		pctNode("fee", strPtr("incentive"), 10),
	}
	got := ResolveAll(nodes, "root", 1000)
	// agency = 500; fee shares against agency, not the group
	if !almostEqual(got["fee"], 50.00) {
		t.Errorf("fee = %v, want 50.00", got["fee"])
	}
}

func TestNestedGroupsSkipToNearestRuleAncestor(t *testing.T) {
	nodes := []models.Node{
		rootNode("root"),
		pctNode("agency", strPtr("root"), 50),
		{ID: "outer", ParentID: strPtr("agency"), Kind: models.NodeKindGroup},
		{ID: "inner", ParentID: strPtr("outer"), Kind: models.NodeKindGroup},
		pctNode("leaf", strPtr("inner"), 20),
	}
	got := ResolveAll(nodes, "root", 1000)
	if !almostEqual(got["leaf"], 100.00) {
		t.Errorf("leaf = %v, want 100.00 (20%% of agency's 500)", got["leaf"])
	}
	// the nested groups aggregate the same single leaf
	if !almostEqual(got["inner"], 100.00) || !almostEqual(got["outer"], 100.00) {
		t.Errorf("inner = %v, outer = %v, want both 100.00", got["inner"], got["outer"])
	}
}

func TestGroupRootedAtCanonicalRoot(t *testing.T) {
	// A percent child directly under a group root shares against the payout.
	nodes := []models.Node{
		{ID: "root", Kind: models.NodeKindGroup},
		pctNode("child", strPtr("root"), 25),
	}
	got := ResolveAll(nodes, "root", 1000)
	if !almostEqual(got["child"], 250.00) {
		t.Errorf("child = %v, want 250.00", got["child"])
	}
}

func TestRoundingPerGeneration(t *testing.T) {
	// 100 * 3.333% rounds to 3.33 before the child's oversized percent
	// amplifies it; an end-to-end float computation would give 33.33.
	nodes := []models.Node{
		rootNode("root"),
		pctNode("a", strPtr("root"), 3.333),
		pctNode("b", strPtr("a"), 1000),
	}
	got := ResolveAll(nodes, "root", 100)
	if !almostEqual(got["a"], 3.33) {
		t.Errorf("a = %v, want 3.33", got["a"])
	}
	if !almostEqual(got["b"], 33.30) {
		t.Errorf("b = %v, want 33.30 (cent-rounded intermediate), not 33.33", got["b"])
	}
}

func TestFormulaEvaluatesAsFixed(t *testing.T) {
	formula := models.Node{
		ID:         "formula",
		ParentID:   strPtr("root"),
		Kind:       models.NodeKindFormula,
		UsePercent: true,
		Percents:   []float64{50}, // ignored: formula evaluates as fixed
		Fixed:      []float64{100, 25},
	}
	got := ResolveAll([]models.Node{rootNode("root"), formula}, "root", 1000)
	if !almostEqual(got["formula"], 125.00) {
		t.Errorf("formula = %v, want 125.00", got["formula"])
	}
}

func TestEmptyValueListsContributeZero(t *testing.T) {
	n := models.Node{
		ID:         "n",
		ParentID:   strPtr("root"),
		Kind:       models.NodeKindStandard,
		UsePercent: true,
		UseFixed:   true,
	}
	got := ResolveAll([]models.Node{rootNode("root"), n}, "root", 1000)
	if got["n"] != 0 {
		t.Errorf("n = %v, want 0", got["n"])
	}
}

func TestNegativeValuesAcceptedArithmetically(t *testing.T) {
	got := ResolveAll([]models.Node{
		rootNode("root"),
		pctNode("n", strPtr("root"), -10),
	}, "root", 1000)
	if !almostEqual(got["n"], -100.00) {
		t.Errorf("n = %v, want -100.00", got["n"])
	}
}

func TestDefaultTemplateResolution(t *testing.T) {
	nodes, rootID := models.DefaultTemplate()
	got := ResolveAll(nodes, rootID, 10000)

	want := map[string]float64{
		"developer_payout":   10000,
		"agency":             7000,   // 70% of payout
		"agent_pool":         4200,   // 60% of agency
		"processing_fee":     175,    // 2.5% of agency, past the group
		"bonus":              500,    // fixed
		"combined_incentive": 675,    // fee + bonus
	}
	for id, amt := range want {
		if !almostEqual(got[id], amt) {
			t.Errorf("%s = %v, want %v", id, got[id], amt)
		}
	}
}

func TestResolveSingleNode(t *testing.T) {
	nodes := []models.Node{
		rootNode("root"),
		pctNode("child", strPtr("root"), 50),
	}
	if got := Resolve(nodes, "root", 1000, "child"); !almostEqual(got, 500.00) {
		t.Errorf("Resolve(child) = %v, want 500.00", got)
	}
	if got := Resolve(nodes, "root", 1000, "ghost"); got != 0 {
		t.Errorf("Resolve(ghost) = %v, want 0", got)
	}
}

func TestRoundCents(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{1.234, 1.23},
		{1.236, 1.24},
		{-1.234, -1.23},
		{0, 0},
		{333.333333, 333.33},
	}
	for _, tc := range cases {
		if got := RoundCents(tc.in); !almostEqual(got, tc.want) {
			t.Errorf("RoundCents(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
