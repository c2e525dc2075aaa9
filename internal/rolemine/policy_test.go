package rolemine

import (
	"reflect"
	"sort"
	"testing"

	"github.com/spcon-go/rolemine/pkg/models"
)

func finalRole(userIdx, funcIdx []int, n int) FinalRole {
	u := newBitset(n)
	for _, i := range userIdx {
		u.set(i)
	}
	f := newBitset(n)
	for _, i := range funcIdx {
		f.set(i)
	}
	return FinalRole{Users: u, Funcs: f}
}

func TestDerivePolicies_MissingSummaryYieldsWarningNotError(t *testing.T) {
	roles := []FinalRole{finalRole([]int{0}, []int{0}, 2)}
	policies, warn := DerivePolicies(roles, []string{"a", "b"}, []string{"f1", "f2"}, models.RWSummary{}, nil)
	if policies != nil {
		t.Errorf("expected no policies when the RW summary is missing")
	}
	if warn == nil || warn.Kind != models.WarningStaticAnalysisMissing {
		t.Fatalf("expected a StaticAnalysisMissing warning, got %+v", warn)
	}
}

// TestDerivePolicies_DisjointRolesYieldTwoSeparationPolicies covers spec
// scenario 1: two disjoint roles, writes[f1]={x}, writes[f2]={y}, reads
// empty. Neither write set is a subset of the other, so the lattice
// entry is 0 and both sides' (nonempty) differences must each produce
// their own separation-of-duty policy.
func TestDerivePolicies_DisjointRolesYieldTwoSeparationPolicies(t *testing.T) {
	functions := []string{"f1", "f2"}
	roles := []FinalRole{
		finalRole([]int{0}, []int{0}, 2),
		finalRole([]int{1}, []int{1}, 2),
	}
	summary := models.RWSummary{
		Writes: map[string][]string{
			"f1": {"x"},
			"f2": {"y"},
		},
	}

	policies, warn := DerivePolicies(roles, []string{"a", "b"}, functions, summary, nil)
	if warn != nil {
		t.Fatalf("unexpected warning: %+v", warn)
	}
	if len(policies) != 2 {
		t.Fatalf("expected exactly 2 separation policies, got %d: %+v", len(policies), policies)
	}
	for _, p := range policies {
		if p.Kind != models.PolicyKindSeparation {
			t.Errorf("expected kind separation, got %q", p.Kind)
		}
	}

	byData := map[string][]string{}
	for _, p := range policies {
		byData[p.Data[0]] = p.Role.Functions
	}
	if !reflect.DeepEqual(sortedStrings(policies[0].Data), policies[0].Data) {
		t.Errorf("policy data must be sorted: %v", policies[0].Data)
	}
	if funcs, ok := byData["x"]; !ok || !reflect.DeepEqual(funcs, []string{"f1"}) {
		t.Errorf("expected the x policy to be scoped to role f1, got %v (present=%v)", funcs, ok)
	}
	if funcs, ok := byData["y"]; !ok || !reflect.DeepEqual(funcs, []string{"f2"}) {
		t.Errorf("expected the y policy to be scoped to role f2, got %v (present=%v)", funcs, ok)
	}
}

// TestDerivePolicies_ChainYieldsPairwiseDifferenceNotFullWriteSet covers
// a strict three-role write-set chain: R0 writes {x,y,z}, R1 writes
// {x,y}, R2 writes {x}. R0 dominates R1 in the post-dedup lattice, and
// the R0/R1 integrity policy's data must be the PAIRWISE difference
// dataW_0 \ dataW_1 = {y,z} — not R0's entire write set {x,y,z}, which
// is exactly the bug the per-role (rather than per-pair) emission used
// to produce.
func TestDerivePolicies_ChainYieldsPairwiseDifferenceNotFullWriteSet(t *testing.T) {
	functions := []string{"f1", "f2", "f3"}
	roles := []FinalRole{
		finalRole([]int{0}, []int{0}, 3),
		finalRole([]int{1}, []int{1}, 3),
		finalRole([]int{2}, []int{2}, 3),
	}
	summary := models.RWSummary{
		Writes: map[string][]string{
			"f1": {"x", "y", "z"},
			"f2": {"x", "y"},
			"f3": {"x"},
		},
		Reads2: map[string][]string{},
	}

	policies, warn := DerivePolicies(roles, []string{"a", "b", "c"}, functions, summary, nil)
	if warn != nil {
		t.Fatalf("unexpected warning: %+v", warn)
	}

	// Pairs are emitted in (i,j) order: (0,1), (0,2), (1,2). All three
	// are comparable in the post-dedup lattice, so all three are
	// integrity policies on the dominating side of the pair.
	want := []struct {
		data  []string
		funcs []string
	}{
		{data: []string{"y", "z"}, funcs: []string{"f1"}}, // R0 vs R1: x is shared with R2 too, so dedup keeps it off this pair's diff
		{data: []string{"x", "y", "z"}, funcs: []string{"f1"}}, // R0 vs R2: R2's post-dedup set is emptied entirely
		{data: []string{"x"}, funcs: []string{"f2"}},            // R1 vs R2: R2's post-dedup set is emptied entirely
	}
	if len(policies) != len(want) {
		t.Fatalf("expected %d policies, got %d: %+v", len(want), len(policies), policies)
	}
	for i, w := range want {
		p := policies[i]
		if p.Kind != models.PolicyKindIntegrity {
			t.Errorf("policy %d: expected kind integrity, got %q", i, p.Kind)
		}
		if !reflect.DeepEqual(p.Data, w.data) {
			t.Errorf("policy %d: expected data %v, got %v", i, w.data, p.Data)
		}
		if !reflect.DeepEqual(p.Role.Functions, w.funcs) {
			t.Errorf("policy %d: expected role functions %v, got %v", i, w.funcs, p.Role.Functions)
		}
	}
}

// TestDerivePolicies_WriteSetExcludesConditionallyReadVariables checks
// spec §4.5's dataW_i = writes[f] \ reads[f] construction: a variable
// that a function both reads and writes must not appear in that
// function's contribution to the write set.
func TestDerivePolicies_WriteSetExcludesConditionallyReadVariables(t *testing.T) {
	functions := []string{"f1", "f2"}
	roles := []FinalRole{
		finalRole([]int{0}, []int{0}, 2),
		finalRole([]int{1}, []int{1}, 2),
	}
	summary := models.RWSummary{
		Reads: map[string][]string{
			"f1": {"x"},
		},
		Writes: map[string][]string{
			"f1": {"x", "y"}, // x is read-and-written by f1: excluded from dataW
			"f2": {"z"},
		},
	}

	policies, warn := DerivePolicies(roles, []string{"a", "b"}, functions, summary, nil)
	if warn != nil {
		t.Fatalf("unexpected warning: %+v", warn)
	}
	if len(policies) != 2 {
		t.Fatalf("expected 2 separation policies (y vs z), got %d: %+v", len(policies), policies)
	}
	var allData []string
	for _, p := range policies {
		allData = append(allData, p.Data...)
	}
	sort.Strings(allData)
	if !reflect.DeepEqual(allData, []string{"y", "z"}) {
		t.Errorf("expected data {y,z} only (x excluded as read-and-written), got %v", allData)
	}
}

// TestDerivePolicies_DenyListExcludesFunction puts the denied function
// in a real pair (k=1 would never form a pair at all, and so would
// pass trivially regardless of the deny list): role 0's only function
// is denied, so it contributes no writes at all, while role 1's
// function is unaffected. Only role 1's write should surface.
func TestDerivePolicies_DenyListExcludesFunction(t *testing.T) {
	functions := []string{"transfer", "audit"}
	roles := []FinalRole{
		finalRole([]int{0}, []int{0}, 2),
		finalRole([]int{1}, []int{1}, 2),
	}
	summary := models.RWSummary{
		Writes: map[string][]string{
			"transfer": {"balance"},
			"audit":    {"log"},
		},
	}
	policies, warn := DerivePolicies(roles, []string{"a", "b"}, functions, summary, []string{"transfer"})
	if warn != nil {
		t.Fatalf("unexpected warning: %+v", warn)
	}
	if len(policies) != 1 {
		t.Fatalf("expected exactly 1 policy (audit's write, transfer denied), got %d: %+v", len(policies), policies)
	}
	p := policies[0]
	if p.Kind != models.PolicyKindIntegrity {
		t.Errorf("expected kind integrity, got %q", p.Kind)
	}
	if !reflect.DeepEqual(p.Data, []string{"log"}) {
		t.Errorf("expected data {log} (balance must be excluded as denied), got %v", p.Data)
	}
	if !reflect.DeepEqual(p.Role.Functions, []string{"audit"}) {
		t.Errorf("expected the policy scoped to the audit role, got %v", p.Role.Functions)
	}
}

// TestDerivePolicies_DegenerateSingleRoleEmitsNoPolicies covers spec
// edge case 6: with only one role there are no pairs, so no policies
// can be emitted regardless of the RW summary.
func TestDerivePolicies_DegenerateSingleRoleEmitsNoPolicies(t *testing.T) {
	functions := []string{"f1", "f2", "f3"}
	roles := []FinalRole{finalRole([]int{0}, []int{0, 1, 2}, 3)}
	summary := models.RWSummary{
		Writes: map[string][]string{
			"f1": {"x"}, "f2": {"y"}, "f3": {"z"},
		},
	}
	policies, warn := DerivePolicies(roles, []string{"a"}, functions, summary, nil)
	if warn != nil {
		t.Fatalf("unexpected warning: %+v", warn)
	}
	if len(policies) != 0 {
		t.Fatalf("expected no policies for a single role (no pairs), got %+v", policies)
	}
}

func TestStrictMapSuperset(t *testing.T) {
	a := map[string]bool{"x": true, "y": true}
	b := map[string]bool{"x": true}
	if !strictMapSuperset(a, b) {
		t.Errorf("a should be a strict superset of b")
	}
	if strictMapSuperset(b, a) {
		t.Errorf("b should not be a strict superset of a")
	}
	if strictMapSuperset(a, a) {
		t.Errorf("a set should not be a strict superset of itself")
	}
}

func TestMapDifference(t *testing.T) {
	a := map[string]bool{"x": true, "y": true}
	b := map[string]bool{"y": true}
	got := sortedKeys(mapDifference(a, b))
	if !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("mapDifference(a,b) = %v, want [x]", got)
	}
}

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
