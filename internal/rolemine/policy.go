package rolemine

import (
	"sort"
	"strings"

	"github.com/spcon-go/rolemine/pkg/models"
)

// DerivePolicies is C5: PolicyDeriver. It turns final roles plus a
// static read/write summary into integrity and separation-of-duty
// security policies (spec §4.5).
//
// Grounded in roleminer.py:DeriveRolePermissionPolicy: dataR/dataW are
// built per role from the RW summary restricted to the role's function
// set; write sets are deduplicated left-to-right exactly as the
// reference's `newDataW[i] = dataW[i] - (union(dataW[:i]) -
// union(dataW[i+1:]))`; the k×k security lattice and privileged-
// function computation follow the same structure.
//
// When summary is the zero value (no RW data available — static
// analysis was skipped or failed upstream), DerivePolicies returns no
// policies and a StaticAnalysisMissing warning rather than an error,
// per spec §7.
func DerivePolicies(roles []FinalRole, userMap, functions []string, summary models.RWSummary, denyList []string) ([]models.SecurityPolicy, *models.Warning) {
	if summary.Reads == nil && summary.Reads2 == nil && summary.Writes == nil {
		return nil, &models.Warning{
			Kind:    models.WarningStaticAnalysisMissing,
			Message: "no static read/write summary supplied; skipping policy derivation",
		}
	}

	deny := make(map[string]bool, len(denyList))
	for _, f := range denyList {
		deny[f] = true
	}

	k := len(roles)
	dataR := make([]map[string]bool, k)
	dataW := make([]map[string]bool, k)
	for i, role := range roles {
		r := make(map[string]bool)
		w := make(map[string]bool)
		for _, fidx := range role.Funcs.toSlice() {
			if fidx >= len(functions) {
				continue
			}
			fn := functions[fidx]
			if deny[fn] {
				continue
			}
			reads := toSet(summary.Reads[fn])
			for _, d := range summary.Reads[fn] {
				r[d] = true
			}
			for _, d := range summary.Writes[fn] {
				if reads[d] {
					continue
				}
				w[d] = true
			}
		}
		dataR[i] = r
		dataW[i] = w
	}

	// Asymmetric left-to-right write-set dedup: newDataW[i] = dataW[i] -
	// (union(dataW[:i]) - union(dataW[i+1:])). A piece of state that role
	// i writes in common with an EARLIER role, but that no LATER role
	// also writes, is dropped from i's set — it already "belongs" to the
	// earlier role's policy.
	newDataW := make([]map[string]bool, k)
	for i := range dataW {
		before := unionMaps(dataW[:i])
		after := unionMaps(dataW[i+1:])
		result := make(map[string]bool)
		for item := range dataW[i] {
			if before[item] && !after[item] {
				continue
			}
			result[item] = true
		}
		newDataW[i] = result
	}

	// Security lattice L[i][j]: +1 if role i's (post-dedup) write set is a
	// strict superset of role j's, -1 if strict subset, 0 if neither
	// (incomparable) — computed once per unordered pair {i,j}.
	L := make([][]int, k)
	for i := range L {
		L[i] = make([]int, k)
	}
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			switch {
			case strictMapSuperset(newDataW[j], newDataW[i]):
				L[i][j] = -1
				L[j][i] = 1
			case strictMapSuperset(newDataW[i], newDataW[j]):
				L[i][j] = 1
				L[j][i] = -1
			}
		}
	}

	// Emit one policy per pair i<j, per the lattice value: a nonzero L
	// names a dominating role whose policy data is the pairwise
	// write-set difference (not the dominating role's entire write
	// set); L==0 (incomparable roles) emits a separation-of-duty policy
	// per side with a nonempty difference.
	seen := make(map[string]bool)
	var policies []models.SecurityPolicy
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			switch L[i][j] {
			case 1:
				appendPolicy(&policies, seen, roles[i], mapDifference(newDataW[i], newDataW[j]),
					models.PolicyKindIntegrity, userMap, functions, summary, deny)
			case -1:
				appendPolicy(&policies, seen, roles[j], mapDifference(newDataW[j], newDataW[i]),
					models.PolicyKindIntegrity, userMap, functions, summary, deny)
			default:
				appendPolicy(&policies, seen, roles[i], mapDifference(newDataW[i], newDataW[j]),
					models.PolicyKindSeparation, userMap, functions, summary, deny)
				appendPolicy(&policies, seen, roles[j], mapDifference(newDataW[j], newDataW[i]),
					models.PolicyKindSeparation, userMap, functions, summary, deny)
			}
		}
	}

	return policies, nil
}

// appendPolicy builds and appends a policy for role with the given
// pairwise write-set difference and kind, skipping empty differences
// and duplicate (role, data, kind) tuples — mirroring the reference's
// use of a set to dedup emitted policies.
func appendPolicy(policies *[]models.SecurityPolicy, seen map[string]bool, role FinalRole, diff map[string]bool,
	kind string, userMap, functions []string, summary models.RWSummary, deny map[string]bool) {
	if len(diff) == 0 {
		return
	}
	data := sortedKeys(diff)
	key := role.Users.key() + ":" + role.Funcs.key() + "|" + strings.Join(data, ",") + "|" + kind
	if seen[key] {
		return
	}
	seen[key] = true

	*policies = append(*policies, models.SecurityPolicy{
		Role:                roleToModel(role, userMap, functions),
		Data:                data,
		PrivilegedFunctions: writeFunctionsFor(role, functions, summary, diff, deny),
		Kind:                kind,
	})
}

// writeFunctionsFor computes the role's privileged (unconditional
// write) functions: non-denied functions in the role whose write set
// minus its reads2 (all-reads) set intersects dataSet, the policy's
// pairwise write-set difference.
func writeFunctionsFor(role FinalRole, functions []string, summary models.RWSummary, dataSet map[string]bool, deny map[string]bool) []string {
	var out []string
	for _, fidx := range role.Funcs.toSlice() {
		if fidx >= len(functions) {
			continue
		}
		fn := functions[fidx]
		if deny[fn] {
			continue
		}
		read2 := toSet(summary.Reads2[fn])
		for _, w := range summary.Writes[fn] {
			if read2[w] {
				continue
			}
			if dataSet[w] {
				out = append(out, fn)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// roleToModel resolves a bitset-based FinalRole into the address/name
// strings the outside world deals in.
func roleToModel(r FinalRole, userMap, functions []string) models.Role {
	var users, funcs []string
	for _, u := range r.Users.toSlice() {
		if u < len(userMap) {
			users = append(users, userMap[u])
		}
	}
	for _, f := range r.Funcs.toSlice() {
		if f < len(functions) {
			funcs = append(funcs, functions[f])
		}
	}
	return models.Role{Users: users, Functions: funcs}
}

// mapDifference returns the keys of a that are not in b (a \ b).
func mapDifference(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for k := range a {
		if !b[k] {
			out[k] = true
		}
	}
	return out
}

func unionMaps(maps []map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for _, m := range maps {
		for k := range m {
			out[k] = true
		}
	}
	return out
}

func strictMapSuperset(a, b map[string]bool) bool {
	if len(a) <= len(b) {
		return false
	}
	for k := range b {
		if !a[k] {
			return false
		}
	}
	return true
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
