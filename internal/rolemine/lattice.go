package rolemine

import (
	"log"
	"math/rand"
	"time"

	"github.com/spcon-go/rolemine/pkg/models"
)

// LatticeResult is the output of BuildLattice: the enumerated concepts
// plus any warning recorded from the cap/budget fallback path.
type LatticeResult struct {
	Concepts []Concept
	Warning  *models.Warning
}

// BuildLattice is C2: it enumerates the full concept lattice of P using
// Next-Closure (Ganter's algorithm) over the function (attribute) side.
//
// Complexity tolerance (spec §4.2): if the user dimension exceeds
// cfg.LatticeCapUsers, a deterministic sample of that many users (seeded
// by cfg.Seed) is used instead of the full set. If wall-clock exceeds
// cfg.TimeoutLatticeSeconds, enumeration aborts and the trivial
// partition — one basic-role candidate per distinct row of P — is
// returned instead, with a BudgetExceeded warning attached.
func BuildLattice(d *Dataset, cfg Config) LatticeResult {
	users := sampleUsers(d.NumUsers(), cfg.LatticeCapUsers, cfg.Seed)

	deadline := time.Now().Add(time.Duration(cfg.TimeoutLatticeSeconds) * time.Second)
	if cfg.TimeoutLatticeSeconds <= 0 {
		deadline = time.Now().Add(365 * 24 * time.Hour) // effectively unbounded
	}

	concepts, ok := nextClosureAll(d, users, deadline)
	if ok {
		log.Printf("[Lattice] enumerated %d concepts over %d users, %d functions", len(concepts), len(users), d.NumFunctions())
		return LatticeResult{Concepts: concepts}
	}

	log.Printf("[Lattice] exceeded its %ds budget over %d users; falling back to the trivial row-partition", cfg.TimeoutLatticeSeconds, len(users))
	return LatticeResult{
		Concepts: trivialPartition(d, users),
		Warning: &models.Warning{
			Kind:    models.WarningBudgetExceeded,
			Message: "lattice construction exceeded its wall-clock budget; falling back to the trivial row-partition",
		},
	}
}

// sampleUsers returns the user indices to use for lattice construction:
// all of them if within cap, otherwise a deterministic seeded sample.
func sampleUsers(n, cap int, seed int64) []int {
	if cap <= 0 || n <= cap {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	r := rand.New(rand.NewSource(seed))
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	r.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	sample := append([]int(nil), all[:cap]...)
	return sample
}

// nextClosureAll enumerates every closed function-set (every concept
// intent) of the binary context restricted to `users`, via Ganter's
// Next Closure algorithm. Returns ok=false if the deadline is exceeded
// before enumeration completes.
func nextClosureAll(d *Dataset, users []int, deadline time.Time) ([]Concept, bool) {
	m := d.NumFunctions()
	if m == 0 || len(users) == 0 {
		return nil, true
	}

	closure := func(funcs bitset) bitset {
		return closureOf(d, users, funcs)
	}

	var concepts []Concept
	A := closure(newBitset(m))
	checkEvery := 4096
	iter := 0
	for {
		concepts = append(concepts, Concept{
			Users: toGlobalUserBitset(d, users, extentOf(d, users, A)),
			Funcs: A,
		})

		iter++
		if iter%checkEvery == 0 && time.Now().After(deadline) {
			return nil, false
		}

		next, ok := nextClosure(A, m, closure)
		if !ok {
			break
		}
		A = next
	}
	return concepts, true
}

// closureOf computes A'' : the set of functions common to every user
// that has all functions in A (the Galois closure of A). `users` maps
// local extent positions to global dataset row indices throughout.
func closureOf(d *Dataset, users []int, A bitset) bitset {
	extent := extentOf(d, users, A)
	return intentOf(d, users, extent)
}

// extentOf computes A' restricted to `users`: the local positions (into
// `users`) of every user possessing all functions in A.
func extentOf(d *Dataset, users []int, A bitset) bitset {
	m := d.NumFunctions()
	ext := newBitset(len(users))
	funcs := A.toSlice()
	for ui, u := range users {
		ok := true
		for _, f := range funcs {
			if f >= m || !d.P[u][f] {
				ok = false
				break
			}
		}
		if ok {
			ext.set(ui)
		}
	}
	return ext
}

// intentOf computes the function set common to every user whose local
// position (into `users`) is set in extentLocal.
func intentOf(d *Dataset, users []int, extentLocal bitset) bitset {
	m := d.NumFunctions()
	intent := newBitset(m)
	members := extentLocal.toSlice()
	if len(members) == 0 {
		for f := 0; f < m; f++ {
			intent.set(f)
		}
		return intent
	}
	for f := 0; f < m; f++ {
		all := true
		for _, ui := range members {
			if !d.P[users[ui]][f] {
				all = false
				break
			}
		}
		if all {
			intent.set(f)
		}
	}
	return intent
}

// nextClosure advances A to the lectically-next closed set under
// `closure`, or returns ok=false when A is the last (maximal) closed
// set. Standard Ganter Next-Closure over attributes indexed high-to-low.
func nextClosure(A bitset, m int, closure func(bitset) bitset) (bitset, bool) {
	for i := m - 1; i >= 0; i-- {
		if A.test(i) {
			A = A.clone()
			A.clear(i)
			continue
		}
		B := A.clone()
		B.set(i)
		C := closure(B)

		lectic := true
		for j := 0; j < i; j++ {
			if C.test(j) != A.test(j) {
				lectic = false
				break
			}
		}
		if lectic {
			return C, true
		}
	}
	return bitset{}, false
}

// toGlobalUserBitset converts a local (position-within-`users`) bitset
// into a bitset sized and keyed by global UserID, so that Concept.Users
// is always comparable across sampled and non-sampled runs.
func toGlobalUserBitset(d *Dataset, users []int, local bitset) bitset {
	global := newBitset(d.NumUsers())
	for _, ui := range local.toSlice() {
		global.set(users[ui])
	}
	return global
}

// trivialPartition is the lattice-budget-exceeded fallback: one
// candidate concept per distinct permission row of P (spec §4.2).
func trivialPartition(d *Dataset, users []int) []Concept {
	rowGroups := make(map[string][]int)
	var order []string
	for _, u := range users {
		key := rowKey(d.P[u])
		if _, ok := rowGroups[key]; !ok {
			order = append(order, key)
		}
		rowGroups[key] = append(rowGroups[key], u)
	}

	concepts := make([]Concept, 0, len(order))
	for _, key := range order {
		group := rowGroups[key]
		uset := newBitset(d.NumUsers())
		for _, u := range group {
			uset.set(u)
		}
		fset := newBitset(d.NumFunctions())
		for f := 0; f < d.NumFunctions(); f++ {
			if d.P[group[0]][f] {
				fset.set(f)
			}
		}
		concepts = append(concepts, Concept{Users: uset, Funcs: fset})
	}
	return concepts
}

func rowKey(row []bool) string {
	buf := make([]byte, len(row))
	for i, v := range row {
		if v {
			buf[i] = 1
		}
	}
	return string(buf)
}
