package rolemine

import (
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// fitnessContext holds the per-run caches and read-only inputs the GA's
// fitness evaluation needs: AFV cache, similarity cache, and chromosome
// fitness cache, all scoped to one mining run and dropped at the end
// (spec §9: "global caches… must be scoped to a single mining run").
//
// Grounded in roleminer.py:GA_RM's three @lru_cache-decorated methods
// (getAFV, calcsimilarity, cached_eval_func); here they are sync.Map
// read-mostly caches shared across the GA's worker-pool fitness
// evaluations, matching the per-key-mutex map idiom of
// internal/api/ratelimit.go's RateLimiter.
type fitnessContext struct {
	basicRoles []BasicRole
	dataset    *Dataset

	afvCache  sync.Map // key: role index int -> *mat.VecDense
	simCache  sync.Map // key: [2]int (ordered pair) -> float64
	evalCache sync.Map // key: string (canonical chromosome) -> evalResult
}

type evalResult struct {
	score  float64
	simErr float64
	genErr float64
	groups [][]int // basic-role indices per final-role group, in gene order
}

func newFitnessContext(basicRoles []BasicRole, d *Dataset) *fitnessContext {
	return &fitnessContext{basicRoles: basicRoles, dataset: d}
}

// afv computes the Average Frequency Vector of basic role index r over
// the full function universe (spec §4.4): AFV_r[f] = mean F[u,f] over
// u in U_r. Cached by role index since basic roles are immutable within
// a run.
func (fc *fitnessContext) afv(r int) *mat.VecDense {
	if v, ok := fc.afvCache.Load(r); ok {
		return v.(*mat.VecDense)
	}

	d := fc.dataset
	role := fc.basicRoles[r]
	users := role.Users.toSlice()
	n := d.NumFunctions()
	sum := make([]float64, n)
	for _, u := range users {
		row := d.F[u]
		for f := 0; f < n; f++ {
			sum[f] += float64(row[f])
		}
	}
	if len(users) > 0 {
		floats.Scale(1.0/float64(len(users)), sum)
	}
	v := mat.NewVecDense(n, sum)
	fc.afvCache.Store(r, v)
	return v
}

// similarity is sim(a,b) = 1 - cosineDistance(AFV_a, AFV_b); since the
// distance is 0 when either vector is all-zero, sim is 1 in that case.
// Cached symmetrically by the unordered pair.
func (fc *fitnessContext) similarity(a, b int) float64 {
	if a == b {
		return 1
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	key := [2]int{lo, hi}
	if v, ok := fc.simCache.Load(key); ok {
		return v.(float64)
	}

	va, vb := fc.afv(lo), fc.afv(hi)
	sim := 1 - cosineDistance(va, vb)
	fc.simCache.Store(key, sim)
	return sim
}

// cosineDistance is the standard cosine distance: 1 - (a·b)/(|a||b|),
// 0 when either vector has zero norm.
func cosineDistance(a, b *mat.VecDense) float64 {
	na := mat.Norm(a, 2)
	nb := mat.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0 // zero-norm edge case: distance 0, similarity 1
	}
	dot := mat.Dot(a, b)
	cos := dot / (na * nb)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return 1 - cos
}

// compositeSimilarity is CSim(G1,G2) (spec §4.4 item 3).
func (fc *fitnessContext) compositeSimilarity(g1, g2 []int) float64 {
	sum := 0.0
	for _, r := range g1 {
		best := 0.0
		for _, s := range g2 {
			if v := fc.similarity(r, s); v > best {
				best = v
			}
		}
		sum += best
	}
	for _, r := range g2 {
		best := 0.0
		for _, s := range g1 {
			if v := fc.similarity(r, s); v > best {
				best = v
			}
		}
		sum += best
	}
	return sum / float64(len(g1)+len(g2))
}

// similarityError is simErr for a grouping into k groups (spec item 4).
func (fc *fitnessContext) similarityError(groups [][]int) float64 {
	if len(groups) <= 1 {
		return 0
	}
	worst := 0.0
	for i := 0; i < len(groups)-1; i++ {
		for j := i + 1; j < len(groups); j++ {
			if v := fc.compositeSimilarity(groups[i], groups[j]); v > worst {
				worst = v
			}
		}
	}
	return worst
}

// groupFunctionSet is the union of function sets of a final-role group.
func (fc *fitnessContext) groupFunctionSet(group []int) bitset {
	if len(group) == 0 {
		return newBitset(fc.dataset.NumFunctions())
	}
	u := fc.basicRoles[group[0]].Funcs.clone()
	for _, r := range group[1:] {
		u = u.union(fc.basicRoles[r].Funcs)
	}
	return u
}

// generalizationError is genErr (spec item 5): for every basic role,
// find the closest final-role group by Jaccard over function sets,
// predict (U_b, unionFuncs(G*)), and measure the over-prediction rate.
func (fc *fitnessContext) generalizationError(groups [][]int) float64 {
	groupFuncs := make([]bitset, len(groups))
	for i, g := range groups {
		groupFuncs[i] = fc.groupFunctionSet(g)
	}

	var sumErr float64
	var count int
	for _, role := range fc.basicRoles {
		bestIdx := -1
		bestJaccard := -1.0
		for gi, gf := range groupFuncs {
			j := jaccard(gf, role.Funcs)
			if j > bestJaccard {
				bestJaccard = j
				bestIdx = gi
			}
		}
		if bestIdx < 0 {
			continue
		}
		predictedFuncs := groupFuncs[bestIdx]
		delta := deltaFor(role.Users, predictedFuncs, fc.dataset)
		if delta <= 0 {
			continue
		}
		l1 := l1Norm(role.Users, fc.dataset)
		errb := float64(delta) / float64(l1+delta)
		if errb > 0 {
			sumErr += errb
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sumErr / float64(count)
}

func jaccard(a, b bitset) float64 {
	inter := a.intersect(b).popcount()
	uni := a.union(b).popcount()
	if uni == 0 {
		return 0
	}
	return float64(inter) / float64(uni)
}

// deltaFor is delta_b = |U|*|S| - popcount(P restricted to U x S).
func deltaFor(users bitset, funcs bitset, d *Dataset) int {
	uList := users.toSlice()
	fList := funcs.toSlice()
	total := len(uList) * len(fList)
	observed := 0
	for _, u := range uList {
		row := d.P[u]
		for _, f := range fList {
			if row[f] {
				observed++
			}
		}
	}
	return total - observed
}

// l1Norm is L1_b = popcount(P restricted to U x all functions).
func l1Norm(users bitset, d *Dataset) int {
	observed := 0
	for _, u := range users.toSlice() {
		row := d.P[u]
		for _, v := range row {
			if v {
				observed++
			}
		}
	}
	return observed
}

// fitness is the total score: score = 1 / (alpha*simErr + (1-alpha)*genErr + 1e-3).
func fitness(simErr, genErr, alpha float64) float64 {
	return 1.0 / (alpha*simErr + (1-alpha)*genErr + 1e-3)
}
