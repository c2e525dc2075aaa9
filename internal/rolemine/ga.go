package rolemine

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// chromosome is the 1-D integer gene encoding of roleminer.py's
// G1DList: chromosome[b] is the final-role group that basic role b is
// assigned to. Gene values are canonicalized (relabeled to 0,1,2,… by
// first occurrence) so that permutations of an identical grouping hash
// to the same cache key and the same fitness.
type chromosome []int

// canonical relabels genes to 0,1,2,… in order of first occurrence,
// matching translateChromosome2Roles's normalization in the Python
// reference — this is what makes two chromosomes that describe the
// same partition compare (and cache) as equal.
func (c chromosome) canonical() chromosome {
	out := make(chromosome, len(c))
	next := 0
	seen := make(map[int]int)
	for i, g := range c {
		id, ok := seen[g]
		if !ok {
			id = next
			seen[g] = id
			next++
		}
		out[i] = id
	}
	return out
}

func (c chromosome) key() string {
	var b strings.Builder
	for i, g := range c {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(g))
	}
	return b.String()
}

// groups expands the chromosome into basic-role-index groups ordered by
// the group's gene value.
func (c chromosome) groups() [][]int {
	maxG := -1
	for _, g := range c {
		if g > maxG {
			maxG = g
		}
	}
	out := make([][]int, maxG+1)
	for b, g := range c {
		out[g] = append(out[g], b)
	}
	// Drop empty groups (a gene value with no members cannot occur after
	// canonicalization, but defend anyway).
	nonEmpty := out[:0]
	for _, g := range out {
		if len(g) > 0 {
			nonEmpty = append(nonEmpty, g)
		}
	}
	return nonEmpty
}

// gaResult is what GA optimization hands back to the pipeline.
type gaResult struct {
	Roles      []FinalRole
	Generation int
}

// RunGA is C4: the genetic-algorithm role-clustering optimizer.
// Population, generation count, crossover/mutation rates, elitism and
// seed all come from cfg (spec §9 defaults mirror pyevolve's
// G1DList setup: population 100, generations 100, mutation 0.10,
// crossover 0.99, elitism 1, seed 2022).
//
// Degenerate cases (spec §4.4): zero basic roles yields no final roles;
// a single basic role yields one final role covering it directly,
// without running the GA loop.
func RunGA(ctx context.Context, basicRoles []BasicRole, d *Dataset, cfg Config) (gaResult, error) {
	n := len(basicRoles)
	if n == 0 {
		return gaResult{}, nil
	}
	if n == 1 {
		return gaResult{Roles: []FinalRole{finalRoleFromGroup(basicRoles, []int{0})}}, nil
	}

	log.Printf("[GA] clustering %d basic roles over %d generations (population %d, seed %d)", n, cfg.Generations, cfg.Population, cfg.Seed)

	fc := newFitnessContext(basicRoles, d)
	rng := rand.New(rand.NewSource(cfg.Seed))

	pop := initPopulation(n, cfg.Population, rng)
	best := evaluatePopulation(ctx, fc, pop, cfg)
	sortBySore(pop, best)

	for gen := 0; gen < cfg.Generations; gen++ {
		select {
		case <-ctx.Done():
			return gaResult{Roles: finalRolesFromChromosome(basicRoles, pop[0]), Generation: gen}, nil
		default:
		}

		next := make([]chromosome, 0, cfg.Population)
		if cfg.Elitism && len(pop) > 0 {
			next = append(next, pop[0])
		}

		scaled := linearScale(best)
		for len(next) < cfg.Population {
			p1 := tournamentSelect(pop, scaled, rng)
			p2 := tournamentSelect(pop, scaled, rng)
			c1, c2 := p1, p2
			if rng.Float64() < cfg.CrossoverRate {
				c1, c2 = crossover(p1, p2, rng)
			}
			c1 = mutate(c1, cfg.MutationRate, rng)
			next = append(next, c1.canonical())
			if len(next) < cfg.Population {
				c2 = mutate(c2, cfg.MutationRate, rng)
				next = append(next, c2.canonical())
			}
		}

		pop = next
		best = evaluatePopulation(ctx, fc, pop, cfg)
		sortBySore(pop, best)
	}

	log.Printf("[GA] converged after %d generations into %d final roles", cfg.Generations, len(pop[0].canonical().groups()))
	return gaResult{Roles: finalRolesFromChromosome(basicRoles, pop[0]), Generation: cfg.Generations}, nil
}

func finalRolesFromChromosome(basicRoles []BasicRole, c chromosome) []FinalRole {
	groups := c.canonical().groups()
	roles := make([]FinalRole, 0, len(groups))
	for _, g := range groups {
		roles = append(roles, finalRoleFromGroup(basicRoles, g))
	}
	return roles
}

func finalRoleFromGroup(basicRoles []BasicRole, group []int) FinalRole {
	users := basicRoles[group[0]].Users.clone()
	funcs := basicRoles[group[0]].Funcs.clone()
	for _, idx := range group[1:] {
		users = users.union(basicRoles[idx].Users)
		funcs = funcs.union(basicRoles[idx].Funcs)
	}
	return FinalRole{Users: users, Funcs: funcs, Members: append([]int(nil), group...)}
}

func initPopulation(n, popSize int, rng *rand.Rand) []chromosome {
	pop := make([]chromosome, popSize)
	for i := range pop {
		c := make(chromosome, n)
		k := 1 + rng.Intn(n)
		for b := range c {
			c[b] = rng.Intn(k)
		}
		pop[i] = c.canonical()
	}
	return pop
}

// evaluatePopulation scores every chromosome concurrently via a bounded
// errgroup worker pool (grounded on the rest of the corpus's errgroup
// usage for bounded fan-out), memoizing by canonical chromosome key so
// repeated individuals across generations are free.
func evaluatePopulation(ctx context.Context, fc *fitnessContext, pop []chromosome, cfg Config) []evalResult {
	results := make([]evalResult, len(pop))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, c := range pop {
		i, c := i, c
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			default:
			}
			results[i] = evalChromosome(fc, c, cfg)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func evalChromosome(fc *fitnessContext, c chromosome, cfg Config) evalResult {
	canon := c.canonical()
	key := canon.key()
	if v, ok := fc.evalCache.Load(key); ok {
		return v.(evalResult)
	}

	groups := canon.groups()
	simErr := fc.similarityError(groups)
	genErr := fc.generalizationError(groups)
	score := fitness(simErr, genErr, cfg.SimRatio)

	res := evalResult{score: score, simErr: simErr, genErr: genErr, groups: groups}
	fc.evalCache.Store(key, res)
	return res
}

func sortBySore(pop []chromosome, results []evalResult) {
	idx := make([]int, len(pop))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return results[idx[a]].score > results[idx[b]].score
	})
	sortedPop := make([]chromosome, len(pop))
	sortedRes := make([]evalResult, len(pop))
	for newPos, oldPos := range idx {
		sortedPop[newPos] = pop[oldPos]
		sortedRes[newPos] = results[oldPos]
	}
	copy(pop, sortedPop)
	copy(results, sortedRes)
}

// linearScale applies pyevolve-style linear fitness scaling so
// tournament pressure stays stable even when raw scores cluster tightly.
func linearScale(results []evalResult) []float64 {
	n := len(results)
	scaled := make([]float64, n)
	if n == 0 {
		return scaled
	}
	min, max := results[0].score, results[0].score
	for _, r := range results {
		if r.score < min {
			min = r.score
		}
		if r.score > max {
			max = r.score
		}
	}
	span := max - min
	for i, r := range results {
		if span <= 0 {
			scaled[i] = 1
			continue
		}
		scaled[i] = 1 + 9*(r.score-min)/span // map into [1,10]
	}
	return scaled
}

// tournamentSelect picks the higher-scaled-fitness individual of two
// uniformly drawn candidates.
func tournamentSelect(pop []chromosome, scaled []float64, rng *rand.Rand) chromosome {
	a := rng.Intn(len(pop))
	b := rng.Intn(len(pop))
	if scaled[a] >= scaled[b] {
		return pop[a]
	}
	return pop[b]
}

// crossover is single-point crossover over the gene slice.
func crossover(p1, p2 chromosome, rng *rand.Rand) (chromosome, chromosome) {
	n := len(p1)
	if n < 2 {
		return append(chromosome(nil), p1...), append(chromosome(nil), p2...)
	}
	point := 1 + rng.Intn(n-1)
	c1 := make(chromosome, n)
	c2 := make(chromosome, n)
	copy(c1[:point], p1[:point])
	copy(c1[point:], p2[point:])
	copy(c2[:point], p2[:point])
	copy(c2[point:], p1[point:])
	return c1, c2
}

// mutate applies, per gene, either a swap with another gene or a
// redraw to a random group id in [0,n) — mirroring pyevolve's real-range
// mutator adapted to this integer-partition encoding.
func mutate(c chromosome, rate float64, rng *rand.Rand) chromosome {
	out := append(chromosome(nil), c...)
	n := len(out)
	if n == 0 {
		return out
	}
	for i := range out {
		if rng.Float64() >= rate {
			continue
		}
		if rng.Float64() < 0.5 && n > 1 {
			j := rng.Intn(n)
			out[i], out[j] = out[j], out[i]
		} else {
			out[i] = rng.Intn(n)
		}
	}
	return out
}

// DescribeChromosome renders a chromosome as a human-readable grouping,
// used by diagnostics/logging only.
func DescribeChromosome(c chromosome) string {
	groups := c.canonical().groups()
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = fmt.Sprintf("%v", g)
	}
	return strings.Join(parts, " | ")
}
