package rolemine

// Config holds the options recognized by the engine (spec §9). The CLI
// (cmd/rolemine) starts from DefaultConfig and overrides some fields
// from flags; the REST service (internal/api) runs every request with
// the Config it was built with. The engine itself never reads the
// environment directly.
type Config struct {
	// SimRatio is alpha in [0,1]: weight given to the similarity error
	// term versus the generalization error term in GA fitness.
	SimRatio float64

	// Generations is the fixed GA generation count (G).
	Generations int
	// Population is the GA population size (M).
	Population int
	// MutationRate is the per-gene mutation probability.
	MutationRate float64
	// CrossoverRate is the single-point crossover probability.
	CrossoverRate float64
	// Elitism preserves the single best individual per generation.
	Elitism bool
	// Seed makes one run reproducible given identical inputs.
	Seed int64

	// LatticeCapUsers bounds the user dimension of the FCA lattice:
	// above it, a seeded sample of this many users is used instead.
	LatticeCapUsers int
	// TimeoutLatticeSeconds bounds lattice construction wall-clock time.
	TimeoutLatticeSeconds int
	// TimeoutGASeconds bounds GA evolution wall-clock time.
	TimeoutGASeconds int

	// MinHistoryRecords is the minimum number of unique successful
	// calls required before mining proceeds (InsufficientHistory).
	MinHistoryRecords int

	// PolicyDenyFunctions lists functions excluded from policy
	// derivation's privileged-function accounting (spec §9(c)). Kept
	// as data, not a hard-coded constant, per spec's instruction.
	PolicyDenyFunctions []string

	// Miner selects the role-clustering algorithm by name: "ga" (the
	// only one on the critical path) or one of the benchmarking
	// alternatives registered in miners.go.
	Miner string
}

// DefaultConfig returns the engine's documented defaults (spec §9).
func DefaultConfig() Config {
	return Config{
		SimRatio:              0.5,
		Generations:           100,
		Population:            100,
		MutationRate:          0.10,
		CrossoverRate:         0.99,
		Elitism:               true,
		Seed:                  2022,
		LatticeCapUsers:       10000,
		TimeoutLatticeSeconds: 60,
		TimeoutGASeconds:      120,
		MinHistoryRecords:     50,
		PolicyDenyFunctions:   DefaultPolicyDenyList(),
		Miner:                 MinerGA,
	}
}

// DefaultPolicyDenyList is the token-standard function deny-list from
// spec §9(c), kept as a configurable default rather than a constant
// baked into PolicyDeriver.
func DefaultPolicyDenyList() []string {
	return []string{
		"transfer", "transferFrom", "approve", "setApprovalForAll",
		"safeTransferFrom", "increaseApproval", "decreaseApproval",
		"burn", "burnFrom", "buy",
		"__fallback__", "fallback", "__callback", "constructor",
	}
}
