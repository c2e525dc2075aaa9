package rolemine

// UserID is a dense integer identifier assigned in order of first
// appearance in the call history (spec §3).
type UserID int

// Dataset is the output of HistoryLoader: a dense user↔address map, the
// function universe, and the derived permission/frequency matrices.
//
// Invariant (P1): P[u][f] == (F[u][f] > 0) for all u,f.
type Dataset struct {
	UserMap   []string // index = UserID, value = canonical (lowercased) address
	Functions []string // index = function id

	P [][]bool  // P[UserID][functionIndex]
	F [][]int64 // F[UserID][functionIndex]

	funcIndex map[string]int
}

func (d *Dataset) NumUsers() int    { return len(d.UserMap) }
func (d *Dataset) NumFunctions() int { return len(d.Functions) }

// Concept is a formal concept (U,S) of the permission matrix's binary
// context: the extent (user bitset) and intent (function bitset).
type Concept struct {
	Users bitset
	Funcs bitset
}

// BasicRole is a Concept that survived HierarchyReducer: its Funcs set
// has been trimmed to only the functions that distinguish it from every
// strict ancestor, and it is guaranteed non-empty in both dimensions.
type BasicRole struct {
	Users bitset
	Funcs bitset
}

// FinalRole is a cluster of basic roles sharing one GA chromosome gene
// value: the union of their user sets and function sets.
type FinalRole struct {
	Users bitset
	Funcs bitset
	// Members records the basic-role indices merged into this role, in
	// the order the miner grouped them.
	Members []int
}
