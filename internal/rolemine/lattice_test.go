package rolemine

import "testing"

func datasetFromRows(functions []string, rows [][]bool) *Dataset {
	users := make([]string, len(rows))
	f := make([][]int64, len(rows))
	for i, row := range rows {
		users[i] = string(rune('a' + i))
		f[i] = make([]int64, len(row))
		for j, v := range row {
			if v {
				f[i][j] = 1
			}
		}
	}
	return &Dataset{UserMap: users, Functions: functions, P: rows, F: f}
}

func TestBuildLattice_TwoUsersDisjoint(t *testing.T) {
	d := datasetFromRows([]string{"f1", "f2"}, [][]bool{
		{true, false},
		{false, true},
	})
	cfg := DefaultConfig()
	result := BuildLattice(d, cfg)
	if result.Warning != nil {
		t.Fatalf("unexpected warning: %+v", result.Warning)
	}

	roles := ReduceHierarchy(result.Concepts)
	if len(roles) != 2 {
		t.Fatalf("expected 2 basic roles for disjoint users, got %d", len(roles))
	}
}

func TestBuildLattice_StrictHierarchy(t *testing.T) {
	// admin calls f1,f2,f3; operator calls f2,f3; user calls f3.
	d := datasetFromRows([]string{"f1", "f2", "f3"}, [][]bool{
		{true, true, true},
		{false, true, true},
		{false, false, true},
	})
	cfg := DefaultConfig()
	result := BuildLattice(d, cfg)
	roles := ReduceHierarchy(result.Concepts)

	if len(roles) != 3 {
		t.Fatalf("expected 3 basic roles, got %d: %+v", len(roles), roles)
	}

	for _, r := range roles {
		if r.Funcs.popcount() != 1 {
			t.Errorf("expected every role in a strict hierarchy to be trimmed to exactly 1 distinguishing function, got %d (%v)", r.Funcs.popcount(), r.Funcs.toSlice())
		}
	}
}

func TestTrivialPartition_GroupsByPermissionRowAndIsGlobalSized(t *testing.T) {
	d := datasetFromRows([]string{"f1", "f2"}, [][]bool{
		{true, false},
		{true, false},
		{false, true},
	})

	fallback := trivialPartition(d, []int{0, 1, 2})
	if len(fallback) != 2 {
		t.Fatalf("expected 2 distinct permission rows in the trivial partition, got %d", len(fallback))
	}
	for _, c := range fallback {
		if c.Users.n != d.NumUsers() {
			t.Errorf("trivialPartition concept Users bitset must be sized by global user count")
		}
	}
}

func TestSampleUsers_DeterministicUnderSeed(t *testing.T) {
	a := sampleUsers(100, 10, 2022)
	b := sampleUsers(100, 10, 2022)
	if len(a) != 10 || len(b) != 10 {
		t.Fatalf("expected sample of size 10")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected identical sample under the same seed, mismatch at %d: %d != %d", i, a[i], b[i])
		}
	}
}

func TestSampleUsers_ReturnsAllWhenUnderCap(t *testing.T) {
	s := sampleUsers(5, 10, 1)
	if len(s) != 5 {
		t.Fatalf("expected all 5 users when under cap, got %d", len(s))
	}
}
