package warp

import "testing"

func TestNewInitializesAllLanesToEntryPC(t *testing.T) {
	w := New(3, false, 4, 0x1000)
	if w.ID != 3 || w.Size != 4 || w.IsCPU {
		t.Fatalf("unexpected warp fields: %+v", w)
	}
	for i, pc := range w.PC {
		if pc != 0x1000 {
			t.Errorf("lane %d PC = %#x, want 0x1000", i, pc)
		}
	}
}

func TestAnyUnfinishedAndReady(t *testing.T) {
	w := New(0, false, 2, 0)
	if !w.AnyUnfinished() || !w.Ready() {
		t.Fatal("fresh warp must be unfinished and ready")
	}
	w.Suspended = true
	if w.Ready() {
		t.Fatal("suspended warp must not be ready")
	}
	w.Suspended = false
	w.InBarrier = true
	if w.Ready() {
		t.Fatal("barriered warp must not be ready")
	}
	w.InBarrier = false
	w.Finished[0] = true
	w.Finished[1] = true
	if w.AnyUnfinished() || w.Ready() {
		t.Fatal("all-finished warp must not be ready")
	}
}

func TestActiveThreadsPicksDeepestNestingSharingLeaderPC(t *testing.T) {
	w := New(0, false, 4, 0x100)
	// Lanes 0,1 took the branch (nesting 1, PC 0x200); lanes 2,3 did not
	// (nesting 0, PC 0x108). The deepest-nesting pair should be selected.
	w.NestingLevel[0], w.NestingLevel[1] = 1, 1
	w.PC[0], w.PC[1] = 0x200, 0x200
	w.PC[2], w.PC[3] = 0x108, 0x108

	active := w.ActiveThreads()
	if len(active) != 2 || active[0] != 0 || active[1] != 1 {
		t.Fatalf("active = %v, want [0 1]", active)
	}
}

func TestActiveThreadsSkipsFinishedLanes(t *testing.T) {
	w := New(0, false, 2, 0x100)
	w.Finished[0] = true
	active := w.ActiveThreads()
	if len(active) != 1 || active[0] != 1 {
		t.Fatalf("active = %v, want [1]", active)
	}
}

func TestActiveThreadsAllFinishedReturnsNil(t *testing.T) {
	w := New(0, false, 1, 0)
	w.Finished[0] = true
	if active := w.ActiveThreads(); active != nil {
		t.Fatalf("active = %v, want nil", active)
	}
}

func TestTableAssignsStableIncreasingIDs(t *testing.T) {
	table := NewTable()
	a := table.Create(false, 32, 0)
	b := table.Create(false, 32, 0)
	if a.ID != 0 || b.ID != 1 {
		t.Fatalf("ids = %d, %d, want 0, 1", a.ID, b.ID)
	}
	if table.Get(a.ID) != a {
		t.Fatal("Get did not return the created warp")
	}
	table.Remove(a.ID)
	if table.Get(a.ID) != nil {
		t.Fatal("Get should return nil after Remove")
	}
	if len(table.All()) != 1 {
		t.Fatalf("All() = %d warps, want 1", len(table.All()))
	}
}
