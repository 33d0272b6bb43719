/*
 * Warp state for the SIMT and CPU pipelines.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package warp models a group of lanes sharing one fetch/decode/issue
// pipeline, plus the warp table that owns all live warps by stable id.
package warp

// ID is a stable handle for a warp. Functional units and the coalescing
// unit carry warps by ID rather than by pointer so that result queues don't
// smear pointer ownership across components.
type ID uint32

// Warp holds all per-lane and warp-wide simulated state for one warp.
type Warp struct {
	ID    ID
	IsCPU bool // CPU pipeline uses a single degenerate warp with Size == 1.
	Size  int

	PC           []uint64
	NestingLevel []uint32
	Finished     []bool
	Retrying     []bool

	Suspended bool // Owned by exactly one of {coalescing unit, mul unit, div unit}.
	InBarrier bool
}

// New creates a warp of the given size with all lanes starting execution
// at entryPC.
func New(id ID, isCPU bool, size int, entryPC uint64) *Warp {
	w := &Warp{
		ID:           id,
		IsCPU:        isCPU,
		Size:         size,
		PC:           make([]uint64, size),
		NestingLevel: make([]uint32, size),
		Finished:     make([]bool, size),
		Retrying:     make([]bool, size),
	}
	for i := range w.PC {
		w.PC[i] = entryPC
	}
	return w
}

// AnyUnfinished reports whether at least one lane of the warp has not
// reached the finished state.
func (w *Warp) AnyUnfinished() bool {
	for _, f := range w.Finished {
		if !f {
			return true
		}
	}
	return false
}

// Ready reports whether the warp belongs in the scheduler's ready queue:
// not suspended, not waiting at a barrier, and with at least one lane left
// to run.
func (w *Warp) Ready() bool {
	return !w.Suspended && !w.InBarrier && w.AnyUnfinished()
}

// ActiveThreads selects, among the non-finished lanes, the ones at the
// maximum nesting level that share the PC of the first lane to reach that
// level.
func (w *Warp) ActiveThreads() []int {
	maxNesting := uint32(0)
	leaderPC := uint64(0)
	found := false
	for lane := 0; lane < w.Size; lane++ {
		if w.Finished[lane] {
			continue
		}
		if !found || w.NestingLevel[lane] > maxNesting {
			maxNesting = w.NestingLevel[lane]
			leaderPC = w.PC[lane]
			found = true
		}
	}
	if !found {
		return nil
	}
	active := make([]int, 0, w.Size)
	for lane := 0; lane < w.Size; lane++ {
		if !w.Finished[lane] && w.NestingLevel[lane] == maxNesting && w.PC[lane] == leaderPC {
			active = append(active, lane)
		}
	}
	return active
}

// Diverged reports whether the warp's non-finished lanes disagree on PC or
// nesting level, meaning an upstream NoclPop failed to reconverge them
// before a barrier wait.
func (w *Warp) Diverged() bool {
	leaderPC := uint64(0)
	leaderNesting := uint32(0)
	found := false
	for lane := 0; lane < w.Size; lane++ {
		if w.Finished[lane] {
			continue
		}
		if !found {
			leaderPC, leaderNesting, found = w.PC[lane], w.NestingLevel[lane], true
			continue
		}
		if w.PC[lane] != leaderPC || w.NestingLevel[lane] != leaderNesting {
			return true
		}
	}
	return false
}

// Table owns every live warp in one pipeline, keyed by stable ID.
type Table struct {
	warps  map[ID]*Warp
	nextID ID
}

// NewTable creates an empty warp table.
func NewTable() *Table {
	return &Table{warps: make(map[ID]*Warp)}
}

// Create allocates a fresh warp, assigns it the next stable id, and
// registers it in the table.
func (t *Table) Create(isCPU bool, size int, entryPC uint64) *Warp {
	id := t.nextID
	t.nextID++
	w := New(id, isCPU, size, entryPC)
	t.warps[id] = w
	return w
}

// Get looks a warp up by id. Returns nil if the id is unknown.
func (t *Table) Get(id ID) *Warp {
	return t.warps[id]
}

// Remove drops a finished warp's bookkeeping entry from the table.
func (t *Table) Remove(id ID) {
	delete(t.warps, id)
}

// All returns every live warp, in no particular order.
func (t *Table) All() []*Warp {
	out := make([]*Warp, 0, len(t.warps))
	for _, w := range t.warps {
		out = append(out, w)
	}
	return out
}
