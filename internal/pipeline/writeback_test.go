package pipeline

import (
	"testing"

	"github.com/rcornwell/simtgpu/internal/coalesce"
	"github.com/rcornwell/simtgpu/internal/datamem"
	"github.com/rcornwell/simtgpu/internal/funcunit"
	"github.com/rcornwell/simtgpu/internal/regfile"
	"github.com/rcornwell/simtgpu/internal/simconfig"
	"github.com/rcornwell/simtgpu/internal/stats"
	"github.com/rcornwell/simtgpu/internal/warp"
)

func testWriteback(cfg *simconfig.Config) (*Writeback, *regfile.File, *warp.Table, *funcunit.MulUnit, *funcunit.DivUnit, *coalesce.Unit, *Latch) {
	regs := regfile.New()
	table := warp.NewTable()
	mem := datamem.New()
	cu := coalesce.New(cfg, mem, stats.New(), discardLog(), nil)
	mul := funcunit.NewMulUnit(cfg.MulLatency, cfg.ResultQueueCap)
	div := funcunit.NewDivUnit(cfg.DivLatency)
	in := &Latch{}
	insertWarp := func(*warp.Warp) {}
	wb := NewWriteback(in, &SIMTRegs{File: regs}, table, mul, div, cu, insertWarp, false, cfg, discardLog())
	return wb, regs, table, mul, div, cu, in
}

func TestWritebackDrainsMultiplierBeforeDivider(t *testing.T) {
	cfg := &simconfig.Config{NumLanes: 1, MulLatency: 1, DivLatency: 1, ResultQueueCap: 2}
	wb, regs, table, mul, div, _, _ := testWriteback(cfg)

	w := table.Create(false, 1, 0)
	w.Suspended = true
	mul.Issue(w.ID, []int{0}, map[int]int32{0: 6}, map[int]int32{0: 7}, 1)
	div.Issue(w.ID, []int{0}, map[int]int32{0: 20}, map[int]int32{0: 4}, 2, true, false)
	mul.Tick()
	div.Tick()

	wb.Execute()

	if got := regs.Get(w.ID, 1, 0); got != 42 {
		t.Fatalf("x1 = %d, want 42 (multiply should drain first)", got)
	}
	if got := regs.Get(w.ID, 2, 0); got != 0 {
		t.Fatalf("x2 = %d, divide result should not have drained yet", got)
	}

	wb.Execute()
	if got := regs.Get(w.ID, 2, 0); got != 5 {
		t.Fatalf("x2 = %d, want 5 (divide drains once the multiplier result is gone)", got)
	}
}

func TestWritebackDrainsALULatchBeforeMemory(t *testing.T) {
	cfg := &simconfig.Config{NumLanes: 1, CoalesceDepth: 1, DRAMLatency: 1, MemQueueCapacity: 4}
	wb, _, table, _, _, cu, in := testWriteback(cfg)

	w := table.Create(false, 1, 0)
	w.Suspended = true
	cu.Load(w.ID, false, []uint64{0x3000}, 4, 1, []int{0}, false)
	for i := 0; i < cfg.CoalesceDepth+cfg.DRAMLatency+1; i++ {
		cu.Tick()
	}

	in.Updated = true
	wb.Execute()

	if in.Updated {
		t.Fatal("the ALU latch should have drained, clearing Updated")
	}
	if !w.Suspended {
		t.Fatal("draining the ALU latch must not touch the still-suspended memory warp")
	}
}

func TestWritebackResumeReinsertsWarpWithUnfinishedLanes(t *testing.T) {
	cfg := &simconfig.Config{NumLanes: 2, MulLatency: 1, ResultQueueCap: 1}
	wb, _, table, mul, _, _, _ := testWriteback(cfg)

	w := table.Create(false, 2, 0)
	w.Suspended = true
	mul.Issue(w.ID, []int{0}, map[int]int32{0: 2}, map[int]int32{0: 3}, 1)
	mul.Tick()

	wb.Execute()

	if w.Suspended {
		t.Fatal("resume should clear Suspended")
	}
	if table.Get(w.ID) == nil {
		t.Fatal("a warp with unfinished lanes should stay in the table")
	}
}

func TestWritebackResumeRemovesFullyFinishedWarp(t *testing.T) {
	cfg := &simconfig.Config{NumLanes: 1, MulLatency: 1, ResultQueueCap: 1}
	wb, _, table, mul, _, _, _ := testWriteback(cfg)

	w := table.Create(false, 1, 0)
	w.Suspended = true
	w.Finished[0] = true
	mul.Issue(w.ID, []int{0}, map[int]int32{0: 2}, map[int]int32{0: 3}, 1)
	mul.Tick()

	wb.Execute()

	if table.Get(w.ID) != nil {
		t.Fatal("a warp with every lane finished should be removed from the table")
	}
}

func TestWritebackIsActiveReflectsEveryDrainSource(t *testing.T) {
	cfg := &simconfig.Config{NumLanes: 1, MulLatency: 5, DivLatency: 5, ResultQueueCap: 1, CoalesceDepth: 1, DRAMLatency: 1, MemQueueCapacity: 4}
	wb, _, table, mul, _, _, in := testWriteback(cfg)

	if wb.IsActive() {
		t.Fatal("a fresh writeback stage should be idle")
	}

	in.Updated = true
	if !wb.IsActive() {
		t.Fatal("a pending ALU latch should make the stage active")
	}
	in.Updated = false

	w := table.Create(false, 1, 0)
	mul.Issue(w.ID, []int{0}, map[int]int32{0: 1}, map[int]int32{0: 1}, 1)
	if !wb.IsActive() {
		t.Fatal("an in-flight multiply should make the stage active")
	}

	wbDiv, _, tableDiv, _, div, _, _ := testWriteback(cfg)
	wd := tableDiv.Create(false, 1, 0)
	div.Issue(wd.ID, []int{0}, map[int]int32{0: 1}, map[int]int32{0: 1}, 1, true, false)
	if !wbDiv.IsActive() {
		t.Fatal("an in-flight divide should make the stage active")
	}

	wbMem, _, _, _, _, cu, _ := testWriteback(cfg)
	cu.Load(0, false, []uint64{0x3000}, 4, 1, []int{0}, false)
	if !wbMem.IsActive() {
		t.Fatal("a queued memory request for this pipeline should make the stage active")
	}
}

func TestWritebackMemoryDrainSkipsRemovedWarp(t *testing.T) {
	cfg := &simconfig.Config{NumLanes: 1, CoalesceDepth: 1, DRAMLatency: 1, MemQueueCapacity: 4}
	wb, _, table, _, _, cu, _ := testWriteback(cfg)

	w := table.Create(false, 1, 0)
	w.Suspended = true
	cu.Load(w.ID, false, []uint64{0x3000}, 4, 1, []int{0}, false)
	for i := 0; i < cfg.CoalesceDepth+cfg.DRAMLatency+1; i++ {
		cu.Tick()
	}
	table.Remove(w.ID) // Simulate the warp vanishing out from under the resume path.

	// Must not panic even though the resumable warp id no longer resolves.
	wb.Execute()
}
