/*
 * Two-substage fair warp scheduler and barrier-release unit.
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

package pipeline

import (
	"log/slog"

	"github.com/rcornwell/simtgpu/internal/simconfig"
	"github.com/rcornwell/simtgpu/internal/warp"
)

// firstHot isolates the lowest set bit of x.
func firstHot(x uint32) uint32 {
	return x & (^x + 1)
}

// fairSchedule implements the fair scheduler: prefer an available warp
// that hasn't run since the history bitmask was last satisfied, falling
// back to bounded round-robin otherwise.
func fairSchedule(history, avail uint32) (chosen, newHistory uint32) {
	if first := firstHot(avail &^ history); first != 0 {
		return first, history | first
	}
	second := firstHot(avail)
	return second, second
}

func bitIndex(x uint32) int {
	for i := 0; i < 32; i++ {
		if x&(1<<uint(i)) != 0 {
			return i
		}
	}
	return -1
}

// Scheduler is the warp-scheduler stage: a two-substage choose/emit
// pipeline with a single-slot buffer between them, plus the barrier
// release unit.
type Scheduler struct {
	table *warp.Table
	cfg   *simconfig.Config
	log   *slog.Logger
	debug bool

	out *Latch

	inbox  []warp.ID
	ready  []warp.ID
	history uint32

	bufferValid bool
	buffer      warp.ID

	barrierState int // 0=snapshot, 1=test, 2=shift
	snapshot     uint32
	basePos      int
	scanPos      int
	blockLen     int
	releasable   bool
}

// NewScheduler creates a scheduler stage writing its chosen warp into out.
func NewScheduler(table *warp.Table, cfg *simconfig.Config, log *slog.Logger, out *Latch) *Scheduler {
	return &Scheduler{table: table, cfg: cfg, log: log, out: out}
}

// InsertWarp is the callback handed to execute/writeback stages so they
// can push a warp back into the scheduler's inbox without holding a
// scheduler reference directly.
func (s *Scheduler) InsertWarp(w *warp.Warp) {
	s.inbox = append(s.inbox, w.ID)
}

// Execute runs the emit substage (output whatever was buffered last
// cycle) before the choose substage, so a warp chosen this cycle isn't
// emitted until the next one.
func (s *Scheduler) Execute() {
	if s.bufferValid {
		w := s.table.Get(s.buffer)
		s.out.Updated = w != nil
		s.out.Warp = w
		s.bufferValid = false
	} else {
		s.out.Updated = false
	}

	s.ready = append(s.ready, s.inbox...)
	s.inbox = s.inbox[:0]

	s.runBarrierRelease()

	avail := uint32(0)
	for _, id := range s.ready {
		if w := s.table.Get(id); w != nil && w.Ready() {
			avail |= 1 << uint32(id)
		}
	}
	if avail == 0 {
		return
	}
	chosenBit, newHist := fairSchedule(s.history, avail)
	s.history = newHist
	id := warp.ID(bitIndex(chosenBit))
	s.removeReady(id)
	s.buffer = id
	s.bufferValid = true
}

func (s *Scheduler) removeReady(id warp.ID) {
	for i, r := range s.ready {
		if r == id {
			s.ready = append(s.ready[:i], s.ready[i+1:]...)
			return
		}
	}
}

// runBarrierRelease drives the three-state barrier release unit,
// parameterised by warps_per_block (0 means "all warps form one block").
// State 0 snapshots the in-barrier bit-set; state 1 tests
// whether the current block's bits are all set; state 2 walks one block
// worth of warps, clearing InBarrier on each if the block tested
// releasable, then returns to state 1 for the next block (or state 0 once
// every live warp has been scanned).
func (s *Scheduler) runBarrierRelease() {
	switch s.barrierState {
	case 0:
		s.snapshot = s.barrierBitmask()
		s.basePos = 0
		s.barrierState = 1
	case 1:
		blockSize := s.cfg.WarpsPerBlk
		if blockSize <= 0 {
			blockSize = 32
		}
		s.blockLen = blockSize
		blockMask := uint32(1)<<uint(blockSize) - 1
		bits := (s.snapshot >> uint(s.basePos)) & blockMask
		s.releasable = bits == blockMask
		s.scanPos = 0
		s.barrierState = 2
	case 2:
		pos := s.basePos + s.scanPos
		if s.releasable && pos < 32 && s.snapshot&(1<<uint(pos)) != 0 {
			s.releaseWarp(warp.ID(pos))
		}
		s.scanPos++
		if s.scanPos >= s.blockLen {
			s.basePos += s.blockLen
			s.barrierState = 1
		}
		if s.basePos >= 32 || s.snapshot>>uint(s.basePos) == 0 {
			s.barrierState = 0
		}
	}
}

// barrierBitmask snapshots which warps are currently waiting at a
// barrier, bit-indexed by warp id.
func (s *Scheduler) barrierBitmask() uint32 {
	var mask uint32
	for _, w := range s.table.All() {
		if w.InBarrier {
			mask |= 1 << uint32(w.ID)
		}
	}
	return mask
}

// releaseWarp clears InBarrier on a single warp.
func (s *Scheduler) releaseWarp(id warp.ID) {
	if w := s.table.Get(id); w != nil && w.InBarrier {
		w.InBarrier = false
		s.log.Debug("barrier released", "warp", id)
	}
}

// IsActive reports whether the scheduler still has queued or buffered
// work.
func (s *Scheduler) IsActive() bool {
	return len(s.ready) > 0 || len(s.inbox) > 0 || s.bufferValid
}

// SetDebug enables verbose tracing.
func (s *Scheduler) SetDebug(enabled bool) { s.debug = enabled }
