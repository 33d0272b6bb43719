/*
 * Writeback / resume stage: drains one completed operation per cycle in
 * strict priority order and resumes the owning warp.
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

	"github.com/rcornwell/simtgpu/internal/coalesce"
	"github.com/rcornwell/simtgpu/internal/funcunit"
	"github.com/rcornwell/simtgpu/internal/simconfig"
	"github.com/rcornwell/simtgpu/internal/warp"
)

// Writeback is the seventh and final pipeline stage. Every cycle it tries,
// in order, a completed multiply, a completed divide, an ordinary ALU/CSR
// writeback from the execute stage's latch, and a completed memory
// resumption — committing at most one of these, since they all share the
// same register-file write port.
type Writeback struct {
	in *Latch // execute stage's output latch.

	reg        RegisterAccess
	table      *warp.Table
	mul        *funcunit.MulUnit
	div        *funcunit.DivUnit
	cu         *coalesce.Unit
	insertWarp func(*warp.Warp)
	isCPU      bool
	cfg        *simconfig.Config
	log        *slog.Logger
	debug      bool
}

// NewWriteback wires the final stage to the units it drains. When
// cfg.RegDump is set, every register write this stage commits (multiply,
// divide and memory results) is logged; ALU/CSR results, written by the
// execute stage, are not.
func NewWriteback(in *Latch, reg RegisterAccess, table *warp.Table, mul *funcunit.MulUnit,
	div *funcunit.DivUnit, cu *coalesce.Unit, insertWarp func(*warp.Warp), isCPU bool,
	cfg *simconfig.Config, log *slog.Logger) *Writeback {
	return &Writeback{in: in, reg: reg, table: table, mul: mul, div: div, cu: cu, insertWarp: insertWarp, isCPU: isCPU, cfg: cfg, log: log}
}

func (s *Writeback) dumpReg(id warp.ID, lane, reg int, val int32) {
	if s.cfg != nil && s.cfg.RegDump {
		s.log.Debug("regwrite", "warp", id, "lane", lane, "reg", reg, "val", val)
	}
}

func (s *Writeback) Execute() {
	if s.drainMul() {
		return
	}
	if s.drainDiv() {
		return
	}
	if s.drainALU() {
		return
	}
	s.drainMemory()
}

func (s *Writeback) drainMul() bool {
	id, ok := s.mul.PeekCompleted()
	if !ok {
		return false
	}
	w := s.table.Get(id)
	if w == nil {
		s.mul.GetCompleted()
		return true
	}
	op := s.mul.GetCompleted()
	for lane, v := range op.Results {
		s.reg.Set(w, lane, op.Rd, v)
		s.dumpReg(w.ID, lane, op.Rd, v)
	}
	s.resume(w)
	return true
}

func (s *Writeback) drainDiv() bool {
	id, ok := s.div.PeekCompleted()
	if !ok {
		return false
	}
	w := s.table.Get(id)
	if w == nil {
		s.div.GetCompleted(id)
		return true
	}
	op := s.div.GetCompleted(id)
	for lane, v := range op.Results {
		s.reg.Set(w, lane, op.Rd, v)
		s.dumpReg(w.ID, lane, op.Rd, v)
	}
	s.resume(w)
	return true
}

// drainALU commits the result latched by the execute stage for an
// ALU/control-flow/CSR instruction. The register write already happened in
// the execute stage for these ops (their values don't depend on a
// multi-cycle unit), so this branch exists purely to clear the latch and
// keep a consistent one-write-per-cycle accounting story; Updated tracks
// whether a write is still owed.
func (s *Writeback) drainALU() bool {
	if !s.in.Updated {
		return false
	}
	s.in.Updated = false
	return true
}

func (s *Writeback) drainMemory() bool {
	id, ok := s.cu.GetResumableWarpForPipeline(s.isCPU)
	if !ok {
		return false
	}
	w := s.table.Get(id)
	if w == nil {
		return true
	}
	if rd, values, ok := s.cu.GetLoadResults(id, s.isCPU); ok {
		for lane, v := range values {
			s.reg.Set(w, lane, rd, v)
			s.dumpReg(w.ID, lane, rd, v)
		}
	}
	s.resume(w)
	return true
}

// resume clears a warp's suspension and reinserts it into the scheduler if
// it still has unfinished lanes.
func (s *Writeback) resume(w *warp.Warp) {
	w.Suspended = false
	if w.AnyUnfinished() {
		s.insertWarp(w)
	} else {
		s.table.Remove(w.ID)
	}
}

func (s *Writeback) IsActive() bool {
	return s.in.Updated || s.mul.IsBusy() || s.div.IsBusy() || s.cu.IsBusyForPipeline(s.isCPU)
}

func (s *Writeback) SetDebug(d bool) { s.debug = d }
