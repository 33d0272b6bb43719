/*
 * Instruction fetch, and the operand-fetch / operand-latch pass-through
 * stages.
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
	"github.com/rcornwell/simtgpu/internal/decode"
	"github.com/rcornwell/simtgpu/internal/instrmem"
)

// Fetch reads 4 bytes from instruction memory at the active lanes' shared
// PC and hands the decoded instruction onward.
type Fetch struct {
	in, out *Latch
	mem     *instrmem.Memory
	debug   bool
}

// NewFetch wires the fetch stage to an instruction memory.
func NewFetch(in, out *Latch, mem *instrmem.Memory) *Fetch {
	return &Fetch{in: in, out: out, mem: mem}
}

func (s *Fetch) Execute() {
	if !s.in.Updated {
		s.out.Updated = false
		return
	}
	var pc uint64
	if len(s.in.Active) > 0 {
		pc = s.in.Warp.PC[s.in.Active[0]]
	}
	s.out.Updated = true
	s.out.Warp = s.in.Warp
	s.out.Active = s.in.Active
	s.out.Instr = decode.Decode(s.mem.Fetch4(pc))
}

func (s *Fetch) IsActive() bool  { return s.in.Updated }
func (s *Fetch) SetDebug(d bool) { s.debug = d }

// PassThrough models a stage that exists purely for a hardware latency
// (operand-fetch, operand-latch) and carries its input to its output
// unchanged.
type PassThrough struct {
	in, out *Latch
	debug   bool
}

// NewPassThrough wires a latency-only pass-through stage.
func NewPassThrough(in, out *Latch) *PassThrough {
	return &PassThrough{in: in, out: out}
}

func (s *PassThrough) Execute() {
	s.out.Updated = s.in.Updated
	s.out.Warp = s.in.Warp
	s.out.Active = s.in.Active
	s.out.Instr = s.in.Instr
}

func (s *PassThrough) IsActive() bool  { return s.in.Updated }
func (s *PassThrough) SetDebug(d bool) { s.debug = d }
