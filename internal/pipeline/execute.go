/*
 * Execute / suspend stage: per-lane ALU, control-flow, memory, and
 * functional-unit dispatch, plus the retry/suspend bookkeeping that gives
 * every issued instruction at-most-once writeback semantics.
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
	"math/bits"

	"github.com/rcornwell/simtgpu/internal/coalesce"
	"github.com/rcornwell/simtgpu/internal/decode"
	"github.com/rcornwell/simtgpu/internal/funcunit"
	"github.com/rcornwell/simtgpu/internal/host"
	"github.com/rcornwell/simtgpu/internal/stats"
	"github.com/rcornwell/simtgpu/internal/warp"
)

// execResult is the three-way contract every instruction handler returns:
// whether it completed this cycle, whether a completion should be counted
// toward the instruction-count statistic, and whether a writeback-stage
// register commit is still owed.
type execResult struct {
	success       bool
	counted       bool
	writeRequired bool
}

func retry() execResult    { return execResult{} }
func done() execResult     { return execResult{success: true, counted: true} }
func writes() execResult   { return execResult{success: true, counted: true, writeRequired: true} }
func uncounted() execResult { return execResult{success: true} }

// CSR addresses the CPU pipeline uses to drive the SIMT core.
const (
	csrUART        = 0x803
	csrGPUBusy     = 0x820
	csrLaunch      = 0x823
	csrPoll        = 0x824
	csrStatRead    = 0x825
	csrArgPtr      = 0x826
	csrWarpsPerBlk = 0x827
	csrStatReq     = 0x828
	csrBarrier     = 0x830
	csrArgPtrHi    = 0x831
	csrHartID      = 0xF14
	csrCycleLo     = 0xC00
	csrCycleHi     = 0xC80
)

type pendingInstr struct {
	warp   *warp.Warp
	active []int
	instr  decode.Instruction
}

// Execute is the execute/suspend pipeline stage (the sixth of seven),
// shared in shape by the CPU and SIMT pipelines and parameterized by which
// register file and whether CSR control addresses are meaningful.
type Execute struct {
	in, out *Latch

	reg     RegisterAccess
	cu      *coalesce.Unit
	mul     *funcunit.MulUnit
	div     *funcunit.DivUnit
	hostCtl *host.Control // nil for the SIMT pipeline: only the CPU drives launch/poll/stat CSRs.
	stats   *stats.Stats
	cycles  func() uint64

	isCPU        bool
	numLanes     int
	maxInstrAddr uint64
	insertWarp   func(*warp.Warp)
	log          *slog.Logger
	debug        bool

	pending *pendingInstr
}

// NewExecute wires one execute stage. hostCtl may be nil for the SIMT
// pipeline, which never issues the host-control CSRs.
func NewExecute(in, out *Latch, reg RegisterAccess, cu *coalesce.Unit, mul *funcunit.MulUnit,
	div *funcunit.DivUnit, hostCtl *host.Control, s *stats.Stats, cycles func() uint64,
	isCPU bool, numLanes int, maxInstrAddr uint64, insertWarp func(*warp.Warp), log *slog.Logger) *Execute {
	return &Execute{
		in: in, out: out, reg: reg, cu: cu, mul: mul, div: div, hostCtl: hostCtl,
		stats: s, cycles: cycles, isCPU: isCPU, numLanes: numLanes, maxInstrAddr: maxInstrAddr,
		insertWarp: insertWarp, log: log,
	}
}

func (e *Execute) Execute() {
	var w *warp.Warp
	var active []int
	var instr decode.Instruction

	switch {
	case e.pending != nil:
		w, active, instr = e.pending.warp, e.pending.active, e.pending.instr
	case e.in.Updated:
		w, active, instr = e.in.Warp, e.in.Active, e.in.Instr
		e.in.Updated = false
	default:
		e.out.Updated = false
		return
	}

	if w.Suspended && !w.IsCPU {
		e.stats.IncGPUSusps()
	}

	wasRetrying := false
	for _, lane := range active {
		if w.Retrying[lane] {
			wasRetrying = true
			break
		}
	}

	res := e.dispatch(w, active, instr)

	if wasRetrying && !res.success && !w.IsCPU {
		e.stats.IncGPURetries()
	}

	if !res.success && !w.Suspended {
		if !wasRetrying && !w.IsCPU {
			e.stats.IncGPURetries()
		}
		for _, lane := range active {
			w.Retrying[lane] = true
		}
		e.pending = &pendingInstr{warp: w, active: active, instr: instr}
		e.out.Updated = false
		return
	}

	for _, lane := range active {
		w.Retrying[lane] = false
	}
	e.pending = nil

	if res.success && res.counted {
		if w.IsCPU {
			e.stats.IncCPUInstrs()
		} else {
			e.stats.IncGPUInstrs(len(active))
		}
	}

	if !w.Suspended && e.readyToReinsert(w) {
		e.insertWarp(w)
	}

	e.out.Updated = res.writeRequired
	e.out.Warp = w
	e.out.Active = active
	e.out.Instr = instr
}

func (e *Execute) readyToReinsert(w *warp.Warp) bool {
	for i := 0; i < w.Size; i++ {
		if !w.Finished[i] && w.PC[i] <= e.maxInstrAddr {
			return true
		}
	}
	return false
}

func (e *Execute) IsActive() bool  { return e.pending != nil || e.in.Updated }
func (e *Execute) SetDebug(d bool) { e.debug = d }

// dispatch performs the instruction's effect for every active lane and
// advances each lane's own PC, except where a control-flow handler below
// advances it explicitly to a branch target.
func (e *Execute) dispatch(w *warp.Warp, active []int, in decode.Instruction) execResult {
	switch in.Op {
	case decode.Add, decode.Sub, decode.And, decode.Or, decode.Xor,
		decode.Sll, decode.Srl, decode.Sra, decode.Slt, decode.Sltu:
		e.aluReg(w, active, in)
		return writes()
	case decode.Addi, decode.Andi, decode.Ori, decode.Xori,
		decode.Slli, decode.Srli, decode.Srai, decode.Slti, decode.Sltiu:
		e.aluImm(w, active, in)
		return writes()
	case decode.Lui:
		for _, lane := range active {
			e.reg.Set(w, lane, in.Rd, in.Imm)
		}
		e.advance(w, active, 4)
		return writes()
	case decode.Auipc:
		for _, lane := range active {
			e.reg.Set(w, lane, in.Rd, int32(w.PC[lane])+in.Imm)
		}
		e.advance(w, active, 4)
		return writes()
	case decode.Jal:
		for _, lane := range active {
			e.reg.Set(w, lane, in.Rd, int32(w.PC[lane])+4)
			w.PC[lane] = uint64(int64(w.PC[lane]) + int64(in.Imm))
		}
		return writes()
	case decode.Jalr:
		for _, lane := range active {
			target := uint64(e.reg.Get(w, lane, in.Rs1)+in.Imm) &^ 1
			ret := int32(w.PC[lane]) + 4
			if target == 0 {
				w.Finished[lane] = true
			}
			e.reg.Set(w, lane, in.Rd, ret)
			w.PC[lane] = target
		}
		return writes()
	case decode.Beq, decode.Bne, decode.Blt, decode.Bge, decode.Bltu, decode.Bgeu:
		e.branch(w, active, in)
		return done()
	case decode.Lw:
		return e.load(w, active, in, 4, false, in.Rd)
	case decode.Lh:
		return e.load(w, active, in, 2, false, in.Rd)
	case decode.Lhu:
		return e.load(w, active, in, 2, true, in.Rd)
	case decode.Lb:
		return e.load(w, active, in, 1, false, in.Rd)
	case decode.Lbu:
		return e.load(w, active, in, 1, true, in.Rd)
	case decode.Sw:
		return e.store(w, active, in, 4)
	case decode.Sh:
		return e.store(w, active, in, 2)
	case decode.Sb:
		return e.store(w, active, in, 1)
	case decode.AmoaddW:
		return e.amoadd(w, active, in)
	case decode.Mul:
		return e.issueMul(w, active, in)
	case decode.Div, decode.Divu, decode.Rem, decode.Remu:
		return e.issueDiv(w, active, in)
	case decode.Fence:
		return e.fence(w, active)
	case decode.NoclPush:
		for _, lane := range active {
			w.NestingLevel[lane]++
		}
		e.advance(w, active, 4)
		return done()
	case decode.NoclPop:
		// Applies to every non-finished lane, not just the active set: the
		// inactive siblings must also step down a nesting level and advance
		// their PC to reconverge with the active lanes on a later cycle.
		for lane := 0; lane < w.Size; lane++ {
			if w.Finished[lane] {
				continue
			}
			if w.NestingLevel[lane] > 0 {
				w.NestingLevel[lane]--
			}
			w.PC[lane] += 4
		}
		return done()
	case decode.CacheLineFlush:
		// True no-op: cache-line flushing has no observable model here.
		e.advance(w, active, 4)
		return done()
	case decode.Ecall, decode.Ebreak:
		for _, lane := range active {
			w.Finished[lane] = true
		}
		return done()
	case decode.Csrrw:
		return e.csrrw(w, active, in)
	default:
		e.log.Warn("unknown opcode, treating as no-op", "warp", w.ID, "raw", in.RawWord)
		e.advance(w, active, 4)
		return uncounted()
	}
}

func (e *Execute) advance(w *warp.Warp, active []int, n uint64) {
	for _, lane := range active {
		w.PC[lane] += n
	}
}

func (e *Execute) aluReg(w *warp.Warp, active []int, in decode.Instruction) {
	for _, lane := range active {
		a, b := e.reg.Get(w, lane, in.Rs1), e.reg.Get(w, lane, in.Rs2)
		e.reg.Set(w, lane, in.Rd, aluOp(in.Op, a, b))
	}
	e.advance(w, active, 4)
}

func (e *Execute) aluImm(w *warp.Warp, active []int, in decode.Instruction) {
	for _, lane := range active {
		a := e.reg.Get(w, lane, in.Rs1)
		e.reg.Set(w, lane, in.Rd, aluOp(immALUOp(in.Op), a, in.Imm))
	}
	e.advance(w, active, 4)
}

// immALUOp maps an I-type opcode onto the R-type opcode that shares its
// semantics, so aluOp needs only one table.
func immALUOp(op decode.Op) decode.Op {
	switch op {
	case decode.Addi:
		return decode.Add
	case decode.Andi:
		return decode.And
	case decode.Ori:
		return decode.Or
	case decode.Xori:
		return decode.Xor
	case decode.Slli:
		return decode.Sll
	case decode.Srli:
		return decode.Srl
	case decode.Srai:
		return decode.Sra
	case decode.Slti:
		return decode.Slt
	case decode.Sltiu:
		return decode.Sltu
	}
	return decode.Unknown
}

func aluOp(op decode.Op, a, b int32) int32 {
	switch op {
	case decode.Add:
		return a + b
	case decode.Sub:
		return a - b
	case decode.And:
		return a & b
	case decode.Or:
		return a | b
	case decode.Xor:
		return a ^ b
	case decode.Sll:
		return a << (uint32(b) & 0x1F)
	case decode.Srl:
		return int32(uint32(a) >> (uint32(b) & 0x1F))
	case decode.Sra:
		return a >> (uint32(b) & 0x1F)
	case decode.Slt:
		if a < b {
			return 1
		}
		return 0
	case decode.Sltu:
		if uint32(a) < uint32(b) {
			return 1
		}
		return 0
	}
	return 0
}

func (e *Execute) branch(w *warp.Warp, active []int, in decode.Instruction) {
	for _, lane := range active {
		a, b := e.reg.Get(w, lane, in.Rs1), e.reg.Get(w, lane, in.Rs2)
		taken := false
		switch in.Op {
		case decode.Beq:
			taken = a == b
		case decode.Bne:
			taken = a != b
		case decode.Blt:
			taken = a < b
		case decode.Bge:
			taken = a >= b
		case decode.Bltu:
			taken = uint32(a) < uint32(b)
		case decode.Bgeu:
			taken = uint32(a) >= uint32(b)
		}
		if taken {
			w.PC[lane] = uint64(int64(w.PC[lane]) + int64(in.Imm))
		} else {
			w.PC[lane] += 4
		}
	}
}

// load issues a coalesced load request; the warp suspends until the
// coalescing unit delivers its result through the writeback stage.
func (e *Execute) load(w *warp.Warp, active []int, in decode.Instruction, size int, zext bool, rd int) execResult {
	if !e.cu.CanPut() {
		return retry()
	}
	addrs := make([]uint64, w.Size)
	for _, lane := range active {
		base := uint64(uint32(e.reg.Get(w, lane, in.Rs1))) // zero-extend from 32-bit
		addrs[lane] = base + uint64(int64(in.Imm))
	}
	e.cu.Load(w.ID, w.IsCPU, addrs, size, rd, active, zext)
	w.Suspended = true
	e.advance(w, active, 4)
	return done()
}

func (e *Execute) store(w *warp.Warp, active []int, in decode.Instruction, size int) execResult {
	if !e.cu.CanPut() {
		return retry()
	}
	addrs := make([]uint64, w.Size)
	vals := make([]int32, w.Size)
	for _, lane := range active {
		base := uint64(uint32(e.reg.Get(w, lane, in.Rs1))) // zero-extend from 32-bit
		addrs[lane] = base + uint64(int64(in.Imm))
		vals[lane] = e.reg.Get(w, lane, in.Rs2)
	}
	e.cu.Store(w.ID, w.IsCPU, addrs, size, vals, active)
	w.Suspended = true
	e.advance(w, active, 4)
	return done()
}

func (e *Execute) amoadd(w *warp.Warp, active []int, in decode.Instruction) execResult {
	if !e.cu.CanPut() {
		return retry()
	}
	addrs := make([]uint64, w.Size)
	adds := make([]int32, w.Size)
	for _, lane := range active {
		addrs[lane] = uint64(uint32(e.reg.Get(w, lane, in.Rs1))) // zero-extend from 32-bit
		adds[lane] = e.reg.Get(w, lane, in.Rs2)
	}
	e.cu.AtomicAdd(w.ID, w.IsCPU, addrs, 4, in.Rd, adds, active)
	w.Suspended = true
	e.advance(w, active, 4)
	return done()
}

func (e *Execute) fence(w *warp.Warp, active []int) execResult {
	if !e.cu.CanPut() {
		return retry()
	}
	e.cu.Fence(w.ID, w.IsCPU)
	w.Suspended = true
	e.advance(w, active, 4)
	return done()
}

func (e *Execute) issueMul(w *warp.Warp, active []int, in decode.Instruction) execResult {
	rs1 := make(map[int]int32, len(active))
	rs2 := make(map[int]int32, len(active))
	for _, lane := range active {
		rs1[lane] = e.reg.Get(w, lane, in.Rs1)
		rs2[lane] = e.reg.Get(w, lane, in.Rs2)
	}
	if !e.mul.Issue(w.ID, active, rs1, rs2, in.Rd) {
		return retry()
	}
	w.Suspended = true
	e.advance(w, active, 4)
	return done()
}

func (e *Execute) issueDiv(w *warp.Warp, active []int, in decode.Instruction) execResult {
	rs1 := make(map[int]int32, len(active))
	rs2 := make(map[int]int32, len(active))
	for _, lane := range active {
		rs1[lane] = e.reg.Get(w, lane, in.Rs1)
		rs2[lane] = e.reg.Get(w, lane, in.Rs2)
	}
	isSigned := in.Op == decode.Div || in.Op == decode.Rem
	getRem := in.Op == decode.Rem || in.Op == decode.Remu
	if !e.div.Issue(w.ID, active, rs1, rs2, in.Rd, isSigned, getRem) {
		return retry()
	}
	w.Suspended = true
	e.advance(w, active, 4)
	return done()
}

// csrrw implements the full set of CSRRW special addresses (the CPU-only
// control-plane ones, and the ones every lane may read regardless of
// pipeline).
func (e *Execute) csrrw(w *warp.Warp, active []int, in decode.Instruction) execResult {
	lane := active[0]
	val := e.reg.Get(w, lane, in.Rs1)

	switch in.Csr {
	case csrHartID:
		shift := uint(bits.Len(uint(e.numLanes)) - 1)
		for _, l := range active {
			e.reg.Set(w, l, in.Rd, int32((uint32(w.ID)<<shift)|uint32(l)))
		}
	case csrCycleLo:
		e.reg.Set(w, lane, in.Rd, int32(uint32(e.cycles())))
	case csrCycleHi:
		e.reg.Set(w, lane, in.Rd, int32(uint32(e.cycles()>>32)))
	case csrUART:
		if e.hostCtl != nil {
			e.hostCtl.UARTOut(byte(val))
		}
		e.reg.Set(w, lane, in.Rd, 0)
	case csrGPUBusy:
		result := int32(0)
		if e.hostCtl != nil && !e.hostCtl.IsGPUBusy() {
			result = 1
		}
		e.reg.Set(w, lane, in.Rd, result)
	case csrLaunch:
		if e.hostCtl != nil {
			e.hostCtl.LaunchKernel(uint64(uint32(val)))
		}
		e.reg.Set(w, lane, in.Rd, 0)
	case csrPoll:
		result := int32(0)
		if e.hostCtl != nil && e.hostCtl.IsGPUBusy() {
			result = 1
		}
		e.reg.Set(w, lane, in.Rd, result)
	case csrStatReq:
		if e.hostCtl != nil {
			e.hostCtl.RequestStat(int(val))
		}
		e.reg.Set(w, lane, in.Rd, 0)
	case csrStatRead:
		result := int32(0)
		if e.hostCtl != nil {
			result = int32(uint32(e.hostCtl.ReadStat()))
		}
		e.reg.Set(w, lane, in.Rd, result)
	case csrArgPtr:
		if e.hostCtl != nil {
			e.hostCtl.SetArgPtr(uint32(val))
		}
		e.reg.Set(w, lane, in.Rd, 0)
	case csrArgPtrHi:
		result := int32(0)
		if e.hostCtl != nil {
			result = int32(e.hostCtl.ArgPtr())
		}
		e.reg.Set(w, lane, in.Rd, result)
	case csrWarpsPerBlk:
		if e.hostCtl != nil {
			e.hostCtl.SetWarpsPerBlock(int(val))
		}
		e.reg.Set(w, lane, in.Rd, 0)
	case csrBarrier:
		if val != 0 {
			for i := range w.Finished {
				w.Finished[i] = true
			}
		} else {
			if w.Diverged() {
				e.log.Warn("barrier entered from diverged lanes", "warp", w.ID)
			}
			w.InBarrier = true
		}
		e.reg.Set(w, lane, in.Rd, 0)
	default:
		e.log.Warn("unrecognized CSR, ignoring write", "csr", in.Csr, "warp", w.ID)
		e.reg.Set(w, lane, in.Rd, 0)
	}
	if in.Csr != csrHartID {
		v := e.reg.Get(w, lane, in.Rd)
		for _, l := range active[1:] {
			e.reg.Set(w, l, in.Rd, v)
		}
	}

	e.advance(w, active, 4)
	return done()
}
