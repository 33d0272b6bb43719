/*
 * Pipelined multiplier and sequential divider/remainder functional units.
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

// Package funcunit implements the long-latency arithmetic units: a
// pipelined multiplier and a sequential divider/remainder unit.
package funcunit

import "github.com/rcornwell/simtgpu/internal/warp"

// MulOp is one multiply operation travelling through the multiplier's
// fixed-latency pipeline.
type MulOp struct {
	Warp           warp.ID
	ActiveThreads  []int
	Rd             int
	Results        map[int]int32 // lane -> product, precomputed at issue.
	cyclesLeft     int
}

// MulUnit is a bounded FIFO pipeline: issue rejects once the result queue
// is at capacity.
type MulUnit struct {
	latency    int
	resultCap  int
	pipeline   []*MulOp
	resultQ    []*MulOp
}

// NewMulUnit creates a multiplier with the given fixed latency and result
// queue capacity.
func NewMulUnit(latency, resultCap int) *MulUnit {
	return &MulUnit{latency: latency, resultCap: resultCap}
}

// Issue precomputes the per-lane products and admits the operation to the
// pipeline. Returns false (reject, caller must retry) if the result queue
// is already at capacity.
func (u *MulUnit) Issue(id warp.ID, active []int, rs1, rs2 map[int]int32, rd int) bool {
	if len(u.resultQ) >= u.resultCap {
		return false
	}
	op := &MulOp{Warp: id, ActiveThreads: append([]int(nil), active...), Rd: rd, Results: make(map[int]int32), cyclesLeft: u.latency}
	for _, lane := range active {
		a, aok := rs1[lane]
		b, bok := rs2[lane]
		if aok && bok {
			op.Results[lane] = a * b
		}
	}
	u.pipeline = append(u.pipeline, op)
	return true
}

// IsBusy reports whether the unit has any in-flight or completed-but-
// undrained operation.
func (u *MulUnit) IsBusy() bool {
	return len(u.pipeline) > 0 || len(u.resultQ) > 0
}

// PeekCompleted returns the warp at the front of the result queue without
// draining it, or false if the queue is empty.
func (u *MulUnit) PeekCompleted() (warp.ID, bool) {
	if len(u.resultQ) == 0 {
		return 0, false
	}
	return u.resultQ[0].Warp, true
}

// GetCompleted pops and returns the front-of-queue completed operation.
func (u *MulUnit) GetCompleted() *MulOp {
	if len(u.resultQ) == 0 {
		return nil
	}
	op := u.resultQ[0]
	u.resultQ = u.resultQ[1:]
	return op
}

// Tick advances every in-flight operation's countdown by one cycle,
// moving completions into the result queue in arrival order.
func (u *MulUnit) Tick() {
	next := u.pipeline[:0]
	for _, op := range u.pipeline {
		if op.cyclesLeft > 0 {
			op.cyclesLeft--
		}
		if op.cyclesLeft == 0 {
			if len(u.resultQ) < u.resultCap {
				u.resultQ = append(u.resultQ, op)
			} else {
				// Result queue is momentarily full; stay in pipeline.
				next = append(next, op)
			}
		} else {
			next = append(next, op)
		}
	}
	u.pipeline = next
}

// DivOp is one divide/remainder operation. Only one is ever in flight.
type DivOp struct {
	Warp          warp.ID
	ActiveThreads []int
	Rd            int
	IsSigned      bool
	GetRemainder  bool
	Results       map[int]int32
	cyclesLeft    int
}

// DivUnit is a sequential, single-in-flight divider.
type DivUnit struct {
	latency   int
	current   *DivOp
	completed map[warp.ID]*DivOp
}

// NewDivUnit creates a divider with the given fixed latency.
func NewDivUnit(latency int) *DivUnit {
	return &DivUnit{latency: latency, completed: make(map[warp.ID]*DivOp)}
}

// Issue precomputes the per-lane quotient or remainder applying RV32M's
// division-by-zero and signed-overflow rules, and admits the operation.
// Returns false if a divide is already in flight.
func (u *DivUnit) Issue(id warp.ID, active []int, rs1, rs2 map[int]int32, rd int, isSigned, getRemainder bool) bool {
	if u.current != nil {
		return false
	}
	op := &DivOp{
		Warp: id, ActiveThreads: append([]int(nil), active...), Rd: rd,
		IsSigned: isSigned, GetRemainder: getRemainder,
		Results: make(map[int]int32), cyclesLeft: u.latency,
	}
	for _, lane := range active {
		a, aok := rs1[lane]
		b, bok := rs2[lane]
		if !aok || !bok {
			continue
		}
		op.Results[lane] = divRem(a, b, isSigned, getRemainder)
	}
	u.current = op
	return true
}

func divRem(a, b int32, isSigned, getRemainder bool) int32 {
	if isSigned {
		if b == 0 {
			if getRemainder {
				return a
			}
			return -1
		}
		if a == -0x80000000 && b == -1 {
			if getRemainder {
				return 0
			}
			return -0x80000000
		}
		if getRemainder {
			return a % b
		}
		return a / b
	}
	ua, ub := uint32(a), uint32(b)
	if ub == 0 {
		if getRemainder {
			return int32(ua)
		}
		return -1
	}
	if getRemainder {
		return int32(ua % ub)
	}
	return int32(ua / ub)
}

// IsBusy reports whether an operation is in flight or waiting to be
// drained by the writeback stage.
func (u *DivUnit) IsBusy() bool {
	return u.current != nil || len(u.completed) > 0
}

// PeekCompleted returns an arbitrary completed warp id without draining
// it, or false if none are ready.
func (u *DivUnit) PeekCompleted() (warp.ID, bool) {
	for id := range u.completed {
		return id, true
	}
	return 0, false
}

// GetCompleted pops and returns the completed operation for id, or nil.
func (u *DivUnit) GetCompleted(id warp.ID) *DivOp {
	op, ok := u.completed[id]
	if !ok {
		return nil
	}
	delete(u.completed, id)
	return op
}

// Tick advances the in-flight operation's countdown, moving it to the
// completed map on reaching zero — which frees the single slot for a new
// Issue even before the result has been drained.
func (u *DivUnit) Tick() {
	if u.current == nil {
		return
	}
	if u.current.cyclesLeft > 0 {
		u.current.cyclesLeft--
	}
	if u.current.cyclesLeft == 0 {
		u.completed[u.current.Warp] = u.current
		u.current = nil
	}
}
