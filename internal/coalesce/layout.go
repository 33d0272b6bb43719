/*
 * Address-space layout constants for stack interleaving and DRAM counting.
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

package coalesce

// Address-space layout: a top-of-space stack region subject to lane
// interleaving, and a shared-SRAM window excluded from DRAM counting.
const (
	// SharedSRAMBase..SIMTStackBase is the shared-SRAM window: accesses
	// here are never counted as DRAM traffic.
	SharedSRAMBase = 0x00002000
	SIMTStackBase  = 0xFF000000 // Top bits all set marks the stack region.
	CPUStackBase   = 0x00001000

	logLanes           = 5 // log2(32) — NUM_LANES.
	simtLogWarps       = 5 // Supports up to 32 concurrent warps.
	simtLogBytesPerStk = 10 // 1KiB of stack per lane.
)

// inStackRegion reports whether a virtual address falls in the per-
// thread stack window: the top bits identify the stack region.
func inStackRegion(addr uint64) bool {
	return addr >= SIMTStackBase
}

// translateStackAddress maps a virtual address into the backing scratchpad
// memory's physical address space, used for the actual load/store.
//
// CPU lanes land in a small fixed window; SIMT lane i of warp w owns a
// private 1KiB slice, so same-offset accesses of different lanes land
// 1KiB apart. DRAM counting uses interleaveAddr, not this translation.
func translateStackAddress(virt uint64, id uint32, isCPU bool, lane int) uint64 {
	if !inStackRegion(virt) {
		return virt
	}
	offset := virt - SIMTStackBase
	if isCPU {
		return CPUStackBase + offset
	}
	return SIMTStackBase +
		(uint64(id) << (logLanes + simtLogBytesPerStk)) +
		(uint64(lane) << simtLogBytesPerStk) +
		offset
}

// interleaveAddr is the SECOND, DIFFERENT transform applied only for
// coalescing/DRAM-accounting purposes: it lays lanes out so the low bits
// encode lane id, which is what lets the SameBlock coalescing rule
// recognise a stride-1-across-lanes stack access as one DRAM burst
// rather than 32.
func interleaveAddr(virt uint64, id uint32, lane int) uint64 {
	if !inStackRegion(virt) {
		return virt
	}
	offset := (virt - SIMTStackBase) >> 2 // word offset within the stack slice
	return (uint64(0x3) << 30) |
		(offset << (2 + logLanes + simtLogWarps)) |
		(uint64(id) << (2 + logLanes)) |
		(uint64(lane) << 2)
}
