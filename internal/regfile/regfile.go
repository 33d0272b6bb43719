/*
 * Register file for the SIMT and CPU pipelines.
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

// Package regfile implements the per-warp, per-lane integer register state
// and per-(warp,lane) CSR table.
package regfile

import "github.com/rcornwell/simtgpu/internal/warp"

const numRegs = 32

// File is the dense per-warp register table: registers[warp][reg][lane].
// Entries are lazily allocated the first time a warp is touched.
type File struct {
	regs map[warp.ID][numRegs][]int32
	csr  map[warp.ID][]map[uint32]int32
}

// New creates an empty register file.
func New() *File {
	return &File{
		regs: make(map[warp.ID][numRegs][]int32),
		csr:  make(map[warp.ID][]map[uint32]int32),
	}
}

func (f *File) ensure(id warp.ID, size int) {
	if _, ok := f.regs[id]; !ok {
		var regs [numRegs][]int32
		for i := range regs {
			regs[i] = make([]int32, size)
		}
		f.regs[id] = regs
	}
	if _, ok := f.csr[id]; !ok {
		f.csr[id] = make([]map[uint32]int32, size)
		for i := range f.csr[id] {
			f.csr[id][i] = make(map[uint32]int32)
		}
	}
}

// Get reads register reg, lane of warp id. Unallocated warps read 0.
func (f *File) Get(id warp.ID, reg int, lane int) int32 {
	regs, ok := f.regs[id]
	if !ok {
		return 0
	}
	if reg < 0 || reg >= numRegs {
		return 0
	}
	return regs[reg][lane]
}

// Set writes register reg, lane of warp id, sized size. Writes to x0 are
// silently dropped: x0 always reads back as the architectural zero.
func (f *File) Set(id warp.ID, size int, reg int, lane int, val int32) {
	if reg == 0 {
		return
	}
	f.ensure(id, size)
	f.regs[id][reg][lane] = val
}

// GetCSR reads a CSR, distinguishing "never written" from "written as
// zero" via the ok return.
func (f *File) GetCSR(id warp.ID, size int, lane int, csr uint32) (int32, bool) {
	lanes, ok := f.csr[id]
	if !ok || lane >= len(lanes) {
		return 0, false
	}
	v, ok := lanes[lane][csr]
	return v, ok
}

// SetCSR writes a CSR for one lane of one warp.
func (f *File) SetCSR(id warp.ID, size int, lane int, csr uint32, val int32) {
	f.ensure(id, size)
	f.csr[id][lane][csr] = val
}

// Host is the CPU pipeline's degenerate register file: it stores only a
// single lane's worth of integer registers and forwards all CSR traffic
// to the shared SIMT file, keyed by its own warp id.
type Host struct {
	simt  *File
	warp  warp.ID
	regs  [numRegs]int32
}

// NewHost creates a CPU register file that forwards CSR access to simt
// under the CPU pipeline's warp id.
func NewHost(simt *File, cpuWarp warp.ID) *Host {
	return &Host{simt: simt, warp: cpuWarp}
}

// Get reads a CPU register.
func (h *Host) Get(reg int) int32 {
	if reg < 0 || reg >= numRegs {
		return 0
	}
	return h.regs[reg]
}

// Set writes a CPU register; x0 is dropped.
func (h *Host) Set(reg int, val int32) {
	if reg == 0 || reg >= numRegs {
		return
	}
	h.regs[reg] = val
}

// GetCSR forwards to the shared SIMT register file's CSR table.
func (h *Host) GetCSR(csr uint32) (int32, bool) {
	return h.simt.GetCSR(h.warp, 1, 0, csr)
}

// SetCSR forwards to the shared SIMT register file's CSR table.
func (h *Host) SetCSR(csr uint32, val int32) {
	h.simt.SetCSR(h.warp, 1, 0, csr, val)
}
