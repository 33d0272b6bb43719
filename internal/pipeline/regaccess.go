/*
 * Register-access adapters routing the execute stage's register reads
 * and writes to either the SIMT register file or the CPU's degenerate
 * single-lane file.
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
	"github.com/rcornwell/simtgpu/internal/regfile"
	"github.com/rcornwell/simtgpu/internal/warp"
)

// RegisterAccess is the narrow view the execute stage needs of a
// register file, satisfied by either pipeline's own implementation.
// Every call carries the warp it concerns, since a SIMT execute stage
// serves a different warp each time it runs.
type RegisterAccess interface {
	Get(w *warp.Warp, lane, reg int) int32
	Set(w *warp.Warp, lane, reg int, val int32)
	GetCSR(w *warp.Warp, lane int, csr uint32) (int32, bool)
	SetCSR(w *warp.Warp, lane int, csr uint32, val int32)
}

// SIMTRegs adapts the shared regfile.File to RegisterAccess.
type SIMTRegs struct {
	File *regfile.File
}

func (r *SIMTRegs) Get(w *warp.Warp, lane, reg int) int32 { return r.File.Get(w.ID, reg, lane) }
func (r *SIMTRegs) Set(w *warp.Warp, lane, reg int, val int32) {
	r.File.Set(w.ID, w.Size, reg, lane, val)
}
func (r *SIMTRegs) GetCSR(w *warp.Warp, lane int, csr uint32) (int32, bool) {
	return r.File.GetCSR(w.ID, w.Size, lane, csr)
}
func (r *SIMTRegs) SetCSR(w *warp.Warp, lane int, csr uint32, val int32) {
	r.File.SetCSR(w.ID, w.Size, lane, csr, val)
}

// CPURegs adapts the degenerate single-lane regfile.Host to
// RegisterAccess; lane is always 0 and the warp argument is ignored since
// the CPU pipeline only ever runs its own one warp.
type CPURegs struct {
	Host *regfile.Host
}

func (r *CPURegs) Get(_ *warp.Warp, _, reg int) int32      { return r.Host.Get(reg) }
func (r *CPURegs) Set(_ *warp.Warp, _, reg int, val int32) { r.Host.Set(reg, val) }
func (r *CPURegs) GetCSR(_ *warp.Warp, _ int, csr uint32) (int32, bool) {
	return r.Host.GetCSR(csr)
}
func (r *CPURegs) SetCSR(_ *warp.Warp, _ int, csr uint32, val int32) {
	r.Host.SetCSR(csr, val)
}
