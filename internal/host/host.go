/*
 * Host-GPU control: kernel launch protocol, GPU-active status, UART
 * output buffer, and stat request/response.
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

// Package host implements the CSR-driven kernel-launch protocol between
// the CPU core and the SIMT core.
package host

import (
	"io"

	"github.com/rcornwell/simtgpu/internal/simconfig"
	"github.com/rcornwell/simtgpu/internal/stats"
	"github.com/rcornwell/simtgpu/internal/warp"
)

// Control owns the state the CPU manipulates through CSR writes to launch
// and monitor SIMT kernels.
type Control struct {
	cfg         *simconfig.Config
	table       *warp.Table
	insertWarp  func(*warp.Warp)
	stats       *stats.Stats
	uartOut     io.Writer // non-nil and used when cfg.Quick is set.
	uartBuf     []byte

	argPtr        uint32
	warpsPerBlock int
	gpuActive     bool
	statSelector  int
}

// New creates a host control unit. insertWarp is the SIMT scheduler's
// InsertWarp callback, called once per warp created at launch.
func New(cfg *simconfig.Config, table *warp.Table, insertWarp func(*warp.Warp), s *stats.Stats, uartOut io.Writer) *Control {
	return &Control{cfg: cfg, table: table, insertWarp: insertWarp, stats: s, uartOut: uartOut}
}

// SetWarpsPerBlock handles CSR 0x827.
func (c *Control) SetWarpsPerBlock(n int) {
	c.warpsPerBlock = n
	c.cfg.WarpsPerBlk = n
}

// SetArgPtr handles CSR 0x826.
func (c *Control) SetArgPtr(v uint32) { c.argPtr = v }

// ArgPtr handles CSR 0x831.
func (c *Control) ArgPtr() uint32 { return c.argPtr }

// IsGPUBusy handles the read side of CSR 0x820: the simulator inverts
// this at the call site (0x820 returns 1 when the GPU is NOT busy).
func (c *Control) IsGPUBusy() bool { return c.gpuActive }

// LaunchKernel handles CSR 0x823: creates cfg.NumWarps warps at entryPC,
// inserts them into the SIMT scheduler, and marks the GPU busy.
func (c *Control) LaunchKernel(entryPC uint64) {
	for i := 0; i < c.cfg.NumWarps; i++ {
		w := c.table.Create(false, c.cfg.NumLanes, entryPC)
		c.insertWarp(w)
	}
	c.gpuActive = true
}

// SetGPUActive is called by the top-level driver once the SIMT pipeline
// has drained all active stages after a launch.
func (c *Control) SetGPUActive(active bool) { c.gpuActive = active }

// UARTOut handles CSR 0x803: buffers a byte for the end-of-run dump, or
// streams it immediately in "quick" mode.
func (c *Control) UARTOut(b byte) {
	if b == 0 {
		return
	}
	if c.cfg.Quick && c.uartOut != nil {
		c.uartOut.Write([]byte{b})
		return
	}
	c.uartBuf = append(c.uartBuf, b)
}

// Buffer returns the accumulated UART output.
func (c *Control) Buffer() []byte { return c.uartBuf }

// RequestStat handles CSR 0x828.
func (c *Control) RequestStat(selector int) { c.statSelector = selector }

// ReadStat handles CSR 0x825.
func (c *Control) ReadStat() uint64 { return c.stats.Stat(c.statSelector) }
