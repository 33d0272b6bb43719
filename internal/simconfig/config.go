/*
 * Explicit, non-singleton simulator configuration.
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

// Package simconfig holds every tunable knob as explicit, constructible
// state rather than a process-wide singleton: every component that needs
// a value here takes a *Config (or a copy) at construction time.
package simconfig

// Config is held by value or by reference by whichever stage needs it;
// nothing reads it through a package-level global.
type Config struct {
	Debug    bool // Enables verbose per-instruction logging.
	RegDump  bool // Dump register state on every writeback.
	CPUDebug bool // Separately enable tracing for the CPU pipeline.
	Quick    bool // Stream UART bytes immediately instead of buffering them.

	NumLanes     int // Lanes per SIMT warp.
	NumWarps     int // Total warps created by a kernel launch.
	WarpsPerBlk  int // 0 means "all warps form one block".

	MemQueueCapacity int // can_put() bound on the pending-request FIFO.
	CoalesceDepth    int // Fixed coalescing-pipeline depth.
	DRAMLatency      int // Additional latency per DRAM round trip.

	MulLatency       int // Multiplier pipeline latency, in cycles.
	DivLatency       int // Divider latency, in cycles.
	ResultQueueCap   int // Multiplier result-queue capacity.
}

// Default returns the reference model's stock timing parameters.
func Default() *Config {
	return &Config{
		NumLanes:         32,
		NumWarps:         4,
		WarpsPerBlk:      0,
		MemQueueCapacity: 16,
		CoalesceDepth:    4,
		DRAMLatency:      20,
		MulLatency:       4,
		DivLatency:       16,
		ResultQueueCap:   4,
	}
}
