/*
 * Explicit (non-singleton) simulation statistics.
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

// Package stats gives every component that reports a statistic an
// explicit, constructible record instead of a global singleton: each
// takes a *Stats at construction time.
package stats

import "fmt"

// Stats accumulates per-cycle counters for both pipelines.
type Stats struct {
	GPUCycles   uint64
	GPUInstrs   uint64
	GPUDRAMAccs uint64
	GPURetries  uint64
	GPUSusps    uint64

	CPUInstrs   uint64
	CPUDRAMAccs uint64

	// GPUActiveCPUDRAM counts CPU-side DRAM accesses that happen while the
	// SIMT pipeline is still active, contending for the same DRAM bursts.
	GPUActiveCPUDRAM uint64

	gpuPipelineActive bool
}

// New returns a zeroed statistics record.
func New() *Stats { return &Stats{} }

func (s *Stats) IncGPUCycle()            { s.GPUCycles++ }
func (s *Stats) IncGPUInstrs(n int)      { s.GPUInstrs += uint64(n) }
func (s *Stats) IncCPUInstrs()           { s.CPUInstrs++ }
func (s *Stats) IncGPURetries()          { s.GPURetries++ }
func (s *Stats) IncGPUSusps()            { s.GPUSusps++ }
func (s *Stats) IncGPUDRAM(n int)        { s.GPUDRAMAccs += uint64(n) }
func (s *Stats) IncCPUDRAM(n int)        { s.CPUDRAMAccs += uint64(n) }
func (s *Stats) IncGPUActiveCPUDRAM(n int) { s.GPUActiveCPUDRAM += uint64(n) }

// SetGPUPipelineActive records whether the SIMT pipeline is currently
// active. GPUActiveCPUDRAM attribution does not read this flag; the
// coalescing unit uses its own gpuActive probe.
func (s *Stats) SetGPUPipelineActive(active bool) { s.gpuPipelineActive = active }

// GPUPipelineActive reports the last value set by SetGPUPipelineActive.
func (s *Stats) GPUPipelineActive() bool { return s.gpuPipelineActive }

// Stat selects one counter by the numbering used by CSR 0x828/0x825:
// 0=cycles, 1=instructions, 5=retries, 6=suspension bubbles, 9=DRAM
// accesses.
func (s *Stats) Stat(selector int) uint64 {
	switch selector {
	case 0:
		return s.GPUCycles
	case 1:
		return s.GPUInstrs
	case 5:
		return s.GPURetries
	case 6:
		return s.GPUSusps
	case 9:
		return s.GPUDRAMAccs
	default:
		return 0
	}
}

// Human renders the "[Statistics]" block.
func (s *Stats) Human() string {
	ipc := 0.0
	if s.GPUCycles > 0 {
		ipc = float64(s.GPUInstrs) / float64(s.GPUCycles)
	}
	return fmt.Sprintf(
		"[Statistics]\nGPU Cycles: %d\nGPU Instrs: %d\nCPU Instrs: %d\nIPC: %.4f\n"+
			"GPU DRAMAccs: %d\nCPU DRAMAccs: %d\nGPU Retries: %d\nGPU Susps: %d\n",
		s.GPUCycles, s.GPUInstrs, s.CPUInstrs, ipc,
		s.GPUDRAMAccs, s.CPUDRAMAccs, s.GPURetries, s.GPUSusps)
}

// Hex renders the fixed-width 8-hex-digit format comparable against
// reference hardware traces.
func (s *Stats) Hex() string {
	return fmt.Sprintf(
		"Cycles: %08x\nInstrs: %08x\nSusps: %08x\nRetries: %08x\nDRAMAccs: %08x\n",
		s.GPUCycles, s.GPUInstrs, s.GPUSusps, s.GPURetries, s.GPUDRAMAccs)
}

// Report selects the human or hex rendering.
func (s *Stats) Report(format string) string {
	if format == "hex" {
		return s.Hex()
	}
	return s.Human()
}
