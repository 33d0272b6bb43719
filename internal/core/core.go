/*
 * Top-level driver: wires data memory, the coalescing unit, the
 * functional units, both register files, the CPU and SIMT pipelines, host
 * control, and statistics together, and drives the single-threaded tick
 * loop.
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

// Package core assembles one CPU pipeline (one warp, one lane) and one
// SIMT pipeline (many warps, many lanes each) over shared data memory and
// a shared coalescing unit, routed by each warp's IsCPU tag, and runs
// them to completion.
package core

import (
	"io"
	"log/slog"

	"github.com/rcornwell/simtgpu/internal/coalesce"
	"github.com/rcornwell/simtgpu/internal/datamem"
	"github.com/rcornwell/simtgpu/internal/funcunit"
	"github.com/rcornwell/simtgpu/internal/gpulog"
	"github.com/rcornwell/simtgpu/internal/host"
	"github.com/rcornwell/simtgpu/internal/instrmem"
	"github.com/rcornwell/simtgpu/internal/pipeline"
	"github.com/rcornwell/simtgpu/internal/regfile"
	"github.com/rcornwell/simtgpu/internal/simconfig"
	"github.com/rcornwell/simtgpu/internal/stats"
	"github.com/rcornwell/simtgpu/internal/warp"
)

// Core owns every component of one simulation run.
type Core struct {
	cfg *simconfig.Config

	instrMem *instrmem.Memory
	dataMem  *datamem.Memory
	stats    *stats.Stats

	cpuTable  *warp.Table
	simtTable *warp.Table

	cpuPipeline  *pipeline.Pipeline
	simtPipeline *pipeline.Pipeline

	coalesceUnit *coalesce.Unit
	hostCtl      *host.Control

	cpuMul, simtMul *funcunit.MulUnit
	cpuDiv, simtDiv *funcunit.DivUnit

	cpuRegs *regfile.Host

	cycle *uint64
}

// New builds a complete core: instrImage is the flat instruction memory
// image starting at instrBase; cpuEntryPC is where the single CPU warp
// begins fetching. traceOut receives log output from both pipelines;
// uartOut receives streamed UART bytes when cfg.Quick is set.
func New(cfg *simconfig.Config, traceOut, uartOut io.Writer, instrImage []byte, instrBase, cpuEntryPC uint64) *Core {
	instrMem := instrmem.New(instrBase, instrImage)
	dataMem := datamem.New()
	st := stats.New()

	cpuLog := gpulog.New(traceOut, "cpu", &cfg.CPUDebug)
	simtLog := gpulog.New(traceOut, "gpu", &cfg.Debug)

	cpuTable := warp.NewTable()
	simtTable := warp.NewTable()
	cpuWarp := cpuTable.Create(true, 1, cpuEntryPC)

	simtRegFile := regfile.New()
	cpuHostRegs := regfile.NewHost(simtRegFile, cpuWarp.ID)

	// simtPipeline is wired after construction; the coalescing unit's
	// gpuActive probe closes over the variable, not its (not yet set)
	// value, exactly as the scheduler's InsertWarp callback closes over
	// the scheduler itself.
	var simtPipeline *pipeline.Pipeline
	gpuActive := func() bool {
		return simtPipeline != nil && (simtPipeline.PipelineActive() || simtPipeline.HasActiveStages())
	}
	coalesceUnit := coalesce.New(cfg, dataMem, st, simtLog, gpuActive)

	cpuMul := funcunit.NewMulUnit(cfg.MulLatency, cfg.ResultQueueCap)
	cpuDiv := funcunit.NewDivUnit(cfg.DivLatency)
	simtMul := funcunit.NewMulUnit(cfg.MulLatency, cfg.ResultQueueCap)
	simtDiv := funcunit.NewDivUnit(cfg.DivLatency)

	simtL0 := &pipeline.Latch{}
	simtSched := pipeline.NewScheduler(simtTable, cfg, simtLog, simtL0)

	cpuL0 := &pipeline.Latch{}
	cpuSched := pipeline.NewScheduler(cpuTable, cfg, cpuLog, cpuL0)

	hostCtl := host.New(cfg, simtTable, simtSched.InsertWarp, st, uartOut)

	cycle := new(uint64)
	cycles := func() uint64 { return *cycle }

	cpuReg := &pipeline.CPURegs{Host: cpuHostRegs}
	simtReg := &pipeline.SIMTRegs{File: simtRegFile}

	cpuPipeline := finishPipeline("cpu", true, cpuTable, cpuSched, cpuL0, cfg, instrMem,
		cpuReg, coalesceUnit, cpuMul, cpuDiv, hostCtl, st, cycles, 1, cpuLog)
	simtPipeline = finishPipeline("gpu", false, simtTable, simtSched, simtL0, cfg, instrMem,
		simtReg, coalesceUnit, simtMul, simtDiv, nil, st, cycles, cfg.NumLanes, simtLog)

	cpuSched.InsertWarp(cpuWarp)
	cpuPipeline.SetDebug(cfg.CPUDebug)
	simtPipeline.SetDebug(cfg.Debug)

	return &Core{
		cfg: cfg, instrMem: instrMem, dataMem: dataMem, stats: st,
		cpuTable: cpuTable, simtTable: simtTable,
		cpuPipeline: cpuPipeline, simtPipeline: simtPipeline,
		coalesceUnit: coalesceUnit, hostCtl: hostCtl,
		cpuMul: cpuMul, simtMul: simtMul, cpuDiv: cpuDiv, simtDiv: simtDiv,
		cpuRegs: cpuHostRegs, cycle: cycle,
	}
}

// finishPipeline builds the six stages downstream of an already-created
// scheduler and assembles the seven-stage pipeline.
func finishPipeline(name string, isCPU bool, table *warp.Table, sched *pipeline.Scheduler, l0 *pipeline.Latch,
	cfg *simconfig.Config, instrMem *instrmem.Memory, reg pipeline.RegisterAccess, cu *coalesce.Unit,
	mul *funcunit.MulUnit, div *funcunit.DivUnit, hostCtl *host.Control, st *stats.Stats,
	cycles func() uint64, numLanes int, log *slog.Logger) *pipeline.Pipeline {

	l1 := &pipeline.Latch{}
	l2 := &pipeline.Latch{}
	l3 := &pipeline.Latch{}
	l4 := &pipeline.Latch{}
	l5 := &pipeline.Latch{}

	ats := pipeline.NewActiveThreadSelect(l0, l1)
	fetch := pipeline.NewFetch(l1, l2, instrMem)
	opFetch := pipeline.NewPassThrough(l2, l3)
	opLatch := pipeline.NewPassThrough(l3, l4)
	exec := pipeline.NewExecute(l4, l5, reg, cu, mul, div, hostCtl, st, cycles,
		isCPU, numLanes, instrMem.MaxAddr(), sched.InsertWarp, log)
	wb := pipeline.NewWriteback(l5, reg, table, mul, div, cu, sched.InsertWarp, isCPU, cfg, log)

	p := pipeline.New(name)
	p.AddStage(sched)
	p.AddStage(ats)
	p.AddStage(fetch)
	p.AddStage(opFetch)
	p.AddStage(opLatch)
	p.AddStage(exec)
	p.AddStage(wb)
	return p
}

// LoadData copies an initial data image into data memory (e.g. a
// kernel's global/static section) before Run.
func (c *Core) LoadData(base uint64, data []byte) { c.dataMem.LoadImage(base, data) }

// Run ticks the CPU pipeline, then the SIMT pipeline, then the coalescing
// unit and functional units, once per cycle, until the CPU has halted and
// no kernel is in flight.
func (c *Core) Run() {
	for c.Running() {
		c.Tick()
	}
}

// Tick runs a single cycle of both pipelines, for an interactive debug
// console's step command.
func (c *Core) Tick() {
	c.cpuPipeline.Tick()
	c.simtPipeline.Tick()
	c.coalesceUnit.Tick()
	c.cpuMul.Tick()
	c.cpuDiv.Tick()
	c.simtMul.Tick()
	c.simtDiv.Tick()
	for _, w := range c.simtTable.All() {
		if !w.Suspended && !w.AnyUnfinished() {
			c.simtTable.Remove(w.ID)
		}
	}
	*c.cycle++
	c.stats.IncGPUCycle()

	if c.hostCtl.IsGPUBusy() {
		c.simtPipeline.SetPipelineActive(true)
		if !c.simtPipeline.HasActiveStages() {
			c.hostCtl.SetGPUActive(false)
			c.simtPipeline.SetPipelineActive(false)
		}
	}
	c.stats.SetGPUPipelineActive(c.simtPipeline.PipelineActive())
}

// Running reports whether the CPU or SIMT pipeline still has work to do.
func (c *Core) Running() bool {
	return c.cpuPipeline.HasActiveStages() ||
		c.simtPipeline.HasActiveStages() || c.simtPipeline.PipelineActive() ||
		c.hostCtl.IsGPUBusy()
}

// Stats returns the run's accumulated statistics.
func (c *Core) Stats() *stats.Stats { return c.stats }

// UARTBuffer returns whatever UART output was buffered (empty in "quick"
// streaming mode, where it was written straight to the CLI's writer).
func (c *Core) UARTBuffer() []byte { return c.hostCtl.Buffer() }

// Cycles returns the number of cycles Run executed.
func (c *Core) Cycles() uint64 { return *c.cycle }

// CPURegister returns the CPU warp's register n, for an interactive
// debug console.
func (c *Core) CPURegister(n int) int32 { return c.cpuRegs.Get(n) }

// ActiveWarps returns the number of SIMT warps still live (not yet
// finished and removed from the table).
func (c *Core) ActiveWarps() int { return len(c.simtTable.All()) }
