/*
 * Pipeline container: the seven warp-scheduled stages, driven in reverse
 * order each cycle, communicating via single-slot latches.
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

// Package pipeline implements the seven-stage warp-scheduled pipeline:
// warp scheduler, active-thread selection, fetch, operand-fetch,
// operand-latch, execute/suspend, writeback/resume.
package pipeline

import (
	"github.com/rcornwell/simtgpu/internal/decode"
	"github.com/rcornwell/simtgpu/internal/warp"
)

// Latch is the single-slot communication point between two adjacent
// stages.
type Latch struct {
	Updated bool
	Warp    *warp.Warp
	Active  []int
	Instr   decode.Instruction
}

// Stage is the common interface every pipeline stage implements.
type Stage interface {
	Execute()
	IsActive() bool
	SetDebug(enabled bool)
}

// Pipeline drives an ordered sequence of stages in reverse order each
// cycle, so each stage reads its input latch before the previous stage
// overwrites it: a classic backwards-sweep simulation.
type Pipeline struct {
	Name   string
	stages []Stage
	active bool // Latched "pipeline_active" flag; set true on kernel launch.
}

// New creates an empty, named pipeline ("cpu" or "gpu").
func New(name string) *Pipeline {
	return &Pipeline{Name: name}
}

// AddStage appends a stage; stages execute in reverse of the order added.
func (p *Pipeline) AddStage(s Stage) {
	p.stages = append(p.stages, s)
}

// Tick drives every stage once, in reverse order.
func (p *Pipeline) Tick() {
	for i := len(p.stages) - 1; i >= 0; i-- {
		p.stages[i].Execute()
	}
}

// HasActiveStages reports whether any stage still has work to do.
func (p *Pipeline) HasActiveStages() bool {
	for _, s := range p.stages {
		if s.IsActive() {
			return true
		}
	}
	return false
}

// SetPipelineActive latches the kernel-launch-driven activity flag.
func (p *Pipeline) SetPipelineActive(active bool) { p.active = active }

// PipelineActive reports the latched activity flag.
func (p *Pipeline) PipelineActive() bool { return p.active }

// SetDebug propagates a debug-tracing flag to every stage.
func (p *Pipeline) SetDebug(enabled bool) {
	for _, s := range p.stages {
		s.SetDebug(enabled)
	}
}
