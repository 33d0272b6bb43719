/*
 * Active-thread-selection stage.
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

// ActiveThreadSelect picks the lanes that advance together this cycle:
// among the non-finished lanes, the deepest-nesting ones sharing a PC.
type ActiveThreadSelect struct {
	in, out *Latch
	debug   bool
}

// NewActiveThreadSelect wires the stage between in and out latches.
func NewActiveThreadSelect(in, out *Latch) *ActiveThreadSelect {
	return &ActiveThreadSelect{in: in, out: out}
}

func (s *ActiveThreadSelect) Execute() {
	if !s.in.Updated {
		s.out.Updated = false
		return
	}
	s.out.Updated = true
	s.out.Warp = s.in.Warp
	s.out.Active = s.in.Warp.ActiveThreads()
}

func (s *ActiveThreadSelect) IsActive() bool  { return s.in.Updated }
func (s *ActiveThreadSelect) SetDebug(d bool) { s.debug = d }
