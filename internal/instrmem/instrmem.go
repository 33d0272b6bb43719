/*
 * Read-only instruction memory.
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

// Package instrmem implements the read-only byte array keyed by PC that
// the fetch stage reads from.
package instrmem

// Memory is a read-only instruction image starting at a base PC.
type Memory struct {
	base uint64
	data []byte
}

// New wraps data as an instruction image starting at base.
func New(base uint64, data []byte) *Memory {
	return &Memory{base: base, data: data}
}

// Fetch4 returns the 4 bytes at pc, or all zero if pc is out of range
// (an idle core fetching past the end of its image should decode to an
// unrecognised opcode rather than panic).
func (m *Memory) Fetch4(pc uint64) [4]byte {
	var out [4]byte
	if pc < m.base {
		return out
	}
	off := pc - m.base
	for i := 0; i < 4; i++ {
		idx := off + uint64(i)
		if idx < uint64(len(m.data)) {
			out[i] = m.data[idx]
		}
	}
	return out
}

// MaxAddr returns the highest valid PC in the image, used by execute/
// suspend's reinsertion check.
func (m *Memory) MaxAddr() uint64 {
	if len(m.data) == 0 {
		return m.base
	}
	return m.base + uint64(len(m.data)) - 1
}
