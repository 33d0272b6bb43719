/*
 * Flat byte-addressable data memory for the GPU core.
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

// Package datamem implements the flat byte-addressable data memory shared
// by the coalescing unit.
package datamem

// Memory is a sparse byte-addressable store. The simulated address space
// is 32 bits wide but only ever sparsely populated (a kernel image, a
// handful of buffers, per-warp stacks), so a map stands in for what would
// be a flat array on real hardware.
type Memory struct {
	bytes map[uint64]byte
}

// New creates an empty memory.
func New() *Memory {
	return &Memory{bytes: make(map[uint64]byte)}
}

// LoadImage copies a byte slice into memory starting at base, for loading
// a flat program image.
func (m *Memory) LoadImage(base uint64, data []byte) {
	for i, b := range data {
		m.bytes[base+uint64(i)] = b
	}
}

// ReadByte returns the byte at addr, defaulting to 0 if never written.
func (m *Memory) ReadByte(addr uint64) byte {
	return m.bytes[addr]
}

// WriteByte stores one byte at addr.
func (m *Memory) WriteByte(addr uint64, val byte) {
	m.bytes[addr] = val
}

// Read returns n little-endian bytes starting at addr as a zero-extended
// uint32, plus the same value sign-extended to int32, so the caller can
// pick whichever the opcode calls for.
func (m *Memory) Read(addr uint64, n int) (zext uint32, sext int32) {
	var u uint32
	for i := 0; i < n; i++ {
		u |= uint32(m.bytes[addr+uint64(i)]) << (8 * i)
	}
	zext = u
	shift := uint(32 - 8*n)
	sext = int32(u<<shift) >> shift
	return zext, sext
}

// Write stores the low n bytes of val, little-endian, starting at addr.
func (m *Memory) Write(addr uint64, n int, val uint32) {
	for i := 0; i < n; i++ {
		m.bytes[addr+uint64(i)] = byte(val >> (8 * i))
	}
}
