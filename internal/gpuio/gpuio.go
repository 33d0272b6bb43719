/*
 * Program-image loading: maps a flat binary straight into memory instead
 * of reading it into a heap-allocated []byte.
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

// Package gpuio loads a kernel's flat instruction/data image from disk.
package gpuio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Image is a program image mapped read-only from a file. Close unmaps it.
type Image struct {
	data []byte
}

// Load maps path's full contents read-only. Empty files map to a nil,
// zero-length image rather than failing, since unix.Mmap rejects a
// zero-length mapping.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gpuio: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("gpuio: %w", err)
	}
	if info.Size() == 0 {
		return &Image{}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("gpuio: mmap %s: %w", path, err)
	}
	return &Image{data: data}, nil
}

// Bytes returns the mapped image. The slice is only valid until Close.
func (i *Image) Bytes() []byte { return i.data }

// Close unmaps the image. Safe to call on a zero-length Image.
func (i *Image) Close() error {
	if i.data == nil {
		return nil
	}
	return unix.Munmap(i.data)
}
