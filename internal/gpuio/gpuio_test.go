/*
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

package gpuio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMapsFileContents(t *testing.T) {
	want := []byte{0x13, 0x00, 0x50, 0x00, 0xde, 0xad, 0xbe, 0xef}
	path := filepath.Join(t.TempDir(), "image.bin")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer img.Close()

	if !bytes.Equal(img.Bytes(), want) {
		t.Fatalf("Bytes() = %v, want %v", img.Bytes(), want)
	}
}

func TestLoadEmptyFileYieldsZeroLengthImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := Load(path)
	if err != nil {
		t.Fatalf("Load of an empty file should not error, got: %v", err)
	}
	defer img.Close()

	if len(img.Bytes()) != 0 {
		t.Fatalf("Bytes() = %v, want empty", img.Bytes())
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.bin")

	if _, err := Load(path); err == nil {
		t.Fatal("Load of a nonexistent path should return an error")
	}
}

func TestCloseOnEmptyImageIsSafe(t *testing.T) {
	img := &Image{}
	if err := img.Close(); err != nil {
		t.Fatalf("Close on a zero-length image: %v", err)
	}
}

func TestClosePopulatedImageUnmaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")
	if err := os.WriteFile(path, []byte{1, 2, 3, 4}, 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := img.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
