/*
 * Wrapper for slog
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

// Package gpulog wraps log/slog with a handler that tees every record to an
// optional trace file and, above debug level or when a pipeline's own
// debug flag is set, to stderr as well.
package gpulog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Handler is an slog.Handler that writes plain "time level msg attrs"
// lines, tagged by which pipeline emitted them.
type Handler struct {
	out    io.Writer
	h      slog.Handler
	mu     *sync.Mutex
	source string
	debug  *bool
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithAttrs(attrs), mu: h.mu, source: h.source, debug: h.debug}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithGroup(name), mu: h.mu, source: h.source, debug: h.debug}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	formattedTime := r.Time.Format("2006/01/02 15:04:05")

	strs := []string{formattedTime, level}
	if h.source != "" {
		strs = append(strs, "["+h.source+"]")
	}
	strs = append(strs, r.Message)

	if r.NumAttrs() != 0 {
		r.Attrs(func(a slog.Attr) bool {
			strs = append(strs, a.Key+"="+a.Value.String())
			return true
		})
	}
	result := strings.Join(strs, " ") + "\n"
	b := []byte(result)

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.out != nil {
		_, err = h.out.Write(b)
	}
	if (h.debug != nil && *h.debug) || r.Level > slog.LevelDebug {
		_, err = os.Stderr.Write(b)
	}
	return err
}

// NewHandler creates a handler tagging every record with source (e.g.
// "cpu" or "gpu") and writing it to file. debug, when non-nil, is
// re-checked on every call so a single flag can be flipped live by a CLI
// option.
func NewHandler(file io.Writer, opts *slog.HandlerOptions, source string, debug *bool) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &Handler{
		out:    file,
		h:      slog.NewTextHandler(file, &slog.HandlerOptions{Level: opts.Level, AddSource: opts.AddSource}),
		mu:     &sync.Mutex{},
		source: source,
		debug:  debug,
	}
}

// New builds a ready-to-use *slog.Logger for one pipeline.
func New(file io.Writer, source string, debug *bool) *slog.Logger {
	return slog.New(NewHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}, source, debug))
}
