/*
 * simsim - SIMT GPU core simulator entry point.
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

package main

import (
	"fmt"
	"io"
	"os"

	getopt "github.com/pborman/getopt/v2"

	"github.com/rcornwell/simtgpu/internal/core"
	"github.com/rcornwell/simtgpu/internal/gpuio"
	"github.com/rcornwell/simtgpu/internal/simconfig"
)

func main() {
	optFile := getopt.StringLong("file", 'f', "", "Program image to load")
	optLog := getopt.StringLong("log", 'l', "", "Trace log file")
	optDebug := getopt.BoolLong("debug", 'd', "Enable GPU pipeline tracing")
	optCPUDebug := getopt.BoolLong("cpu-debug", 0, "Enable CPU pipeline tracing")
	optRegDump := getopt.BoolLong("regdump", 'r', "Log register writes committed at writeback")
	optQuick := getopt.BoolLong("quick", 'q', "Stream UART bytes immediately")
	optStatsFmt := getopt.StringLong("stats-format", 's', "human", "Statistics format: human|hex")
	optWarpsPerBlk := getopt.IntLong("warps-per-block", 'w', 0, "Warps per barrier block (0 = one block)")
	optNumWarps := getopt.IntLong("num-warps", 'n', 4, "Warps launched per kernel")
	optInteractive := getopt.BoolLong("interactive", 'i', "Start an interactive debug console")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	if *optFile == "" {
		fmt.Fprintln(os.Stderr, "simsim: -f/--file is required")
		getopt.Usage()
		os.Exit(1)
	}

	var traceOut io.Writer = io.Discard
	if *optLog != "" {
		f, err := os.Create(*optLog)
		if err != nil {
			fmt.Fprintln(os.Stderr, "simsim: "+err.Error())
			os.Exit(1)
		}
		defer f.Close()
		traceOut = f
	}

	cfg := simconfig.Default()
	cfg.Debug = *optDebug
	cfg.CPUDebug = *optCPUDebug
	cfg.RegDump = *optRegDump
	cfg.Quick = *optQuick
	cfg.WarpsPerBlk = *optWarpsPerBlk
	cfg.NumWarps = *optNumWarps

	image, err := gpuio.Load(*optFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "simsim: "+err.Error())
		os.Exit(1)
	}
	defer image.Close()

	uartOut := io.Discard
	if cfg.Quick {
		uartOut = os.Stdout
	}

	sim := core.New(cfg, traceOut, uartOut, image.Bytes(), 0, 0)

	if *optInteractive {
		runConsole(sim)
	} else {
		sim.Run()
	}

	if !cfg.Quick {
		if buf := sim.UARTBuffer(); len(buf) > 0 {
			fmt.Println("[Results]")
			os.Stdout.Write(buf)
			fmt.Println()
		}
	}

	fmt.Print(sim.Stats().Report(*optStatsFmt))
}
