/*
 * Interactive debug console: single-step, register dump, and free-run,
 * line-edited with history via liner.
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
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/rcornwell/simtgpu/internal/core"
)

func runConsole(sim *core.Core) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(cmd string) []string {
		return completeConsoleCmd(cmd)
	})

	fmt.Println("simsim interactive console — step, run, regs, stats, quit")
	for {
		input, err := line.Prompt("simsim> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return
			}
			fmt.Println("error reading line: " + err.Error())
			return
		}
		line.AppendHistory(input)

		if quit := dispatchConsoleCmd(sim, input); quit {
			return
		}
	}
}

func completeConsoleCmd(cmd string) []string {
	var out []string
	for _, c := range []string{"step", "run", "regs", "stats", "quit", "exit"} {
		if strings.HasPrefix(c, cmd) {
			out = append(out, c)
		}
	}
	return out
}

func dispatchConsoleCmd(sim *core.Core, input string) (quit bool) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "step":
		n := 1
		if len(fields) > 1 {
			if v, err := strconv.Atoi(fields[1]); err == nil {
				n = v
			}
		}
		for i := 0; i < n && sim.Running(); i++ {
			sim.Tick()
		}
		fmt.Printf("cycle %d, %d warps active\n", sim.Cycles(), sim.ActiveWarps())
	case "run":
		for sim.Running() {
			sim.Tick()
		}
		fmt.Printf("halted at cycle %d\n", sim.Cycles())
	case "regs":
		for i := 0; i < 32; i++ {
			fmt.Printf("x%-2d = %d\n", i, sim.CPURegister(i))
		}
	case "stats":
		fmt.Print(sim.Stats().Human())
	case "quit", "exit":
		return true
	default:
		fmt.Println("unknown command: " + fields[0])
	}
	return false
}
