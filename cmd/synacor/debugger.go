package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"synacor/vm"
)

// runDebugger drives an interactive single-step session against m: n steps
// one instruction, r runs to completion or to the next breakpoint, b <addr>
// sets a breakpoint, regs/stack print machine state, and q quits.
func runDebugger(m *vm.Machine) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	breakpoints := make(map[uint16]bool)

	for {
		prompt := fmt.Sprintf("synacor[%d]> ", m.PC())
		command, err := line.Prompt(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return err
		}
		line.AppendHistory(command)

		fields := strings.Fields(command)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "n", "step":
			if m.Halted() {
				fmt.Println("machine is halted")
				continue
			}
			if err := m.Step(); err != nil {
				reportStop(err)
			}
			m.Flush()
		case "r", "run":
			runUntilBreak(m, breakpoints)
		case "b", "break":
			if len(fields) != 2 {
				fmt.Println("usage: b <addr>")
				continue
			}
			addr, err := strconv.ParseUint(fields[1], 10, 16)
			if err != nil {
				fmt.Println("bad address:", fields[1])
				continue
			}
			breakpoints[uint16(addr)] = true
		case "regs":
			fmt.Printf("%v\n", m.Registers())
		case "stack":
			fmt.Printf("%v\n", m.Stack())
		case "pc":
			fmt.Println(m.PC())
		case "q", "quit":
			return nil
		default:
			fmt.Println("commands: n, r, b <addr>, regs, stack, pc, q")
		}
	}
}

func runUntilBreak(m *vm.Machine, breakpoints map[uint16]bool) {
	defer m.Flush()
	for {
		if m.Halted() {
			return
		}
		if breakpoints[m.PC()] {
			fmt.Printf("breakpoint at %d\n", m.PC())
			return
		}
		if err := m.Step(); err != nil {
			reportStop(err)
			return
		}
	}
}

func reportStop(err error) {
	if errors.Is(err, vm.ErrHalted) {
		fmt.Println("program halted")
		return
	}
	fmt.Println("stopped:", err)
}
