// Command synacor is the host adapter (C7): it loads an image, then runs,
// assembles, disassembles, or debugs it depending on the subcommand.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"synacor/asm"
	"synacor/disasm"
	"synacor/internal/applog"
	"synacor/isa"
	"synacor/vm"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	os.Args = os.Args[1:] // so getopt.Parse() in each subcommand sees its own flags

	var err error
	switch cmd {
	case "run":
		err = runCmd()
	case "asm":
		err = asmCmd()
	case "disasm":
		err = disasmCmd()
	case "debug":
		err = debugCmd()
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "synacor: unknown subcommand %q\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "synacor:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: synacor <run|asm|disasm|debug> [options]")
}

func loadImage(path string) (isa.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return isa.DecodeImage(data), nil
}

// runCmd implements `synacor run <image>`: load and execute straight
// through, wiring stdin/stdout to the machine and SIGINT to Machine.Cancel.
func runCmd() error {
	optVerbose := getopt.BoolLong("verbose", 'v', "Verbose logging")
	optSnapshotOut := getopt.StringLong("save", 's', "", "Write a snapshot here on exit")
	getopt.Parse()
	args := getopt.Args()
	if len(args) != 1 {
		return fmt.Errorf("run: expected exactly one image path")
	}

	logger := applog.NewLogger(*optVerbose)
	slog.SetDefault(logger)

	img, err := loadImage(args[0])
	if err != nil {
		return err
	}

	m := vm.New(img, os.Stdin, os.Stdout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("cancelling on signal")
		m.Cancel()
		<-sigChan
		os.Exit(1)
	}()

	runErr := m.Run()

	if *optSnapshotOut != "" {
		f, err := os.Create(*optSnapshotOut)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := vm.EncodeSnapshot(f, m.Snapshot()); err != nil {
			return err
		}
	}

	if runErr != nil && !errors.Is(runErr, vm.ErrHalted) && !errors.Is(runErr, vm.ErrCancelled) {
		return runErr
	}
	return nil
}

// asmCmd implements `synacor asm <out.bin> <source files...>`.
func asmCmd() error {
	getopt.Parse()
	args := getopt.Args()
	if len(args) < 2 {
		return fmt.Errorf("asm: expected an output path and at least one source file")
	}

	img, err := asm.AssembleFiles(args[1:]...)
	if err != nil {
		return err
	}
	return os.WriteFile(args[0], img.Encode(), 0o644)
}

// disasmCmd implements `synacor disasm <image>`, writing source to stdout.
func disasmCmd() error {
	getopt.Parse()
	args := getopt.Args()
	if len(args) != 1 {
		return fmt.Errorf("disasm: expected exactly one image path")
	}

	img, err := loadImage(args[0])
	if err != nil {
		return err
	}
	return disasm.Disassemble(os.Stdout, img)
}

// debugCmd implements `synacor debug <image>`: an interactive REPL built on
// liner, offering single-step, breakpoints, and register/stack inspection.
func debugCmd() error {
	optSnapshotIn := getopt.StringLong("load", 'l', "", "Resume from a snapshot")
	getopt.Parse()
	args := getopt.Args()
	if len(args) != 1 {
		return fmt.Errorf("debug: expected exactly one image path")
	}

	img, err := loadImage(args[0])
	if err != nil {
		return err
	}

	m := vm.New(img, os.Stdin, os.Stdout)
	if *optSnapshotIn != "" {
		f, err := os.Open(*optSnapshotIn)
		if err != nil {
			return err
		}
		snap, err := vm.DecodeSnapshot(f)
		f.Close()
		if err != nil {
			return err
		}
		m.Restore(snap)
	}

	return runDebugger(m)
}
