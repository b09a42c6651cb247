package asm

import (
	"errors"
	"strings"
	"testing"

	"synacor/isa"
)

func assemble(t *testing.T, src string) isa.Image {
	t.Helper()
	img, err := Assemble(strings.Split(src, "\n"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return img
}

func TestAssembleBasicOpcodes(t *testing.T) {
	img := assemble(t, `
		out 9
		halt
	`)
	want := isa.Image{isa.Word(isa.OpOut), 9, isa.Word(isa.OpHalt)}
	if len(img) != len(want) {
		t.Fatalf("len = %d, want %d", len(img), len(want))
	}
	for i := range want {
		if img[i] != want[i] {
			t.Fatalf("img[%d] = %d, want %d", i, img[i], want[i])
		}
	}
}

func TestAssembleForwardAndBackwardLabels(t *testing.T) {
	img := assemble(t, `
		jmp forward
	back:
		jmp back
	forward:
		jmp back
	`)
	// jmp forward (addr 0-1), back: (addr 2) jmp back (2-3),
	// forward: (addr 4) jmp back (4-5)
	if img[1] != 4 {
		t.Fatalf("forward label resolved to %d, want 4", img[1])
	}
	if img[3] != 2 {
		t.Fatalf("back label resolved to %d, want 2", img[3])
	}
	if img[5] != 2 {
		t.Fatalf("second back reference resolved to %d, want 2", img[5])
	}
}

func TestAssembleDataPseudoOp(t *testing.T) {
	img := assemble(t, `
		data 65
		data 66
	`)
	want := isa.Image{65, 66}
	for i := range want {
		if img[i] != want[i] {
			t.Fatalf("img[%d] = %d, want %d", i, img[i], want[i])
		}
	}
}

func TestAssembleDataRejectsSymbol(t *testing.T) {
	_, err := Assemble(strings.Split(`
	label:
		data label
	`, "\n"))
	if !errors.Is(err, ErrRegisterOperandInData) {
		t.Fatalf("err = %v, want ErrRegisterOperandInData", err)
	}
}

func TestAssembleUndefinedLabel(t *testing.T) {
	_, err := Assemble([]string{"jmp nowhere"})
	if !errors.Is(err, ErrUndefinedLabel) {
		t.Fatalf("err = %v, want ErrUndefinedLabel", err)
	}
}

func TestAssembleArityMismatch(t *testing.T) {
	_, err := Assemble([]string{"add 0 1"})
	if !errors.Is(err, ErrArityMismatch) {
		t.Fatalf("err = %v, want ErrArityMismatch", err)
	}
}

func TestAssembleUnknownMnemonic(t *testing.T) {
	_, err := Assemble([]string{"frobnicate 1"})
	if !errors.Is(err, ErrSyntaxError) {
		t.Fatalf("err = %v, want ErrSyntaxError", err)
	}
}

func TestAssemblePointerLabelAssertion(t *testing.T) {
	img := assemble(t, `
	0:
		noop
	1:
		halt
	`)
	if len(img) != 2 {
		t.Fatalf("len = %d, want 2", len(img))
	}
}

func TestAssemblePointerLabelMismatch(t *testing.T) {
	_, err := Assemble(strings.Split(`
	5:
		noop
	`, "\n"))
	if !errors.Is(err, ErrPointerLabelMismatch) {
		t.Fatalf("err = %v, want ErrPointerLabelMismatch", err)
	}
}

// TestScenarioAssemblerRoundTrip reproduces §8 scenario 6 verbatim.
func TestScenarioAssemblerRoundTrip(t *testing.T) {
	img := assemble(t, `
	start: jmp end
	data 42
	end:   halt
	`)
	want := isa.Image{6, 3, 42, 0}
	if len(img) != len(want) {
		t.Fatalf("len = %d, want %d: %v", len(img), len(want), img)
	}
	for i := range want {
		if img[i] != want[i] {
			t.Fatalf("img[%d] = %d, want %d", i, img[i], want[i])
		}
	}
}

func TestAssembleCommentsStripped(t *testing.T) {
	img := assemble(t, `
		halt # this is a comment
	`)
	if len(img) != 1 || img[0] != isa.Word(isa.OpHalt) {
		t.Fatalf("img = %v, want [halt]", img)
	}
}

func TestAssembleDuplicateLabelLastWins(t *testing.T) {
	img := assemble(t, `
	dup:
		noop
	dup:
		halt
		jmp dup
	`)
	// dup rebinds to addr 1 (the second definition); jmp dup must target 1.
	if img[3] != 1 {
		t.Fatalf("jmp dup resolved to %d, want 1", img[3])
	}
}
