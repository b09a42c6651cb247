package disasm

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"synacor/asm"
	"synacor/isa"
)

func TestDisassembleBasic(t *testing.T) {
	img := isa.Image{isa.Word(isa.OpOut), 65, isa.Word(isa.OpHalt)}
	var buf bytes.Buffer
	if err := Disassemble(&buf, img); err != nil {
		t.Fatalf("Disassemble: %v", err)
	}

	lines := splitLines(buf.String())
	want := []string{"0:\tout\t65", "2:\thalt"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

// TestDisassembleIsTotal covers the spec's totality requirement: an unknown
// word never stops the walk, it just advances by one word.
func TestDisassembleIsTotal(t *testing.T) {
	img := isa.Image{9999, isa.Word(isa.OpHalt)}
	var buf bytes.Buffer
	if err := Disassemble(&buf, img); err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	lines := splitLines(buf.String())
	want := []string{"0:\t9999", "1:\thalt"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

// TestDisassembleRoundTrips exercises the §8 property: disassembling an
// image and reassembling the result reproduces the original image exactly,
// because every emitted "<addr>:" is a pointer-label assertion the
// assembler accepts as a no-op when it matches.
func TestDisassembleRoundTrips(t *testing.T) {
	img := isa.Image{
		isa.Word(isa.OpSet), isa.RegisterWord(0), 42,
		isa.Word(isa.OpJt), isa.RegisterWord(0), 8,
		isa.Word(isa.OpOut), 78,
		isa.Word(isa.OpHalt),
	}
	var buf bytes.Buffer
	if err := Disassemble(&buf, img); err != nil {
		t.Fatalf("Disassemble: %v", err)
	}

	reassembled, err := asm.AssembleReader(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("AssembleReader: %v", err)
	}
	if len(reassembled) != len(img) {
		t.Fatalf("len = %d, want %d", len(reassembled), len(img))
	}
	for i := range img {
		if reassembled[i] != img[i] {
			t.Fatalf("word[%d] = %d, want %d", i, reassembled[i], img[i])
		}
	}
}

func splitLines(s string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out
}
