// Package disasm implements the total, front-to-back disassembler that
// turns a binary image back into mnemonic source text (C6).
package disasm

import (
	"bufio"
	"fmt"
	"io"

	"synacor/isa"
)

// Disassemble walks img front-to-back and writes one line per instruction to
// w: "<addr>:\t<mnemonic>[\t<operand>]*\n". Unknown opcode words fall back
// to "<addr>:\t<word>\n" and consume exactly one word, which is what makes
// this total: it never fails on data interleaved with code.
//
// Every line's leading "<addr>:" is a pointer label, so the output is
// already valid asm.Assemble input: reassembling it reproduces img exactly
// for any image containing no unknown opcodes (§8).
func Disassemble(w io.Writer, img isa.Image) error {
	bw := bufio.NewWriter(w)
	addr := 0
	for addr < len(img) {
		word := img[addr]
		op := isa.Opcode(word)

		if !op.Valid() {
			if _, err := fmt.Fprintf(bw, "%d:\t%d\n", addr, uint16(word)); err != nil {
				return err
			}
			addr++
			continue
		}

		size := op.Size()
		line := op.String()
		for i := 1; i < size && addr+i < len(img); i++ {
			line += fmt.Sprintf("\t%d", uint16(img[addr+i]))
		}
		if _, err := fmt.Fprintf(bw, "%d:\t%s\n", addr, line); err != nil {
			return err
		}
		addr += size
	}
	return bw.Flush()
}
