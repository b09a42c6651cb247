// Package asm implements the two-pass (single-sweep) assembler that
// translates Synacor-architecture mnemonic source into a binary image (C5).
package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"synacor/isa"
)

// Sentinel source-problem errors (§7), each wrapped with the offending
// line number via LineError.
var (
	ErrUndefinedLabel        = errors.New("undefined label")
	ErrArityMismatch         = errors.New("wrong number of operands")
	ErrSyntaxError           = errors.New("syntax error")
	ErrPointerLabelMismatch  = errors.New("pointer label does not match current address")
	ErrRegisterOperandInData = errors.New("data operand must be a literal")
)

// LineError reports a source problem together with the 1-indexed line
// number, mirroring the teacher's "<code> at <n>: <instr>" diagnostics in
// compile.go.
type LineError struct {
	Err  error
	Line int
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

func lineErr(line int, err error) error {
	return &LineError{Err: err, Line: line}
}

// comment matches a `#` through end of line, stripped before tokenizing.
var comment = regexp.MustCompile(`#.*`)

// pendingInstruction is recorded during the sweep and resolved during
// emission, mirroring compile.go's (address, line, mnemonic, operands)
// record shape.
type pendingInstruction struct {
	addr     uint16
	line     int
	mnemonic string
	operands []string
}

// AssembleFiles reads one or more source files in order (addresses
// continuing across file boundaries, matching the teacher's
// CompileSource(files ...string)) and assembles them into one image.
func AssembleFiles(paths ...string) (isa.Image, error) {
	var lines []string
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return nil, err
		}
	}
	return Assemble(lines)
}

// AssembleReader assembles source text read from r.
func AssembleReader(r io.Reader) (isa.Image, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return Assemble(lines)
}

// Assemble translates source lines into a binary image. A single sweep
// suffices (§4.3): each line's instruction size is known from its mnemonic
// before operand resolution, so labels can be bound to addresses in one
// pass and operands resolved against the completed table in a second.
func Assemble(lines []string) (isa.Image, error) {
	labels := make(map[string]uint16)
	pending := make([]pendingInstruction, 0, len(lines))
	addr := uint16(0)

	for i, raw := range lines {
		lineNum := i + 1
		line := comment.ReplaceAllString(raw, "")
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if strings.HasSuffix(fields[0], ":") {
			if err := bindLabel(fields[0], addr, labels); err != nil {
				return nil, lineErr(lineNum, err)
			}
			fields = fields[1:]
			if len(fields) == 0 {
				continue
			}
		}

		mnemonic := fields[0]
		operands := fields[1:]

		size, err := instructionSize(mnemonic, operands, lineNum)
		if err != nil {
			return nil, err
		}

		pending = append(pending, pendingInstruction{
			addr:     addr,
			line:     lineNum,
			mnemonic: mnemonic,
			operands: operands,
		})
		addr += uint16(size)
	}

	img := make(isa.Image, addr)
	for _, instr := range pending {
		words, err := emit(instr, labels)
		if err != nil {
			return nil, err
		}
		copy(img[instr.addr:], words)
	}
	return img, nil
}

// bindLabel handles one `label:` token: a symbolic label defines a name at
// the current address; a pointer label (a decimal u16 before the colon)
// instead asserts the current address matches.
func bindLabel(token string, addr uint16, labels map[string]uint16) error {
	name := strings.TrimSuffix(token, ":")
	if name == "" {
		return fmt.Errorf("%w: empty label", ErrSyntaxError)
	}

	if n, err := strconv.ParseUint(name, 10, 16); err == nil {
		if uint16(n) != addr {
			return fmt.Errorf("%w: asserted %d, actual %d", ErrPointerLabelMismatch, n, addr)
		}
		return nil
	}

	// Duplicate symbol definitions: last wins (§9 open question). A later
	// label silently rebinds the name so disassembled round-trip output
	// (one pointer label per address) never hard-fails on overlap with
	// upstream symbolic labels.
	labels[name] = addr
	return nil
}

// instructionSize returns the word size of mnemonic (1 for data, 1+k for a
// real opcode), validating arity along the way so a bad line fails during
// the sweep rather than silently producing a misaligned image.
func instructionSize(mnemonic string, operands []string, lineNum int) (int, error) {
	if mnemonic == isa.DataPseudoOp {
		if len(operands) != 1 {
			return 0, lineErr(lineNum, fmt.Errorf("%w: %s wants 1 operand, got %d", ErrArityMismatch, mnemonic, len(operands)))
		}
		return 1, nil
	}

	op, ok := isa.LookupMnemonic(mnemonic)
	if !ok {
		return 0, lineErr(lineNum, fmt.Errorf("%w: unknown mnemonic %q", ErrSyntaxError, mnemonic))
	}
	if want := op.OperandCount(); len(operands) != want {
		return 0, lineErr(lineNum, fmt.Errorf("%w: %s wants %d operands, got %d", ErrArityMismatch, mnemonic, want, len(operands)))
	}
	return op.Size(), nil
}

// emit resolves instr's operands against the label table and returns its
// words, verbatim per §4.3: a literal token produces that u16, a symbolic
// label produces the label's address.
func emit(instr pendingInstruction, labels map[string]uint16) ([]isa.Word, error) {
	if instr.mnemonic == isa.DataPseudoOp {
		n, err := strconv.ParseUint(instr.operands[0], 10, 16)
		if err != nil {
			return nil, lineErr(instr.line, fmt.Errorf("%w: %q", ErrRegisterOperandInData, instr.operands[0]))
		}
		return []isa.Word{isa.Word(n)}, nil
	}

	op, _ := isa.LookupMnemonic(instr.mnemonic)
	words := make([]isa.Word, 1, op.Size())
	words[0] = isa.Word(op)
	for _, operand := range instr.operands {
		w, err := resolveOperand(operand, labels)
		if err != nil {
			return nil, lineErr(instr.line, err)
		}
		words = append(words, w)
	}
	return words, nil
}

// resolveOperand parses a token as a decimal u16 literal, or else looks it
// up as a symbolic label (defined anywhere in the file, forward or
// backward, per §4.3).
func resolveOperand(token string, labels map[string]uint16) (isa.Word, error) {
	if n, err := strconv.ParseUint(token, 10, 16); err == nil {
		return isa.Word(n), nil
	}
	addr, ok := labels[token]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUndefinedLabel, token)
	}
	return isa.Word(addr), nil
}
