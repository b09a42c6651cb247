package vm

import (
	"errors"
	"io"
	"unicode/utf8"

	"synacor/isa"
)

// Cancel requests cooperative termination: Run observes this between
// instructions (never mid-instruction) and returns ErrCancelled. Safe to
// call from a signal handler on another goroutine; a word-sized atomic is
// all that's needed since the VM itself never runs concurrently with
// itself (§5).
func (m *Machine) Cancel() {
	m.cancelled.Store(true)
}

// Step executes exactly one instruction. It returns ErrHalted once the
// machine has stopped cleanly, or a *RunError wrapping a fatal §7 error.
func (m *Machine) Step() error {
	if m.halted {
		return ErrHalted
	}

	pc := m.pc
	opWord, err := m.memRead(pc)
	if err != nil {
		m.fail(err)
		return fatalAt(pc, err)
	}
	op := isa.Opcode(opWord)
	if !op.Valid() {
		m.fail(ErrUnknownOpcode)
		return fatalAt(pc, ErrUnknownOpcode)
	}

	if err := m.exec(op, pc); err != nil {
		if err == ErrHalted {
			m.halt(nil)
			return ErrHalted
		}
		m.fail(err)
		return fatalAt(pc, err)
	}
	return nil
}

// Run executes instructions until halt, a fatal error, or Cancel is
// observed between instructions (never mid-instruction). Returns
// ErrHalted, ErrCancelled, or a *RunError — never nil.
func (m *Machine) Run() error {
	for {
		if m.cancelled.Load() {
			return ErrCancelled
		}
		if err := m.Step(); err != nil {
			m.out.Flush()
			return err
		}
	}
}

func (m *Machine) halt(cause error) {
	m.halted = true
	m.haltCause = cause
}

func (m *Machine) fail(err error) {
	m.halted = true
	m.haltCause = err
}

// exec dispatches and performs one instruction's effect, advancing pc
// itself (by the instruction's size, or by replacing it for jumps/calls).
// This mirrors the teacher's execInstructions switch in vm/vm.go: one
// opcode, one case, no helper indirection for the architecturally-small
// ones.
func (m *Machine) exec(op isa.Opcode, pc uint16) error {
	next := pc + uint16(op.Size())

	switch op {
	case isa.OpHalt:
		return ErrHalted

	case isa.OpSet:
		a, err := m.asRegister(pc + 1)
		if err != nil {
			return err
		}
		b, err := m.resolve(pc + 2)
		if err != nil {
			return err
		}
		m.setRegister(a, uint32(b))

	case isa.OpPush:
		a, err := m.resolve(pc + 1)
		if err != nil {
			return err
		}
		m.push(a)

	case isa.OpPop:
		a, err := m.asRegister(pc + 1)
		if err != nil {
			return err
		}
		w, ok := m.pop()
		if !ok {
			return ErrStackUnderflow
		}
		m.setRegister(a, uint32(w))

	case isa.OpEq:
		a, b, c, err := m.regAndTwoOperands(pc)
		if err != nil {
			return err
		}
		m.setRegister(a, boolWord(b == c))

	case isa.OpGt:
		a, b, c, err := m.regAndTwoOperands(pc)
		if err != nil {
			return err
		}
		m.setRegister(a, boolWord(b > c))

	case isa.OpJmp:
		addr, err := m.resolve(pc + 1)
		if err != nil {
			return err
		}
		next = uint16(addr)

	case isa.OpJt:
		cond, err := m.resolve(pc + 1)
		if err != nil {
			return err
		}
		if cond != 0 {
			addr, err := m.resolve(pc + 2)
			if err != nil {
				return err
			}
			next = uint16(addr)
		}

	case isa.OpJf:
		cond, err := m.resolve(pc + 1)
		if err != nil {
			return err
		}
		if cond == 0 {
			addr, err := m.resolve(pc + 2)
			if err != nil {
				return err
			}
			next = uint16(addr)
		}

	case isa.OpAdd:
		a, b, c, err := m.regAndTwoOperands(pc)
		if err != nil {
			return err
		}
		m.setRegister(a, uint32(b)+uint32(c))

	case isa.OpMult:
		a, b, c, err := m.regAndTwoOperands(pc)
		if err != nil {
			return err
		}
		// Widen to at least 32 bits before reducing: operands reach up to
		// 32767, so the product can reach ~1.07e9.
		m.setRegister(a, uint32(b)*uint32(c))

	case isa.OpMod:
		a, b, c, err := m.regAndTwoOperands(pc)
		if err != nil {
			return err
		}
		if c == 0 {
			return ErrDivisionByZero
		}
		m.setRegister(a, uint32(b)%uint32(c))

	case isa.OpAnd:
		a, b, c, err := m.regAndTwoOperands(pc)
		if err != nil {
			return err
		}
		m.setRegister(a, uint32(b)&uint32(c))

	case isa.OpOr:
		a, b, c, err := m.regAndTwoOperands(pc)
		if err != nil {
			return err
		}
		m.setRegister(a, uint32(b)|uint32(c))

	case isa.OpNot:
		a, err := m.asRegister(pc + 1)
		if err != nil {
			return err
		}
		b, err := m.resolve(pc + 2)
		if err != nil {
			return err
		}
		m.setRegister(a, uint32(0x7FFF^b))

	case isa.OpRmem:
		a, err := m.asRegister(pc + 1)
		if err != nil {
			return err
		}
		addr, err := m.resolve(pc + 2)
		if err != nil {
			return err
		}
		w, err := m.memRead(uint16(addr))
		if err != nil {
			return err
		}
		m.setRegister(a, uint32(w))

	case isa.OpWmem:
		addr, err := m.resolve(pc + 1)
		if err != nil {
			return err
		}
		value, err := m.resolve(pc + 2)
		if err != nil {
			return err
		}
		if err := m.memWrite(uint16(addr), value); err != nil {
			return err
		}

	case isa.OpCall:
		addr, err := m.resolve(pc + 1)
		if err != nil {
			return err
		}
		m.push(isa.Word(next))
		next = uint16(addr)

	case isa.OpRet:
		w, ok := m.pop()
		if !ok {
			return ErrHalted
		}
		next = uint16(w)

	case isa.OpOut:
		ch, err := m.resolve(pc + 1)
		if err != nil {
			return err
		}
		if err := m.writeChar(ch); err != nil {
			return err
		}

	case isa.OpIn:
		a, err := m.asRegister(pc + 1)
		if err != nil {
			return err
		}
		b, halted, err := m.readByte()
		if err != nil {
			return err
		}
		if halted {
			return ErrHalted
		}
		m.setRegister(a, uint32(b))

	case isa.OpNoop:
		// no effect

	default:
		return ErrUnknownOpcode
	}

	m.pc = next
	return nil
}

// regAndTwoOperands reads the destination register and two resolved
// operands shared by eq/gt/add/mult/mod/and/or's `a b c` shape.
func (m *Machine) regAndTwoOperands(pc uint16) (a int, b, c isa.Word, err error) {
	a, err = m.asRegister(pc + 1)
	if err != nil {
		return
	}
	b, err = m.resolve(pc + 2)
	if err != nil {
		return
	}
	c, err = m.resolve(pc + 3)
	return
}

func boolWord(cond bool) uint32 {
	if cond {
		return 1
	}
	return 0
}

// writeChar emits the codepoint resolve(a) produced, as a single UTF-8
// encoded character (equivalently, a UTF-16 code unit for codepoints
// <= 0xFFFF that aren't surrogates). Surrogate values are fatal, per §4.2.
// Flushed immediately, the same as the teacher's Writec case
// (vm.stdout.WriteString(...); vm.stdout.Flush()): a prompt printed by
// `out` must reach the terminal even though the very next instruction may
// block in `in` waiting on that prompt's reply.
func (m *Machine) writeChar(w isa.Word) error {
	r := rune(w)
	if r >= 0xD800 && r <= 0xDFFF {
		return ErrEncodingFailure
	}
	buf := make([]byte, utf8.UTFMax)
	n := utf8.EncodeRune(buf, r)
	if _, err := m.out.Write(buf[:n]); err != nil {
		return ErrIOFailure
	}
	if err := m.out.Flush(); err != nil {
		return ErrIOFailure
	}
	return nil
}

// Flush pushes any buffered output out, for callers (the debugger) that
// drive the machine with Step rather than Run.
func (m *Machine) Flush() error {
	return m.out.Flush()
}

// readByte reads one raw input byte, silently skipping CR (13) so that
// "\r\n" line endings collapse to "\n". EOF is reported as a clean halt,
// not a fatal error; any other read failure is ErrIOFailure, per §7 —
// the original only halts on a zero-byte read and errors otherwise
// (vm.rs's in_op).
func (m *Machine) readByte() (b byte, halted bool, err error) {
	for {
		b, rerr := m.in.ReadByte()
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return 0, true, nil
			}
			return 0, false, ErrIOFailure
		}
		if b == 13 {
			continue
		}
		return b, false, nil
	}
}
