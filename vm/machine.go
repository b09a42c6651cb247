package vm

import (
	"bufio"
	"io"
	"sync/atomic"

	"synacor/isa"
)

// Machine is the mutable substrate of execution (C2): program memory with a
// copy-on-write overlay, eight registers, an unbounded operand stack, and a
// program counter. The base image is immutable after load; writes live in
// the sparse overlay so cloning and snapshotting never have to copy the
// whole address space.
type Machine struct {
	base    isa.Image
	overlay map[uint16]isa.Word

	registers [isa.NumRegisters]isa.Word
	stack     []isa.Word
	pc        uint16

	in  *bufio.Reader
	out *bufio.Writer

	halted    bool
	haltCause error

	// cancelled is polled by Run between instructions; a host-installed
	// signal handler flips it from another goroutine via Cancel(). A
	// word-sized atomic is sufficient since the VM itself is
	// single-threaded (§5) and never reads it mid-instruction.
	cancelled atomic.Bool
}

// New constructs a Machine from a loaded image. Registers and pc start at
// zero, the stack starts empty, and the overlay starts empty (every address
// reads straight through to the base image).
func New(img isa.Image, stdin io.Reader, stdout io.Writer) *Machine {
	return &Machine{
		base:    img,
		overlay: make(map[uint16]isa.Word),
		in:      bufio.NewReader(stdin),
		out:     bufio.NewWriter(stdout),
	}
}

// Clone deep-copies the machine's mutable state (registers, stack, overlay,
// pc) so that speculative execution or a snapshot can diverge from a live
// run without disturbing it. It does not clone the attached IO streams.
func (m *Machine) Clone() *Machine {
	c := &Machine{
		base:      m.base,
		overlay:   make(map[uint16]isa.Word, len(m.overlay)),
		registers: m.registers,
		stack:     append([]isa.Word(nil), m.stack...),
		pc:        m.pc,
		halted:    m.halted,
		haltCause: m.haltCause,
	}
	for addr, w := range m.overlay {
		c.overlay[addr] = w
	}
	return c
}

// PC returns the current program counter.
func (m *Machine) PC() uint16 { return m.pc }

// Registers returns a copy of the register file.
func (m *Machine) Registers() [isa.NumRegisters]isa.Word { return m.registers }

// Stack returns a copy of the operand stack, bottom first.
func (m *Machine) Stack() []isa.Word { return append([]isa.Word(nil), m.stack...) }

// Halted reports whether the machine has stopped, either cleanly (halt, ret
// on an empty stack, or EOF on in) or on a fatal RunError. HaltCause tells
// the two apart.
func (m *Machine) Halted() bool { return m.halted }

// HaltCause returns the fatal error recorded when Halted() is true because
// of a failure rather than a clean stop (nil in the clean-stop case).
func (m *Machine) HaltCause() error { return m.haltCause }

// memRead reads memory[addr], preferring the overlay (read-your-writes).
func (m *Machine) memRead(addr uint16) (isa.Word, error) {
	if w, ok := m.overlay[addr]; ok {
		return w, nil
	}
	if int(addr) >= len(m.base) {
		return 0, ErrAddressOutOfRange
	}
	return m.base[addr], nil
}

// memWrite records a write in the overlay. Writes past the end of the base
// image are invalid.
func (m *Machine) memWrite(addr uint16, value isa.Word) error {
	if int(addr) >= len(m.base) {
		return ErrAddressOutOfRange
	}
	m.overlay[addr] = value
	return nil
}

// resolve implements §4.1's resolve(addr): read memory[addr] and interpret
// it as a literal or register reference. Invalid words are fatal.
func (m *Machine) resolve(addr uint16) (isa.Word, error) {
	w, err := m.memRead(addr)
	if err != nil {
		return 0, err
	}
	switch isa.Classify(w) {
	case isa.Literal:
		return w, nil
	case isa.RegisterRef:
		return m.registers[isa.RegisterIndex(w)], nil
	default:
		return 0, ErrOperandTooLarge
	}
}

// asRegister implements §4.1's as_register(addr): the word at addr must be
// a register reference, not a literal.
func (m *Machine) asRegister(addr uint16) (int, error) {
	w, err := m.memRead(addr)
	if err != nil {
		return 0, err
	}
	switch isa.Classify(w) {
	case isa.RegisterRef:
		return isa.RegisterIndex(w), nil
	case isa.Literal:
		return 0, ErrNotARegister
	default:
		return 0, ErrOperandTooLarge
	}
}

// setRegister stores value mod 32768, per invariant 2 (§3): no register
// write is ever allowed to exceed 32767.
func (m *Machine) setRegister(r int, value uint32) {
	m.registers[r] = isa.Word(value % isa.ModBase)
}

func (m *Machine) push(w isa.Word) {
	m.stack = append(m.stack, w)
}

// pop removes and returns the top of stack. Empty-stack is reported via ok
// so callers (pop vs ret) can react differently, per §4.2's note that ret
// on an empty stack halts rather than faults.
func (m *Machine) pop() (isa.Word, bool) {
	if len(m.stack) == 0 {
		return 0, false
	}
	top := len(m.stack) - 1
	w := m.stack[top]
	m.stack = m.stack[:top]
	return w, true
}
