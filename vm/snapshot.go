package vm

import (
	"bytes"
	"encoding/gob"
	"io"

	"synacor/isa"
)

// Snapshot captures everything about a running machine that isn't the
// (immutable) base image: the copy-on-write overlay, registers, stack, and
// pc. The format is implementation-defined per §6 — gob is the stdlib
// choice the teacher pack reaches for when no example wires a third-party
// serialization library in real (non-indirect) use (see DESIGN.md).
type Snapshot struct {
	Overlay   map[uint16]isa.Word
	Registers [isa.NumRegisters]isa.Word
	Stack     []isa.Word
	PC        uint16
}

// Snapshot captures m's current mutable state.
func (m *Machine) Snapshot() Snapshot {
	overlay := make(map[uint16]isa.Word, len(m.overlay))
	for addr, w := range m.overlay {
		overlay[addr] = w
	}
	return Snapshot{
		Overlay:   overlay,
		Registers: m.registers,
		Stack:     append([]isa.Word(nil), m.stack...),
		PC:        m.pc,
	}
}

// Restore replaces m's mutable state with snap's. The base image and
// attached IO streams are left untouched; halted/cancelled status resets,
// matching "resume from here" semantics.
func (m *Machine) Restore(snap Snapshot) {
	m.overlay = make(map[uint16]isa.Word, len(snap.Overlay))
	for addr, w := range snap.Overlay {
		m.overlay[addr] = w
	}
	m.registers = snap.Registers
	m.stack = append([]isa.Word(nil), snap.Stack...)
	m.pc = snap.PC
	m.halted = false
	m.haltCause = nil
	m.cancelled.Store(false)
}

// EncodeSnapshot gob-encodes a snapshot to w.
func EncodeSnapshot(w io.Writer, snap Snapshot) error {
	return gob.NewEncoder(w).Encode(snap)
}

// DecodeSnapshot gob-decodes a snapshot from r.
func DecodeSnapshot(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// MarshalSnapshot is a convenience wrapper returning bytes instead of
// requiring a caller-owned writer.
func MarshalSnapshot(snap Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeSnapshot(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
