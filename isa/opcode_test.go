package isa

import "testing"

func TestOpcodeArityMatchesSpec(t *testing.T) {
	cases := []struct {
		op   Opcode
		want int
	}{
		{OpHalt, 0}, {OpSet, 2}, {OpPush, 1}, {OpPop, 1},
		{OpEq, 3}, {OpGt, 3}, {OpJmp, 1}, {OpJt, 2}, {OpJf, 2},
		{OpAdd, 3}, {OpMult, 3}, {OpMod, 3}, {OpAnd, 3}, {OpOr, 3},
		{OpNot, 2}, {OpRmem, 2}, {OpWmem, 2}, {OpCall, 1}, {OpRet, 0},
		{OpOut, 1}, {OpIn, 1}, {OpNoop, 0},
	}
	for _, c := range cases {
		if got := c.op.OperandCount(); got != c.want {
			t.Errorf("%s: OperandCount() = %d, want %d", c.op, got, c.want)
		}
		if got := c.op.Size(); got != c.want+1 {
			t.Errorf("%s: Size() = %d, want %d", c.op, got, c.want+1)
		}
	}
}

func TestOpcodeValid(t *testing.T) {
	if !OpHalt.Valid() || !OpNoop.Valid() {
		t.Fatal("boundary opcodes must be valid")
	}
	if Opcode(NumOpcodes).Valid() {
		t.Fatal("opcode == NumOpcodes must be invalid")
	}
	if Opcode(9999).Valid() {
		t.Fatal("arbitrary large opcode must be invalid")
	}
}

func TestLookupMnemonicRoundTrip(t *testing.T) {
	for _, name := range Mnemonics() {
		op, ok := LookupMnemonic(name)
		if !ok {
			t.Fatalf("LookupMnemonic(%q) not found", name)
		}
		if op.String() != name {
			t.Fatalf("opcode %d round-trips to %q, want %q", op, op.String(), name)
		}
	}
}

func TestLookupMnemonicUnknown(t *testing.T) {
	if _, ok := LookupMnemonic("frobnicate"); ok {
		t.Fatal("unknown mnemonic should not resolve")
	}
}
