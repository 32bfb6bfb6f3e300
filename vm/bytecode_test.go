package vm

import (
	"encoding/binary"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Opcode metadata tests
// ---------------------------------------------------------------------------

func TestOpcodeInfo(t *testing.T) {
	tests := []struct {
		op           Opcode
		value        byte
		name         string
		operandBytes int
	}{
		{OpPush, 0x01, "PUSH", 8},
		{OpDup, 0x02, "DUP", 0},
		{OpSwap, 0x03, "SWAP", 0},
		{OpOver, 0x04, "OVER", 0},
		{OpAdd, 0x05, "ADD", 0},
		{OpSub, 0x06, "SUB", 0},
		{OpEqual, 0x07, "EQUAL", 0},
		{OpGreater, 0x08, "GREATER", 0},
		{OpBranch, 0x09, "BRANCH", 8},
		{OpJump, 0x0A, "JUMP", 8},
		{OpCall, 0x0B, "CALL", 8},
		{OpPoke, 0x0C, "POKE", 0},
		{OpExit, 0xFF, "EXIT", 0},
	}

	for _, tt := range tests {
		if byte(tt.op) != tt.value {
			t.Errorf("%s = 0x%02X, want 0x%02X", tt.name, byte(tt.op), tt.value)
		}
		if got := tt.op.Name(); got != tt.name {
			t.Errorf("0x%02X: Name = %q, want %q", tt.value, got, tt.name)
		}
		if got := tt.op.OperandBytes(); got != tt.operandBytes {
			t.Errorf("%s: OperandBytes = %d, want %d", tt.name, got, tt.operandBytes)
		}
		if got := tt.op.InstructionLen(); got != 1+tt.operandBytes {
			t.Errorf("%s: InstructionLen = %d, want %d", tt.name, got, 1+tt.operandBytes)
		}
	}
}

func TestOpcodeUnknown(t *testing.T) {
	op := Opcode(0x42)
	if op.Valid() {
		t.Fatal("0x42 should not be a valid opcode")
	}
	if got := op.String(); got != "UNKNOWN_42" {
		t.Errorf("String = %q, want UNKNOWN_42", got)
	}
	if Opcode(0x00).Valid() {
		t.Error("0x00 should not be a valid opcode")
	}
}

func TestOpcodeIsJump(t *testing.T) {
	for _, op := range AllOpcodes() {
		want := op == OpBranch || op == OpJump
		if op.IsJump() != want {
			t.Errorf("%s: IsJump = %v, want %v", op, op.IsJump(), want)
		}
	}
}

func TestAllOpcodes(t *testing.T) {
	ops := AllOpcodes()
	if len(ops) != 13 {
		t.Fatalf("AllOpcodes returned %d opcodes, want 13", len(ops))
	}
	if ops[0] != OpPush || ops[len(ops)-1] != OpExit {
		t.Errorf("AllOpcodes not in byte order: %v", ops)
	}
}

// ---------------------------------------------------------------------------
// BytecodeBuilder tests
// ---------------------------------------------------------------------------

func TestBuilderEmitInt64(t *testing.T) {
	b := NewBytecodeBuilder()
	b.EmitInt64(OpPush, -2)

	bc := b.Bytes()
	if len(bc) != 9 {
		t.Fatalf("len = %d, want 9", len(bc))
	}
	if Opcode(bc[0]) != OpPush {
		t.Errorf("opcode = %s, want PUSH", Opcode(bc[0]))
	}
	if got := int64(binary.LittleEndian.Uint64(bc[1:])); got != -2 {
		t.Errorf("operand = %d, want -2", got)
	}
}

func TestBuilderForwardPatch(t *testing.T) {
	b := NewBytecodeBuilder()
	slot := b.EmitForward(OpJump)
	if slot != 1 {
		t.Fatalf("slot = %d, want 1", slot)
	}
	if b.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", b.Pending())
	}
	b.Emit(OpExit)

	if err := b.PatchHere(slot); err != nil {
		t.Fatalf("PatchHere: %v", err)
	}
	if b.Pending() != 0 {
		t.Errorf("Pending after patch = %d, want 0", b.Pending())
	}
	if got := binary.LittleEndian.Uint64(b.Bytes()[slot:]); got != 10 {
		t.Errorf("patched target = %d, want 10", got)
	}

	if err := b.Patch(slot, 0); err == nil {
		t.Error("patching the same slot twice should fail")
	}
	if err := b.Patch(0, 0); err == nil {
		t.Error("patching an unreserved offset should fail")
	}
}

// ---------------------------------------------------------------------------
// BytecodeReader tests
// ---------------------------------------------------------------------------

func TestReaderBounds(t *testing.T) {
	bc := []byte{0xAA, byte(OpPush), 1, 0, 0, 0, 0, 0, 0, 0, 0xBB}
	r := NewBytecodeReader(bc, 1, 10)

	op, ok := r.ReadOpcode()
	if !ok || op != OpPush {
		t.Fatalf("ReadOpcode = %s, %v", op, ok)
	}
	v, ok := r.ReadInt64()
	if !ok || v != 1 {
		t.Fatalf("ReadInt64 = %d, %v", v, ok)
	}
	if r.HasMore() {
		t.Error("reader should be exhausted")
	}
	if _, ok := r.ReadOpcode(); ok {
		t.Error("read past end should fail")
	}

	if r.InBounds(0) || !r.InBounds(1) || !r.InBounds(9) || r.InBounds(10) {
		t.Error("InBounds disagrees with [1, 10)")
	}

	r.Seek(5)
	if _, ok := r.ReadUint64(); ok {
		t.Error("operand straddling the end should fail")
	}
}

// ---------------------------------------------------------------------------
// Disassembler tests
// ---------------------------------------------------------------------------

func TestDisassemble(t *testing.T) {
	b := NewBytecodeBuilder()
	slot := WriteHeader(b)
	b.EmitInt64(OpPush, 42)
	b.EmitTarget(OpJump, HeaderSize)
	b.EmitInt64(OpCall, int64(BuiltinPutd))
	b.Emit(OpExit)
	b.PatchHere(slot)
	b.EmitRaw('h', 'i')

	out, err := Disassemble(b.Bytes())
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}

	for _, want := range []string{
		"0010  PUSH     42",
		"0019  JUMP     -> 0010",
		"0022  CALL     0 (putd)",
		"002b  EXIT",
		`"hi"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
}

func TestDisassembleTruncated(t *testing.T) {
	program := EncodeProgram([]byte{byte(OpPush), 1, 2}, nil)
	if _, err := Disassemble(program); err == nil {
		t.Error("expected error for truncated operand")
	}
}
