package vm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

const (
	OpPush    Opcode = 0x01 // push signed 64-bit immediate
	OpDup     Opcode = 0x02 // duplicate top of stack
	OpSwap    Opcode = 0x03 // exchange top two
	OpOver    Opcode = 0x04 // copy second to top
	OpAdd     Opcode = 0x05 // a b -- a+b
	OpSub     Opcode = 0x06 // a b -- a-b
	OpEqual   Opcode = 0x07 // a b -- a=b
	OpGreater Opcode = 0x08 // a b -- a>b
	OpBranch  Opcode = 0x09 // pop, jump to absolute target if zero
	OpJump    Opcode = 0x0A // jump to absolute target
	OpCall    Opcode = 0x0B // call built-in by id
	OpPoke    Opcode = 0x0C // value addr -- ; store byte into heap
	OpExit    Opcode = 0xFF // halt
)

// OperandSize is the width of every instruction operand.
const OperandSize = 8

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OperandKind describes how an instruction's operand is interpreted.
type OperandKind uint8

const (
	OperandNone    OperandKind = iota
	OperandInt                 // signed 64-bit immediate
	OperandTarget              // unsigned absolute byte offset
	OperandBuiltin             // built-in id
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name      string      // human-readable name
	Operand   OperandKind // operand interpretation
	StackPop  int         // values consumed
	StackPush int         // values produced
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpPush:    {"PUSH", OperandInt, 0, 1},
	OpDup:     {"DUP", OperandNone, 1, 2},
	OpSwap:    {"SWAP", OperandNone, 2, 2},
	OpOver:    {"OVER", OperandNone, 2, 3},
	OpAdd:     {"ADD", OperandNone, 2, 1},
	OpSub:     {"SUB", OperandNone, 2, 1},
	OpEqual:   {"EQUAL", OperandNone, 2, 1},
	OpGreater: {"GREATER", OperandNone, 2, 1},
	OpBranch:  {"BRANCH", OperandTarget, 1, 0},
	OpJump:    {"JUMP", OperandTarget, 0, 0},
	OpCall:    {"CALL", OperandBuiltin, -1, -1}, // depends on the built-in
	OpPoke:    {"POKE", OperandNone, 2, 0},
	OpExit:    {"EXIT", OperandNone, 0, 0},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// Name returns the human-readable name for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// OperandBytes returns the number of operand bytes for an opcode.
func (op Opcode) OperandBytes() int {
	if op.Info().Operand == OperandNone {
		return 0
	}
	return OperandSize
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandBytes()
}

// IsJump returns true if the operand is a jump target.
func (op Opcode) IsJump() bool {
	return op.Info().Operand == OperandTarget
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// AllOpcodes returns every defined opcode in byte order.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeTable))
	for b := 0; b < 256; b++ {
		if op := Opcode(b); op.Valid() {
			ops = append(ops, op)
		}
	}
	return ops
}

// ---------------------------------------------------------------------------
// BytecodeBuilder: Helper for constructing bytecode
// ---------------------------------------------------------------------------

// placeholder is written into reserved operand slots until they are patched.
const placeholder = ^uint64(0)

// BytecodeBuilder is a growable byte arena addressed by absolute offset.
// Operand slots that are not yet known are reserved with Reserve and later
// overwritten in place with Patch.
type BytecodeBuilder struct {
	bytes    []byte
	reserved map[int]bool
}

// NewBytecodeBuilder creates a new bytecode builder.
func NewBytecodeBuilder() *BytecodeBuilder {
	return &BytecodeBuilder{
		bytes:    make([]byte, 0, 64),
		reserved: make(map[int]bool),
	}
}

// Bytes returns the constructed bytecode.
func (b *BytecodeBuilder) Bytes() []byte {
	return b.bytes
}

// Len returns the current length, which is also the write cursor.
func (b *BytecodeBuilder) Len() int {
	return len(b.bytes)
}

// Emit appends an opcode with no operands.
func (b *BytecodeBuilder) Emit(op Opcode) {
	b.bytes = append(b.bytes, byte(op))
}

// EmitRaw appends raw bytes.
func (b *BytecodeBuilder) EmitRaw(data ...byte) {
	b.bytes = append(b.bytes, data...)
}

// EmitUint64 appends a bare little-endian u64.
func (b *BytecodeBuilder) EmitUint64(v uint64) {
	b.bytes = binary.LittleEndian.AppendUint64(b.bytes, v)
}

// EmitInt64 appends an opcode with a signed 64-bit operand.
func (b *BytecodeBuilder) EmitInt64(op Opcode, operand int64) {
	b.bytes = append(b.bytes, byte(op))
	b.bytes = binary.LittleEndian.AppendUint64(b.bytes, uint64(operand))
}

// EmitTarget appends a jump-style opcode with a known absolute target.
func (b *BytecodeBuilder) EmitTarget(op Opcode, target int) {
	b.bytes = append(b.bytes, byte(op))
	b.bytes = binary.LittleEndian.AppendUint64(b.bytes, uint64(target))
}

// Reserve appends an 8-byte placeholder and returns its offset.
func (b *BytecodeBuilder) Reserve() int {
	offset := len(b.bytes)
	b.reserved[offset] = true
	b.bytes = binary.LittleEndian.AppendUint64(b.bytes, placeholder)
	return offset
}

// EmitForward appends op followed by a reserved operand slot and returns
// the slot's offset.
func (b *BytecodeBuilder) EmitForward(op Opcode) int {
	b.Emit(op)
	return b.Reserve()
}

// Patch overwrites a reserved slot with v. Each slot can be patched once.
func (b *BytecodeBuilder) Patch(offset int, v uint64) error {
	if !b.reserved[offset] {
		return fmt.Errorf("patch at %d: offset was not reserved", offset)
	}
	delete(b.reserved, offset)
	binary.LittleEndian.PutUint64(b.bytes[offset:], v)
	return nil
}

// PatchHere patches a reserved slot with the current cursor position.
func (b *BytecodeBuilder) PatchHere(offset int) error {
	return b.Patch(offset, uint64(len(b.bytes)))
}

// Pending returns the number of reserved slots not yet patched.
func (b *BytecodeBuilder) Pending() int {
	return len(b.reserved)
}

// ---------------------------------------------------------------------------
// Bytecode reader
// ---------------------------------------------------------------------------

// BytecodeReader reads instructions from a bounded region of a program.
// Reads outside [start, end) fail instead of running into the data section.
type BytecodeReader struct {
	bytes []byte
	pos   int
	start int
	end   int
}

// NewBytecodeReader creates a reader over bc[start:end], positioned at start.
func NewBytecodeReader(bc []byte, start, end int) *BytecodeReader {
	return &BytecodeReader{bytes: bc, pos: start, start: start, end: end}
}

// Position returns the current read position.
func (r *BytecodeReader) Position() int {
	return r.pos
}

// HasMore returns true if there are more bytes to read.
func (r *BytecodeReader) HasMore() bool {
	return r.pos < r.end
}

// InBounds reports whether pos lies inside the readable region.
func (r *BytecodeReader) InBounds(pos uint64) bool {
	return pos >= uint64(r.start) && pos < uint64(r.end)
}

// Seek sets the read position.
func (r *BytecodeReader) Seek(pos int) {
	r.pos = pos
}

// ReadOpcode reads and returns the next opcode.
func (r *BytecodeReader) ReadOpcode() (Opcode, bool) {
	if r.pos < r.start || r.pos >= r.end {
		return 0, false
	}
	op := Opcode(r.bytes[r.pos])
	r.pos++
	return op, true
}

// ReadUint64 reads a little-endian 64-bit operand.
func (r *BytecodeReader) ReadUint64() (uint64, bool) {
	if r.pos < r.start || r.pos+OperandSize > r.end {
		return 0, false
	}
	v := binary.LittleEndian.Uint64(r.bytes[r.pos:])
	r.pos += OperandSize
	return v, true
}

// ReadInt64 reads a little-endian signed 64-bit operand.
func (r *BytecodeReader) ReadInt64() (int64, bool) {
	v, ok := r.ReadUint64()
	return int64(v), ok
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction disassembles a single instruction at the reader's
// position and advances the reader.
func DisassembleInstruction(r *BytecodeReader) (string, error) {
	pos := r.Position()
	op, ok := r.ReadOpcode()
	if !ok {
		return "", fmt.Errorf("%04x: read past end of code", pos)
	}
	info := op.Info()
	if !op.Valid() {
		return fmt.Sprintf("%04x  %s", pos, info.Name), nil
	}

	switch info.Operand {
	case OperandInt:
		v, ok := r.ReadInt64()
		if !ok {
			return "", fmt.Errorf("%04x: truncated %s operand", pos, info.Name)
		}
		return fmt.Sprintf("%04x  %-8s %d", pos, info.Name, v), nil

	case OperandTarget:
		target, ok := r.ReadUint64()
		if !ok {
			return "", fmt.Errorf("%04x: truncated %s operand", pos, info.Name)
		}
		return fmt.Sprintf("%04x  %-8s -> %04x", pos, info.Name, target), nil

	case OperandBuiltin:
		id, ok := r.ReadInt64()
		if !ok {
			return "", fmt.Errorf("%04x: truncated %s operand", pos, info.Name)
		}
		name := "?"
		if b, found := BuiltinByID(id); found {
			name = b.Name
		}
		return fmt.Sprintf("%04x  %-8s %d (%s)", pos, info.Name, id, name), nil

	default:
		return fmt.Sprintf("%04x  %s", pos, info.Name), nil
	}
}

// Disassemble returns a human-readable listing of a binary program.
func Disassemble(program []byte) (string, error) {
	p, err := DecodeProgram(program)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; push bytecode, %d bytes\n", len(program)))
	sb.WriteString(fmt.Sprintf("; code: %04x..%04x\n", p.CodeOffset, p.DataOffset))
	sb.WriteString(fmt.Sprintf("; data: %04x..%04x (%d bytes)\n", p.DataOffset, len(program), len(p.Data)))
	sb.WriteString("\n")

	r := NewBytecodeReader(program, int(p.CodeOffset), int(p.DataOffset))
	for r.HasMore() {
		line, err := DisassembleInstruction(r)
		if err != nil {
			return "", err
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if len(p.Data) > 0 {
		sb.WriteString("\n; data section:\n")
		sb.WriteString(fmt.Sprintf(";   %q\n", p.Data))
	}
	return sb.String(), nil
}
