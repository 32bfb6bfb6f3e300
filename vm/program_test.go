package vm

import (
	"encoding/binary"
	"errors"
	"testing"
)

func header(code, data uint64) []byte {
	b := binary.LittleEndian.AppendUint64(nil, code)
	return binary.LittleEndian.AppendUint64(b, data)
}

func TestDecodeProgram(t *testing.T) {
	program := EncodeProgram([]byte{byte(OpExit)}, []byte("abc"))

	p, err := DecodeProgram(program)
	if err != nil {
		t.Fatalf("DecodeProgram: %v", err)
	}
	if p.CodeOffset != 16 || p.DataOffset != 17 {
		t.Errorf("offsets = %d, %d; want 16, 17", p.CodeOffset, p.DataOffset)
	}
	if len(p.Code) != 1 || Opcode(p.Code[0]) != OpExit {
		t.Errorf("code = %v", p.Code)
	}
	if string(p.Data) != "abc" {
		t.Errorf("data = %q, want abc", p.Data)
	}
}

func TestDecodeProgramBadHeader(t *testing.T) {
	tests := []struct {
		name    string
		program []byte
	}{
		{"empty", nil},
		{"short", make([]byte, 15)},
		{"code in header", header(8, 16)},
		{"data before code", append(header(17, 16), 0xFF)},
		{"data past end", append(header(16, 20), 0xFF)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeProgram(tt.program)
			if !errors.Is(err, ErrBadHeader) {
				t.Errorf("err = %v, want ErrBadHeader", err)
			}
		})
	}
}

func TestWriteHeader(t *testing.T) {
	b := NewBytecodeBuilder()
	slot := WriteHeader(b)
	if slot != 8 {
		t.Fatalf("data offset slot = %d, want 8", slot)
	}
	b.Emit(OpExit)
	if err := b.PatchHere(slot); err != nil {
		t.Fatal(err)
	}

	p, err := DecodeProgram(b.Bytes())
	if err != nil {
		t.Fatalf("DecodeProgram: %v", err)
	}
	if p.CodeOffset != HeaderSize || p.DataOffset != HeaderSize+1 {
		t.Errorf("offsets = %d, %d", p.CodeOffset, p.DataOffset)
	}
}
