package vm

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the length of the program header: the code-section offset
// followed by the data-section offset, both little-endian u64.
const HeaderSize = 16

// Header field positions.
const (
	codeOffsetField = 0
	dataOffsetField = 8
)

// ErrBadHeader is returned for programs whose header is truncated or whose
// section offsets are inconsistent.
var ErrBadHeader = errors.New("bad program header")

// Program is a decoded view of a binary program. Code and Data alias the
// original buffer.
//
// Format:
//
//	[code_offset:8] [data_offset:8]
//	[code: code_offset..data_offset]
//	[data: data_offset..end]
//
// Jump targets inside Code are absolute offsets into the whole buffer.
type Program struct {
	CodeOffset uint64
	DataOffset uint64
	Code       []byte
	Data       []byte
}

// DecodeProgram validates the header of a binary program and splits it into
// its sections.
func DecodeProgram(data []byte) (*Program, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrBadHeader, HeaderSize, len(data))
	}

	p := &Program{
		CodeOffset: binary.LittleEndian.Uint64(data[codeOffsetField:]),
		DataOffset: binary.LittleEndian.Uint64(data[dataOffsetField:]),
	}

	if p.CodeOffset < HeaderSize {
		return nil, fmt.Errorf("%w: code offset %d overlaps the header", ErrBadHeader, p.CodeOffset)
	}
	if p.DataOffset < p.CodeOffset {
		return nil, fmt.Errorf("%w: data offset %d precedes code offset %d", ErrBadHeader, p.DataOffset, p.CodeOffset)
	}
	if p.DataOffset > uint64(len(data)) {
		return nil, fmt.Errorf("%w: data offset %d beyond end of program (%d bytes)", ErrBadHeader, p.DataOffset, len(data))
	}

	p.Code = data[p.CodeOffset:p.DataOffset]
	p.Data = data[p.DataOffset:]
	return p, nil
}

// EncodeProgram lays out a program with the code section immediately after
// the header. code must already use absolute jump targets based at
// HeaderSize.
func EncodeProgram(code, data []byte) []byte {
	buf := make([]byte, 0, HeaderSize+len(code)+len(data))
	buf = binary.LittleEndian.AppendUint64(buf, HeaderSize)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(HeaderSize+len(code)))
	buf = append(buf, code...)
	buf = append(buf, data...)
	return buf
}

// WriteHeader reserves the header at the start of an empty builder. The
// code offset is written immediately; the data offset slot is returned for
// patching once the code section is complete.
func WriteHeader(b *BytecodeBuilder) int {
	b.EmitUint64(HeaderSize)
	return b.Reserve()
}
