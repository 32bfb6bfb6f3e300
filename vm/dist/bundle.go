// Package dist packages compiled push programs for distribution. A bundle
// wraps a binary program in a CBOR envelope that records where it came
// from and which built-ins it needs, so that a receiver can check it
// before running it.
package dist

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/chazu/push/vm"
)

// BundleVersion is the envelope format version written by NewBundle.
const BundleVersion = 1

// Extension is the file extension used for bundles.
const Extension = ".pushb"

// ErrTampered is returned by Verify when the program does not match its
// recorded hash.
var ErrTampered = errors.New("dist: program hash mismatch")

// Bundle is the unit of distribution: a binary program plus metadata.
type Bundle struct {
	Version         uint     `cbor:"1,keyasint"`
	Name            string   `cbor:"2,keyasint"`
	SourceHash      [32]byte `cbor:"3,keyasint"`
	Program         []byte   `cbor:"4,keyasint"`
	ProgramHash     [32]byte `cbor:"5,keyasint"`
	BuiltinsVersion uint     `cbor:"6,keyasint"`
	Builtins        []string `cbor:"7,keyasint,omitempty"` // built-ins called by the program
}

// NewBundle wraps a compiled program. The program is scanned for CALL
// instructions to record the built-ins it requires.
func NewBundle(name, source string, program []byte) (*Bundle, error) {
	required, err := RequiredBuiltins(program)
	if err != nil {
		return nil, err
	}
	return &Bundle{
		Version:         BundleVersion,
		Name:            name,
		SourceHash:      sha256.Sum256([]byte(source)),
		Program:         program,
		ProgramHash:     sha256.Sum256(program),
		BuiltinsVersion: vm.BuiltinsVersion,
		Builtins:        required,
	}, nil
}

// Verify checks that the bundle can be run by this build: its versions are
// not newer than ours, the program matches its hash, the header is valid
// and the declared built-ins match the program.
func (b *Bundle) Verify() error {
	if b.Version == 0 || b.Version > BundleVersion {
		return fmt.Errorf("dist: unsupported bundle version %d", b.Version)
	}
	if b.BuiltinsVersion > vm.BuiltinsVersion {
		return fmt.Errorf("dist: bundle needs built-ins version %d, have %d", b.BuiltinsVersion, vm.BuiltinsVersion)
	}
	if computed := sha256.Sum256(b.Program); computed != b.ProgramHash {
		return fmt.Errorf("%w: declared %x, computed %x", ErrTampered, b.ProgramHash, computed)
	}

	required, err := RequiredBuiltins(b.Program)
	if err != nil {
		return err
	}
	declared := make(map[string]bool, len(b.Builtins))
	for _, name := range b.Builtins {
		declared[name] = true
	}
	for _, name := range required {
		if !declared[name] {
			return fmt.Errorf("dist: program calls undeclared built-in %q", name)
		}
	}
	return nil
}

// RequiredBuiltins returns the names of the built-ins a program calls, in
// id order.
func RequiredBuiltins(program []byte) ([]string, error) {
	p, err := vm.DecodeProgram(program)
	if err != nil {
		return nil, err
	}

	used := make(map[int64]bool)
	r := vm.NewBytecodeReader(program, int(p.CodeOffset), int(p.DataOffset))
	for r.HasMore() {
		pos := r.Position()
		op, _ := r.ReadOpcode()
		if !op.Valid() {
			return nil, fmt.Errorf("dist: invalid opcode 0x%02X at %04x", byte(op), pos)
		}
		if op.OperandBytes() == 0 {
			continue
		}
		v, ok := r.ReadInt64()
		if !ok {
			return nil, fmt.Errorf("dist: truncated %s at %04x", op, pos)
		}
		if op == vm.OpCall {
			if _, known := vm.BuiltinByID(v); !known {
				return nil, fmt.Errorf("dist: unknown built-in %d at %04x", v, pos)
			}
			used[v] = true
		}
	}

	var names []string
	for _, b := range vm.Builtins() {
		if used[int64(b.ID)] {
			names = append(names, b.Name)
		}
	}
	return names, nil
}
