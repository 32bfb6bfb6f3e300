package compiler

import (
	"fmt"

	"github.com/chazu/push/vm"
)

// ---------------------------------------------------------------------------
// Codegen: assemble operations into a binary program
// ---------------------------------------------------------------------------

// xrefKind names the construct a backpatch entry belongs to.
type xrefKind int

const (
	xrefIf xrefKind = iota
	xrefElse
	xrefWhile
	xrefDo
)

var xrefNames = [...]string{"if", "else", "while", "do"}

func (k xrefKind) String() string { return xrefNames[k] }

// xref is an entry on the cross-reference stack. For if, else and do the
// offset is a reserved operand slot; for while it is the loop head.
type xref struct {
	kind   xrefKind
	offset int
	op     Operation
}

// Compiler assembles operations in a single pass. Forward jumps are
// emitted with placeholder targets and patched when the closing word is
// reached.
type Compiler struct {
	builder  *vm.BytecodeBuilder
	data     []byte
	xrefs    []xref
	dataSlot int // header slot holding the data-section offset
}

// NewCompiler creates a compiler with an empty program.
func NewCompiler() *Compiler {
	c := &Compiler{builder: vm.NewBytecodeBuilder()}
	c.dataSlot = vm.WriteHeader(c.builder)
	return c
}

// Assemble encodes ops as a binary program. Nothing is returned on error.
func Assemble(ops []Operation) ([]byte, error) {
	c := NewCompiler()
	for _, op := range ops {
		if err := c.emit(op); err != nil {
			return nil, err
		}
	}
	return c.finish()
}

func (c *Compiler) pushXref(kind xrefKind, offset int, op Operation) {
	c.xrefs = append(c.xrefs, xref{kind: kind, offset: offset, op: op})
}

func (c *Compiler) popXref() (xref, bool) {
	if len(c.xrefs) == 0 {
		return xref{}, false
	}
	x := c.xrefs[len(c.xrefs)-1]
	c.xrefs = c.xrefs[:len(c.xrefs)-1]
	return x, true
}

func (c *Compiler) patchHere(x xref) error {
	if err := c.builder.PatchHere(x.offset); err != nil {
		return fmt.Errorf("compiler: %s at %s: %w", x.kind, x.op.Pos, err)
	}
	return nil
}

func errorAt(op Operation, format string, args ...interface{}) error {
	return &AssemblyError{Pos: op.Pos, Token: op.Text, Msg: fmt.Sprintf(format, args...)}
}

// emit appends the code for a single operation.
func (c *Compiler) emit(op Operation) error {
	b := c.builder

	switch op.Kind {
	case KindInt:
		b.EmitInt64(vm.OpPush, op.Int)

	case KindString:
		b.EmitInt64(vm.OpPush, int64(len(op.Str)))
		b.EmitInt64(vm.OpPush, int64(len(c.data)))
		c.data = append(c.data, op.Str...)

	case KindDup, KindSwap, KindOver, KindAdd, KindSub, KindEqual, KindGreater, KindPoke:
		b.Emit(kindOpcodes[op.Kind])

	case KindIf:
		c.pushXref(xrefIf, b.EmitForward(vm.OpBranch), op)

	case KindElse:
		x, ok := c.popXref()
		if !ok || x.kind != xrefIf {
			return errorAt(op, "else must follow if")
		}
		c.pushXref(xrefElse, b.EmitForward(vm.OpJump), op)
		return c.patchHere(x)

	case KindWhile:
		c.pushXref(xrefWhile, b.Len(), op)

	case KindDo:
		c.pushXref(xrefDo, b.EmitForward(vm.OpBranch), op)

	case KindEnd:
		x, ok := c.popXref()
		if !ok {
			return errorAt(op, "end without if, else or do")
		}
		switch x.kind {
		case xrefIf, xrefElse:
			return c.patchHere(x)
		case xrefDo:
			head, ok := c.popXref()
			if !ok || head.kind != xrefWhile {
				return errorAt(x.op, "do must be preceded by while")
			}
			b.EmitTarget(vm.OpJump, head.offset)
			return c.patchHere(x)
		default:
			return errorAt(op, "end closes while without do (opened at %s)", x.op.Pos)
		}

	case KindCall:
		if _, ok := vm.BuiltinByID(int64(op.Builtin)); !ok {
			return errorAt(op, "unknown built-in")
		}
		b.EmitInt64(vm.OpCall, int64(op.Builtin))

	default:
		return errorAt(op, "unexpected %s", op.Kind)
	}
	return nil
}

// finish closes the code section and appends the data section.
func (c *Compiler) finish() ([]byte, error) {
	if len(c.xrefs) > 0 {
		x := c.xrefs[len(c.xrefs)-1]
		return nil, errorAt(x.op, "unclosed %s", x.kind)
	}

	c.builder.Emit(vm.OpExit)
	if err := c.builder.PatchHere(c.dataSlot); err != nil {
		return nil, fmt.Errorf("compiler: %w", err)
	}
	c.builder.EmitRaw(c.data...)
	return c.builder.Bytes(), nil
}

// Compile lexes and assembles source into a binary program.
func Compile(source string) ([]byte, error) {
	ops, err := Lex(source)
	if err != nil {
		return nil, err
	}
	return Assemble(ops)
}
