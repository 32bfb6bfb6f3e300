package vm

import (
	"bytes"
	"io"
	"os"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("push.vm")

// ---------------------------------------------------------------------------
// Interpreter: Bytecode execution engine
// ---------------------------------------------------------------------------

// Interpreter executes push programs. An Interpreter can run several
// programs in sequence; each Run starts from an empty stack and a heap
// holding only the program's data section.
type Interpreter struct {
	Stdout io.Writer // destination of putd, puts and write

	// Resource limits. Zero disables a limit.
	StackLimit int
	HeapLimit  int

	// Trace logs every instruction at debug level.
	Trace bool

	// Profiler, when set, counts every executed instruction.
	Profiler *Profiler

	// Execution state
	stack  []int64 // operand stack, top is the last element
	heap   []byte  // byte-addressed heap, grown only by alloc
	r      *BytecodeReader
	lastpc int    // offset of the instruction being executed
	op     Opcode // instruction being executed
	steps  uint64 // instructions executed by the last run
}

// NewInterpreter creates an interpreter writing to stdout with the default
// limits. A nil stdout means os.Stdout.
func NewInterpreter(stdout io.Writer) *Interpreter {
	if stdout == nil {
		stdout = os.Stdout
	}
	return &Interpreter{
		Stdout:     stdout,
		StackLimit: DefaultStackLimit,
		HeapLimit:  DefaultHeapLimit,
	}
}

// Run executes a program with a fresh interpreter.
func Run(program []byte, stdout io.Writer) error {
	return NewInterpreter(stdout).Run(program)
}

// Stack returns a copy of the operand stack, bottom first.
func (i *Interpreter) Stack() []int64 {
	return append([]int64(nil), i.stack...)
}

// Heap returns a copy of the heap.
func (i *Interpreter) Heap() []byte {
	return bytes.Clone(i.heap)
}

// Steps returns the number of instructions executed by the last run.
func (i *Interpreter) Steps() uint64 {
	return i.steps
}

// Run executes program until EXIT or a fault. Output already written before
// a fault is not withdrawn.
func (i *Interpreter) Run(program []byte) (err error) {
	p, err := DecodeProgram(program)
	if err != nil {
		return err
	}

	i.stack = i.stack[:0]
	i.heap = nil
	i.steps = 0
	i.lastpc = int(p.CodeOffset)
	i.op = 0
	i.r = NewBytecodeReader(program, int(p.CodeOffset), int(p.DataOffset))

	defer func() {
		if r := recover(); r != nil {
			rerr, ok := r.(*RuntimeError)
			if !ok {
				panic(r)
			}
			log.Debugf("fault after %d steps: %s", i.steps, rerr)
			err = rerr
		}
	}()

	// The data section occupies the bottom of the heap so that string
	// literal addresses are valid heap addresses.
	copy(i.heap[i.alloc(int64(len(p.Data))):], p.Data)

	i.run()
	return nil
}

func (i *Interpreter) run() {
	for {
		i.lastpc = i.r.Position()
		op, ok := i.r.ReadOpcode()
		if !ok {
			i.fault(CodeOverrun)
		}
		i.op = op
		i.steps++
		if i.Profiler != nil {
			i.Profiler.Record(i.lastpc, op)
		}

		if i.Trace {
			log.Debugf("%04x %-8s %v", i.lastpc, op, i.stack)
		}

		switch op {
		// --- Stack operations ---
		case OpPush:
			i.push(i.operand())

		case OpDup:
			i.pick(0)

		case OpSwap:
			i.swap()

		case OpOver:
			i.pick(1)

		// --- Arithmetic and comparison ---
		case OpAdd:
			a, b := i.pop2()
			i.push(i.add(a, b))

		case OpSub:
			a, b := i.pop2()
			i.push(i.sub(a, b))

		case OpEqual:
			a, b := i.pop2()
			i.pushBool(a == b)

		case OpGreater:
			a, b := i.pop2()
			i.pushBool(a > b)

		// --- Control flow ---
		case OpBranch:
			target := i.target()
			if i.pop() == 0 {
				i.r.Seek(target)
			}

		case OpJump:
			i.r.Seek(i.target())

		case OpCall:
			i.callBuiltin(i.operand())

		// --- Heap ---
		case OpPoke:
			addr := i.pop()
			value := i.pop()
			i.poke(addr, value)

		case OpExit:
			return

		default:
			i.fault(UnknownOpcode)
		}
	}
}

// operand reads the signed immediate following the current opcode.
func (i *Interpreter) operand() int64 {
	v, ok := i.r.ReadInt64()
	if !ok {
		i.fault(CodeOverrun)
	}
	return v
}

// target reads a jump operand and checks that it lands in the code section.
func (i *Interpreter) target() int {
	v, ok := i.r.ReadUint64()
	if !ok {
		i.fault(CodeOverrun)
	}
	if !i.r.InBounds(v) {
		i.faultAddr(BadJump, int64(v))
	}
	return int(v)
}
