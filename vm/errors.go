package vm

import "fmt"

// Runtime faults.
const (
	StackUnderflow = Fault(iota)
	StackOverflow
	OutOfBounds
	UnknownOpcode
	CodeOverrun
	BadJump
	UnknownBuiltin
	IntegerOverflow
	ByteRange
	NegativeSize
	HeapExhausted
	IOError
)

var strFault = []string{
	"stack underflow",
	"stack overflow",
	"heap access out of bounds",
	"unimplemented opcode",
	"read past end of code",
	"jump target outside code section",
	"unknown built-in",
	"integer overflow",
	"value does not fit in a byte",
	"negative size",
	"heap limit exceeded",
	"I/O error",
}

// Fault describes the reason a program was stopped.
type Fault int

func (f Fault) Error() string {
	if int(f) < 0 || int(f) >= len(strFault) {
		return fmt.Sprintf("fault %d", int(f))
	}
	return strFault[f]
}

// RuntimeError describes the cause and the context of a fault.
type RuntimeError struct {
	Fault  Fault   // nature of the fault
	Err    error   // underlying error when Fault is IOError
	PC     int     // offset of the faulting instruction
	Opcode Opcode  // instruction that raised the fault
	Addr   int64   // heap address, jump target, built-in id or value involved
	Stack  []int64 // operand stack at the time of the fault
}

func (e *RuntimeError) Error() string {
	msg := e.Fault.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	switch e.Fault {
	case UnknownOpcode:
		msg += fmt.Sprintf(" 0x%02X", byte(e.Opcode))
	case OutOfBounds, BadJump, UnknownBuiltin, ByteRange, NegativeSize, HeapExhausted:
		msg += fmt.Sprintf(" (%d)", e.Addr)
	}
	return msg + fmt.Sprintf(" at %04x", e.PC)
}

// Is lets errors.Is match a RuntimeError against its Fault.
func (e *RuntimeError) Is(target error) bool {
	f, ok := target.(Fault)
	return ok && f == e.Fault
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func (i *Interpreter) newErrorFull(fault Fault, err error, addr int64) *RuntimeError {
	return &RuntimeError{
		Fault:  fault,
		Err:    err,
		PC:     i.lastpc,
		Opcode: i.op,
		Addr:   addr,
		Stack:  append(make([]int64, 0, len(i.stack)), i.stack...),
	}
}

// fault aborts the current run. Run converts the panic back into an error.
func (i *Interpreter) fault(f Fault) {
	panic(i.newErrorFull(f, nil, 0))
}

func (i *Interpreter) faultAddr(f Fault, addr int64) {
	panic(i.newErrorFull(f, nil, addr))
}

func (i *Interpreter) faultIO(err error) {
	panic(i.newErrorFull(IOError, err, 0))
}
