package vm

import "strconv"

// callBuiltin dispatches a CALL instruction.
func (i *Interpreter) callBuiltin(id int64) {
	b, ok := BuiltinByID(id)
	if !ok {
		i.faultAddr(UnknownBuiltin, id)
	}

	switch b.ID {
	case BuiltinPutd:
		i.putd(i.pop())

	case BuiltinPuts:
		addr := i.pop()
		length := i.pop()
		i.writeOut(i.span(addr, length))

	case BuiltinAlloc:
		n := i.pop()
		i.push(i.alloc(n))

	case BuiltinWrite:
		size := i.pop()
		addr := i.pop()
		i.writeOut(i.span(addr, size))
	}
}

func (i *Interpreter) putd(n int64) {
	buf := strconv.AppendInt(make([]byte, 0, 21), n, 10)
	i.writeOut(append(buf, '\n'))
}

func (i *Interpreter) writeOut(p []byte) {
	if len(p) == 0 {
		return
	}
	if _, err := i.Stdout.Write(p); err != nil {
		i.faultIO(err)
	}
}
