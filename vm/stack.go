package vm

import "math"

// DefaultStackLimit is the operand stack depth used when none is configured.
const DefaultStackLimit = 1 << 16

// need checks that down values can be popped and up values pushed.
func (i *Interpreter) need(down, up int) {
	if len(i.stack) < down {
		i.fault(StackUnderflow)
	}
	if i.StackLimit > 0 && len(i.stack)-down+up > i.StackLimit {
		i.fault(StackOverflow)
	}
}

func (i *Interpreter) push(v int64) {
	i.need(0, 1)
	i.stack = append(i.stack, v)
}

func (i *Interpreter) pop() int64 {
	i.need(1, 0)
	v := i.stack[len(i.stack)-1]
	i.stack = i.stack[:len(i.stack)-1]
	return v
}

// pop2 pops b then a, so that "a b op" sees its operands in source order.
func (i *Interpreter) pop2() (a, b int64) {
	i.need(2, 0)
	n := len(i.stack)
	a, b = i.stack[n-2], i.stack[n-1]
	i.stack = i.stack[:n-2]
	return a, b
}

// pick pushes a copy of the value depth slots below the top.
func (i *Interpreter) pick(depth int) {
	i.need(depth+1, 1)
	i.stack = append(i.stack, i.stack[len(i.stack)-1-depth])
}

func (i *Interpreter) swap() {
	i.need(2, 0)
	n := len(i.stack)
	i.stack[n-1], i.stack[n-2] = i.stack[n-2], i.stack[n-1]
}

func (i *Interpreter) pushBool(b bool) {
	if b {
		i.push(1)
	} else {
		i.push(0)
	}
}

func (i *Interpreter) add(a, b int64) int64 {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		i.fault(IntegerOverflow)
	}
	return a + b
}

func (i *Interpreter) sub(a, b int64) int64 {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		i.fault(IntegerOverflow)
	}
	return a - b
}
