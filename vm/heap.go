package vm

import "math"

// DefaultHeapLimit is the heap size used when none is configured.
const DefaultHeapLimit = 16 << 20

// alloc grows the heap by n zeroed bytes and returns the first new address.
func (i *Interpreter) alloc(n int64) int64 {
	if n < 0 {
		i.faultAddr(NegativeSize, n)
	}
	addr := int64(len(i.heap))
	if n > int64(math.MaxInt-len(i.heap)) {
		i.faultAddr(HeapExhausted, n)
	}
	if i.HeapLimit > 0 && addr+n > int64(i.HeapLimit) {
		i.faultAddr(HeapExhausted, n)
	}
	i.heap = append(i.heap, make([]byte, n)...)
	return addr
}

// span returns heap[addr:addr+size] or faults if it does not fit.
func (i *Interpreter) span(addr, size int64) []byte {
	if size < 0 {
		i.faultAddr(NegativeSize, size)
	}
	if addr < 0 || addr > int64(len(i.heap)) {
		i.faultAddr(OutOfBounds, addr)
	}
	if size > int64(len(i.heap))-addr {
		i.faultAddr(OutOfBounds, addr+size)
	}
	return i.heap[addr : addr+size]
}

// poke stores value at addr. The heap never grows implicitly.
func (i *Interpreter) poke(addr, value int64) {
	if addr < 0 || addr >= int64(len(i.heap)) {
		i.faultAddr(OutOfBounds, addr)
	}
	if value < 0 || value > math.MaxUint8 {
		i.faultAddr(ByteRange, value)
	}
	i.heap[addr] = byte(value)
}
