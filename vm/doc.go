// Package vm implements the push virtual machine.
//
// This package contains:
//   - Opcode table, bytecode builder and reader
//   - Binary program format (header, code, data)
//   - Stack machine interpreter with a byte heap
//   - Built-in functions putd, puts, alloc and write
//   - Instruction profiler
package vm
