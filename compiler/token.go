// Package compiler lexes push source and assembles it into binary programs.
package compiler

import (
	"fmt"

	"github.com/chazu/push/vm"
)

// ---------------------------------------------------------------------------
// Operations produced by the lexer
// ---------------------------------------------------------------------------

// OpKind identifies the kind of an Operation.
type OpKind int

const (
	KindEOF OpKind = iota

	// Literals
	KindInt    // 42
	KindString // "hello"

	// Stack, arithmetic and comparison
	KindDup     // dup
	KindSwap    // swap
	KindOver    // over
	KindAdd     // +
	KindSub     // -
	KindEqual   // =
	KindGreater // >

	// Control markers
	KindIf    // if
	KindElse  // else
	KindWhile // while
	KindDo    // do
	KindEnd   // end

	KindCall // putd, puts, alloc, write
	KindPoke // !
)

var kindNames = map[OpKind]string{
	KindEOF:     "EOF",
	KindInt:     "INT",
	KindString:  "STRING",
	KindDup:     "dup",
	KindSwap:    "swap",
	KindOver:    "over",
	KindAdd:     "+",
	KindSub:     "-",
	KindEqual:   "=",
	KindGreater: ">",
	KindIf:      "if",
	KindElse:    "else",
	KindWhile:   "while",
	KindDo:      "do",
	KindEnd:     "end",
	KindCall:    "CALL",
	KindPoke:    "!",
}

func (k OpKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Keyword describes a fixed word of the language.
type Keyword struct {
	Word   string
	Kind   OpKind
	Opcode vm.Opcode // emitted instruction, 0 for words that emit none directly
	Effect string
	Doc    string
}

var keywordList = []Keyword{
	{"dup", KindDup, vm.OpDup, "( a -- a a )", "Duplicate the top of the stack."},
	{"swap", KindSwap, vm.OpSwap, "( a b -- b a )", "Exchange the top two values."},
	{"over", KindOver, vm.OpOver, "( a b -- a b a )", "Copy the second value to the top."},
	{"+", KindAdd, vm.OpAdd, "( a b -- a+b )", "Add. Overflow stops the program."},
	{"-", KindSub, vm.OpSub, "( a b -- a-b )", "Subtract. Overflow stops the program."},
	{"=", KindEqual, vm.OpEqual, "( a b -- flag )", "1 if a equals b, else 0."},
	{">", KindGreater, vm.OpGreater, "( a b -- flag )", "1 if a is greater than b, else 0."},
	{"if", KindIf, vm.OpBranch, "( flag -- )", "Run the following block when flag is non-zero."},
	{"else", KindElse, vm.OpJump, "", "Start the block run when the if flag was zero."},
	{"while", KindWhile, 0, "", "Mark the start of a loop condition."},
	{"do", KindDo, vm.OpBranch, "( flag -- )", "Leave the loop when flag is zero."},
	{"end", KindEnd, 0, "", "Close an if, else or do block."},
	{"!", KindPoke, vm.OpPoke, "( value addr -- )", "Store a byte into the heap."},
}

var keywords = func() map[string]Keyword {
	m := make(map[string]Keyword, len(keywordList))
	for _, k := range keywordList {
		m[k.Word] = k
	}
	return m
}()

var kindOpcodes = func() map[OpKind]vm.Opcode {
	m := make(map[OpKind]vm.Opcode, len(keywordList))
	for _, k := range keywordList {
		m[k.Kind] = k.Opcode
	}
	return m
}()

// LookupKeyword returns the fixed word with the given spelling.
func LookupKeyword(word string) (Keyword, bool) {
	k, ok := keywords[word]
	return k, ok
}

// Keywords returns all fixed words in a stable order.
func Keywords() []Keyword {
	return append([]Keyword(nil), keywordList...)
}

// ---------------------------------------------------------------------------
// Operation
// ---------------------------------------------------------------------------

// Position represents a location in source code.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number, in runes
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Operation is a single lexed unit of source.
type Operation struct {
	Kind    OpKind
	Int     int64        // KindInt
	Str     string       // KindString, without the quotes
	Builtin vm.BuiltinID // KindCall
	Text    string       // source text, quotes included for strings
	Pos     Position
}

func (op Operation) String() string {
	switch op.Kind {
	case KindInt:
		return fmt.Sprintf("INT(%d)", op.Int)
	case KindString:
		return fmt.Sprintf("STRING(%q)", op.Str)
	case KindCall:
		return fmt.Sprintf("CALL(%s)", op.Text)
	default:
		return op.Kind.String()
	}
}
