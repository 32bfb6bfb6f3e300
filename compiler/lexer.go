package compiler

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chazu/push/vm"
)

// ---------------------------------------------------------------------------
// Lexer: splits source into operations
// ---------------------------------------------------------------------------

// Lexer turns push source into a sequence of operations. Words are
// separated by whitespace; a double quote between words starts a string
// literal that runs to the next double quote.
type Lexer struct {
	input string
	pos   int // byte offset of the next rune
	line  int
	col   int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, col: 1}
}

// Lex splits source into operations, stopping at the first error.
func Lex(source string) ([]Operation, error) {
	l := NewLexer(source)
	var ops []Operation
	for {
		op, err := l.Next()
		if err != nil {
			return nil, err
		}
		if op.Kind == KindEOF {
			return ops, nil
		}
		ops = append(ops, op)
	}
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

// readRune consumes one rune and tracks line and column.
func (l *Lexer) readRune() rune {
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) peekRune() (rune, bool) {
	if l.pos >= len(l.input) {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r, true
}

func (l *Lexer) skipWhitespace() {
	for {
		r, ok := l.peekRune()
		if !ok || !unicode.IsSpace(r) {
			return
		}
		l.readRune()
	}
}

// Next returns the next operation, or one of kind KindEOF at the end of
// input.
func (l *Lexer) Next() (Operation, error) {
	l.skipWhitespace()
	pos := l.position()

	r, ok := l.peekRune()
	if !ok {
		return Operation{Kind: KindEOF, Pos: pos}, nil
	}
	if r == '"' {
		return l.readString(pos)
	}

	start := l.pos
	for {
		r, ok := l.peekRune()
		if !ok || unicode.IsSpace(r) {
			break
		}
		if r == '"' {
			l.readRune()
			return Operation{}, &LexError{
				Pos:   pos,
				Token: l.input[start:l.pos],
				Msg:   "unexpected '\"' inside word",
			}
		}
		l.readRune()
	}
	return classify(l.input[start:l.pos], pos)
}

func (l *Lexer) readString(pos Position) (Operation, error) {
	start := l.pos
	l.readRune() // opening quote
	end := strings.IndexByte(l.input[l.pos:], '"')
	if end < 0 {
		text := l.input[start:]
		for l.pos < len(l.input) {
			l.readRune()
		}
		return Operation{}, &LexError{Pos: pos, Token: text, Msg: "unterminated string"}
	}
	for l.pos < start+1+end {
		l.readRune()
	}
	l.readRune() // closing quote

	text := l.input[start:l.pos]
	return Operation{
		Kind: KindString,
		Str:  text[1 : len(text)-1],
		Text: text,
		Pos:  pos,
	}, nil
}

// classify resolves a word: fixed words first, then integer literals, then
// built-in names.
func classify(word string, pos Position) (Operation, error) {
	op := Operation{Text: word, Pos: pos}

	if k, ok := LookupKeyword(word); ok {
		op.Kind = k.Kind
		return op, nil
	}

	if isDigits(word) {
		n, err := strconv.ParseUint(word, 10, 64)
		if err != nil || n > math.MaxInt64 {
			return Operation{}, &LexError{Pos: pos, Token: word, Msg: "integer literal out of range"}
		}
		op.Kind = KindInt
		op.Int = int64(n)
		return op, nil
	}

	if b, ok := vm.LookupBuiltin(word); ok {
		op.Kind = KindCall
		op.Builtin = b.ID
		return op, nil
	}

	return Operation{}, &LexError{Pos: pos, Token: word, Msg: "unknown word"}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
