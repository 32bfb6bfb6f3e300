package compiler

import "fmt"

// LexError reports a word or quoted span the lexer could not accept.
type LexError struct {
	Pos   Position
	Token string
	Msg   string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s: %s: %q", e.Pos, e.Msg, e.Token)
}

// AssemblyError reports a control construct that does not nest correctly.
type AssemblyError struct {
	Pos   Position
	Token string
	Msg   string
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("%s: %s: %q", e.Pos, e.Msg, e.Token)
}
