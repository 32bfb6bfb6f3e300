package vm

// ---------------------------------------------------------------------------
// Built-in call table
// ---------------------------------------------------------------------------

// BuiltinID is the numeric identifier encoded in a CALL instruction.
type BuiltinID int64

const (
	BuiltinPutd  BuiltinID = 0
	BuiltinPuts  BuiltinID = 1
	BuiltinAlloc BuiltinID = 2
	BuiltinWrite BuiltinID = 3
)

// BuiltinsVersion changes whenever an id is added or renumbered.
const BuiltinsVersion = 1

// Builtin describes one entry of the built-in call table.
type Builtin struct {
	Name   string
	ID     BuiltinID
	Effect string // stack effect, Forth notation
	Doc    string
}

// builtins is the single name/id table used by the lexer, the assembler,
// the interpreter and the tooling.
var builtins = []Builtin{
	{"putd", BuiltinPutd, "( n -- )", "Print n in decimal followed by a newline."},
	{"puts", BuiltinPuts, "( len addr -- )", "Print len heap bytes starting at addr. A string literal pushes exactly this pair."},
	{"alloc", BuiltinAlloc, "( n -- addr )", "Grow the heap by n zeroed bytes and push the address of the first one."},
	{"write", BuiltinWrite, "( addr size -- )", "Write size heap bytes starting at addr verbatim."},
}

var builtinsByName = func() map[string]Builtin {
	m := make(map[string]Builtin, len(builtins))
	for _, b := range builtins {
		m[b.Name] = b
	}
	return m
}()

// LookupBuiltin returns the built-in with the given source name.
func LookupBuiltin(name string) (Builtin, bool) {
	b, ok := builtinsByName[name]
	return b, ok
}

// BuiltinByID returns the built-in with the given id.
func BuiltinByID(id int64) (Builtin, bool) {
	if id < 0 || id >= int64(len(builtins)) {
		return Builtin{}, false
	}
	return builtins[id], true
}

// Builtins returns a copy of the table in id order.
func Builtins() []Builtin {
	out := make([]Builtin, len(builtins))
	copy(out, builtins)
	return out
}
