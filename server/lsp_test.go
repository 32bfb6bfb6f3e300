package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"simple word", "1 pu", protocol.Position{Line: 0, Character: 4}, "pu"},
		{"at start", "dup", protocol.Position{Line: 0, Character: 3}, "dup"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"after space", "1 ", protocol.Position{Line: 0, Character: 2}, ""},
		{"multi line", "1 2 +\nwh", protocol.Position{Line: 1, Character: 2}, "wh"},
		{"symbol word", "1 2 >", protocol.Position{Line: 0, Character: 5}, ">"},
		{"cursor past end", "al", protocol.Position{Line: 0, Character: 40}, "al"},
		{"line past end", "al", protocol.Position{Line: 3, Character: 0}, ""},
		{"after quote", `"abc" pu`, protocol.Position{Line: 0, Character: 8}, "pu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractPrefix(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractPrefix = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"middle of word", "1 putd", protocol.Position{Line: 0, Character: 3}, "putd"},
		{"start of word", "alloc 1", protocol.Position{Line: 0, Character: 0}, "alloc"},
		{"end of word", "1 swap", protocol.Position{Line: 0, Character: 6}, "swap"},
		{"between words", "1  2", protocol.Position{Line: 0, Character: 2}, ""},
		{"second line", "1\n  while", protocol.Position{Line: 1, Character: 4}, "while"},
		{"unicode before", "é 12", protocol.Position{Line: 0, Character: 3}, "12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractWord(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractWord = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Language features
// ---------------------------------------------------------------------------

func hoverText(t *testing.T, word string) string {
	t.Helper()
	h := hover(word)
	if h == nil {
		t.Fatalf("hover(%q) = nil", word)
	}
	mc, ok := h.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatalf("hover contents is %T", h.Contents)
	}
	if mc.Kind != protocol.MarkupKindMarkdown {
		t.Errorf("hover kind = %q, want markdown", mc.Kind)
	}
	return mc.Value
}

func TestHover(t *testing.T) {
	tests := []struct {
		word string
		want []string
	}{
		{"dup", []string{"**dup**", "( a -- a a )", "DUP", "0x02"}},
		{"if", []string{"**if**", "BRANCH"}},
		{"!", []string{"( value addr -- )", "POKE", "0x0C"}},
		{"putd", []string{"**putd**", "( n -- )", "Built-in 0"}},
		{"write", []string{"( addr size -- )", "Built-in 3"}},
		{"255", []string{"integer `255` (0xFF)"}},
	}

	for _, tt := range tests {
		text := hoverText(t, tt.word)
		for _, want := range tt.want {
			if !strings.Contains(text, want) {
				t.Errorf("hover(%q) = %q, missing %q", tt.word, text, want)
			}
		}
	}
}

func TestHover_WhileHasNoOpcode(t *testing.T) {
	if text := hoverText(t, "while"); strings.Contains(text, "Compiles to") {
		t.Errorf("hover(while) = %q, should not name an opcode", text)
	}
}

func TestHover_Unknown(t *testing.T) {
	for _, word := range []string{"foo", "-1", "+1", "99999999999999999999"} {
		if h := hover(word); h != nil {
			t.Errorf("hover(%q) = %v, want nil", word, h)
		}
	}
}

func TestComplete(t *testing.T) {
	labels := func(items []protocol.CompletionItem) []string {
		var out []string
		for _, it := range items {
			out = append(out, it.Label)
		}
		return out
	}

	got := labels(complete("pu"))
	if len(got) != 2 || got[0] != "putd" || got[1] != "puts" {
		t.Errorf("complete(pu) = %v, want [putd puts]", got)
	}

	items := complete("w")
	got = labels(items)
	if len(got) != 2 || got[0] != "while" || got[1] != "write" {
		t.Errorf("complete(w) = %v, want [while write]", got)
	}
	if *items[0].Kind != protocol.CompletionItemKindKeyword {
		t.Errorf("while kind = %v, want keyword", *items[0].Kind)
	}
	if *items[1].Kind != protocol.CompletionItemKindFunction {
		t.Errorf("write kind = %v, want function", *items[1].Kind)
	}

	if got := complete("zz"); len(got) != 0 {
		t.Errorf("complete(zz) = %v, want nothing", labels(got))
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestDiagnose_Clean(t *testing.T) {
	d := diagnose("1 if 2 putd end")
	if d == nil || len(d) != 0 {
		t.Errorf("diagnose = %v, want empty list", d)
	}
}

func TestDiagnose_Errors(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		start protocol.Position
		end   protocol.Position
		msg   string
	}{
		{
			name:  "unknown word",
			text:  "1 2\n  frob putd",
			start: protocol.Position{Line: 1, Character: 2},
			end:   protocol.Position{Line: 1, Character: 6},
			msg:   "unknown word",
		},
		{
			name:  "unclosed if",
			text:  "1 if 2",
			start: protocol.Position{Line: 0, Character: 2},
			end:   protocol.Position{Line: 0, Character: 4},
			msg:   "unclosed if",
		},
		{
			name:  "unterminated string",
			text:  "\"abc\ndef",
			start: protocol.Position{Line: 0, Character: 0},
			end:   protocol.Position{Line: 0, Character: 4},
			msg:   "unterminated string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := diagnose(tt.text)
			if len(d) != 1 {
				t.Fatalf("got %d diagnostics, want 1", len(d))
			}
			if d[0].Range.Start != tt.start || d[0].Range.End != tt.end {
				t.Errorf("range = %+v, want %+v-%+v", d[0].Range, tt.start, tt.end)
			}
			if d[0].Message != tt.msg {
				t.Errorf("message = %q, want %q", d[0].Message, tt.msg)
			}
			if d[0].Severity == nil || *d[0].Severity != protocol.DiagnosticSeverityError {
				t.Error("severity should be error")
			}
		})
	}
}
