// Package server implements the push language server.
package server

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/push/compiler"
	"github.com/chazu/push/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "push-lsp"

var log = commonlog.GetLogger("push.lsp")

// LspServer provides diagnostics, hover and completion for push sources.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP(version string) *LspServer {
	s := &LspServer{
		docs:    make(map[string]string),
		version: version,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Infof("initializing %s %s", lspName, s.version)

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return hover(word), nil
}

func complete(prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem

	for _, k := range compiler.Keywords() {
		if !strings.HasPrefix(k.Word, prefix) {
			continue
		}
		kind := protocol.CompletionItemKindKeyword
		detail := k.Effect
		items = append(items, protocol.CompletionItem{
			Label:  k.Word,
			Kind:   &kind,
			Detail: &detail,
		})
	}

	for _, b := range vm.Builtins() {
		if !strings.HasPrefix(b.Name, prefix) {
			continue
		}
		kind := protocol.CompletionItemKindFunction
		detail := b.Effect
		items = append(items, protocol.CompletionItem{
			Label:  b.Name,
			Kind:   &kind,
			Detail: &detail,
		})
	}

	return items
}

func hover(word string) *protocol.Hover {
	var b strings.Builder

	if k, ok := compiler.LookupKeyword(word); ok {
		fmt.Fprintf(&b, "**%s**", k.Word)
		if k.Effect != "" {
			fmt.Fprintf(&b, " `%s`", k.Effect)
		}
		fmt.Fprintf(&b, "\n\n%s", k.Doc)
		if k.Opcode.Valid() {
			fmt.Fprintf(&b, "\n\nCompiles to `%s` (0x%02X)", k.Opcode, byte(k.Opcode))
		}
	} else if bi, ok := vm.LookupBuiltin(word); ok {
		fmt.Fprintf(&b, "**%s** `%s`\n\n%s\n\nBuilt-in %d", bi.Name, bi.Effect, bi.Doc, bi.ID)
	} else if n, err := strconv.ParseUint(word, 10, 64); err == nil && n <= math.MaxInt64 {
		fmt.Fprintf(&b, "integer `%d` (0x%X)", n, n)
	} else {
		return nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := diagnose(text)
	log.Debugf("%s: %d diagnostics", uri, len(diagnostics))

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnose compiles text and reports the first failure at the offending
// token. The result is empty, not nil, for a clean document.
func diagnose(text string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}

	_, err := compiler.Compile(text)
	if err == nil {
		return diagnostics
	}

	var (
		pos   compiler.Position
		token string
		msg   = err.Error()
	)
	var lexErr *compiler.LexError
	var asmErr *compiler.AssemblyError
	switch {
	case errors.As(err, &lexErr):
		pos, token, msg = lexErr.Pos, lexErr.Token, lexErr.Msg
	case errors.As(err, &asmErr):
		pos, token, msg = asmErr.Pos, asmErr.Token, asmErr.Msg
	default:
		pos = compiler.Position{Line: 1, Column: 1}
	}

	severity := protocol.DiagnosticSeverityError
	source := lspName
	return append(diagnostics, protocol.Diagnostic{
		Range:    tokenRange(pos, token),
		Severity: &severity,
		Source:   &source,
		Message:  msg,
	})
}

// tokenRange converts a compiler position into an LSP range covering the
// token, clipped to its first line.
func tokenRange(pos compiler.Position, token string) protocol.Range {
	if i := strings.IndexByte(token, '\n'); i >= 0 {
		token = token[:i]
	}
	start := protocol.Position{
		Line:      protocol.UInteger(pos.Line - 1),
		Character: protocol.UInteger(pos.Column - 1),
	}
	end := start
	end.Character += protocol.UInteger(utf8.RuneCountInString(token))
	return protocol.Range{Start: start, End: end}
}

// --- Helpers ---

// lineRunes returns the runes of the given line and the cursor clamped to it.
func lineRunes(text string, pos protocol.Position) ([]rune, int, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return nil, 0, false
	}
	line := []rune(lines[pos.Line])
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}
	return line, col, true
}

func isWordRune(ch rune) bool {
	return !unicode.IsSpace(ch) && ch != '"'
}

// extractPrefix returns the part of the word before the cursor.
func extractPrefix(text string, pos protocol.Position) string {
	line, col, ok := lineRunes(text, pos)
	if !ok {
		return ""
	}

	// Walk backwards from cursor to find the start of the word
	start := col
	for start > 0 && isWordRune(line[start-1]) {
		start--
	}

	return string(line[start:col])
}

// extractWord returns the full word under the cursor.
func extractWord(text string, pos protocol.Position) string {
	line, col, ok := lineRunes(text, pos)
	if !ok {
		return ""
	}

	start := col
	for start > 0 && isWordRune(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isWordRune(line[end]) {
		end++
	}

	return string(line[start:end])
}

func boolPtr(b bool) *bool {
	return &b
}
