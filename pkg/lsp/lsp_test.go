package lsp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vito/rfmt/pkg/rfmt"
)

const (
	unformatted = "class Greeter<Base\n# Says hello\ndef greet( name )\nputs \"Hello, #{name}\"\nend\nend\n"
	formatted   = "class Greeter < Base\n  # Says hello\n  def greet(name)\n    puts \"Hello, #{name}\"\n  end\nend\n"
)

// fixtureParser answers with the fixture document whose source matches.
type fixtureParser struct {
	mu    sync.Mutex
	docs  map[string][]byte
	calls int
}

func newFixtureParser(t *testing.T) *fixtureParser {
	data, err := os.ReadFile(filepath.Join("..", "rfmt", "testdata", "class_with_method.json"))
	require.NoError(t, err)
	doc, err := rfmt.DecodeDocument(data)
	require.NoError(t, err)
	require.Equal(t, unformatted, doc.Source)
	return &fixtureParser{docs: map[string][]byte{doc.Source: data}}
}

func (p *fixtureParser) Parse(ctx context.Context, source string) (*rfmt.Document, error) {
	p.mu.Lock()
	p.calls++
	data, ok := p.docs[source]
	p.mu.Unlock()
	if !ok {
		return nil, errors.New("syntax error")
	}
	return rfmt.DecodeDocument(data)
}

type session struct {
	t      *testing.T
	ctx    context.Context
	client *jrpc2.Client
	dir    string
}

func startSession(t *testing.T, parser Parser) *session {
	h := NewHandler(parser, "v1.2.3")
	loc := server.NewLocal(h.Methods(), &server.LocalOptions{
		Server: &jrpc2.ServerOptions{AllowPush: true},
	})
	h.SetServer(loc.Server)
	t.Cleanup(func() { loc.Close() })

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0755))

	s := &session{t: t, ctx: context.Background(), client: loc.Client, dir: dir}

	var result InitializeResult
	require.NoError(t, s.client.CallResult(s.ctx, "initialize", InitializeParams{RootURI: toURI(dir)}, &result))
	require.NoError(t, s.client.Notify(s.ctx, "initialized", struct{}{}))
	return s
}

func (s *session) open(name, text string) DocumentURI {
	uri := toURI(filepath.Join(s.dir, name))
	require.NoError(s.t, s.client.Notify(s.ctx, "textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: uri, LanguageID: "ruby", Version: 1, Text: text},
	}))
	return uri
}

func (s *session) format(uri DocumentURI, opts FormattingOptions) ([]TextEdit, error) {
	var edits []TextEdit
	err := s.client.CallResult(s.ctx, "textDocument/formatting", DocumentFormattingParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Options:      opts,
	}, &edits)
	return edits, err
}

var spaces = FormattingOptions{TabSize: 2, InsertSpaces: true}

func TestInitialize(t *testing.T) {
	h := NewHandler(newFixtureParser(t), "v1.2.3")
	loc := server.NewLocal(h.Methods(), nil)
	defer loc.Close()

	var result InitializeResult
	err := loc.Client.CallResult(context.Background(), "initialize", InitializeParams{ProcessID: 1}, &result)
	require.NoError(t, err)
	assert.Equal(t, TDSKFull, result.Capabilities.TextDocumentSync)
	assert.True(t, result.Capabilities.DocumentFormattingProvider)
	require.NotNil(t, result.ServerInfo)
	assert.Equal(t, "rfmt", result.ServerInfo.Name)
	assert.Equal(t, "v1.2.3", result.ServerInfo.Version)

	_, err = loc.Client.Call(context.Background(), "initialize", nil)
	var rpcErr *jrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, jrpc2.InvalidParams, rpcErr.Code)
}

func TestFormatting(t *testing.T) {
	s := startSession(t, newFixtureParser(t))
	uri := s.open("greeter.rb", unformatted)

	edits, err := s.format(uri, spaces)
	require.NoError(t, err)
	require.Len(t, edits, 1)
	assert.Equal(t, Range{
		Start: Position{Line: 0, Character: 0},
		End:   Position{Line: 6, Character: 0},
	}, edits[0].Range)
	assert.Equal(t, formatted, edits[0].NewText)
}

func TestFormattingTabs(t *testing.T) {
	s := startSession(t, newFixtureParser(t))
	uri := s.open("greeter.rb", unformatted)

	edits, err := s.format(uri, FormattingOptions{TabSize: 4, InsertSpaces: false})
	require.NoError(t, err)
	require.Len(t, edits, 1)
	assert.Equal(t, "class Greeter < Base\n\t# Says hello\n\tdef greet(name)\n\t\tputs \"Hello, #{name}\"\n\tend\nend\n", edits[0].NewText)
}

func TestFormattingProjectConfig(t *testing.T) {
	s := startSession(t, newFixtureParser(t))
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, "rfmt.yml"), []byte("formatting:\n  indent_width: 4\n"), 0644))
	uri := s.open("greeter.rb", unformatted)

	edits, err := s.format(uri, FormattingOptions{InsertSpaces: true})
	require.NoError(t, err)
	require.Len(t, edits, 1)
	assert.Equal(t, "class Greeter < Base\n    # Says hello\n    def greet(name)\n        puts \"Hello, #{name}\"\n    end\nend\n", edits[0].NewText)
}

func TestFormattingNoChange(t *testing.T) {
	parser := newFixtureParser(t)
	s := startSession(t, parser)
	uri := s.open("greeter.rb", unformatted)

	edits, err := s.format(uri, spaces)
	require.NoError(t, err)
	require.Len(t, edits, 1)

	require.NoError(t, s.client.Notify(s.ctx, "textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument:   VersionedTextDocumentIdentifier{TextDocumentIdentifier: TextDocumentIdentifier{URI: uri}, Version: 2},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: "junk"}, {Text: edits[0].NewText}},
	}))

	// The formatted text parses to the same tree.
	parser.mu.Lock()
	parser.docs[formatted] = parser.docs[unformatted]
	parser.mu.Unlock()
	edits, err = s.format(uri, spaces)
	require.NoError(t, err)
	assert.Empty(t, edits)
}

func TestFormattingCached(t *testing.T) {
	parser := newFixtureParser(t)
	s := startSession(t, parser)
	uri := s.open("greeter.rb", unformatted)

	for i := 0; i < 3; i++ {
		edits, err := s.format(uri, spaces)
		require.NoError(t, err)
		require.Len(t, edits, 1)
	}
	assert.Equal(t, 1, parser.calls)
}

func TestFormattingFailure(t *testing.T) {
	s := startSession(t, newFixtureParser(t))
	uri := s.open("broken.rb", "class Foo\n")

	edits, err := s.format(uri, spaces)
	require.NoError(t, err)
	assert.NotNil(t, edits)
	assert.Empty(t, edits)
}

func TestFormattingClosedDocument(t *testing.T) {
	s := startSession(t, newFixtureParser(t))
	uri := s.open("greeter.rb", unformatted)
	require.NoError(t, s.client.Notify(s.ctx, "textDocument/didClose", DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	}))

	_, err := s.format(uri, spaces)
	var rpcErr *jrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, jrpc2.InvalidParams, rpcErr.Code)
}

func TestShutdown(t *testing.T) {
	s := startSession(t, newFixtureParser(t))
	uri := s.open("greeter.rb", unformatted)

	_, err := s.client.Call(s.ctx, "shutdown", nil)
	require.NoError(t, err)

	_, err = s.format(uri, spaces)
	var rpcErr *jrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, jrpc2.InvalidRequest, rpcErr.Code)
}

func TestEndPosition(t *testing.T) {
	assert.Equal(t, Position{Line: 0, Character: 0}, endPosition(""))
	assert.Equal(t, Position{Line: 0, Character: 3}, endPosition("foo"))
	assert.Equal(t, Position{Line: 2, Character: 0}, endPosition("a\nb\n"))
	// é is one UTF-16 unit and 😀 is a surrogate pair.
	assert.Equal(t, Position{Line: 1, Character: 3}, endPosition("a\né😀"))
}

func TestURIs(t *testing.T) {
	uri := toURI("/home/user/app/models/user.rb")
	assert.Equal(t, DocumentURI("file:///home/user/app/models/user.rb"), uri)

	path, err := fromURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "/home/user/app/models/user.rb", path)

	_, err = fromURI("untitled:Untitled-1")
	assert.Error(t, err)
}
