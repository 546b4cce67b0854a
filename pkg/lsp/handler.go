// Package lsp serves textDocument/formatting for Ruby files over the
// Language Server Protocol.
package lsp

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"sync"
	"unicode"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"

	"github.com/vito/rfmt/pkg/cache"
	"github.com/vito/rfmt/pkg/rfmt"
)

// Parser turns Ruby source into a parser document. *prism.Parser
// satisfies it.
type Parser interface {
	Parse(ctx context.Context, source string) (*rfmt.Document, error)
}

// Handler holds the open documents of one client session.
type Handler struct {
	parser  Parser
	version string
	cache   *cache.Cache

	mu       sync.Mutex
	files    map[DocumentURI]*File
	rootPath string
	shutdown bool
	srv      *jrpc2.Server
}

// File is an open document.
type File struct {
	LanguageID string
	Text       string
	Version    int
}

// NewHandler creates a handler formatting with parser. The version is
// reported to clients in the initialize result.
func NewHandler(parser Parser, version string) *Handler {
	return &Handler{
		parser:  parser,
		version: version,
		cache:   cache.New(cache.DefaultSize),
		files:   make(map[DocumentURI]*File),
	}
}

// Methods returns the method table to serve.
func (h *Handler) Methods() handler.Map {
	return handler.Map{
		"initialize":              h.handleInitialize,
		"initialized":             h.handleInitialized,
		"shutdown":                h.handleShutdown,
		"exit":                    h.handleExit,
		"textDocument/didOpen":    h.handleTextDocumentDidOpen,
		"textDocument/didChange":  h.handleTextDocumentDidChange,
		"textDocument/didClose":   h.handleTextDocumentDidClose,
		"textDocument/formatting": h.handleTextDocumentFormatting,
	}
}

// SetServer gives the handler the server it runs on, for pushing
// notifications and stopping on exit.
func (h *Handler) SetServer(srv *jrpc2.Server) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.srv = srv
}

func (h *Handler) server() *jrpc2.Server {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.srv
}

func isWindowsDrivePath(path string) bool {
	if len(path) < 4 {
		return false
	}
	return unicode.IsLetter(rune(path[0])) && path[1] == ':'
}

func isWindowsDriveURI(uri string) bool {
	if len(uri) < 4 {
		return false
	}
	return uri[0] == '/' && unicode.IsLetter(rune(uri[1])) && uri[2] == ':'
}

func fromURI(uri DocumentURI) (string, error) {
	u, err := url.ParseRequestURI(string(uri))
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("only file URIs are supported, got %v", u.Scheme)
	}
	if isWindowsDriveURI(u.Path) {
		u.Path = u.Path[1:]
	}
	return u.Path, nil
}

func toURI(path string) DocumentURI {
	if isWindowsDrivePath(path) {
		path = "/" + path
	}
	return DocumentURI((&url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(path),
	}).String())
}

func (h *Handler) logMessage(ctx context.Context, typ MessageType, message string) {
	srv := h.server()
	if srv == nil {
		return
	}
	if err := srv.Notify(ctx, "window/logMessage", &LogMessageParams{
		Type:    typ,
		Message: message,
	}); err != nil {
		slog.DebugContext(ctx, "failed to push log message", "error", err)
	}
}

func (h *Handler) openFile(uri DocumentURI, languageID string, version int, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files[uri] = &File{
		LanguageID: languageID,
		Text:       text,
		Version:    version,
	}
}

func (h *Handler) updateFile(uri DocumentURI, text string, version int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.files[uri]
	if !ok {
		return fmt.Errorf("document not found: %v", uri)
	}
	f.Text = text
	f.Version = version
	return nil
}

func (h *Handler) closeFile(uri DocumentURI) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.files, uri)
}

// file returns a copy of the open document, or nil.
func (h *Handler) file(uri DocumentURI) *File {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.files[uri]
	if !ok {
		return nil
	}
	cp := *f
	return &cp
}

func (h *Handler) isShutdown() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shutdown
}
