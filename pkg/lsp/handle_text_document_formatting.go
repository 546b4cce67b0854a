package lsp

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf16"

	"github.com/creachadair/jrpc2"

	"github.com/vito/rfmt/pkg/config"
	"github.com/vito/rfmt/pkg/rfmt"
)

func (h *Handler) handleTextDocumentFormatting(ctx context.Context, req *jrpc2.Request) (any, error) {
	if !req.HasParams() {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "missing parameters")
	}
	if h.isShutdown() {
		return nil, jrpc2.Errorf(jrpc2.InvalidRequest, "server is shutting down")
	}

	var params DocumentFormattingParams
	if err := req.UnmarshalParams(&params); err != nil {
		return nil, err
	}

	f := h.file(params.TextDocument.URI)
	if f == nil {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "document not found: %v", params.TextDocument.URI)
	}

	cfg := h.configFor(ctx, params.TextDocument.URI, params.Options)
	formatted, err := h.cache.Format(f.Text, cfg, func(source string) (*rfmt.Document, error) {
		return h.parser.Parse(ctx, source)
	})
	if err != nil {
		// Unformattable documents are left alone.
		slog.WarnContext(ctx, "formatting failed", "uri", params.TextDocument.URI, "error", err)
		h.logMessage(ctx, MTWarning, fmt.Sprintf("rfmt: %v", err))
		return []TextEdit{}, nil
	}
	if formatted != "" {
		formatted += "\n"
	}

	if formatted == f.Text {
		return []TextEdit{}, nil
	}

	return []TextEdit{
		{
			Range: Range{
				Start: Position{Line: 0, Character: 0},
				End:   endPosition(f.Text),
			},
			NewText: formatted,
		},
	}, nil
}

// configFor resolves the project config for the document's directory and
// applies the client's options on top.
func (h *Handler) configFor(ctx context.Context, uri DocumentURI, opts FormattingOptions) rfmt.FormatConfig {
	dir := ""
	if path, err := fromURI(uri); err == nil {
		dir = filepath.Dir(path)
	} else {
		h.mu.Lock()
		dir = h.rootPath
		h.mu.Unlock()
	}

	cfg := rfmt.DefaultConfig()
	if dir != "" {
		resolved, path, err := config.Resolve(dir)
		if err != nil {
			slog.WarnContext(ctx, "ignoring invalid config", "path", path, "error", err)
		} else {
			cfg = resolved
		}
	}

	if opts.TabSize > 0 {
		cfg.IndentWidth = opts.TabSize
	}
	if opts.InsertSpaces {
		cfg.IndentStyle = rfmt.IndentSpaces
	} else {
		cfg.IndentStyle = rfmt.IndentTabs
	}
	return cfg
}

// endPosition is the position just past the end of text, with the
// character offset in UTF-16 code units.
func endPosition(text string) Position {
	last := text[strings.LastIndexByte(text, '\n')+1:]
	return Position{
		Line:      strings.Count(text, "\n"),
		Character: len(utf16.Encode([]rune(last))),
	}
}
