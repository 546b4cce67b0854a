package lsp

import (
	"context"
	"log/slog"

	"github.com/creachadair/jrpc2"
)

func (h *Handler) handleShutdown(ctx context.Context, req *jrpc2.Request) (any, error) {
	h.mu.Lock()
	h.shutdown = true
	h.files = make(map[DocumentURI]*File)
	h.mu.Unlock()

	h.cache.Purge()
	return nil, nil
}

func (h *Handler) handleExit(ctx context.Context, req *jrpc2.Request) (any, error) {
	srv := h.server()
	if srv == nil {
		return nil, nil
	}
	slog.DebugContext(ctx, "exit requested", "clean", h.isShutdown())
	// Stop waits for running handlers, this one included.
	go srv.Stop()
	return nil, nil
}
