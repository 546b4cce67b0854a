package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vito/rfmt/pkg/ioctx"
	"github.com/vito/rfmt/pkg/lsp"
	"github.com/vito/rfmt/pkg/prism"
)

func lspCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Run the formatting language server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLSP(cmd.Context(), *cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.LSPLogFile, "lsp-log-file", "", "Path to LSP log file (stderr if not specified)")
	return cmd
}

// runLSP serves formatting requests over the command's stdin and stdout
// until the client goes away or ctx is cancelled. Stdout carries the
// protocol, so logs go to stderr or the --lsp-log-file.
func runLSP(ctx context.Context, cfg Config) error {
	logDest := ioctx.StderrFromContext(ctx)
	if cfg.LSPLogFile != "" {
		f, err := os.OpenFile(cfg.LSPLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return errors.Wrap(err, "opening lsp log")
		}
		defer f.Close() //nolint:errcheck
		logDest = f
	}
	logger := newLogger(logDest, cfg.Debug)
	slog.SetDefault(logger)

	parser := &prism.Parser{Ruby: cfg.Ruby}
	if !parser.Available() {
		logger.WarnContext(ctx, "ruby interpreter not found, formatting requests will fail", "ruby", cfg.Ruby)
	}

	handler := lsp.NewHandler(parser, version)
	srv := jrpc2.NewServer(handler.Methods(), &jrpc2.ServerOptions{
		AllowPush: true,
		Logger:    func(text string) { logger.DebugContext(ctx, text) },
	})
	handler.SetServer(srv)

	conn := stdio{in: ioctx.StdinFromContext(ctx), out: ioctx.StdoutFromContext(ctx)}
	logger.InfoContext(ctx, "serving", "version", version)
	srv.Start(channel.LSP(conn, conn))
	defer context.AfterFunc(ctx, srv.Stop)()

	err := srv.Wait()
	logger.InfoContext(ctx, "client disconnected", "error", err)
	return nil
}

// stdio joins the command's input and output into one stream.
type stdio struct {
	in  io.Reader
	out io.Writer
}

func (s stdio) Read(p []byte) (int, error) {
	return s.in.Read(p)
}

func (s stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func (s stdio) Close() error {
	if c, ok := s.in.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
