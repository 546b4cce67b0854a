package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vito/rfmt/pkg/ioctx"
)

var (
	version = "v0.1.0"
	commit  = "dev"
)

// Config holds the global flags.
type Config struct {
	Debug      bool
	LSP        bool
	LSPLogFile string
	Ruby       string
}

func main() {
	ctx := context.Background()
	ctx = ioctx.StdinToContext(ctx, os.Stdin)
	ctx = ioctx.StdoutToContext(ctx, os.Stdout)
	ctx = ioctx.StderrToContext(ctx, os.Stderr)

	if err := fang.Execute(ctx, rootCmd(),
		fang.WithVersion(version),
		fang.WithCommit(commit),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			_, _ = fmt.Fprintln(w, err.Error())
		}),
	); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfg Config
	opts := &fmtOptions{}

	rootCmd := &cobra.Command{
		Use:   "rfmt [flags] [path...]",
		Short: "Ruby source formatter",
		Long: `rfmt formats Ruby source files according to a canonical style.

Ruby is parsed with Prism through the ruby interpreter found on PATH,
so ruby and the prism gem must be installed.`,
		Example: `  # Format a file and print to stdout
  rfmt app.rb

  # Format every .rb file under a directory in place
  rfmt -w ./lib

  # Fail if anything needs formatting
  rfmt -c .

  # Format stdin
  cat app.rb | rfmt -`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.Context(), cfg.Debug)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.LSP {
				return runLSP(cmd.Context(), cfg)
			}
			if len(args) == 0 {
				return cmd.Help()
			}
			return opts.run(cmd, cfg, args)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfg.Ruby, "ruby", "", "Ruby interpreter used to run the parser (default: ruby on PATH)")
	rootCmd.Flags().BoolVar(&cfg.LSP, "lsp", false, "Run in Language Server Protocol mode")
	rootCmd.Flags().StringVar(&cfg.LSPLogFile, "lsp-log-file", "", "Path to LSP log file (stderr if not specified)")
	opts.addFlags(rootCmd)

	rootCmd.AddCommand(
		fmtCmd(&cfg),
		parseCmd(&cfg),
		versionCmd(&cfg),
		lspCmd(&cfg),
	)

	return rootCmd
}

// setupLogging installs the default logger on the command's stderr.
func setupLogging(ctx context.Context, debug bool) {
	slog.SetDefault(newLogger(ioctx.StderrFromContext(ctx), debug))
}

// newLogger returns a tint logger writing to w, coloured only on a terminal.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:   level,
		NoColor: !isTerminal(w),
	}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
