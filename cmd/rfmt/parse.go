package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kr/pretty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vito/rfmt/pkg/ioctx"
	"github.com/vito/rfmt/pkg/prism"
	"github.com/vito/rfmt/pkg/rfmt"
)

func parseCmd(cfg *Config) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "parse [flags] file",
		Short: "Print the syntax tree of a Ruby file",
		Long: `Print the syntax tree the formatter works on.

By default the normalized tree is printed. Use --json to print the
parser document exactly as the Prism bridge produced it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			stdout := ioctx.StdoutFromContext(ctx)

			source, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}

			parser := &prism.Parser{Ruby: cfg.Ruby}
			if raw {
				data, err := parser.ParseJSON(ctx, source)
				if err != nil {
					return err
				}
				var buf bytes.Buffer
				if err := json.Indent(&buf, data, "", "  "); err != nil {
					return errors.Wrap(err, "indent parser output")
				}
				buf.WriteByte('\n')
				_, err = buf.WriteTo(stdout)
				return err
			}

			doc, err := parser.Parse(ctx, source)
			if err != nil {
				return err
			}
			root, err := rfmt.Build(doc)
			if err != nil {
				return rfmt.NewSourceError(err, args[0], source)
			}
			_, err = pretty.Fprintf(stdout, "%# v\n", root)
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "json", false, "Print the raw parser document")

	return cmd
}

func readSource(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		src, err := io.ReadAll(ioctx.StdinFromContext(cmd.Context()))
		return string(src), errors.Wrap(err, "reading stdin")
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", path)
	}
	return string(src), nil
}

func versionCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print rfmt, Ruby and Prism versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			stdout := ioctx.StdoutFromContext(ctx)

			parser := &prism.Parser{Ruby: cfg.Ruby}
			v, err := parser.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "rfmt: %s, ruby: %s, prism: %s\n", version, v.Ruby, v.Prism)
			return nil
		},
	}
}
