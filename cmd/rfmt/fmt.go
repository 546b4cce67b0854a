package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/vito/rfmt/pkg/config"
	"github.com/vito/rfmt/pkg/ioctx"
	"github.com/vito/rfmt/pkg/prism"
	"github.com/vito/rfmt/pkg/rfmt"
)

type fmtOptions struct {
	write       bool
	list        bool
	check       bool
	diff        bool
	configPath  string
	indentWidth int
	indentStyle string
	lineLength  int
	jobs        int
}

func (o *fmtOptions) addFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolVarP(&o.write, "write", "w", false, "Write result to source file instead of stdout")
	flags.BoolVarP(&o.list, "list", "l", false, "List files whose formatting differs")
	flags.BoolVarP(&o.check, "check", "c", false, "Exit with an error if any file is not formatted")
	flags.BoolVarP(&o.diff, "diff", "d", false, "Show a diff instead of the formatted source")
	flags.StringVar(&o.configPath, "config", "", "Config file (default: nearest rfmt.yml or rfmt.toml)")
	flags.IntVar(&o.indentWidth, "indent-width", 0, "Columns per indentation level")
	flags.StringVar(&o.indentStyle, "indent-style", "", `Indentation style, "spaces" or "tabs"`)
	flags.IntVar(&o.lineLength, "line-length", 0, "Maximum line length, 0 disables wrapping")
	flags.IntVarP(&o.jobs, "jobs", "j", runtime.NumCPU(), "Number of files formatted in parallel")
}

func fmtCmd(cfg *Config) *cobra.Command {
	opts := &fmtOptions{}

	cmd := &cobra.Command{
		Use:   "fmt [flags] [path...]",
		Short: "Format Ruby source files",
		Long: `Format Ruby source files according to the canonical style.

By default, fmt prints the formatted source to stdout.
Use -w to write the result back to the source file.
Use -l to list files that would be changed.
Use - as a path to read from stdin.`,
		Example: `  # Format a file and print to stdout
  rfmt fmt app.rb

  # Format a file in place
  rfmt fmt -w app.rb

  # Show what would change in a directory
  rfmt fmt -d ./lib`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, *cfg, args)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

// overrides are the formatting flags given explicitly on the command line.
type overrides struct {
	indentWidth *int
	indentStyle *rfmt.IndentStyle
	lineLength  *int
}

func (o *fmtOptions) overrides(flags *pflag.FlagSet) (overrides, error) {
	var ov overrides
	if flags.Changed("indent-width") {
		if o.indentWidth <= 0 {
			return ov, fmt.Errorf("--indent-width must be positive, got %d", o.indentWidth)
		}
		ov.indentWidth = &o.indentWidth
	}
	if flags.Changed("indent-style") {
		style, err := rfmt.ParseIndentStyle(o.indentStyle)
		if err != nil {
			return ov, fmt.Errorf("--indent-style: %w", err)
		}
		ov.indentStyle = &style
	}
	if flags.Changed("line-length") {
		if o.lineLength < 0 {
			return ov, fmt.Errorf("--line-length must not be negative, got %d", o.lineLength)
		}
		ov.lineLength = &o.lineLength
	}
	return ov, nil
}

func (ov overrides) apply(cfg rfmt.FormatConfig) rfmt.FormatConfig {
	if ov.indentWidth != nil {
		cfg.IndentWidth = *ov.indentWidth
	}
	if ov.indentStyle != nil {
		cfg.IndentStyle = *ov.indentStyle
	}
	if ov.lineLength != nil {
		cfg.MaxLineLength = *ov.lineLength
	}
	return cfg
}

func (o *fmtOptions) run(cmd *cobra.Command, cfg Config, paths []string) error {
	ov, err := o.overrides(cmd.Flags())
	if err != nil {
		return err
	}
	parser := &prism.Parser{Ruby: cfg.Ruby}
	f := &formatter{
		opts:      o,
		overrides: ov,
		parse:     parser.Parse,
		color:     isTerminal(ioctx.StdoutFromContext(cmd.Context())),
	}
	return f.run(cmd.Context(), paths)
}

type formatter struct {
	opts      *fmtOptions
	overrides overrides
	parse     func(ctx context.Context, source string) (*rfmt.Document, error)
	color     bool

	// base is the explicit --config file, if any.
	base *rfmt.FormatConfig
}

type result struct {
	path   string
	source string
	out    string
	mode   fs.FileMode
	err    error
}

func (f *formatter) run(ctx context.Context, paths []string) error {
	if f.opts.configPath != "" {
		file, err := config.Load(f.opts.configPath)
		if err != nil {
			return err
		}
		cfg := file.FormatConfig()
		f.base = &cfg
	}

	files, err := collectFiles(paths)
	if err != nil {
		return err
	}

	results := make([]result, len(files))
	for i, path := range files {
		results[i].path = path
		if path == "-" {
			src, err := io.ReadAll(ioctx.StdinFromContext(ctx))
			if err != nil {
				return errors.Wrap(err, "reading stdin")
			}
			results[i].source = string(src)
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(max(1, f.opts.jobs))
	for i := range results {
		g.Go(func() error {
			f.format(ctx, &results[i])
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	return f.report(ctx, results)
}

// format fills in the formatted output of one file, or its error.
func (f *formatter) format(ctx context.Context, r *result) {
	if r.path != "-" {
		info, err := os.Stat(r.path)
		if err != nil {
			r.err = err
			return
		}
		src, err := os.ReadFile(r.path)
		if err != nil {
			r.err = err
			return
		}
		r.mode = info.Mode()
		r.source = string(src)
	}

	cfg, err := f.config(r.path)
	if err != nil {
		r.err = err
		return
	}

	doc, err := f.parse(ctx, r.source)
	if err != nil {
		r.err = err
		return
	}
	out, err := rfmt.Format(doc, cfg)
	if err != nil {
		r.err = rfmt.NewSourceError(err, r.path, r.source)
		return
	}
	if out != "" {
		out += "\n"
	}
	r.out = out

	slog.DebugContext(ctx, "formatted", "path", r.path, "changed", r.out != r.source)
}

func (f *formatter) config(path string) (rfmt.FormatConfig, error) {
	if f.base != nil {
		return f.overrides.apply(*f.base), nil
	}
	dir := "."
	if path != "-" {
		dir = filepath.Dir(path)
	}
	cfg, _, err := config.Resolve(dir)
	if err != nil {
		return cfg, err
	}
	return f.overrides.apply(cfg), nil
}

func (f *formatter) report(ctx context.Context, results []result) error {
	stdout := ioctx.StdoutFromContext(ctx)
	stderr := ioctx.StderrFromContext(ctx)
	opts := f.opts

	var failed, changed int
	for _, r := range results {
		if r.err != nil {
			failed++
			f.printError(stderr, r)
			continue
		}

		isChanged := r.out != r.source
		if isChanged {
			changed++
		}

		if opts.list && isChanged {
			fmt.Fprintln(stdout, r.path)
		}
		if opts.diff && isChanged {
			fmt.Fprint(stdout, f.unifiedDiff(r.path, r.source, r.out))
		}
		if opts.write {
			// stdin has nowhere to be written back to, so the result always
			// goes to stdout, changed or not.
			if r.path == "-" {
				fmt.Fprint(stdout, r.out)
			} else if isChanged {
				if err := os.WriteFile(r.path, []byte(r.out), r.mode.Perm()); err != nil {
					failed++
					fmt.Fprintf(stderr, "%s: %v\n", r.path, err)
				}
			}
		}
		if !opts.write && !opts.list && !opts.diff && !opts.check {
			fmt.Fprint(stdout, r.out)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%s could not be formatted", plural(failed, "file"))
	}
	if opts.check && changed > 0 {
		return fmt.Errorf("%s not formatted", plural(changed, "file"))
	}
	return nil
}

func (f *formatter) printError(w io.Writer, r result) {
	var srcErr *rfmt.SourceError
	if errors.As(r.err, &srcErr) {
		renderSourceError(w, srcErr, f.color)
		return
	}
	fmt.Fprintf(w, "%s: %v\n", r.path, r.err)
}

var (
	diffHeaderStyle = lipgloss.NewStyle().Bold(true)
	diffHunkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	diffAddStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	diffDelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func (f *formatter) unifiedDiff(path, before, after string) string {
	name := filepath.ToSlash(path)
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	})
	if err != nil {
		// Only returned for write failures on the builder.
		return ""
	}
	if !f.color {
		return text
	}

	lines := strings.SplitAfter(text, "\n")
	for i, line := range lines {
		body := strings.TrimSuffix(line, "\n")
		nl := line[len(body):]
		switch {
		case strings.HasPrefix(body, "+++"), strings.HasPrefix(body, "---"):
			lines[i] = diffHeaderStyle.Render(body) + nl
		case strings.HasPrefix(body, "@@"):
			lines[i] = diffHunkStyle.Render(body) + nl
		case strings.HasPrefix(body, "+"):
			lines[i] = diffAddStyle.Render(body) + nl
		case strings.HasPrefix(body, "-"):
			lines[i] = diffDelStyle.Render(body) + nl
		}
	}
	return strings.Join(lines, "")
}

// collectFiles expands directories into the .rb files beneath them,
// skipping hidden directories. Explicit paths are kept as given.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		if path == "-" {
			files = append(files, path)
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Wrapf(err, "accessing %s", path)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != path && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(p) == ".rb" {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "reading directory %s", path)
		}
	}
	return files, nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
