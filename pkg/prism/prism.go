// Package prism runs the Prism Ruby parser and returns its syntax tree in
// the document format understood by rfmt.
package prism

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/vito/rfmt/pkg/rfmt"
)

//go:embed bridge.rb
var bridgeScript string

// MaxSourceSize is the largest source accepted for parsing.
const MaxSourceSize = 10 * 1024 * 1024

// ErrSourceTooLarge is returned for sources over MaxSourceSize.
var ErrSourceTooLarge = errors.New("source too large")

// SizeError reports a source over MaxSourceSize.
type SizeError struct {
	Size int
	Max  int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("Source code is too large (%d bytes, max %d bytes)", e.Size, e.Max)
}

func (e *SizeError) Is(target error) bool {
	return target == ErrSourceTooLarge
}

// ErrInvalidEncoding is returned for sources that are not valid UTF-8.
var ErrInvalidEncoding = errors.New("source is not valid UTF-8")

// checkSource rejects sources the bridge cannot hand back byte for byte.
func checkSource(source string) error {
	if len(source) > MaxSourceSize {
		return &SizeError{Size: len(source), Max: MaxSourceSize}
	}
	if utf8.ValidString(source) {
		return nil
	}
	off := 0
	for off < len(source) {
		r, size := utf8.DecodeRuneInString(source[off:])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		off += size
	}
	return errors.Wrapf(ErrInvalidEncoding, "line %d, byte %d", strings.Count(source[:off], "\n")+1, off)
}

// Parser invokes a Ruby interpreter with the prism gem available.
type Parser struct {
	// Ruby is the interpreter to run. Empty means "ruby" on $PATH.
	Ruby string
}

// Versions reports the toolchain behind the parser.
type Versions struct {
	Ruby  string `json:"ruby"`
	Prism string `json:"prism"`
}

func (p *Parser) ruby() string {
	if p != nil && p.Ruby != "" {
		return p.Ruby
	}
	return "ruby"
}

// Available reports whether the interpreter can be found.
func (p *Parser) Available() bool {
	_, err := exec.LookPath(p.ruby())
	return err == nil
}

// Parse parses source and returns the parser document. Syntax errors in the
// source are not Go errors; they are reported in Document.Errors and turned
// into a StructuralError by rfmt.Build.
func (p *Parser) Parse(ctx context.Context, source string) (*rfmt.Document, error) {
	if err := checkSource(source); err != nil {
		return nil, err
	}

	out, err := p.run(ctx, strings.NewReader(source))
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}

	doc, err := rfmt.DecodeDocument(out)
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}
	slog.DebugContext(ctx, "parsed source", "bytes", len(source), "comments", len(doc.Comments), "errors", len(doc.Errors))
	return doc, nil
}

// ParseJSON returns the raw parser output, for debugging.
func (p *Parser) ParseJSON(ctx context.Context, source string) ([]byte, error) {
	if err := checkSource(source); err != nil {
		return nil, err
	}
	out, err := p.run(ctx, strings.NewReader(source))
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}
	return out, nil
}

// Version asks the interpreter for its Ruby and Prism versions.
func (p *Parser) Version(ctx context.Context) (Versions, error) {
	var v Versions
	out, err := p.run(ctx, nil, "--version")
	if err != nil {
		return v, errors.Wrap(err, "version")
	}
	if err := json.Unmarshal(out, &v); err != nil {
		return v, errors.Wrap(err, "decoding version")
	}
	return v, nil
}

func (p *Parser) run(ctx context.Context, stdin *strings.Reader, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.ruby(), append([]string{"-e", bridgeScript, "--"}, args...)...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, errors.Wrapf(err, "%s: %s", p.ruby(), errorLine(msg))
		}
		return nil, errors.Wrapf(err, "running %s", p.ruby())
	}
	return stdout.Bytes(), nil
}

// errorLine keeps the interesting part of a Ruby backtrace, e.g.
// "cannot load such file -- prism (LoadError)".
func errorLine(msg string) string {
	lines := strings.Split(msg, "\n")
	for _, l := range lines {
		if strings.Contains(l, "Error)") {
			return strings.TrimSpace(l)
		}
	}
	return strings.TrimSpace(lines[0])
}
