package rfmt

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Line is one line of a layout plan.
type Line struct {
	Depth int
	Text  string
	// Verbatim lines come from the source unchanged (heredoc bodies,
	// continuation lines of multi-line literals, =begin comments). They are
	// neither indented nor trimmed.
	Verbatim bool
	// Raw lines end inside verbatim text. They are indented but not trimmed.
	Raw bool
}

// LayoutPlan is the ordered output of the layout engine.
type LayoutPlan []Line

// printer accumulates a LayoutPlan. Text is written into the current line
// until the next call to newline.
type printer struct {
	cfg  FormatConfig
	plan LayoutPlan

	line Line
	open bool

	// header is a comment waiting for the end of the current line.
	header string
	// heredocs are written after the line holding their opening.
	heredocs []*Node

	// flat disables argument wrapping, for measuring a trial rendering.
	flat bool
}

func newPrinter(cfg FormatConfig) *printer {
	return &printer{cfg: cfg}
}

// newline finishes the current line and starts a new one at depth.
func (p *printer) newline(depth int) {
	p.flush()
	p.line = Line{Depth: depth}
	p.open = true
}

func (p *printer) flush() {
	if !p.open {
		return
	}
	if p.header != "" {
		p.line.Text += " " + p.header
		p.header = ""
	}
	p.plan = append(p.plan, p.line)
	p.open = false

	for _, h := range p.heredocs {
		p.verbatim(h.Body)
	}
	p.heredocs = nil
}

// write appends text to the current line. Line breaks inside text belong to
// a literal; the lines after them are kept verbatim.
func (p *printer) write(text string) {
	if !p.open {
		p.newline(0)
	}
	first, rest, multi := strings.Cut(text, "\n")
	p.line.Text += first
	for multi {
		var part string
		part, rest, multi = strings.Cut(rest, "\n")
		p.line.Raw = true
		p.plan = append(p.plan, p.line)
		p.line = Line{Text: part, Verbatim: true}
	}
}

// verbatim adds complete lines that must be reproduced exactly.
func (p *printer) verbatim(text string) {
	p.flush()
	text = strings.TrimSuffix(text, "\n")
	for _, l := range strings.Split(text, "\n") {
		p.plan = append(p.plan, Line{Text: l, Verbatim: true})
	}
}

// blank adds an empty line, collapsing runs of them.
func (p *printer) blank() {
	p.flush()
	if n := len(p.plan); n == 0 || p.plan[n-1] == (Line{}) {
		return
	}
	p.plan = append(p.plan, Line{})
}

// width is the display width of the current line so far.
func (p *printer) width() int {
	w := ansi.StringWidth(p.line.Text)
	if !p.line.Verbatim {
		w += p.cfg.indentColumns(p.line.Depth)
	}
	return w
}

// trial renders fn into a scratch printer with wrapping disabled and
// returns the first line it produced.
func (p *printer) trial(fn func(q *printer)) string {
	q := &printer{cfg: p.cfg, flat: true, open: true}
	fn(q)
	q.flush()
	if len(q.plan) == 0 {
		return ""
	}
	return q.plan[0].Text
}

// comment writes a full-line comment at depth.
func (p *printer) comment(c Comment, depth int) {
	if c.BlankBefore {
		p.blank()
	}
	if c.Block {
		p.verbatim(c.Text)
		return
	}
	p.newline(depth)
	p.write(c.Text)
}

func (p *printer) comments(cs []Comment, depth int) {
	for _, c := range cs {
		p.comment(c, depth)
	}
}

// trailing ends the current statement with its comment, if any.
func (p *printer) trailing(text string) {
	if text == "" {
		return
	}
	if p.header != "" {
		p.line.Text += " " + p.header
		p.header = ""
	}
	p.line.Text += " " + text
}
