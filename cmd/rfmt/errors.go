package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/vito/rfmt/pkg/rfmt"
)

var (
	errorLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	errorPathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	gutterStyle     = lipgloss.NewStyle().Faint(true)
	markStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
)

// renderSourceError prints err with the source lines around it:
//
//	error: missing required field "name"
//	 --> app.rb:2:3
//	  |
//	1 | def go
//	2 |   foo
//	  |   ^^^ local_variable_read_node
//	3 | end
func renderSourceError(w io.Writer, err *rfmt.SourceError, color bool) {
	paint := func(style lipgloss.Style, text string) string {
		if !color {
			return text
		}
		return style.Render(text)
	}

	excerpt := err.Excerpt(2)
	if len(excerpt) == 0 {
		fmt.Fprintln(w, err.Error())
		return
	}
	width := len(strconv.Itoa(excerpt[len(excerpt)-1].Number))
	gutter := func(label string) string {
		return paint(gutterStyle, fmt.Sprintf("%*s |", width, label))
	}

	fmt.Fprintf(w, "%s %s\n", paint(errorLabelStyle, "error:"), err.Reason())
	fmt.Fprintf(w, "%*s%s %s\n", width, "", paint(gutterStyle, "-->"), paint(errorPathStyle, err.Location.String()))
	fmt.Fprintln(w, gutter(""))
	for _, l := range excerpt {
		fmt.Fprintln(w, strings.TrimRight(gutter(strconv.Itoa(l.Number))+" "+l.Text, " "))
		if !l.Marked() {
			continue
		}
		// Keep tabs so the carets line up with the text above them.
		pad := strings.Map(func(r rune) rune {
			if r == '\t' {
				return r
			}
			return ' '
		}, l.Text[:l.Mark[0]])
		mark := paint(markStyle, strings.Repeat("^", l.Mark[1]-l.Mark[0]))
		if subject := err.Subject(); subject != "" {
			mark += " " + subject
		}
		fmt.Fprintf(w, "%s %s%s\n", gutter(""), pad, mark)
	}
}
