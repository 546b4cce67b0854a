package rfmt

import "strings"

// Emit materializes a layout plan. Every line is indented by its depth and
// stripped of trailing whitespace, except verbatim text. Trailing blank lines
// are dropped and the result does not end with a newline.
func Emit(plan LayoutPlan, cfg FormatConfig) string {
	lines := make([]string, 0, len(plan))
	for _, l := range plan {
		if l.Verbatim {
			lines = append(lines, l.Text)
			continue
		}
		text := l.Text
		if !l.Raw {
			text = strings.TrimRight(text, " \t")
		}
		if text == "" {
			lines = append(lines, "")
			continue
		}
		lines = append(lines, cfg.Indent(l.Depth)+text)
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
