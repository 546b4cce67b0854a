package rfmt

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// IndentStyle selects the character used for each level of indentation.
type IndentStyle string

const (
	IndentSpaces IndentStyle = "spaces"
	IndentTabs   IndentStyle = "tabs"
)

// ParseIndentStyle accepts the names used in config files and editor
// settings.
func ParseIndentStyle(s string) (IndentStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spaces", "space":
		return IndentSpaces, nil
	case "tabs", "tab":
		return IndentTabs, nil
	default:
		return "", fmt.Errorf("unknown indent style %q (expected \"spaces\" or \"tabs\")", s)
	}
}

const (
	DefaultIndentWidth   = 2
	DefaultMaxLineLength = 100
)

// FormatConfig is the resolved set of options for a single format call. It
// is passed by value and never modified once constructed.
type FormatConfig struct {
	IndentWidth int
	IndentStyle IndentStyle
	// MaxLineLength is advisory; zero disables argument wrapping entirely.
	MaxLineLength int
	// Version is informational and does not affect output.
	Version string
}

// DefaultConfig returns the configuration used when nothing else is
// specified.
func DefaultConfig() FormatConfig {
	return FormatConfig{
		IndentWidth:   DefaultIndentWidth,
		IndentStyle:   IndentSpaces,
		MaxLineLength: DefaultMaxLineLength,
	}
}

// Validate reports whether the config can be used for formatting.
func (c FormatConfig) Validate() error {
	if c.IndentWidth <= 0 {
		return fmt.Errorf("indent_width must be positive, got %d", c.IndentWidth)
	}
	switch c.IndentStyle {
	case IndentSpaces, IndentTabs:
	default:
		return fmt.Errorf("unknown indent style %q", c.IndentStyle)
	}
	if c.MaxLineLength < 0 {
		return fmt.Errorf("line_length must not be negative, got %d", c.MaxLineLength)
	}
	return nil
}

// Indent returns the leading whitespace for the given depth.
func (c FormatConfig) Indent(depth int) string {
	if depth <= 0 {
		return ""
	}
	if c.IndentStyle == IndentTabs {
		return strings.Repeat("\t", depth)
	}
	return strings.Repeat(" ", depth*c.IndentWidth)
}

// indentColumns is the visual width of the indentation at depth, counting a
// tab as IndentWidth columns.
func (c FormatConfig) indentColumns(depth int) int {
	return depth * c.IndentWidth
}

// Hash identifies the options that influence output, for use as a cache key.
func (c FormatConfig) Hash() uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%d/%s/%d", c.IndentWidth, c.IndentStyle, c.MaxLineLength))
}

// IndentContext is threaded through the layout recursion. It is a value: a
// nested body gets a new context from Nested and the parent's is untouched.
type IndentContext struct {
	Depth  int
	Config FormatConfig
}

// NewIndentContext returns the context for top-level statements.
func NewIndentContext(cfg FormatConfig) IndentContext {
	return IndentContext{Config: cfg}
}

// Nested returns the context for a body one level deeper.
func (ic IndentContext) Nested() IndentContext {
	ic.Depth++
	return ic
}
