package rfmt

import (
	"errors"
	"fmt"
	"strings"
)

// SourceLocation is a position in a named source file, 1-based.
type SourceLocation struct {
	Filename string
	Line     int
	Column   int
	Length   int // Length of the offending construct on its first line
}

func (loc *SourceLocation) String() string {
	if loc == nil {
		return ""
	}
	name := loc.Filename
	if name == "" {
		name = "<source>"
	}
	return fmt.Sprintf("%s:%d:%d", name, loc.Line, loc.Column)
}

// sourceLocation converts a node location into a diagnostic location. It
// returns nil when the location is missing.
func sourceLocation(loc Location) *SourceLocation {
	if loc.IsZero() || loc.StartLine <= 0 {
		return nil
	}
	length := 1
	if loc.EndLine == loc.StartLine && loc.EndColumn > loc.StartColumn {
		length = loc.EndColumn - loc.StartColumn
	}
	return &SourceLocation{
		Line:   loc.StartLine,
		Column: loc.StartColumn + 1,
		Length: length,
	}
}

// StructuralError reports a parser document that cannot be translated into
// the tree model.
type StructuralError struct {
	// NodeType is the external node type involved, if any.
	NodeType string
	Reason   string
	Location *SourceLocation
}

func (e *StructuralError) Error() string {
	var b strings.Builder
	b.WriteString("malformed syntax tree")
	if e.NodeType != "" {
		fmt.Fprintf(&b, " at %s", e.NodeType)
	}
	if e.Location != nil {
		fmt.Fprintf(&b, " (line %d, column %d)", e.Location.Line, e.Location.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

func structuralErrorf(ext *ExternalNode, format string, args ...any) *StructuralError {
	err := &StructuralError{Reason: fmt.Sprintf(format, args...)}
	if ext != nil {
		err.NodeType = ext.NodeType
		if ext.Location != nil {
			err.Location = sourceLocation(ext.Location.toLocation())
		}
	}
	return err
}

// ValidationError reports a tree that violates the shape contract of one of
// its node kinds.
type ValidationError struct {
	Kind     Kind
	Reason   string
	Location *SourceLocation
}

func (e *ValidationError) Error() string {
	if e.Location != nil {
		return fmt.Sprintf("invalid %s at line %d, column %d: %s", e.Kind, e.Location.Line, e.Location.Column, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Kind, e.Reason)
}

// ErrorLocation returns the diagnostic location of a core error, or nil.
func ErrorLocation(err error) *SourceLocation {
	var structErr *StructuralError
	if errors.As(err, &structErr) {
		return structErr.Location
	}
	var validErr *ValidationError
	if errors.As(err, &validErr) {
		return validErr.Location
	}
	return nil
}

// SourceError attaches the source text to an error so that it can be shown
// with the offending line highlighted.
type SourceError struct {
	Inner    error
	Location *SourceLocation
	Source   string
}

// NewSourceError wraps err with the location found in it, if any. Errors
// without a location are returned unchanged.
func NewSourceError(err error, filename, source string) error {
	loc := ErrorLocation(err)
	if loc == nil {
		return err
	}
	cp := *loc
	cp.Filename = filename
	return &SourceError{Inner: err, Location: &cp, Source: source}
}

func (e *SourceError) Unwrap() error {
	return e.Inner
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Location, e.Inner)
}

// Subject names what the error is about: the node type of a structural
// error or the kind of a validation error.
func (e *SourceError) Subject() string {
	var structErr *StructuralError
	if errors.As(e.Inner, &structErr) {
		return structErr.NodeType
	}
	var validErr *ValidationError
	if errors.As(e.Inner, &validErr) {
		return validErr.Kind.String()
	}
	return ""
}

// Reason returns the message of the error without its location.
func (e *SourceError) Reason() string {
	var structErr *StructuralError
	if errors.As(e.Inner, &structErr) {
		return structErr.Reason
	}
	var validErr *ValidationError
	if errors.As(e.Inner, &validErr) {
		return validErr.Reason
	}
	return e.Inner.Error()
}

// ExcerptLine is a source line shown with an error.
type ExcerptLine struct {
	Number int
	Text   string
	// Mark is the byte range of Text to underline. It is empty except on
	// the line the error points at.
	Mark [2]int
}

// Marked reports whether l is the line the error points at.
func (l ExcerptLine) Marked() bool {
	return l.Mark[1] > l.Mark[0]
}

// Excerpt returns the line of the error and up to radius lines around it,
// or nil when the location is not within the source.
func (e *SourceError) Excerpt(radius int) []ExcerptLine {
	lines := strings.Split(strings.TrimSuffix(e.Source, "\n"), "\n")
	if e.Location == nil || e.Location.Line < 1 || e.Location.Line > len(lines) {
		return nil
	}
	first := max(1, e.Location.Line-radius)
	last := min(len(lines), e.Location.Line+radius)

	out := make([]ExcerptLine, 0, last-first+1)
	for i := first; i <= last; i++ {
		l := ExcerptLine{Number: i, Text: strings.TrimRight(lines[i-1], "\r")}
		if i == e.Location.Line {
			start := min(max(e.Location.Column-1, 0), len(l.Text))
			end := min(start+max(e.Location.Length, 1), len(l.Text))
			l.Mark = [2]int{start, max(end, start+1)}
		}
		out = append(out, l)
	}
	return out
}
