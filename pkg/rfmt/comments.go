package rfmt

import (
	"math"
	"sort"
	"strings"
)

type sourceComment struct {
	Comment
	endLine  int
	trailing bool
}

func (b *builder) comments(exts []ExternalComment) ([]sourceComment, error) {
	out := make([]sourceComment, 0, len(exts))
	for _, ext := range exts {
		c := sourceComment{
			Comment:  Comment{Text: strings.TrimRight(ext.Text, " \t\r\n")},
			trailing: ext.Trailing,
		}
		if ext.Location != nil {
			loc := ext.Location.toLocation()
			if loc.StartOffset < 0 || loc.EndOffset < loc.StartOffset || loc.EndOffset > len(b.source) {
				return nil, &StructuralError{
					NodeType: "comment",
					Reason:   "location span outside source bounds",
					Location: sourceLocation(loc),
				}
			}
			c.Line = loc.StartLine
			c.endLine = loc.EndLine
		}
		if c.endLine < c.Line {
			c.endLine = c.Line
		}
		c.Block = ext.Type == "embdoc" || strings.HasPrefix(c.Text, "=begin")
		if c.Block {
			c.trailing = false
		}
		if c.Text == "" {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Line < out[j].Line
	})
	return out, nil
}

// attacher distributes comments over the tree in a single pass. It walks
// statement lists in source order and hands each statement the comments that
// precede it, the comment sharing its first line and the one sharing its
// last line.
type attacher struct {
	source  string
	pending []sourceComment
	next    int
}

func attachComments(root *Node, source string, comments []sourceComment) {
	a := &attacher{source: source, pending: comments}
	a.statements(root.Child(0), 0, math.MaxInt)
}

func (a *attacher) peek() *sourceComment {
	if a.next >= len(a.pending) {
		return nil
	}
	return &a.pending[a.next]
}

// takeBefore consumes all comments that start before line. lastLine is the
// last source line of whatever precedes them, used to detect blank lines.
func (a *attacher) takeBefore(line, lastLine int, first bool) []Comment {
	var out []Comment
	for c := a.peek(); c != nil && c.Line < line; c = a.peek() {
		cm := c.Comment
		cm.BlankBefore = !first && lastLine > 0 && cm.Line-lastLine > 1
		out = append(out, cm)
		lastLine = c.endLine
		first = false
		a.next++
	}
	return out
}

func (a *attacher) takeOn(line int) string {
	if c := a.peek(); c != nil && c.trailing && c.Line == line && line > 0 {
		a.next++
		return c.Text
	}
	return ""
}

// statements attaches comments to a body. openLine is the line of the
// construct's header and closeLine the line where the body ends.
func (a *attacher) statements(list *Node, openLine, closeLine int) {
	lastLine := openLine
	first := true
	for _, s := range list.Children {
		if s == nil {
			continue
		}
		start, end := s.Loc.StartLine, spanEnd(s)

		if lead := a.takeBefore(start, lastLine, first); len(lead) > 0 {
			s.comments().Leading = lead
			first = false
			lastLine = a.pending[a.next-1].endLine
		}
		s.BlankBefore = !first && lastLine > 0 && start-lastLine > 1

		if a.noFmt(s) {
			a.verbatim(s)
			if trailing := a.takeOn(end); trailing != "" {
				s.comments().Trailing = trailing
			}
			lastLine = max(lastLine, end)
			first = false
			continue
		}

		if end > start {
			if header := a.takeOn(start); header != "" {
				s.comments().Header = header
			}
		}

		a.walk(s, end)

		// Comments inside an inline expression cannot stay where they were;
		// they move above the statement.
		if inner := a.takeBefore(end, 0, true); len(inner) > 0 {
			s.comments().Leading = append(s.comments().Leading, inner...)
		}
		if trailing := a.takeOn(end); trailing != "" {
			s.comments().Trailing = trailing
		}

		lastLine = max(lastLine, end)
		first = false
	}

	if dangling := a.takeBefore(closeLine, lastLine, first); len(dangling) > 0 {
		list.comments().Dangling = append(list.comments().Dangling, dangling...)
	}
}

// bodySlot returns the index of the child laid out as an indented body, or
// -1 for nodes without one.
func bodySlot(n *Node) int {
	switch n.Kind {
	case KindClassDef, KindMethodDef, KindFor, KindRescue:
		if n.Kind == KindMethodDef && n.Flags.Has(FlagEndless) {
			return -1
		}
		return 2
	case KindModuleDef, KindSingletonClassDef, KindBlock, KindLambda, KindWhile, KindIf, KindWhen, KindIn:
		if n.Flags.Has(FlagModifier) || n.Flags.Has(FlagTernary) {
			return -1
		}
		return 1
	case KindElse, KindEnsure, KindBegin:
		return 0
	}
	return -1
}

// isClause reports nodes whose span stops at their last statement rather
// than at the line that closes them.
func isClause(n *Node) bool {
	switch n.Kind {
	case KindElse, KindWhen, KindIn, KindRescue, KindEnsure:
		return true
	case KindIf:
		return n.Op == "elsif"
	case KindBegin:
		return n.Flags.Has(FlagImplicit)
	}
	return false
}

// inlineOnly reports nodes that are always laid out on a single line, whose
// inner statements therefore cannot own comments.
func inlineOnly(n *Node) bool {
	switch n.Kind {
	case KindIf, KindWhile:
		return n.Flags.Has(FlagModifier) || n.Flags.Has(FlagTernary)
	case KindMethodDef:
		return n.Flags.Has(FlagEndless)
	case KindBlock, KindLambda, KindParenthesized:
		return n.Loc.StartLine == n.Loc.EndLine
	}
	return false
}

// walk descends into n looking for nested bodies. closeLine is where the
// enclosing body ends, used for clauses that do not span their own closer.
func (a *attacher) walk(n *Node, closeLine int) {
	if n == nil || inlineOnly(n) {
		return
	}
	if fromSource(n) {
		a.dropWithin(n.Loc.StartLine, n.Loc.EndLine)
		return
	}
	ownClose := n.Loc.EndLine
	if isClause(n) || ownClose == 0 {
		ownClose = closeLine
	}

	slot := bodySlot(n)
	for i, c := range n.Children {
		childClose := ownClose
		for _, sib := range n.Children[i+1:] {
			if sib != nil && sib.Loc.StartLine > 0 {
				childClose = sib.Loc.StartLine
				break
			}
		}
		switch {
		case c == nil:
			// An empty body keeps the comments written inside it, which
			// must be claimed before the clauses after it are walked.
			if i == slot {
				a.dangling(n, childClose)
			}
		case c.Kind == KindStatements:
			a.statements(c, n.Loc.StartLine, childClose)
		default:
			a.walk(c, childClose)
		}
	}
	if slot >= len(n.Children) {
		a.dangling(n, ownClose)
	}
}

func (a *attacher) dangling(n *Node, close int) {
	if n.Loc.StartLine == 0 {
		return
	}
	if dangling := a.takeBefore(close, n.Loc.StartLine, true); len(dangling) > 0 {
		n.comments().Dangling = append(n.comments().Dangling, dangling...)
	}
}

// fromSource reports nodes printed as their original source text.
func fromSource(n *Node) bool {
	return n.Kind == KindPattern || n.Kind == KindUnsupported
}

// dropWithin discards the queued comments that start on lines from start up
// to, but not including, end. They are part of a span printed verbatim.
func (a *attacher) dropWithin(start, end int) {
	if end <= start {
		return
	}
	rest := a.pending[a.next:]
	kept := rest[:0]
	for _, c := range rest {
		if c.Line >= start && c.Line < end {
			continue
		}
		kept = append(kept, c)
	}
	a.pending = a.pending[:a.next+len(kept)]
}

func isNoFmt(text string) bool {
	text = strings.TrimSpace(strings.TrimPrefix(text, "#"))
	return text == "nofmt" || strings.HasPrefix(text, "nofmt ")
}

// noFmt reports whether s is marked to be left alone, either by a #nofmt
// comment on the line before it or by one trailing its first line.
func (a *attacher) noFmt(s *Node) bool {
	if a.source == "" || s.Loc.EndOffset <= s.Loc.StartOffset || containsHeredoc(s) {
		return false
	}
	if lead := s.leadingComments(); len(lead) > 0 {
		last := lead[len(lead)-1]
		if isNoFmt(last.Text) && last.Line == s.Loc.StartLine-1 {
			return true
		}
	}
	c := a.peek()
	return c != nil && c.trailing && c.Line == s.Loc.StartLine && isNoFmt(c.Text)
}

// verbatim replaces s with its original source text. Comments inside the
// span are part of that text and are dropped from the queue.
func (a *attacher) verbatim(s *Node) {
	s.Kind = KindUnsupported
	s.Payload = a.source[s.Loc.StartOffset:s.Loc.EndOffset]
	s.Children = nil
	s.Op = ""
	s.Flags = 0
	s.Body = ""
	a.dropWithin(s.Loc.StartLine, s.Loc.EndLine)
}

// spanEnd is the last source line taken up by s, including the bodies of
// heredocs opened inside it.
func spanEnd(s *Node) int {
	end := s.Loc.EndLine
	if !containsHeredoc(s) {
		return end
	}
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.Flags.Has(FlagHeredoc) {
			end = max(end, n.Loc.EndLine)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(s)
	return end
}

func containsHeredoc(n *Node) bool {
	if n == nil {
		return false
	}
	if n.Flags.Has(FlagHeredoc) {
		return true
	}
	for _, c := range n.Children {
		if containsHeredoc(c) {
			return true
		}
	}
	return false
}
