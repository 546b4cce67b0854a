package rfmt

import (
	"strings"
)

// Layout lays out a validated tree. It never fails: every kind has a rule,
// and unsupported nodes are reproduced from their source text.
func Layout(root *Node, ic IndentContext) LayoutPlan {
	p := newPrinter(ic.Config)
	if root.Kind == KindProgram {
		p.program(root, ic)
	} else {
		p.newline(ic.Depth)
		p.expr(root, ic)
	}
	p.flush()
	return p.plan
}

func (p *printer) program(n *Node, ic IndentContext) {
	if body := n.Child(0); body != nil {
		p.statements(body, ic)
	}
	if n.Flags.Has(FlagDataSection) {
		p.verbatim("__END__\n" + n.Body)
	}
}

// statements lays out a body, one statement per line, at ic.Depth.
func (p *printer) statements(list *Node, ic IndentContext) {
	for _, s := range list.Children {
		p.comments(s.leadingComments(), ic.Depth)
		if s.BlankBefore {
			p.blank()
		}
		p.newline(ic.Depth)
		p.header = s.headerComment()
		p.expr(s, ic)
		p.trailing(s.trailingComment())
	}
	p.comments(list.danglingComments(), ic.Depth)
}

// body lays out the child in slot as the indented body of n, followed by
// the comments left in n when the body is empty. ic is the context of n.
func (p *printer) body(n *Node, slot int, ic IndentContext) {
	inner := ic.Nested()
	b := n.Child(slot)
	switch {
	case b == nil:
	case b.Kind == KindStatements:
		p.statements(b, inner)
	case b.Kind == KindBegin && b.Flags.Has(FlagImplicit):
		p.body(b, 0, ic)
		p.handlers(b, ic)
	default:
		p.newline(inner.Depth)
		p.expr(b, inner)
	}
	p.comments(n.danglingComments(), inner.Depth)
}

// end closes a block construct opened at ic.Depth.
func (p *printer) end(ic IndentContext) {
	p.newline(ic.Depth)
	p.write("end")
}

// expr writes n into the current line. Block constructs continue onto
// following lines and finish on a line of their own at ic.Depth.
func (p *printer) expr(n *Node, ic IndentContext) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KindProgram:
		p.program(n, ic)

	case KindStatements:
		p.inlineStatements(n, ic)

	case KindClassDef:
		p.write("class ")
		p.expr(n.Child(0), ic)
		if super := n.Child(1); super != nil {
			p.write(" < ")
			p.expr(super, ic)
		}
		p.body(n, 2, ic)
		p.end(ic)

	case KindModuleDef:
		p.write("module ")
		p.expr(n.Child(0), ic)
		p.body(n, 1, ic)
		p.end(ic)

	case KindSingletonClassDef:
		p.write("class << ")
		p.expr(n.Child(0), ic)
		p.body(n, 1, ic)
		p.end(ic)

	case KindMethodDef:
		p.methodDef(n, ic)

	case KindParameters:
		p.list(n.Children, ic)

	case KindParameter:
		p.parameter(n, ic)

	case KindCall:
		p.call(n, ic)

	case KindArguments:
		p.list(n.Children, ic)

	case KindBlock:
		p.block(n, ic)

	case KindBlockParameters:
		p.blockParameters(n, ic)

	case KindBlockPass:
		p.write("&")
		p.expr(n.Child(0), ic)

	case KindLambda:
		p.lambda(n, ic)

	case KindIf:
		p.conditional(n, ic)

	case KindElse, KindWhen, KindIn, KindRescue, KindEnsure:
		p.clause(n, ic)

	case KindCaseWhen, KindCaseIn:
		p.caseExpr(n, ic)

	case KindPattern:
		p.write(n.Payload)

	case KindWhile:
		p.loop(n, ic)

	case KindFor:
		p.write("for ")
		p.expr(n.Child(0), ic)
		p.write(" in ")
		p.expr(n.Child(1), ic)
		p.body(n, 2, ic)
		p.end(ic)

	case KindBegin:
		p.write("begin")
		p.body(n, 0, ic)
		p.handlers(n, ic)
		p.end(ic)

	case KindRescueModifier:
		p.expr(n.Child(0), ic)
		p.write(" rescue ")
		p.expr(n.Child(1), ic)

	case KindJump:
		p.write(n.Payload)
		if args := n.Child(0); args != nil {
			p.write(" ")
			p.expr(args, ic)
		}

	case KindYield:
		p.write("yield")
		p.arguments(n.Child(0), nil, n.Flags.Has(FlagParens), ic)

	case KindSuper:
		p.write("super")
		if !n.Flags.Has(FlagBare) {
			// super without parentheses forwards the caller's arguments
			parens := n.Flags.Has(FlagParens) || n.Child(0) == nil
			p.arguments(n.Child(0), blockPass(n.Child(1)), parens, ic)
		}
		if b := n.Child(1); b != nil && b.Kind == KindBlock {
			p.write(" ")
			p.block(b, ic)
		}

	case KindAssignment:
		p.expr(n.Child(0), ic)
		p.write(" " + n.Op + " ")
		p.expr(n.Child(1), ic)

	case KindMultipleAssignment:
		p.expr(n.Child(0), ic)
		p.write(" = ")
		p.expr(n.Child(1), ic)

	case KindTargets:
		if n.Flags.Has(FlagParens) {
			p.write("(")
			p.list(n.Children, ic)
			p.write(")")
		} else {
			p.list(n.Children, ic)
		}

	case KindSplat:
		if n.Op != "," {
			p.write(n.Op)
		}
		p.expr(n.Child(0), ic)

	case KindInteger, KindFloat, KindSymbol, KindRegex, KindKeywordLiteral, KindVariable, KindUnsupported:
		p.write(n.Payload)

	case KindString:
		p.write(n.Payload)
		if n.Flags.Has(FlagHeredoc) {
			p.heredocs = append(p.heredocs, n)
		}

	case KindArray:
		p.array(n, ic)

	case KindHash:
		p.hash(n, ic)

	case KindHashPair:
		p.expr(n.Child(0), ic)
		if n.Op == "=>" {
			p.write(" => ")
		} else if n.Child(1) != nil {
			p.write(" ")
		}
		p.expr(n.Child(1), ic)

	case KindConstantPath:
		p.expr(n.Child(0), ic)
		p.write("::" + n.Payload)

	case KindIndex:
		p.expr(n.Child(0), ic)
		p.parenthesized("[", "]", n.Child(1), blockPass(n.Child(2)), ic)

	case KindBinaryOperator:
		p.expr(n.Child(0), ic)
		p.write(" " + n.Op + " ")
		p.expr(n.Child(1), ic)

	case KindUnaryOperator:
		p.write(n.Op)
		if isWord(n.Op) {
			p.write(" ")
		}
		p.expr(n.Child(0), ic)

	case KindRange:
		p.expr(n.Child(0), ic)
		p.write(n.Op)
		p.expr(n.Child(1), ic)

	case KindAlias:
		p.write("alias ")
		p.expr(n.Child(0), ic)
		p.write(" ")
		p.expr(n.Child(1), ic)

	case KindUndef:
		p.write("undef ")
		p.list(n.Children, ic)

	case KindDefined:
		if n.Flags.Has(FlagParens) {
			p.write("defined?(")
			p.expr(n.Child(0), ic)
			p.write(")")
		} else {
			p.write("defined? ")
			p.expr(n.Child(0), ic)
		}

	case KindParenthesized:
		p.parens(n, ic)
	}
}

// inlineStatements joins statements on one line, as in `(a; b)`.
func (p *printer) inlineStatements(n *Node, ic IndentContext) {
	for i, s := range n.Children {
		if i > 0 {
			p.write("; ")
		}
		p.expr(s, ic)
	}
}

// list writes a comma-separated list. An implicit rest parameter leaves
// a trailing comma behind the element before it.
func (p *printer) list(items []*Node, ic IndentContext) {
	for i, item := range items {
		if item.Kind == KindSplat && item.Op == "," {
			p.write(",")
			continue
		}
		if i > 0 {
			p.write(", ")
		}
		p.expr(item, ic)
	}
}

func (p *printer) parens(n *Node, ic IndentContext) {
	body := n.Child(0)
	if body == nil {
		p.write("(")
		if dangling := n.danglingComments(); len(dangling) > 0 {
			p.comments(dangling, ic.Nested().Depth)
			p.newline(ic.Depth)
		}
		p.write(")")
		return
	}
	if body.Kind == KindStatements && hasComments(body) {
		p.write("(")
		p.statements(body, ic.Nested())
		p.newline(ic.Depth)
		p.write(")")
		return
	}
	p.write("(")
	p.expr(body, ic)
	p.write(")")
}

func (p *printer) array(n *Node, ic IndentContext) {
	switch {
	case n.Flags.Has(FlagPercent):
		p.write(n.Op)
		for i, c := range n.Children {
			if i > 0 {
				p.write(" ")
			}
			p.expr(c, ic)
		}
		p.write(n.Payload)
	case n.Flags.Has(FlagImplicit):
		p.list(n.Children, ic)
	default:
		p.write("[")
		p.list(n.Children, ic)
		p.write("]")
	}
}

func (p *printer) hash(n *Node, ic IndentContext) {
	switch {
	case n.Flags.Has(FlagImplicit):
		p.list(n.Children, ic)
	case len(n.Children) == 0:
		p.write("{}")
	default:
		p.write("{ ")
		p.list(n.Children, ic)
		p.write(" }")
	}
}

func isWord(op string) bool {
	return op != "" && strings.Trim(op, "abcdefghijklmnopqrstuvwxyz") == ""
}

// hasComments reports whether any comment is attached to n or a statement
// directly below it.
func hasComments(n *Node) bool {
	if n == nil {
		return false
	}
	if n.Comments != nil {
		return true
	}
	if n.Kind == KindStatements {
		for _, s := range n.Children {
			if s.Comments != nil {
				return true
			}
		}
	}
	return false
}

// breaksLine reports whether n always lays out over several lines.
func breaksLine(n *Node) bool {
	if n == nil {
		return false
	}
	switch n.Kind {
	case KindClassDef, KindModuleDef, KindSingletonClassDef, KindCaseWhen, KindCaseIn, KindFor, KindBegin:
		return true
	case KindMethodDef:
		if !n.Flags.Has(FlagEndless) {
			return true
		}
	case KindIf, KindWhile:
		if !n.Flags.Has(FlagModifier) && !n.Flags.Has(FlagTernary) {
			return true
		}
	case KindBlock, KindLambda:
		if !inlineBraces(n) {
			return true
		}
	case KindParenthesized:
		if hasComments(n) || hasComments(n.Child(0)) {
			return true
		}
	}
	for _, c := range n.Children {
		if breaksLine(c) {
			return true
		}
	}
	return false
}
