package rfmt

import "github.com/charmbracelet/x/ansi"

func (p *printer) call(n *Node, ic IndentContext) {
	if recv := n.Child(0); recv != nil {
		p.expr(recv, ic)
		p.write(n.Op)
	}
	p.write(n.Payload)

	args, blk := n.Child(1), n.Child(2)
	p.arguments(args, blockPass(blk), n.Flags.Has(FlagParens), ic)
	if blk != nil && blk.Kind == KindBlock {
		p.write(" ")
		p.block(blk, ic)
	}
}

// blockPass returns n when it is a `&blk` argument.
func blockPass(n *Node) *Node {
	if n != nil && n.Kind == KindBlockPass {
		return n
	}
	return nil
}

// arguments writes a call's argument list, either in parentheses or
// separated from the method name by a space.
func (p *printer) arguments(args, pass *Node, parens bool, ic IndentContext) {
	if parens {
		p.parenthesized("(", ")", args, pass, ic)
		return
	}
	items := argItems(args, pass, false)
	if len(items) == 0 {
		return
	}
	p.write(" ")
	p.list(items, ic)
}

func argItems(args, pass *Node, expandKeywords bool) []*Node {
	var items []*Node
	if args != nil {
		for _, a := range args.Children {
			if expandKeywords && a.Kind == KindHash && a.Flags.Has(FlagImplicit) {
				items = append(items, a.Children...)
				continue
			}
			items = append(items, a)
		}
	}
	if pass != nil {
		items = append(items, pass)
	}
	return items
}

// parenthesized writes a delimited argument list. When the line would run
// past the configured length it puts each argument on its own line.
func (p *printer) parenthesized(open, close string, args, pass *Node, ic IndentContext) {
	items := argItems(args, pass, false)
	if len(items) == 0 {
		p.write(open + close)
		return
	}

	if p.shouldWrap(open, close, items, ic) {
		inner := ic.Nested()
		items = argItems(args, pass, true)
		p.write(open)
		for i, item := range items {
			p.newline(inner.Depth)
			p.expr(item, inner)
			if i < len(items)-1 {
				p.write(",")
			}
		}
		p.newline(ic.Depth)
		p.write(close)
		return
	}

	p.write(open)
	p.list(items, ic)
	p.write(close)
}

func (p *printer) shouldWrap(open, close string, items []*Node, ic IndentContext) bool {
	limit := p.cfg.MaxLineLength
	if p.flat || limit <= 0 {
		return false
	}
	inline := p.trial(func(q *printer) {
		q.write(open)
		q.list(items, ic)
		q.write(close)
	})
	return p.width()+ansi.StringWidth(inline) > limit
}

func (p *printer) block(n *Node, ic IndentContext) {
	params := n.Child(0)
	if n.Flags.Has(FlagBraces) {
		if inlineBraces(n) {
			body := n.Child(1)
			if params == nil && body == nil {
				p.write("{}")
				return
			}
			p.write("{")
			if params != nil {
				p.write(" ")
				p.blockParameters(params, ic)
			}
			if body != nil {
				p.write(" ")
				p.expr(body, ic)
			}
			p.write(" }")
			return
		}
		p.write("{")
		if params != nil {
			p.write(" ")
			p.blockParameters(params, ic)
		}
		p.body(n, 1, ic)
		p.newline(ic.Depth)
		p.write("}")
		return
	}

	p.write("do")
	if params != nil {
		p.write(" ")
		p.blockParameters(params, ic)
	}
	p.body(n, 1, ic)
	p.end(ic)
}

// inlineBraces reports whether a brace block or lambda fits on one line:
// at most one statement, no comments, nothing that needs its own lines.
func inlineBraces(n *Node) bool {
	if !n.Flags.Has(FlagBraces) || n.Comments != nil {
		return false
	}
	body := n.Child(1)
	if body == nil {
		return true
	}
	if body.Kind != KindStatements {
		return false
	}
	return len(body.Children) <= 1 && !hasComments(body) && !breaksLine(body)
}

func (p *printer) blockParameters(n *Node, ic IndentContext) {
	if n.Flags.Has(FlagParens) {
		p.write("(")
		p.expr(n.Child(0), ic)
		if n.Payload != "" {
			p.write("; " + n.Payload)
		}
		p.write(")")
		return
	}
	p.write("|")
	p.expr(n.Child(0), ic)
	if n.Payload != "" {
		p.write("; " + n.Payload)
	}
	p.write("|")
}

func (p *printer) lambda(n *Node, ic IndentContext) {
	p.write("->")
	if params := n.Child(0); params != nil {
		if !params.Flags.Has(FlagParens) {
			p.write(" ")
			p.expr(params.Child(0), ic)
		} else {
			p.blockParameters(params, ic)
		}
	}

	if n.Flags.Has(FlagBraces) {
		if inlineBraces(n) {
			if body := n.Child(1); body != nil {
				p.write(" { ")
				p.expr(body, ic)
				p.write(" }")
			} else {
				p.write(" {}")
			}
			return
		}
		p.write(" {")
		p.body(n, 1, ic)
		p.newline(ic.Depth)
		p.write("}")
		return
	}

	p.write(" do")
	p.body(n, 1, ic)
	p.end(ic)
}

func (p *printer) parameter(n *Node, ic IndentContext) {
	p.write(n.Op + n.Payload)
	def := n.Child(0)
	switch {
	case n.Flags.Has(FlagKeyword):
		p.write(":")
		if def != nil {
			p.write(" ")
			p.expr(def, ic)
		}
	case def != nil:
		p.write(" = ")
		p.expr(def, ic)
	}
}

func (p *printer) methodDef(n *Node, ic IndentContext) {
	p.write("def ")
	if recv := n.Child(0); recv != nil {
		p.expr(recv, ic)
		p.write(".")
	}
	p.write(n.Payload)

	if params := n.Child(1); params != nil && len(params.Children) > 0 {
		if n.Flags.Has(FlagParens) {
			p.write("(")
			p.expr(params, ic)
			p.write(")")
		} else {
			p.write(" ")
			p.expr(params, ic)
		}
	}

	if n.Flags.Has(FlagEndless) {
		p.write(" = ")
		p.expr(n.Child(2), ic)
		return
	}
	p.body(n, 2, ic)
	p.end(ic)
}
