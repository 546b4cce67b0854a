package rfmt

func (p *printer) conditional(n *Node, ic IndentContext) {
	pred, then, alt := n.Child(0), n.Child(1), n.Child(2)
	switch {
	case n.Flags.Has(FlagModifier):
		p.expr(then, ic)
		p.write(" " + n.Op + " ")
		p.expr(pred, ic)

	case n.Flags.Has(FlagTernary):
		p.expr(pred, ic)
		p.write(" ? ")
		p.expr(then, ic)
		p.write(" : ")
		p.expr(alt.Child(0), ic)

	default:
		p.write(n.Op + " ")
		p.expr(pred, ic)
		p.body(n, 1, ic)
		if alt != nil {
			p.clause(alt, ic)
		}
		if n.Op != "elsif" {
			p.end(ic)
		}
	}
}

// clause writes a clause of a compound construct on a new line at the
// construct's depth.
func (p *printer) clause(n *Node, ic IndentContext) {
	p.newline(ic.Depth)
	switch n.Kind {
	case KindIf:
		p.conditional(n, ic)

	case KindElse:
		p.write("else")
		p.body(n, 0, ic)

	case KindWhen:
		p.write("when ")
		p.expr(n.Child(0), ic)
		p.body(n, 1, ic)

	case KindIn:
		p.write("in ")
		p.expr(n.Child(0), ic)
		p.body(n, 1, ic)

	case KindRescue:
		p.write("rescue")
		if exceptions := n.Child(0); exceptions != nil {
			p.write(" ")
			p.expr(exceptions, ic)
		}
		if ref := n.Child(1); ref != nil {
			p.write(" => ")
			p.expr(ref, ic)
		}
		p.body(n, 2, ic)
		if next := n.Child(3); next != nil {
			p.clause(next, ic)
		}

	case KindEnsure:
		p.write("ensure")
		p.body(n, 0, ic)
	}
}

// handlers writes the rescue, else and ensure clauses of a begin, at the
// depth of whatever owns them.
func (p *printer) handlers(n *Node, ic IndentContext) {
	for _, c := range n.Children[1:] {
		if c != nil {
			p.clause(c, ic)
		}
	}
}

func (p *printer) caseExpr(n *Node, ic IndentContext) {
	p.write("case")
	if subject := n.Child(0); subject != nil {
		p.write(" ")
		p.expr(subject, ic)
	}
	for _, c := range n.Children[1:] {
		p.clause(c, ic)
	}
	p.comments(n.danglingComments(), ic.Depth)
	p.end(ic)
}

func (p *printer) loop(n *Node, ic IndentContext) {
	if n.Flags.Has(FlagModifier) {
		p.expr(n.Child(1), ic)
		p.write(" " + n.Op + " ")
		p.expr(n.Child(0), ic)
		return
	}
	p.write(n.Op + " ")
	p.expr(n.Child(0), ic)
	p.body(n, 1, ic)
	p.end(ic)
}
