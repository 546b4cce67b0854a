package rfmt

import (
	"fmt"
	"strings"
)

// arity describes the fixed child slots of a kind. Kinds with variadic
// children use max < 0.
type arity struct {
	min, max int
	payload  bool
}

var arities = [kindCount]arity{
	KindProgram:            {1, 1, false},
	KindStatements:         {0, -1, false},
	KindClassDef:           {3, 3, false},
	KindModuleDef:          {2, 2, false},
	KindMethodDef:          {3, 3, true},
	KindSingletonClassDef:  {2, 2, false},
	KindParameters:         {0, -1, false},
	KindParameter:          {1, 1, false},
	KindCall:               {3, 3, false},
	KindArguments:          {1, -1, false},
	KindBlock:              {2, 2, false},
	KindBlockParameters:    {1, 1, false},
	KindBlockPass:          {1, 1, false},
	KindLambda:             {2, 2, false},
	KindIf:                 {3, 3, false},
	KindElse:               {1, 1, false},
	KindCaseWhen:           {2, -1, false},
	KindWhen:               {2, 2, false},
	KindCaseIn:             {2, -1, false},
	KindIn:                 {2, 2, false},
	KindPattern:            {0, 0, true},
	KindWhile:              {2, 2, false},
	KindFor:                {3, 3, false},
	KindBegin:              {4, 4, false},
	KindRescue:             {4, 4, false},
	KindEnsure:             {1, 1, false},
	KindRescueModifier:     {2, 2, false},
	KindJump:               {1, 1, true},
	KindYield:              {1, 1, false},
	KindSuper:              {2, 2, false},
	KindAssignment:         {2, 2, false},
	KindMultipleAssignment: {2, 2, false},
	KindTargets:            {1, -1, false},
	KindSplat:              {0, 1, false},
	KindInteger:            {0, 0, true},
	KindFloat:              {0, 0, true},
	KindString:             {0, 0, true},
	KindSymbol:             {0, 0, true},
	KindRegex:              {0, 0, true},
	KindArray:              {0, -1, false},
	KindHash:               {0, -1, false},
	KindHashPair:           {2, 2, false},
	KindKeywordLiteral:     {0, 0, true},
	KindVariable:           {0, 0, true},
	KindConstantPath:       {1, 1, true},
	KindIndex:              {3, 3, false},
	KindBinaryOperator:     {2, 2, false},
	KindUnaryOperator:      {1, 1, false},
	KindRange:              {2, 2, false},
	KindAlias:              {2, 2, false},
	KindUndef:              {1, -1, false},
	KindDefined:            {1, 1, false},
	KindParenthesized:      {1, 1, false},
	KindUnsupported:        {0, 0, true},
}

// required lists the slots that must be present, per kind.
var required = map[Kind][]int{
	KindProgram:            {0},
	KindClassDef:           {0},
	KindModuleDef:          {0},
	KindSingletonClassDef:  {0},
	KindIf:                 {0},
	KindWhen:               {0},
	KindIn:                 {0},
	KindWhile:              {0},
	KindFor:                {0, 1},
	KindRescueModifier:     {0, 1},
	KindAssignment:         {0, 1},
	KindMultipleAssignment: {0, 1},
	KindHashPair:           {0},
	KindIndex:              {0},
	KindBinaryOperator:     {0, 1},
	KindUnaryOperator:      {0},
	KindAlias:              {0, 1},
	KindDefined:            {0},
}

// slotKinds restricts the kinds allowed in particular slots.
var slotKinds = map[Kind]map[int][]Kind{
	KindProgram:            {0: {KindStatements}},
	KindMethodDef:          {1: {KindParameters}},
	KindCall:               {1: {KindArguments}, 2: {KindBlock, KindBlockPass}},
	KindIndex:              {1: {KindArguments}, 2: {KindBlockPass}},
	KindBlock:              {0: {KindBlockParameters}},
	KindLambda:             {0: {KindBlockParameters}},
	KindBlockParameters:    {0: {KindParameters}},
	KindIf:                 {2: {KindElse, KindIf}},
	KindWhen:               {0: {KindArguments}},
	KindIn:                 {0: {KindPattern}},
	KindBegin:              {1: {KindRescue}, 2: {KindElse}, 3: {KindEnsure}},
	KindRescue:             {0: {KindArguments}, 3: {KindRescue}},
	KindJump:               {0: {KindArguments}},
	KindYield:              {0: {KindArguments}},
	KindSuper:              {0: {KindArguments}, 1: {KindBlock, KindBlockPass}},
	KindMultipleAssignment: {0: {KindTargets}},
	KindAssignment:         {0: {KindVariable, KindConstantPath, KindCall, KindIndex}},
}

var jumpKeywords = map[string]bool{
	"break": true, "next": true, "redo": true, "retry": true, "return": true,
}

var splatOps = map[string]bool{"*": true, "**": true, "...": true, ",": true}

var parameterOps = map[string]bool{"": true, "*": true, "**": true, "&": true, "...": true}

// Validate checks that a tree honors the shape contract of every kind in
// it. It does not modify the tree. The walk is iterative so that deeply
// nested input cannot exhaust the stack.
func Validate(root *Node) error {
	if root == nil {
		return &ValidationError{Kind: KindInvalid, Reason: "empty tree"}
	}
	if root.Kind != KindProgram {
		return invalid(root, "root must be a program, got %s", root.Kind)
	}

	type frame struct {
		node   *Node
		parent *Node
		slot   int
	}
	seen := map[*Node]bool{}
	stack := []frame{{node: root, slot: -1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := f.node
		if seen[n] {
			return invalid(n, "node is reachable more than once (shared or cyclic)")
		}
		seen[n] = true

		if err := checkNode(n, f.parent, f.slot); err != nil {
			return err
		}

		for i := len(n.Children) - 1; i >= 0; i-- {
			if c := n.Children[i]; c != nil {
				stack = append(stack, frame{node: c, parent: n, slot: i})
			}
		}
	}
	return nil
}

func invalid(n *Node, format string, args ...any) *ValidationError {
	return &ValidationError{
		Kind:     n.Kind,
		Reason:   fmt.Sprintf(format, args...),
		Location: sourceLocation(n.Loc),
	}
}

func checkNode(n, parent *Node, slot int) error {
	if !n.Kind.Valid() {
		return invalid(n, "unrecognized node kind")
	}
	if n.Flags.Has(FlagUnterminated) {
		return invalid(n, "missing end keyword")
	}

	ar := arities[n.Kind]
	if len(n.Children) < ar.min || (ar.max >= 0 && len(n.Children) > ar.max) {
		if ar.min == ar.max {
			return invalid(n, "expected %d children, got %d", ar.min, len(n.Children))
		}
		return invalid(n, "expected at least %d children, got %d", ar.min, len(n.Children))
	}
	if ar.payload && n.Payload == "" && n.Kind != KindString {
		return invalid(n, "missing text")
	}
	if ar.max < 0 {
		for i, c := range n.Children {
			// a case subject is optional
			if c == nil && (i > 0 || (n.Kind != KindCaseWhen && n.Kind != KindCaseIn)) {
				return invalid(n, "child %d is missing", i)
			}
		}
	}
	for _, i := range required[n.Kind] {
		if n.Child(i) == nil {
			return invalid(n, "missing required child %d", i)
		}
	}
	for i, kinds := range slotKinds[n.Kind] {
		if c := n.Child(i); c != nil && !kindIn(c.Kind, kinds) {
			return invalid(n, "child %d must be %s, got %s", i, kindList(kinds), c.Kind)
		}
	}

	switch n.Kind {
	case KindStatements:
		// Statements only hold expressions; clauses live in their owners.
		for _, c := range n.Children {
			switch c.Kind {
			case KindProgram, KindStatements, KindElse, KindWhen, KindIn, KindRescue, KindEnsure,
				KindParameters, KindParameter, KindArguments, KindBlockParameters, KindTargets, KindPattern:
				return invalid(n, "%s cannot appear as a statement", c.Kind)
			}
		}

	case KindMethodDef:
		if n.Flags.Has(FlagEndless) && n.Child(2) == nil {
			return invalid(n, "endless method without a body")
		}

	case KindParameters:
		for _, c := range n.Children {
			switch c.Kind {
			case KindParameter, KindTargets:
			case KindSplat:
				if c.Op != "," {
					return invalid(n, "unexpected %s splat in parameter list", c.Op)
				}
			default:
				return invalid(n, "unexpected %s in parameter list", c.Kind)
			}
		}

	case KindParameter:
		if !parameterOps[n.Op] {
			return invalid(n, "unknown parameter prefix %q", n.Op)
		}
		if n.Op == "" && n.Payload == "" {
			return invalid(n, "missing parameter name")
		}
		if n.Op != "" && n.Child(0) != nil {
			return invalid(n, "%s parameter cannot have a default", n.Op)
		}

	case KindCall:
		if n.Payload == "" && n.Child(0) == nil {
			return invalid(n, "call without receiver or method name")
		}
		if n.Op != "" && n.Op != "." && n.Op != "&." && n.Op != "::" {
			return invalid(n, "unknown call operator %q", n.Op)
		}
		if (n.Op != "") != (n.Child(0) != nil) {
			return invalid(n, "receiver and call operator must appear together")
		}

	case KindIf:
		switch n.Op {
		case "if", "unless":
		case "elsif":
			if parent == nil || parent.Kind != KindIf || slot != 2 || parent.Flags.Has(FlagTernary) {
				return invalid(n, "elsif outside of an if")
			}
		default:
			return invalid(n, "unknown conditional keyword %q", n.Op)
		}
		if alt := n.Child(2); alt != nil && alt.Kind == KindIf && alt.Op != "elsif" {
			return invalid(n, "else branch must be an else clause or elsif")
		}
		switch {
		case n.Flags.Has(FlagModifier):
			if countStatements(n.Child(1)) != 1 {
				return invalid(n, "modifier form requires exactly one statement")
			}
			if n.Child(2) != nil {
				return invalid(n, "modifier form cannot have an else branch")
			}
		case n.Flags.Has(FlagTernary):
			if n.Child(1) == nil || n.Child(2) == nil || n.Child(2).Kind != KindElse {
				return invalid(n, "ternary requires both branches")
			}
		}

	case KindCaseWhen, KindCaseIn:
		clause := KindWhen
		if n.Kind == KindCaseIn {
			clause = KindIn
			if n.Child(0) == nil {
				return invalid(n, "pattern match without a subject")
			}
		}
		clauses := n.Children[1:]
		if last := clauses[len(clauses)-1]; last != nil && last.Kind == KindElse {
			clauses = clauses[:len(clauses)-1]
		}
		if len(clauses) == 0 {
			return invalid(n, "no %s clauses", clause)
		}
		for _, c := range clauses {
			if c == nil || c.Kind != clause {
				return invalid(n, "expected %s clause", clause)
			}
		}

	case KindWhile:
		if n.Op != "while" && n.Op != "until" {
			return invalid(n, "unknown loop keyword %q", n.Op)
		}
		if n.Flags.Has(FlagModifier) && countStatements(n.Child(1)) != 1 {
			return invalid(n, "modifier form requires exactly one statement")
		}

	case KindBegin:
		if n.Child(2) != nil && n.Child(1) == nil {
			return invalid(n, "else clause without rescue")
		}

	case KindJump:
		if !jumpKeywords[n.Payload] {
			return invalid(n, "unknown jump keyword %q", n.Payload)
		}
		if (n.Payload == "redo" || n.Payload == "retry") && n.Child(0) != nil {
			return invalid(n, "%s takes no arguments", n.Payload)
		}

	case KindSuper:
		if n.Flags.Has(FlagBare) && n.Child(0) != nil {
			return invalid(n, "bare super with arguments")
		}

	case KindAssignment:
		if !strings.HasSuffix(n.Op, "=") {
			return invalid(n, "unknown assignment operator %q", n.Op)
		}

	case KindSplat:
		if !splatOps[n.Op] {
			return invalid(n, "unknown splat operator %q", n.Op)
		}
		if (n.Op == "..." || n.Op == ",") && n.Child(0) != nil {
			return invalid(n, "%q takes no operand", n.Op)
		}

	case KindString:
		if n.Flags.Has(FlagHeredoc) {
			if !strings.HasPrefix(n.Payload, "<<") {
				return invalid(n, "heredoc without opening")
			}
		} else if n.Payload == "" {
			return invalid(n, "missing text")
		}

	case KindArray:
		if n.Flags.Has(FlagPercent) {
			for _, c := range n.Children {
				if c.Kind != KindString && c.Kind != KindSymbol && c.Kind != KindUnsupported {
					return invalid(n, "unexpected %s in word list", c.Kind)
				}
			}
		}

	case KindHash:
		for _, c := range n.Children {
			if c.Kind != KindHashPair && !(c.Kind == KindSplat && c.Op == "**") && c.Kind != KindUnsupported {
				return invalid(n, "unexpected %s in hash", c.Kind)
			}
		}

	case KindHashPair:
		if n.Op != "" && n.Op != "=>" {
			return invalid(n, "unknown pair operator %q", n.Op)
		}
		if n.Op == "=>" && n.Child(1) == nil {
			return invalid(n, "pair without a value")
		}

	case KindBinaryOperator, KindUnaryOperator:
		if n.Op == "" {
			return invalid(n, "missing operator")
		}
		if (n.Op == "in" || n.Op == "=>") && n.Kind == KindBinaryOperator && n.Child(1).Kind != KindPattern {
			return invalid(n, "pattern match without a pattern")
		}

	case KindRange:
		if n.Op != ".." && n.Op != "..." {
			return invalid(n, "unknown range operator %q", n.Op)
		}
		if n.Child(0) == nil && n.Child(1) == nil {
			return invalid(n, "range without endpoints")
		}
	}
	return nil
}

func countStatements(n *Node) int {
	if n == nil {
		return 0
	}
	if n.Kind != KindStatements {
		return 1
	}
	return len(n.Children)
}

func kindIn(k Kind, kinds []Kind) bool {
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

func kindList(kinds []Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, " or ")
}
