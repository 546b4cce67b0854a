package rfmt

import "fmt"

// Kind is the closed vocabulary of syntax node kinds understood by the
// layout engine.
type Kind int

const (
	KindInvalid Kind = iota

	KindProgram
	KindStatements

	KindClassDef
	KindModuleDef
	KindMethodDef
	KindSingletonClassDef
	KindParameters
	KindParameter

	KindCall
	KindArguments
	KindBlock
	KindBlockParameters
	KindBlockPass
	KindLambda

	KindIf
	KindElse
	KindCaseWhen
	KindWhen
	KindCaseIn
	KindIn
	KindPattern
	KindWhile
	KindFor

	KindBegin
	KindRescue
	KindEnsure
	KindRescueModifier

	KindJump
	KindYield
	KindSuper

	KindAssignment
	KindMultipleAssignment
	KindTargets
	KindSplat

	KindInteger
	KindFloat
	KindString
	KindSymbol
	KindRegex
	KindArray
	KindHash
	KindHashPair
	KindKeywordLiteral

	KindVariable
	KindConstantPath
	KindIndex
	KindBinaryOperator
	KindUnaryOperator
	KindRange

	KindAlias
	KindUndef
	KindDefined
	KindParenthesized

	KindUnsupported

	kindCount
)

var kindNames = [kindCount]string{
	KindInvalid:            "invalid",
	KindProgram:            "program",
	KindStatements:         "statements",
	KindClassDef:           "class-def",
	KindModuleDef:          "module-def",
	KindMethodDef:          "method-def",
	KindSingletonClassDef:  "singleton-class-def",
	KindParameters:         "parameters",
	KindParameter:          "parameter",
	KindCall:               "call",
	KindArguments:          "arguments",
	KindBlock:              "block",
	KindBlockParameters:    "block-parameters",
	KindBlockPass:          "block-pass",
	KindLambda:             "lambda",
	KindIf:                 "if",
	KindElse:               "else",
	KindCaseWhen:           "case-when",
	KindWhen:               "when",
	KindCaseIn:             "case-in",
	KindIn:                 "in",
	KindPattern:            "pattern",
	KindWhile:              "while",
	KindFor:                "for",
	KindBegin:              "begin",
	KindRescue:             "rescue",
	KindEnsure:             "ensure",
	KindRescueModifier:     "rescue-modifier",
	KindJump:               "jump",
	KindYield:              "yield",
	KindSuper:              "super",
	KindAssignment:         "assignment",
	KindMultipleAssignment: "multiple-assignment",
	KindTargets:            "targets",
	KindSplat:              "splat",
	KindInteger:            "integer",
	KindFloat:              "float",
	KindString:             "string",
	KindSymbol:             "symbol",
	KindRegex:              "regex",
	KindArray:              "array",
	KindHash:               "hash",
	KindHashPair:           "hash-pair",
	KindKeywordLiteral:     "keyword-literal",
	KindVariable:           "variable",
	KindConstantPath:       "constant-path",
	KindIndex:              "index",
	KindBinaryOperator:     "binary-operator",
	KindUnaryOperator:      "unary-operator",
	KindRange:              "range",
	KindAlias:              "alias",
	KindUndef:              "undef",
	KindDefined:            "defined",
	KindParenthesized:      "parenthesized",
	KindUnsupported:        "unsupported",
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the recognized kinds.
func (k Kind) Valid() bool {
	return k > KindInvalid && k < kindCount
}

// Flags carry the syntactic variant of a node where the kind alone is not
// enough to reproduce it.
type Flags uint32

const (
	// FlagModifier marks the single-line postfix form (`x if y`, `x while y`).
	FlagModifier Flags = 1 << iota
	// FlagParens marks an argument or parameter list written with parentheses.
	FlagParens
	// FlagTernary marks `a ? b : c`.
	FlagTernary
	// FlagBraces marks `{ ... }` blocks and lambdas, as opposed to do/end.
	FlagBraces
	// FlagHeredoc marks a string whose body follows the current line.
	FlagHeredoc
	// FlagEndless marks `def foo = expr`.
	FlagEndless
	// FlagImplicit marks a begin without the `begin` keyword, i.e. a body with
	// rescue/ensure clauses, or an array/hash without delimiters.
	FlagImplicit
	// FlagKeyword marks keyword parameters (`name:`).
	FlagKeyword
	// FlagUnterminated marks a block construct whose `end` is missing.
	FlagUnterminated
	// FlagBare marks `super` without arguments or parentheses.
	FlagBare
	// FlagPercent marks %w/%i style arrays, whose elements are space-separated.
	FlagPercent
	// FlagDataSection marks a program followed by an __END__ marker.
	FlagDataSection
)

func (f Flags) Has(flag Flags) bool {
	return f&flag != 0
}

// Location is a span in the original source. Lines are 1-based and columns
// are 0-based byte offsets within the line.
type Location struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
	StartOffset int
	EndOffset   int
}

// IsZero reports whether the location is missing.
func (l Location) IsZero() bool {
	return l == Location{}
}

// Comment is a source comment.
type Comment struct {
	Text string
	Line int
	// BlankBefore records a blank line between this comment and whatever
	// precedes it in the same body.
	BlankBefore bool
	// Block marks =begin/=end comments, which must start at column zero.
	Block bool
}

// Comments holds the comments attached to a node.
type Comments struct {
	// Leading comments are placed on their own lines before the node.
	Leading []Comment
	// Header is placed at the end of the first line of a multi-line node.
	Header string
	// Trailing is placed at the end of the node's last line.
	Trailing string
	// Dangling comments are placed at the end of a body, or inside an empty
	// block construct.
	Dangling []Comment
}

// Node is a syntax tree node. The meaning of each Children slot depends on
// Kind; absent optional slots are nil.
type Node struct {
	Kind     Kind
	Children []*Node
	Payload  string
	Op       string
	Flags    Flags
	Loc      Location

	Comments *Comments
	// BlankBefore is set on statements preceded by a blank line in the source.
	BlankBefore bool
	// Body holds the verbatim lines of a heredoc, including its terminator.
	Body string
}

// Child returns the i'th child, or nil when the slot is absent.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// NewNode is a convenience for building trees in code.
func NewNode(kind Kind, payload string, children ...*Node) *Node {
	return &Node{Kind: kind, Payload: payload, Children: children}
}

// leadingComments and friends tolerate nodes without attached comments.
func (n *Node) leadingComments() []Comment {
	if n.Comments == nil {
		return nil
	}
	return n.Comments.Leading
}

func (n *Node) danglingComments() []Comment {
	if n.Comments == nil {
		return nil
	}
	return n.Comments.Dangling
}

func (n *Node) headerComment() string {
	if n.Comments == nil {
		return ""
	}
	return n.Comments.Header
}

func (n *Node) trailingComment() string {
	if n.Comments == nil {
		return ""
	}
	return n.Comments.Trailing
}

func (n *Node) comments() *Comments {
	if n.Comments == nil {
		n.Comments = &Comments{}
	}
	return n.Comments
}
