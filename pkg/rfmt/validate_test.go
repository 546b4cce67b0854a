package rfmt

import (
	"context"
	"errors"
	"testing"

	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/stretchr/testify/require"
)

type ValidateSuite struct{}

func TestValidate(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(ValidateSuite{})
}

func program(stmts ...*Node) *Node {
	return NewNode(KindProgram, "", NewNode(KindStatements, "", stmts...))
}

func variable(name string) *Node {
	return NewNode(KindVariable, name)
}

func (ValidateSuite) TestAccepts(ctx context.Context, t *testctx.T) {
	tests := []struct {
		name string
		root *Node
	}{
		{"empty program", program()},
		{"assignment", program(&Node{Kind: KindAssignment, Op: "+=", Children: []*Node{variable("x"), NewNode(KindInteger, "1")}})},
		{"anonymous splat", program(&Node{Kind: KindMultipleAssignment, Children: []*Node{
			{Kind: KindTargets, Children: []*Node{variable("a"), {Kind: KindSplat, Op: "*", Children: []*Node{nil}}}},
			variable("list"),
		}})},
		{"endless range", program(&Node{Kind: KindRange, Op: "..", Children: []*Node{NewNode(KindInteger, "1"), nil}})},
		{"case without subject", program(&Node{Kind: KindCaseWhen, Children: []*Node{
			nil,
			NewNode(KindWhen, "", NewNode(KindArguments, "", variable("a")), nil),
		}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(ctx context.Context, t *testctx.T) {
			require.NoError(t, Validate(tt.root))
		})
	}
}

func (ValidateSuite) TestRejects(ctx context.Context, t *testctx.T) {
	shared := variable("x")

	tests := []struct {
		name   string
		root   *Node
		kind   Kind
		reason string
	}{
		{
			name:   "unknown kind",
			root:   program(&Node{Kind: Kind(999)}),
			kind:   Kind(999),
			reason: "unrecognized node kind",
		},
		{
			name:   "shared node",
			root:   program(shared, shared),
			kind:   KindVariable,
			reason: "node is reachable more than once (shared or cyclic)",
		},
		{
			name:   "binary operator missing operand",
			root:   program(&Node{Kind: KindBinaryOperator, Op: "+", Children: []*Node{variable("a"), nil}}),
			kind:   KindBinaryOperator,
			reason: "missing required child 1",
		},
		{
			name:   "binary operator arity",
			root:   program(&Node{Kind: KindBinaryOperator, Op: "+", Children: []*Node{variable("a")}}),
			kind:   KindBinaryOperator,
			reason: "expected 2 children, got 1",
		},
		{
			name:   "literal without text",
			root:   program(NewNode(KindInteger, "")),
			kind:   KindInteger,
			reason: "missing text",
		},
		{
			name:   "redo with arguments",
			root:   program(&Node{Kind: KindJump, Payload: "redo", Children: []*Node{NewNode(KindArguments, "", variable("a"))}}),
			kind:   KindJump,
			reason: "redo takes no arguments",
		},
		{
			name:   "unknown jump",
			root:   program(&Node{Kind: KindJump, Payload: "goto", Children: []*Node{nil}}),
			kind:   KindJump,
			reason: `unknown jump keyword "goto"`,
		},
		{
			name: "modifier with else",
			root: program(&Node{Kind: KindIf, Op: "if", Flags: FlagModifier, Children: []*Node{
				variable("a"),
				NewNode(KindStatements, "", variable("b")),
				NewNode(KindElse, "", nil),
			}}),
			kind:   KindIf,
			reason: "modifier form cannot have an else branch",
		},
		{
			name: "ternary without else",
			root: program(&Node{Kind: KindIf, Op: "if", Flags: FlagTernary, Children: []*Node{
				variable("a"),
				NewNode(KindStatements, "", variable("b")),
				nil,
			}}),
			kind:   KindIf,
			reason: "ternary requires both branches",
		},
		{
			name:   "elsif at top level",
			root:   program(&Node{Kind: KindIf, Op: "elsif", Children: []*Node{variable("a"), nil, nil}}),
			kind:   KindIf,
			reason: "elsif outside of an if",
		},
		{
			name: "else without rescue",
			root: program(&Node{Kind: KindBegin, Children: []*Node{
				nil, nil, NewNode(KindElse, "", nil), nil,
			}}),
			kind:   KindBegin,
			reason: "else clause without rescue",
		},
		{
			name: "case with wrong clause",
			root: program(&Node{Kind: KindCaseIn, Children: []*Node{
				variable("x"),
				NewNode(KindWhen, "", NewNode(KindArguments, "", variable("a")), nil),
			}}),
			kind:   KindCaseIn,
			reason: "expected in clause",
		},
		{
			name:   "range without endpoints",
			root:   program(&Node{Kind: KindRange, Op: "..", Children: []*Node{nil, nil}}),
			kind:   KindRange,
			reason: "range without endpoints",
		},
		{
			name:   "unknown splat",
			root:   program(&Node{Kind: KindSplat, Op: "&", Children: []*Node{variable("a")}}),
			kind:   KindSplat,
			reason: `unknown splat operator "&"`,
		},
		{
			name:   "clause as statement",
			root:   program(NewNode(KindEnsure, "", nil)),
			kind:   KindStatements,
			reason: "ensure cannot appear as a statement",
		},
		{
			name: "wrong slot kind",
			root: program(&Node{Kind: KindCall, Payload: "foo", Children: []*Node{
				nil, variable("a"), nil,
			}}),
			kind:   KindCall,
			reason: "child 1 must be arguments, got variable",
		},
		{
			name:   "unterminated",
			root:   program(&Node{Kind: KindModuleDef, Flags: FlagUnterminated, Children: []*Node{variable("M"), nil}}),
			kind:   KindModuleDef,
			reason: "missing end keyword",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(ctx context.Context, t *testctx.T) {
			err := Validate(tt.root)
			var validErr *ValidationError
			require.True(t, errors.As(err, &validErr), "expected a validation error, got %v", err)
			require.Equal(t, tt.kind, validErr.Kind)
			require.Equal(t, tt.reason, validErr.Reason)
		})
	}
}

func (ValidateSuite) TestCycle(ctx context.Context, t *testctx.T) {
	parens := NewNode(KindParenthesized, "", nil)
	stmts := NewNode(KindStatements, "", parens)
	parens.Children[0] = stmts
	root := NewNode(KindProgram, "", stmts)

	err := Validate(root)
	var validErr *ValidationError
	require.True(t, errors.As(err, &validErr))
	require.Equal(t, KindStatements, validErr.Kind)
}

func (ValidateSuite) TestDeepNesting(ctx context.Context, t *testctx.T) {
	var inner *Node = variable("x")
	for i := 0; i < 100000; i++ {
		inner = NewNode(KindParenthesized, "", inner)
	}
	require.NoError(t, Validate(program(inner)))
}

func (ValidateSuite) TestErrorLocation(ctx context.Context, t *testctx.T) {
	n := &Node{Kind: KindRange, Op: "..", Children: []*Node{nil, nil},
		Loc: Location{StartLine: 3, StartColumn: 4, EndLine: 3, EndColumn: 6}}
	err := Validate(program(n))
	require.EqualError(t, err, "invalid range at line 3, column 5: range without endpoints")

	loc := ErrorLocation(err)
	require.NotNil(t, loc)
	require.Equal(t, 3, loc.Line)
	require.Equal(t, 5, loc.Column)
	require.Equal(t, 2, loc.Length)
}
