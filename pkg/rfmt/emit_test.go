package rfmt

import (
	"context"
	"testing"

	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/stretchr/testify/require"
)

type EmitSuite struct{}

func TestEmit(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(EmitSuite{})
}

func (EmitSuite) TestIndentStyles(ctx context.Context, t *testctx.T) {
	plan := LayoutPlan{
		{Depth: 0, Text: "a"},
		{Depth: 1, Text: "b"},
		{Depth: 2, Text: "c"},
	}

	spaces := DefaultConfig()
	spaces.IndentWidth = 3
	require.Equal(t, "a\n   b\n      c", Emit(plan, spaces))

	tabs := DefaultConfig()
	tabs.IndentStyle = IndentTabs
	tabs.IndentWidth = 4
	require.Equal(t, "a\n\tb\n\t\tc", Emit(plan, tabs))
}

func (EmitSuite) TestWhitespace(ctx context.Context, t *testctx.T) {
	tests := []struct {
		name     string
		plan     LayoutPlan
		expected string
	}{
		{
			name:     "trailing whitespace is trimmed",
			plan:     LayoutPlan{{Depth: 1, Text: "foo  \t"}},
			expected: "  foo",
		},
		{
			name:     "blank lines carry no indentation",
			plan:     LayoutPlan{{Text: "a"}, {Depth: 3, Text: "   "}, {Text: "b"}},
			expected: "a\n\nb",
		},
		{
			name:     "trailing blank lines are dropped",
			plan:     LayoutPlan{{Text: "a"}, {}, {}},
			expected: "a",
		},
		{
			name:     "verbatim lines are untouched",
			plan:     LayoutPlan{{Depth: 2, Text: "x = <<~EOS"}, {Text: "  body  ", Verbatim: true}, {Text: "EOS", Verbatim: true}},
			expected: "    x = <<~EOS\n  body  \nEOS",
		},
		{
			name:     "raw lines keep trailing spaces",
			plan:     LayoutPlan{{Depth: 1, Text: `s = "a  `, Raw: true}, {Text: `b"`, Verbatim: true}},
			expected: "  s = \"a  \nb\"",
		},
		{
			name:     "empty plan",
			plan:     nil,
			expected: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(ctx context.Context, t *testctx.T) {
			require.Equal(t, tt.expected, Emit(tt.plan, DefaultConfig()))
		})
	}
}

func (EmitSuite) TestLayoutPlan(ctx context.Context, t *testctx.T) {
	root := program(&Node{Kind: KindClassDef, Children: []*Node{
		variable("Foo"),
		nil,
		NewNode(KindStatements, "",
			&Node{Kind: KindMethodDef, Payload: "bar", Children: []*Node{nil, nil, nil}}),
	}})
	require.NoError(t, Validate(root))

	plan := Layout(root, NewIndentContext(DefaultConfig()))
	require.Equal(t, LayoutPlan{
		{Depth: 0, Text: "class Foo"},
		{Depth: 1, Text: "def bar"},
		{Depth: 1, Text: "end"},
		{Depth: 0, Text: "end"},
	}, plan)
}

func (EmitSuite) TestNestedContext(ctx context.Context, t *testctx.T) {
	ic := NewIndentContext(DefaultConfig())
	inner := ic.Nested().Nested()
	require.Equal(t, 0, ic.Depth)
	require.Equal(t, 2, inner.Depth)
	require.Equal(t, "    ", inner.Config.Indent(inner.Depth))
}
