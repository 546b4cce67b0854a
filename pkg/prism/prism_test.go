package prism_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/stretchr/testify/require"

	"github.com/vito/rfmt/pkg/prism"
	"github.com/vito/rfmt/pkg/rfmt"
)

func TestMain(m *testing.M) {
	os.Exit(oteltest.Main(m))
}

type PrismSuite struct{}

func TestPrism(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(PrismSuite{})
}

// requireRuby skips the test unless a ruby with the prism gem is installed.
func requireRuby(ctx context.Context, t *testctx.T) *prism.Parser {
	parser := &prism.Parser{Ruby: os.Getenv("RFMT_TEST_RUBY")}
	if !parser.Available() {
		t.Skip("ruby not found")
	}
	if _, err := parser.Version(ctx); err != nil {
		t.Skipf("prism not available: %v", err)
	}
	return parser
}

func (PrismSuite) TestSourceTooLarge(ctx context.Context, t *testctx.T) {
	parser := &prism.Parser{Ruby: "ruby-that-is-never-run"}
	source := strings.Repeat("#", prism.MaxSourceSize+1)

	_, err := parser.Parse(ctx, source)
	require.Error(t, err)
	require.True(t, errors.Is(err, prism.ErrSourceTooLarge))
	require.EqualError(t, err, "Source code is too large (10485761 bytes, max 10485760 bytes)")
}

func (PrismSuite) TestInvalidEncoding(ctx context.Context, t *testctx.T) {
	parser := &prism.Parser{Ruby: "ruby-that-is-never-run"}

	_, err := parser.Parse(ctx, "x = 1\ny = \"\xff\"\n")
	require.Error(t, err)
	require.True(t, errors.Is(err, prism.ErrInvalidEncoding))
	require.EqualError(t, err, "line 2, byte 11: source is not valid UTF-8")

	_, err = parser.ParseJSON(ctx, "\xc3")
	require.True(t, errors.Is(err, prism.ErrInvalidEncoding))
}

func (PrismSuite) TestMissingInterpreter(ctx context.Context, t *testctx.T) {
	parser := &prism.Parser{Ruby: "/nonexistent/ruby"}
	require.False(t, parser.Available())

	_, err := parser.Parse(ctx, "foo")
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse")
}

func (PrismSuite) TestVersion(ctx context.Context, t *testctx.T) {
	parser := requireRuby(ctx, t)
	v, err := parser.Version(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, v.Ruby)
	require.NotEmpty(t, v.Prism)
}

func (PrismSuite) TestRoundTrip(ctx context.Context, t *testctx.T) {
	parser := requireRuby(ctx, t)

	tests := []struct {
		name     string
		source   string
		expected string
	}{
		{
			name:     "class with method",
			source:   "class Foo\ndef bar\n1\nend\nend\n",
			expected: "class Foo\n  def bar\n    1\n  end\nend",
		},
		{
			name:     "comments",
			source:   "# lead\nfoo # trail\n\n\nbar\n",
			expected: "# lead\nfoo # trail\n\nbar",
		},
		{
			name:     "modifier",
			source:   "return   if done\n",
			expected: "return if done",
		},
		{
			name:     "heredoc",
			source:   "x = <<~EOS\n  hi\nEOS\ny\n",
			expected: "x = <<~EOS\n  hi\nEOS\ny",
		},
		{
			name:     "data section",
			source:   "foo\n__END__\nraw  text\n",
			expected: "foo\n__END__\nraw  text",
		},
		{
			name:     "bare data marker",
			source:   "foo\n__END__\n",
			expected: "foo\n__END__",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(ctx context.Context, t *testctx.T) {
			doc, err := parser.Parse(ctx, tt.source)
			require.NoError(t, err)

			out, err := rfmt.Format(doc, rfmt.DefaultConfig())
			require.NoError(t, err)
			require.Equal(t, tt.expected, out)
		})
	}
}

func (PrismSuite) TestIdempotence(ctx context.Context, t *testctx.T) {
	parser := requireRuby(ctx, t)

	source := `module Shop
class Cart<Base
  # Adds an item
def add(item,qty=1)
items<<item unless item.nil?
total+=qty*item.price
rescue ArgumentError=>e
log(e)
end

def each(&block) = items.each(&block)
end
end
`
	format := func(src string) string {
		doc, err := parser.Parse(ctx, src)
		require.NoError(t, err)
		out, err := rfmt.Format(doc, rfmt.DefaultConfig())
		require.NoError(t, err)
		return out
	}

	once := format(source)
	twice := format(once + "\n")
	require.Equal(t, once, twice)
}

func (PrismSuite) TestSyntaxError(ctx context.Context, t *testctx.T) {
	parser := requireRuby(ctx, t)

	doc, err := parser.Parse(ctx, "class Foo\n")
	require.NoError(t, err)
	require.NotEmpty(t, doc.Errors)

	_, err = rfmt.Format(doc, rfmt.DefaultConfig())
	var structErr *rfmt.StructuralError
	require.True(t, errors.As(err, &structErr))
}

func (PrismSuite) TestCancel(ctx context.Context, t *testctx.T) {
	parser := requireRuby(ctx, t)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err := parser.Parse(cctx, "foo")
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
}
