package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vito/rfmt/pkg/rfmt"
)

// fooCall is the parser document for `foo(1)` with irregular spacing.
func fooCall(source string) *rfmt.Document {
	str := func(s string) *string { return &s }
	return &rfmt.Document{
		Source: source,
		AST: &rfmt.ExternalNode{NodeType: "program_node", Children: []*rfmt.ExternalNode{{
			NodeType: "statements_node",
			Field:    "statements",
			Children: []*rfmt.ExternalNode{{
				NodeType: "call_node",
				Field:    "body",
				Metadata: rfmt.Metadata{"name": str("foo"), "opening_loc": str("("), "closing_loc": str(")")},
				Children: []*rfmt.ExternalNode{{
					NodeType: "arguments_node",
					Field:    "arguments",
					Children: []*rfmt.ExternalNode{{
						NodeType: "integer_node",
						Field:    "arguments",
						Metadata: rfmt.Metadata{"slice": str("1")},
					}},
				}},
			}},
		}}},
	}
}

type countingParser struct {
	mu    sync.Mutex
	calls int
}

func (p *countingParser) parse(source string) (*rfmt.Document, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return fooCall(source), nil
}

func TestFormat(t *testing.T) {
	c := New(0)
	parser := &countingParser{}

	out, err := c.Format("foo( 1 )", rfmt.DefaultConfig(), parser.parse)
	require.NoError(t, err)
	assert.Equal(t, "foo(1)", out)
	assert.Equal(t, 1, parser.calls)

	out, err = c.Format("foo( 1 )", rfmt.DefaultConfig(), parser.parse)
	require.NoError(t, err)
	assert.Equal(t, "foo(1)", out)
	assert.Equal(t, 1, parser.calls, "formatted output should be reused")

	tabs := rfmt.DefaultConfig()
	tabs.IndentStyle = rfmt.IndentTabs
	_, err = c.Format("foo( 1 )", tabs, parser.parse)
	require.NoError(t, err)
	assert.Equal(t, 1, parser.calls, "document should be reused across configs")
	assert.Equal(t, 2, c.Len())
}

func TestFormatErrorsNotCached(t *testing.T) {
	c := New(10)
	calls := 0
	failing := func(string) (*rfmt.Document, error) {
		calls++
		return nil, errors.New("ruby not found")
	}

	for i := 0; i < 2; i++ {
		_, err := c.Format("foo", rfmt.DefaultConfig(), failing)
		require.Error(t, err)
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, c.Len())
}

func TestEviction(t *testing.T) {
	c := New(2)
	cfg := rfmt.DefaultConfig()
	c.StoreFormatted("a", cfg, "A")
	c.StoreFormatted("b", cfg, "B")
	c.StoreFormatted("c", cfg, "C")

	_, ok := c.Formatted("a", cfg)
	assert.False(t, ok)
	out, ok := c.Formatted("c", cfg)
	assert.True(t, ok)
	assert.Equal(t, "C", out)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestConcurrentUse(t *testing.T) {
	c := New(DefaultSize)
	parser := &countingParser{}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			source := fmt.Sprintf("foo(  1 ) # %d", i%4)
			out, err := c.Format(source, rfmt.DefaultConfig(), parser.parse)
			assert.NoError(t, err)
			assert.Equal(t, "foo(1)", out)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 4)
}
