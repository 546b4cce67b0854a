package ioctx

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, io.Discard, StdoutFromContext(ctx))
	assert.Equal(t, io.Discard, StderrFromContext(ctx))

	data, err := io.ReadAll(StdinFromContext(ctx))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestStreams(t *testing.T) {
	var stdout, stderr bytes.Buffer
	ctx := context.Background()
	ctx = StdinToContext(ctx, strings.NewReader("puts 1\n"))
	ctx = StdoutToContext(ctx, &stdout)
	ctx = StderrToContext(ctx, &stderr)

	data, err := io.ReadAll(StdinFromContext(ctx))
	require.NoError(t, err)
	assert.Equal(t, "puts 1\n", string(data))

	_, _ = io.WriteString(StdoutFromContext(ctx), "out")
	_, _ = io.WriteString(StderrFromContext(ctx), "err")
	assert.Equal(t, "out", stdout.String())
	assert.Equal(t, "err", stderr.String())
}
