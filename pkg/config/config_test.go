package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vito/rfmt/pkg/rfmt"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rfmt.yml")
	writeFile(t, path, `version: "1.0"
formatting:
  line_length: 80
  indent_width: 4
  indent_style: tabs
parser:
  version: latest
  error_tolerance: true
  encoding: UTF-8
`)

	file, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "latest", file.Parser.Version)

	cfg := file.FormatConfig()
	assert.Equal(t, 80, cfg.MaxLineLength)
	assert.Equal(t, 4, cfg.IndentWidth)
	assert.Equal(t, rfmt.IndentTabs, cfg.IndentStyle)
	assert.Equal(t, "1.0", cfg.Version)
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rfmt.toml")
	writeFile(t, path, `[formatting]
line_length = 0
indent_width = 3
`)

	file, err := Load(path)
	require.NoError(t, err)

	cfg := file.FormatConfig()
	assert.Equal(t, 0, cfg.MaxLineLength)
	assert.Equal(t, 3, cfg.IndentWidth)
	assert.Equal(t, rfmt.IndentSpaces, cfg.IndentStyle)
}

func TestLoadDefaults(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rfmt.yml")
		writeFile(t, path, "")

		file, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, rfmt.DefaultConfig(), file.FormatConfig())
	})

	t.Run("partial file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rfmt.yml")
		writeFile(t, path, "formatting:\n  indent_width: 4\n")

		file, err := Load(path)
		require.NoError(t, err)

		cfg := file.FormatConfig()
		assert.Equal(t, 4, cfg.IndentWidth)
		assert.Equal(t, rfmt.DefaultMaxLineLength, cfg.MaxLineLength)
		assert.Equal(t, rfmt.IndentSpaces, cfg.IndentStyle)
	})
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		field   string
		reason  string
	}{
		{
			name:    "negative line length",
			file:    "rfmt.yml",
			content: "formatting:\n  line_length: -1\n",
			field:   "formatting.line_length",
			reason:  "must not be negative, got -1",
		},
		{
			name:    "zero indent width",
			file:    "rfmt.yml",
			content: "formatting:\n  indent_width: 0\n",
			field:   "formatting.indent_width",
			reason:  "must be positive, got 0",
		},
		{
			name:    "unknown indent style",
			file:    "rfmt.toml",
			content: "[formatting]\nindent_style = \"both\"\n",
			field:   "formatting.indent_style",
			reason:  `unknown indent style "both" (expected "spaces" or "tabs")`,
		},
		{
			name:    "unknown toml key",
			file:    "rfmt.toml",
			content: "[formatting]\nwidth = 2\n",
			field:   "formatting.width",
			reason:  "unknown field",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			writeFile(t, path, tt.content)

			_, err := Load(path)
			var cfgErr *Error
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, path, cfgErr.Path)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Equal(t, tt.reason, cfgErr.Reason)
		})
	}

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rfmt.yml")
		writeFile(t, path, "formatting: [unclosed\n")

		_, err := Load(path)
		var cfgErr *Error
		require.ErrorAs(t, err, &cfgErr)
		assert.Empty(t, cfgErr.Field)
	})

	t.Run("unknown yaml key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rfmt.yml")
		writeFile(t, path, "formating:\n  indent_width: 2\n")

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "formating")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "rfmt.yml"))
		var cfgErr *Error
		require.ErrorAs(t, err, &cfgErr)
	})
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0755))
	nested := filepath.Join(root, "app", "models")
	require.NoError(t, os.MkdirAll(nested, 0755))

	t.Run("nothing found", func(t *testing.T) {
		path, err := Find(nested)
		require.NoError(t, err)
		assert.Empty(t, path)
	})

	t.Run("found in ancestor", func(t *testing.T) {
		writeFile(t, filepath.Join(root, "rfmt.toml"), "")

		path, err := Find(nested)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "rfmt.toml"), path)
	})

	t.Run("yml preferred over toml", func(t *testing.T) {
		writeFile(t, filepath.Join(root, ".rfmt.yml"), "")

		path, err := Find(nested)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, ".rfmt.yml"), path)
	})

	t.Run("nearest directory wins", func(t *testing.T) {
		writeFile(t, filepath.Join(root, "app", "rfmt.yaml"), "")

		path, err := Find(nested)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "app", "rfmt.yaml"), path)
	})

	t.Run("stops at repository root", func(t *testing.T) {
		outer := t.TempDir()
		writeFile(t, filepath.Join(outer, "rfmt.yml"), "")
		repo := filepath.Join(outer, "repo")
		require.NoError(t, os.MkdirAll(filepath.Join(repo, ".git"), 0755))

		path, err := Find(repo)
		require.NoError(t, err)
		assert.Empty(t, path)
	})
}

func TestResolve(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0755))

		cfg, path, err := Resolve(dir)
		require.NoError(t, err)
		assert.Empty(t, path)
		assert.Equal(t, rfmt.DefaultConfig(), cfg)
	})

	t.Run("from file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0755))
		writeFile(t, filepath.Join(dir, "rfmt.yml"), "formatting:\n  indent_width: 8\n")

		cfg, path, err := Resolve(dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "rfmt.yml"), path)
		assert.Equal(t, 8, cfg.IndentWidth)
	})

	t.Run("invalid file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0755))
		writeFile(t, filepath.Join(dir, "rfmt.yml"), "formatting:\n  indent_width: -2\n")

		_, path, err := Resolve(dir)
		require.Error(t, err)
		assert.Equal(t, filepath.Join(dir, "rfmt.yml"), path)
	})
}
