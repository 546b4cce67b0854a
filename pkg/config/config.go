// Package config loads rfmt.yml and rfmt.toml project files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/vito/rfmt/pkg/rfmt"
)

// FileNames are the config files looked for in each directory, in order of
// preference.
var FileNames = []string{
	"rfmt.yml",
	"rfmt.yaml",
	".rfmt.yml",
	".rfmt.yaml",
	"rfmt.toml",
}

// File is the contents of a config file. Absent fields are nil and take
// their defaults.
type File struct {
	Version    string     `yaml:"version" toml:"version"`
	Formatting Formatting `yaml:"formatting" toml:"formatting"`
	Parser     Parser     `yaml:"parser" toml:"parser"`
}

type Formatting struct {
	LineLength  *int    `yaml:"line_length" toml:"line_length"`
	IndentWidth *int    `yaml:"indent_width" toml:"indent_width"`
	IndentStyle *string `yaml:"indent_style" toml:"indent_style"`
}

// Parser settings are accepted for compatibility and otherwise ignored.
type Parser struct {
	Version        string `yaml:"version" toml:"version"`
	ErrorTolerance *bool  `yaml:"error_tolerance" toml:"error_tolerance"`
	Encoding       string `yaml:"encoding" toml:"encoding"`
}

// Error reports an unreadable or invalid config file.
type Error struct {
	Path   string
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Load reads a single config file. The format follows the file extension:
// .toml files are TOML and everything else is YAML.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Reason: err.Error()}
	}

	var file File
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(data), &file)
		if err != nil {
			return nil, &Error{Path: path, Reason: err.Error()}
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, &Error{Path: path, Field: undecoded[0].String(), Reason: "unknown field"}
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return nil, &Error{Path: path, Reason: err.Error()}
		}
	}

	if _, err := file.apply(path, rfmt.DefaultConfig()); err != nil {
		return nil, err
	}
	return &file, nil
}

// FormatConfig overlays the file's settings on the defaults.
func (f *File) FormatConfig() rfmt.FormatConfig {
	// Load has already validated the file.
	cfg, _ := f.apply("", rfmt.DefaultConfig())
	return cfg
}

func (f *File) apply(path string, cfg rfmt.FormatConfig) (rfmt.FormatConfig, error) {
	if f == nil {
		return cfg, nil
	}
	cfg.Version = f.Version
	fm := f.Formatting
	if fm.LineLength != nil {
		if *fm.LineLength < 0 {
			return cfg, &Error{Path: path, Field: "formatting.line_length", Reason: fmt.Sprintf("must not be negative, got %d", *fm.LineLength)}
		}
		cfg.MaxLineLength = *fm.LineLength
	}
	if fm.IndentWidth != nil {
		if *fm.IndentWidth <= 0 {
			return cfg, &Error{Path: path, Field: "formatting.indent_width", Reason: fmt.Sprintf("must be positive, got %d", *fm.IndentWidth)}
		}
		cfg.IndentWidth = *fm.IndentWidth
	}
	if fm.IndentStyle != nil {
		style, err := rfmt.ParseIndentStyle(*fm.IndentStyle)
		if err != nil {
			return cfg, &Error{Path: path, Field: "formatting.indent_style", Reason: err.Error()}
		}
		cfg.IndentStyle = style
	}
	return cfg, nil
}

// Find searches dir and its parents for a config file, stopping at a
// repository root. It returns "" when there is none.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		for _, name := range FileNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		// Stop at .git boundary
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return "", nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Resolve finds and loads the config that applies to files in dir. It
// returns the defaults and an empty path when no config file exists.
func Resolve(dir string) (rfmt.FormatConfig, string, error) {
	path, err := Find(dir)
	if err != nil {
		return rfmt.FormatConfig{}, "", err
	}
	if path == "" {
		return rfmt.DefaultConfig(), "", nil
	}
	file, err := Load(path)
	if err != nil {
		return rfmt.FormatConfig{}, path, err
	}
	return file.FormatConfig(), path, nil
}
