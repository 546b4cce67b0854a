package rfmt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/golden"
)

// TestGolden formats every parser document in testdata and compares the
// result with the matching .golden file. Run with -update to regenerate.
func TestGolden(t *testing.T) {
	fixtures, err := filepath.Glob(filepath.Join("testdata", "*.json"))
	if err != nil {
		t.Fatalf("Failed to find fixtures: %v", err)
	}
	if len(fixtures) == 0 {
		t.Fatal("No fixtures found in testdata")
	}

	for _, fixture := range fixtures {
		name := strings.TrimSuffix(filepath.Base(fixture), ".json")
		t.Run(name, func(t *testing.T) {
			data, err := os.ReadFile(fixture)
			if err != nil {
				t.Fatalf("Failed to read %s: %v", fixture, err)
			}

			out, err := FormatJSON(data, DefaultConfig())
			if err != nil {
				t.Fatalf("Format failed: %v", err)
			}

			golden.Assert(t, out, name+".golden")
		})
	}
}

// TestGoldenIndentWidth reformats a fixture with a wider indent.
func TestGoldenIndentWidth(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "class_with_method.json"))
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.IndentWidth = 4
	out, err := FormatJSON(data, cfg)
	if err != nil {
		t.Fatal(err)
	}

	expected := "class Greeter < Base\n    # Says hello\n    def greet(name)\n        puts \"Hello, #{name}\"\n    end\nend"
	if out != expected {
		t.Errorf("unexpected output:\n%s", out)
	}
}

// TestIdempotent formats every fixture twice. The second pass reads
// testdata/formatted/<name>.json, the parser document of the first pass's
// output; fixtures whose source is already formatted are reused as is.
func TestIdempotent(t *testing.T) {
	fixtures, err := filepath.Glob(filepath.Join("testdata", "*.json"))
	assert.NilError(t, err)

	for _, fixture := range fixtures {
		name := strings.TrimSuffix(filepath.Base(fixture), ".json")
		t.Run(name, func(t *testing.T) {
			data, err := os.ReadFile(fixture)
			assert.NilError(t, err)
			once, err := FormatJSON(data, DefaultConfig())
			assert.NilError(t, err)

			reparsed := filepath.Join("testdata", "formatted", name+".json")
			if _, err := os.Stat(reparsed); err == nil {
				data, err = os.ReadFile(reparsed)
				assert.NilError(t, err)
			}
			doc, err := DecodeDocument(data)
			assert.NilError(t, err)
			assert.Equal(t, doc.Source, once+"\n", "no parser document of the formatted output")

			twice, err := Format(doc, DefaultConfig())
			assert.NilError(t, err)
			assert.Equal(t, twice, once)
		})
	}
}
