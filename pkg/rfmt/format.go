package rfmt

import "fmt"

// Format runs the whole pipeline on a parser document: tree construction,
// validation, layout and emission. It returns a *StructuralError or a
// *ValidationError for malformed input and never partial output.
func Format(doc *Document, cfg FormatConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("invalid config: %w", err)
	}
	root, err := Build(doc)
	if err != nil {
		return "", err
	}
	if err := Validate(root); err != nil {
		return "", err
	}
	plan := Layout(root, NewIndentContext(cfg))
	return Emit(plan, cfg), nil
}

// FormatJSON formats the JSON document produced by the parser bridge.
func FormatJSON(data []byte, cfg FormatConfig) (string, error) {
	doc, err := DecodeDocument(data)
	if err != nil {
		return "", err
	}
	return Format(doc, cfg)
}
