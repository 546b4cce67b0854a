package rfmt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Document is the structured output of the parser for one source unit.
type Document struct {
	// Source is the original text. It is needed to recover the verbatim
	// text of nodes that carry no slice of their own.
	Source   string            `json:"source"`
	AST      *ExternalNode     `json:"ast"`
	Comments []ExternalComment `json:"comments,omitempty"`
	Errors   []ExternalError   `json:"errors,omitempty"`
	// Data is the text after the __END__ marker. It is nil when there is
	// no marker, and empty when nothing follows it.
	Data *string `json:"data,omitempty"`
}

// ExternalNode is a parser node as it appears on the wire.
type ExternalNode struct {
	NodeType string            `json:"node_type"`
	Field    string            `json:"field,omitempty"`
	Location *ExternalLocation `json:"location,omitempty"`
	Children []*ExternalNode   `json:"children,omitempty"`
	Metadata Metadata          `json:"metadata,omitempty"`
	Flags    []string          `json:"flags,omitempty"`
}

type ExternalLocation struct {
	StartLine   int `json:"start_line"`
	StartColumn int `json:"start_column"`
	EndLine     int `json:"end_line"`
	EndColumn   int `json:"end_column"`
	StartOffset int `json:"start_offset"`
	EndOffset   int `json:"end_offset"`
}

type ExternalComment struct {
	Text     string            `json:"text"`
	Trailing bool              `json:"trailing,omitempty"`
	Type     string            `json:"type,omitempty"`
	Location *ExternalLocation `json:"location,omitempty"`
}

type ExternalError struct {
	Message  string            `json:"message"`
	Location *ExternalLocation `json:"location,omitempty"`
}

// Metadata maps field names to their textual values. A key that is present
// with a nil value corresponds to an absent optional field (e.g. a missing
// `end` keyword), which is different from a key that was never sent.
type Metadata map[string]*string

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Metadata, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		switch {
		case bytes.Equal(v, []byte("null")):
			out[k] = nil
		case len(v) > 0 && v[0] == '"':
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("metadata %q: %w", k, err)
			}
			out[k] = &s
		case bytes.Equal(v, []byte("true")), bytes.Equal(v, []byte("false")):
			s := string(v)
			out[k] = &s
		default:
			var num json.Number
			if err := json.Unmarshal(v, &num); err != nil {
				return fmt.Errorf("metadata %q: expected a scalar: %w", k, err)
			}
			s := num.String()
			out[k] = &s
		}
	}
	*m = out
	return nil
}

// Get returns the value for key and whether it was present and non-null.
func (m Metadata) Get(key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Str returns the value for key, or "" when absent.
func (m Metadata) Str(key string) string {
	v, _ := m.Get(key)
	return v
}

// Missing reports whether key was sent explicitly as null.
func (m Metadata) Missing(key string) bool {
	v, ok := m[key]
	return ok && v == nil
}

// Int parses the value for key as an integer.
func (m Metadata) Int(key string) (int, bool) {
	v, ok := m.Get(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// HasFlag reports whether the node carries the named flag.
func (n *ExternalNode) HasFlag(flag string) bool {
	for _, f := range n.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// DecodeDocument parses the parser's JSON output. It only checks that the
// input is well-formed; shape problems are reported later by Build.
func DecodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding parser output: %w", err)
	}
	return &doc, nil
}
