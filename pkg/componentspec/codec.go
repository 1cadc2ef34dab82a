package componentspec

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrParse indicates malformed or non-component text.
var ErrParse = errors.New("parse error")

// ParseError represents a failure to turn text into a ComponentSpec.
// Wraps ErrParse for errors.Is() compatibility.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	msg := ErrParse.Error()
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ParseError) Unwrap() error { return ErrParse }

// Parse decodes component text. The text must be a YAML (or JSON) mapping
// with an implementation that is either a container or a graph.
func Parse(text string) (*ComponentSpec, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Msg: "empty component text"}
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return nil, &ParseError{Msg: "invalid yaml", Err: err}
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, &ParseError{Msg: "component text is not a mapping"}
	}

	var spec ComponentSpec
	if err := root.Content[0].Decode(&spec); err != nil {
		return nil, &ParseError{Msg: "invalid component spec", Err: err}
	}
	if err := Validate(&spec); err != nil {
		return nil, err
	}
	if g := spec.Implementation.Graph; g != nil && g.Tasks == nil {
		g.Tasks = map[string]TaskSpec{}
	}
	return &spec, nil
}

// Validate checks the rules Parse enforces on decoded text, so a spec built
// in memory can be held to the same standard.
func Validate(spec *ComponentSpec) error {
	if spec == nil {
		return &ParseError{Msg: "nil component spec"}
	}
	if spec.Implementation.Container == nil && spec.Implementation.Graph == nil {
		return &ParseError{Msg: "implementation must be a container or a graph"}
	}
	return nil
}

// Serialize encodes a spec as YAML with two-space indentation.
// Map keys are emitted in sorted order so equal specs serialize identically.
func Serialize(spec *ComponentSpec) (string, error) {
	if spec == nil {
		return "", fmt.Errorf("cannot serialize nil component spec")
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(spec); err != nil {
		return "", fmt.Errorf("failed to serialize component spec: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to flush component spec: %w", err)
	}
	return buf.String(), nil
}
