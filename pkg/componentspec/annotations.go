package componentspec

import (
	"encoding/json"
	"fmt"
)

const (
	// PositionAnnotation holds the editor position of a task, input or output
	// as a JSON object {"x": <number>, "y": <number>}.
	PositionAnnotation = "editor.position"

	// FlexNodesAnnotation holds the free-floating annotation nodes of a graph
	// as a JSON array on the component metadata.
	FlexNodesAnnotation = "editor.flex-nodes"
)

// Position is a point on the editor canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by (dx, dy).
func (p Position) Add(dx, dy float64) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Size is the rendered extent of a node.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FlexNode is a free-floating annotation (sticky note) on the canvas.
type FlexNode struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Position Position `json:"position"`
	Size     Size     `json:"size"`
	Color    string   `json:"color,omitempty"`
}

// ReadPosition decodes the position annotation. It reports false when the
// annotation is missing or malformed.
func ReadPosition(annotations map[string]string) (Position, bool) {
	raw, ok := annotations[PositionAnnotation]
	if !ok || raw == "" {
		return Position{}, false
	}
	var p Position
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Position{}, false
	}
	return p, true
}

// WithPosition returns a copy of annotations with the position set.
func WithPosition(annotations map[string]string, p Position) map[string]string {
	out := cloneStrings(annotations)
	if out == nil {
		out = make(map[string]string, 1)
	}
	data, _ := json.Marshal(p)
	out[PositionAnnotation] = string(data)
	return out
}

// FlexNodes decodes the free-floating annotation nodes of the spec.
func (s *ComponentSpec) FlexNodes() ([]FlexNode, error) {
	raw, ok := s.Annotations()[FlexNodesAnnotation]
	if !ok || raw == "" {
		return nil, nil
	}
	var nodes []FlexNode
	if err := json.Unmarshal([]byte(raw), &nodes); err != nil {
		return nil, fmt.Errorf("invalid %s annotation: %w", FlexNodesAnnotation, err)
	}
	return nodes, nil
}

// SetFlexNodes stores nodes in the spec metadata, replacing any previous list.
// s must be a copy owned by the caller.
func (s *ComponentSpec) SetFlexNodes(nodes []FlexNode) error {
	data, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("failed to encode flex nodes: %w", err)
	}
	if s.Metadata == nil {
		s.Metadata = &Metadata{}
	}
	if s.Metadata.Annotations == nil {
		s.Metadata.Annotations = make(map[string]string, 1)
	}
	s.Metadata.Annotations[FlexNodesAnnotation] = string(data)
	return nil
}
