// Package duplicate copies a selection of graph nodes into the same graph.
//
// Duplicate works on a clone of the given spec and returns the whole new spec;
// the input is never modified. Copies get fresh unique names, and the links
// of copied tasks and outputs are rewritten according to a connection Mode.
package duplicate

import (
	"errors"
	"fmt"
	"math"

	"github.com/rmax-ai/pipeforge/pkg/componentspec"
	"github.com/rmax-ai/pipeforge/pkg/nodeid"
	"github.com/rmax-ai/pipeforge/pkg/uniquename"
)

// Offset is how far a copy is moved from its original on both axes
// when no target position is given.
const Offset = 10.0

// ErrGraphShape means duplication was asked of a component that is not a graph.
var ErrGraphShape = errors.New("component is not implemented by a graph")

// GraphShapeError reports a non-graph component passed to Duplicate.
// Wraps ErrGraphShape for errors.Is() compatibility.
type GraphShapeError struct {
	Component string
}

func (e *GraphShapeError) Error() string {
	if e.Component == "" {
		return ErrGraphShape.Error()
	}
	return fmt.Sprintf("%s: %q", ErrGraphShape.Error(), e.Component)
}

func (e *GraphShapeError) Unwrap() error { return ErrGraphShape }

// Node is the editor's view of a graph entity.
type Node struct {
	ID       string                 `json:"id"`
	Position componentspec.Position `json:"position"`
	Measured *componentspec.Size    `json:"measured,omitempty"`
	Selected bool                   `json:"selected"`
}

// Config tunes a duplication.
type Config struct {
	// Selected makes the copies the active selection and deselects the originals.
	Selected bool `json:"selected"`

	// Position, when set, is where the centre of the copied cluster lands.
	Position *componentspec.Position `json:"position,omitempty"`

	// Connection is the link policy. Empty means ModeAll.
	Connection Mode `json:"connection,omitempty"`
}

// Result is the outcome of one duplication.
type Result struct {
	Spec *componentspec.ComponentSpec `json:"-"`

	// NodeIDMap maps each original node id to the id of its copy.
	NodeIDMap map[string]string `json:"nodeIdMap"`

	NewNodes      []Node `json:"newNodes"`
	OriginalNodes []Node `json:"originalNodes"`
}

// placement is one copied node awaiting its final position.
type placement struct {
	id       string
	position componentspec.Position
	measured *componentspec.Size
	apply    func(componentspec.Position)
}

// Duplicate copies the selected nodes of spec. Ids that do not name a task,
// graph input, graph output or flex node of spec are ignored, as are repeats.
func Duplicate(spec *componentspec.ComponentSpec, selected []Node, cfg Config) (*Result, error) {
	if !spec.IsGraph() {
		name := ""
		if spec != nil {
			name = spec.Name
		}
		return nil, &GraphShapeError{Component: name}
	}
	mode, err := ParseMode(string(cfg.Connection))
	if err != nil {
		return nil, err
	}

	src := spec.Implementation.Graph
	out := spec.Clone()
	graph := out.Implementation.Graph
	if graph.Tasks == nil {
		graph.Tasks = make(map[string]componentspec.TaskSpec)
	}

	// A malformed flex annotation is left untouched and its nodes are not copyable.
	flex, flexErr := spec.FlexNodes()
	if flexErr != nil {
		flex = nil
	}

	sel := partition(spec, flex, selected)

	taskIDs := make([]string, 0, len(src.Tasks))
	for id := range src.Tasks {
		taskIDs = append(taskIDs, id)
	}
	flexIDs := make([]string, 0, len(flex))
	for _, n := range flex {
		flexIDs = append(flexIDs, n.ID)
	}

	remap := Remap{
		Tasks:  mint(uniquename.NewScope(taskIDs), sel.tasks),
		Inputs: mint(uniquename.NewScope(spec.InputNames()), sel.inputs),
	}
	outputMap := mint(uniquename.NewScope(spec.OutputNames()), sel.outputs)
	flexMap := mint(uniquename.NewScope(flexIDs), sel.flex)

	var placed []placement
	origin := func(id string, annotations map[string]string) (componentspec.Position, *componentspec.Size) {
		n := sel.nodes[id]
		p, ok := componentspec.ReadPosition(annotations)
		if !ok {
			p = n.Position
		}
		return p.Add(Offset, Offset), copySize(n.Measured)
	}

	for _, oldID := range sel.tasks {
		newID := remap.Tasks[oldID]
		task := src.Tasks[oldID].Clone()
		task.Arguments = reconfigureAll(task.Arguments, mode, remap)
		graph.Tasks[newID] = task

		pos, size := origin(nodeid.TaskID(oldID), task.Annotations)
		placed = append(placed, placement{
			id:       nodeid.TaskID(newID),
			position: pos,
			measured: size,
			apply: func(p componentspec.Position) {
				t := graph.Tasks[newID]
				t.Annotations = componentspec.WithPosition(t.Annotations, p)
				graph.Tasks[newID] = t
			},
		})
	}

	for _, oldName := range sel.inputs {
		in, _ := spec.FindInput(oldName)
		in.Name = remap.Inputs[oldName]
		idx := len(out.Inputs)
		out.Inputs = append(out.Inputs, in)

		pos, size := origin(nodeid.InputID(oldName), in.Annotations)
		placed = append(placed, placement{
			id:       nodeid.InputID(in.Name),
			position: pos,
			measured: size,
			apply: func(p componentspec.Position) {
				out.Inputs[idx].Annotations = componentspec.WithPosition(out.Inputs[idx].Annotations, p)
			},
		})
	}

	for _, oldName := range sel.outputs {
		o, _ := spec.FindOutput(oldName)
		o.Name = outputMap[oldName]
		idx := len(out.Outputs)
		out.Outputs = append(out.Outputs, o)

		if value, ok := src.OutputValues[oldName]; ok {
			if next, keep := Reconfigure(value, mode, remap); keep {
				if graph.OutputValues == nil {
					graph.OutputValues = make(componentspec.Arguments)
				}
				graph.OutputValues[o.Name] = next
			}
		}

		pos, size := origin(nodeid.OutputID(oldName), o.Annotations)
		placed = append(placed, placement{
			id:       nodeid.OutputID(o.Name),
			position: pos,
			measured: size,
			apply: func(p componentspec.Position) {
				out.Outputs[idx].Annotations = componentspec.WithPosition(out.Outputs[idx].Annotations, p)
			},
		})
	}

	for _, oldID := range sel.flex {
		var n componentspec.FlexNode
		for _, candidate := range flex {
			if candidate.ID == oldID {
				n = candidate
				break
			}
		}
		n.ID = flexMap[oldID]
		idx := len(flex)
		flex = append(flex, n)

		size := copySize(sel.nodes[nodeid.FlexID(oldID)].Measured)
		if size == nil && (n.Size.Width > 0 || n.Size.Height > 0) {
			s := n.Size
			size = &s
		}
		placed = append(placed, placement{
			id:       nodeid.FlexID(n.ID),
			position: n.Position.Add(Offset, Offset),
			measured: size,
			apply: func(p componentspec.Position) {
				flex[idx].Position = p
			},
		})
	}

	if cfg.Position != nil {
		center(placed, *cfg.Position)
	}
	for _, p := range placed {
		p.apply(p.position)
	}
	if len(sel.flex) > 0 {
		if err := out.SetFlexNodes(flex); err != nil {
			return nil, err
		}
	}

	res := &Result{
		Spec:          out,
		NodeIDMap:     make(map[string]string, len(placed)),
		NewNodes:      make([]Node, 0, len(placed)),
		OriginalNodes: make([]Node, 0, len(sel.order)),
	}
	for _, p := range placed {
		res.NewNodes = append(res.NewNodes, Node{
			ID:       p.id,
			Position: p.position,
			Measured: p.measured,
			Selected: cfg.Selected,
		})
	}
	for i, oldID := range sel.order {
		res.NodeIDMap[oldID] = placed[i].id
		n := sel.nodes[oldID]
		if cfg.Selected {
			n.Selected = false
		}
		res.OriginalNodes = append(res.OriginalNodes, n)
	}
	return res, nil
}

// selection is the recognised part of the requested nodes, by scope.
type selection struct {
	tasks, inputs, outputs, flex []string
	// order lists node ids in the order their copies are placed.
	order []string
	nodes map[string]Node
}

func partition(spec *componentspec.ComponentSpec, flex []componentspec.FlexNode, selected []Node) selection {
	sel := selection{nodes: make(map[string]Node, len(selected))}
	flexIDs := make(map[string]struct{}, len(flex))
	for _, n := range flex {
		flexIDs[n.ID] = struct{}{}
	}

	for _, n := range selected {
		if _, seen := sel.nodes[n.ID]; seen {
			continue
		}
		kind, name, err := nodeid.Parse(n.ID)
		if err != nil {
			continue
		}
		switch kind {
		case nodeid.KindTask:
			if _, ok := spec.Implementation.Graph.Tasks[name]; !ok {
				continue
			}
			sel.tasks = append(sel.tasks, name)
		case nodeid.KindInput:
			if _, ok := spec.FindInput(name); !ok {
				continue
			}
			sel.inputs = append(sel.inputs, name)
		case nodeid.KindOutput:
			if _, ok := spec.FindOutput(name); !ok {
				continue
			}
			sel.outputs = append(sel.outputs, name)
		case nodeid.KindFlex:
			if _, ok := flexIDs[name]; !ok {
				continue
			}
			sel.flex = append(sel.flex, name)
		}
		sel.nodes[n.ID] = n
	}

	for _, name := range sel.tasks {
		sel.order = append(sel.order, nodeid.TaskID(name))
	}
	for _, name := range sel.inputs {
		sel.order = append(sel.order, nodeid.InputID(name))
	}
	for _, name := range sel.outputs {
		sel.order = append(sel.order, nodeid.OutputID(name))
	}
	for _, name := range sel.flex {
		sel.order = append(sel.order, nodeid.FlexID(name))
	}
	return sel
}

// mint reserves a fresh name in scope for each of names.
func mint(scope *uniquename.Scope, names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		out[name] = scope.Next(name)
	}
	return out
}

// center translates the placements so their bounding box is centred on target.
// Nodes without a measured size count as points.
func center(placed []placement, target componentspec.Position) {
	if len(placed) == 0 {
		return
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range placed {
		w, h := 0.0, 0.0
		if p.measured != nil {
			w, h = p.measured.Width, p.measured.Height
		}
		minX = math.Min(minX, p.position.X)
		minY = math.Min(minY, p.position.Y)
		maxX = math.Max(maxX, p.position.X+w)
		maxY = math.Max(maxY, p.position.Y+h)
	}
	dx := target.X - (minX+maxX)/2
	dy := target.Y - (minY+maxY)/2
	for i := range placed {
		placed[i].position = placed[i].position.Add(dx, dy)
	}
}

func copySize(s *componentspec.Size) *componentspec.Size {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
