// Package nodeid encodes graph-visible entities as node ids and back.
//
// An id is a kind prefix, an underscore, and the entity name:
//
//	task_<taskId>    input_<inputName>    output_<outputName>    flex_<flexId>
//
// The mapping is invertible: Parse(Kind.ID(name)) yields (Kind, name).
package nodeid

import (
	"fmt"
	"strings"
)

// Kind is the scope an entity belongs to.
type Kind string

const (
	KindTask   Kind = "task"
	KindInput  Kind = "input"
	KindOutput Kind = "output"
	KindFlex   Kind = "flex"
)

var kinds = []Kind{KindTask, KindInput, KindOutput, KindFlex}

const separator = "_"

// ID builds the node id for name in this scope.
func (k Kind) ID(name string) string {
	return string(k) + separator + name
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range kinds {
		if k == known {
			return true
		}
	}
	return false
}

// TaskID returns the node id of a task.
func TaskID(taskID string) string { return KindTask.ID(taskID) }

// InputID returns the node id of a graph input.
func InputID(name string) string { return KindInput.ID(name) }

// OutputID returns the node id of a graph output.
func OutputID(name string) string { return KindOutput.ID(name) }

// FlexID returns the node id of a free-floating annotation node.
func FlexID(id string) string { return KindFlex.ID(id) }

// Parse splits a node id into its kind and entity name.
// Names may themselves contain underscores; only the first separator counts.
func Parse(id string) (Kind, string, error) {
	prefix, name, ok := strings.Cut(id, separator)
	if !ok {
		return "", "", fmt.Errorf("node id %q has no kind prefix", id)
	}
	kind := Kind(prefix)
	if !kind.Valid() {
		return "", "", fmt.Errorf("node id %q has unknown kind %q", id, prefix)
	}
	if name == "" {
		return "", "", fmt.Errorf("node id %q has an empty name", id)
	}
	return kind, name, nil
}
