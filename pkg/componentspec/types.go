// Package componentspec models pipeline components and their graph implementations.
//
// Values of these types are treated as immutable snapshots: operations that
// change a spec (duplication, position updates) work on a Clone and return it.
package componentspec

// ComponentSpec describes a reusable pipeline component.
type ComponentSpec struct {
	Name           string         `yaml:"name,omitempty" json:"name,omitempty"`
	Description    string         `yaml:"description,omitempty" json:"description,omitempty"`
	Metadata       *Metadata      `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Inputs         []InputSpec    `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs        []OutputSpec   `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Implementation Implementation `yaml:"implementation" json:"implementation"`

	// Extra holds keys the schema does not model so they survive a
	// parse/serialize cycle.
	Extra map[string]any `yaml:",inline" json:"-"`
}

// Metadata carries free-form annotations.
type Metadata struct {
	Annotations map[string]string `yaml:"annotations,omitempty" json:"annotations,omitempty"`
	Extra       map[string]any    `yaml:",inline" json:"-"`
}

// InputSpec declares a component (or graph) input.
type InputSpec struct {
	Name        string            `yaml:"name" json:"name"`
	Type        any               `yaml:"type,omitempty" json:"type,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Default     *string           `yaml:"default,omitempty" json:"default,omitempty"`
	Optional    bool              `yaml:"optional,omitempty" json:"optional,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty" json:"annotations,omitempty"`
	Extra       map[string]any    `yaml:",inline" json:"-"`
}

// OutputSpec declares a component (or graph) output.
type OutputSpec struct {
	Name        string            `yaml:"name" json:"name"`
	Type        any               `yaml:"type,omitempty" json:"type,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty" json:"annotations,omitempty"`
	Extra       map[string]any    `yaml:",inline" json:"-"`
}

// Implementation is either a container leaf or a graph of tasks.
type Implementation struct {
	Container *ContainerSpec `yaml:"container,omitempty" json:"container,omitempty"`
	Graph     *GraphSpec     `yaml:"graph,omitempty" json:"graph,omitempty"`
	Extra     map[string]any `yaml:",inline" json:"-"`
}

// ContainerSpec is a leaf implementation run as a container.
// Command and Args elements are strings or placeholder mappings such as
// {inputValue: name}; they are kept as decoded.
type ContainerSpec struct {
	Image   string            `yaml:"image" json:"image"`
	Command []any             `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []any             `yaml:"args,omitempty" json:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Extra   map[string]any    `yaml:",inline" json:"-"`
}

// GraphSpec is a DAG of tasks plus the mapping of graph outputs to task outputs.
type GraphSpec struct {
	Tasks        map[string]TaskSpec `yaml:"tasks" json:"tasks"`
	OutputValues Arguments           `yaml:"outputValues,omitempty" json:"outputValues,omitempty"`
}

// TaskSpec is one node of a graph.
type TaskSpec struct {
	ComponentRef ComponentReference `yaml:"componentRef" json:"componentRef"`
	Arguments    Arguments          `yaml:"arguments,omitempty" json:"arguments,omitempty"`
	Annotations  map[string]string  `yaml:"annotations,omitempty" json:"annotations,omitempty"`
	Extra        map[string]any     `yaml:",inline" json:"-"`
}

// ComponentReference points at a component by any subset of digest, name,
// url, text and parsed spec. An empty string means the field is absent.
// See package componentref for how a reference is classified.
type ComponentReference struct {
	Digest string         `yaml:"digest,omitempty" json:"digest,omitempty"`
	Name   string         `yaml:"name,omitempty" json:"name,omitempty"`
	URL    string         `yaml:"url,omitempty" json:"url,omitempty"`
	Text   string         `yaml:"text,omitempty" json:"text,omitempty"`
	Spec   *ComponentSpec `yaml:"spec,omitempty" json:"spec,omitempty"`
}

// IsGraph reports whether the component is implemented by a graph.
func (s *ComponentSpec) IsGraph() bool {
	return s != nil && s.Implementation.Graph != nil
}

// Annotations returns the metadata annotations, or nil.
func (s *ComponentSpec) Annotations() map[string]string {
	if s == nil || s.Metadata == nil {
		return nil
	}
	return s.Metadata.Annotations
}

// InputNames lists graph input names in declaration order.
func (s *ComponentSpec) InputNames() []string {
	names := make([]string, 0, len(s.Inputs))
	for _, in := range s.Inputs {
		names = append(names, in.Name)
	}
	return names
}

// OutputNames lists graph output names in declaration order.
func (s *ComponentSpec) OutputNames() []string {
	names := make([]string, 0, len(s.Outputs))
	for _, out := range s.Outputs {
		names = append(names, out.Name)
	}
	return names
}

// FindInput returns the input named name.
func (s *ComponentSpec) FindInput(name string) (InputSpec, bool) {
	for _, in := range s.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return InputSpec{}, false
}

// FindOutput returns the output named name.
func (s *ComponentSpec) FindOutput(name string) (OutputSpec, bool) {
	for _, out := range s.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return OutputSpec{}, false
}
