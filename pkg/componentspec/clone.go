package componentspec

// Clone returns a copy of the spec whose graph, inputs, outputs and
// annotations can be modified without touching s. Container specs, nested
// component specs and Extra maps are shared; they are never modified in place.
func (s *ComponentSpec) Clone() *ComponentSpec {
	if s == nil {
		return nil
	}
	out := *s
	if s.Metadata != nil {
		md := *s.Metadata
		md.Annotations = cloneStrings(s.Metadata.Annotations)
		out.Metadata = &md
	}
	if s.Inputs != nil {
		out.Inputs = make([]InputSpec, len(s.Inputs))
		for i, in := range s.Inputs {
			in.Annotations = cloneStrings(in.Annotations)
			out.Inputs[i] = in
		}
	}
	if s.Outputs != nil {
		out.Outputs = make([]OutputSpec, len(s.Outputs))
		for i, o := range s.Outputs {
			o.Annotations = cloneStrings(o.Annotations)
			out.Outputs[i] = o
		}
	}
	if g := s.Implementation.Graph; g != nil {
		out.Implementation.Graph = g.Clone()
	}
	return &out
}

// Clone returns a copy of the graph with fresh task, argument and annotation maps.
func (g *GraphSpec) Clone() *GraphSpec {
	if g == nil {
		return nil
	}
	out := &GraphSpec{
		Tasks:        make(map[string]TaskSpec, len(g.Tasks)),
		OutputValues: g.OutputValues.Clone(),
	}
	for id, task := range g.Tasks {
		out.Tasks[id] = task.Clone()
	}
	return out
}

// Clone returns a copy of the task with fresh argument and annotation maps.
func (t TaskSpec) Clone() TaskSpec {
	t.Arguments = t.Arguments.Clone()
	t.Annotations = cloneStrings(t.Annotations)
	return t
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
