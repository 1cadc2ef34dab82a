package componentspec

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Argument is the value bound to a task input or a graph output.
// The concrete types are ConstantArgument, TaskOutputArgument,
// GraphInputArgument and SecretArgument.
type Argument interface {
	isArgument()
}

// ConstantArgument is a literal value.
type ConstantArgument string

// TaskOutputArgument connects to an output of another task.
type TaskOutputArgument struct {
	TaskID     string
	OutputName string
	// Extra holds other keys of the taskOutput mapping, such as type.
	Extra map[string]any
}

// GraphInputArgument connects to an input of the enclosing graph.
type GraphInputArgument struct {
	InputName string
	// Extra holds other keys of the graphInput mapping, such as type.
	Extra map[string]any
}

// SecretArgument resolves a named secret at run time.
type SecretArgument struct {
	SecretName string
}

func (ConstantArgument) isArgument()   {}
func (TaskOutputArgument) isArgument() {}
func (GraphInputArgument) isArgument() {}
func (SecretArgument) isArgument()     {}

// Arguments maps argument (or graph output) names to their values.
type Arguments map[string]Argument

// Clone returns a shallow copy; argument values are immutable.
func (a Arguments) Clone() Arguments {
	if a == nil {
		return nil
	}
	out := make(Arguments, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// MarshalYAML implements yaml.Marshaler.
func (a Arguments) MarshalYAML() (any, error) {
	return a.encode()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Arguments) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return a.decode(raw)
}

// MarshalJSON implements json.Marshaler.
func (a Arguments) MarshalJSON() ([]byte, error) {
	raw, err := a.encode()
	if err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Arguments) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return a.decode(raw)
}

func (a Arguments) encode() (map[string]any, error) {
	raw := make(map[string]any, len(a))
	for name, arg := range a {
		v, err := EncodeArgument(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		raw[name] = v
	}
	return raw, nil
}

func (a *Arguments) decode(raw map[string]any) error {
	if raw == nil {
		*a = nil
		return nil
	}
	out := make(Arguments, len(raw))
	for name, v := range raw {
		// A null value binds nothing.
		if v == nil {
			continue
		}
		arg, err := DecodeArgument(v)
		if err != nil {
			return fmt.Errorf("argument %q: %w", name, err)
		}
		out[name] = arg
	}
	*a = out
	return nil
}

// EncodeArgument converts an argument to its document form: a plain string,
// {taskOutput: {taskId, outputName}}, {graphInput: {inputName}} or
// {dynamicData: {secret: {name}}}.
func EncodeArgument(arg Argument) (any, error) {
	switch v := arg.(type) {
	case ConstantArgument:
		return string(v), nil
	case TaskOutputArgument:
		ref := withExtra(v.Extra, len(v.Extra)+2)
		ref["taskId"] = v.TaskID
		ref["outputName"] = v.OutputName
		return map[string]any{"taskOutput": ref}, nil
	case GraphInputArgument:
		ref := withExtra(v.Extra, len(v.Extra)+1)
		ref["inputName"] = v.InputName
		return map[string]any{"graphInput": ref}, nil
	case SecretArgument:
		return map[string]any{
			"dynamicData": map[string]any{"secret": map[string]any{"name": v.SecretName}},
		}, nil
	case nil:
		return nil, fmt.Errorf("nil argument")
	default:
		return nil, fmt.Errorf("unsupported argument type %T", arg)
	}
}

// DecodeArgument is the inverse of EncodeArgument. Scalar values that are not
// strings (numbers, booleans) become constants in their textual form.
func DecodeArgument(v any) (Argument, error) {
	switch val := v.(type) {
	case string:
		return ConstantArgument(val), nil
	case int, int64, uint64, float64, bool:
		return ConstantArgument(fmt.Sprint(val)), nil
	case time.Time:
		return ConstantArgument(val.Format(time.RFC3339Nano)), nil
	case map[string]any:
		if ref, ok := val["taskOutput"].(map[string]any); ok {
			taskID, _ := ref["taskId"].(string)
			outputName, _ := ref["outputName"].(string)
			if taskID == "" || outputName == "" {
				return nil, fmt.Errorf("taskOutput requires taskId and outputName")
			}
			return TaskOutputArgument{TaskID: taskID, OutputName: outputName, Extra: extraKeys(ref, "taskId", "outputName")}, nil
		}
		if ref, ok := val["graphInput"].(map[string]any); ok {
			inputName, _ := ref["inputName"].(string)
			if inputName == "" {
				return nil, fmt.Errorf("graphInput requires inputName")
			}
			return GraphInputArgument{InputName: inputName, Extra: extraKeys(ref, "inputName")}, nil
		}
		if dyn, ok := val["dynamicData"].(map[string]any); ok {
			if secret, ok := dyn["secret"].(map[string]any); ok {
				name, _ := secret["name"].(string)
				if name == "" {
					return nil, fmt.Errorf("secret requires name")
				}
				return SecretArgument{SecretName: name}, nil
			}
		}
		return nil, fmt.Errorf("unrecognized argument mapping")
	default:
		return nil, fmt.Errorf("unsupported argument value %T", v)
	}
}

func withExtra(extra map[string]any, size int) map[string]any {
	out := make(map[string]any, size)
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// extraKeys returns the entries of m other than known, or nil if there are none.
func extraKeys(m map[string]any, known ...string) map[string]any {
	var out map[string]any
	for k, v := range m {
		if slices.Contains(known, k) {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[k] = v
	}
	return out
}
