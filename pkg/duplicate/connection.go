package duplicate

import (
	"fmt"
	"strings"

	"github.com/rmax-ai/pipeforge/pkg/componentspec"
)

// Mode controls which links of a duplicated node survive.
type Mode string

const (
	// ModeNone drops every link.
	ModeNone Mode = "none"
	// ModeInternal keeps links between duplicated nodes, pointing them at the copies.
	ModeInternal Mode = "internal"
	// ModeExternal keeps links to nodes outside the selection, unchanged.
	ModeExternal Mode = "external"
	// ModeAll keeps both kinds. It is the default.
	ModeAll Mode = "all"
)

// ParseMode reads a mode name. The empty string means ModeAll.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAll, nil
	case ModeNone, ModeInternal, ModeExternal, ModeAll:
		return m, nil
	default:
		return "", fmt.Errorf("unknown connection mode %q (want none, internal, external or all)", s)
	}
}

func (m Mode) keepsInternal() bool { return m == ModeInternal || m == ModeAll }
func (m Mode) keepsExternal() bool { return m == ModeExternal || m == ModeAll }

// Remap holds the renames of one duplication: original task ids and graph
// input names to the names of their copies. A link is internal when its
// endpoint appears here.
type Remap struct {
	Tasks  map[string]string
	Inputs map[string]string
}

// Reconfigure decides the fate of one argument of a duplicated node.
// It returns the argument to bind on the copy and whether to bind it at all.
//
//	mode      internal link     external link
//	none      dropped           dropped
//	internal  remapped          dropped
//	external  dropped           unchanged
//	all       remapped          unchanged
//
// Constants and secrets are not links and are always kept.
func Reconfigure(arg componentspec.Argument, mode Mode, remap Remap) (componentspec.Argument, bool) {
	switch a := arg.(type) {
	case componentspec.TaskOutputArgument:
		newID, internal := remap.Tasks[a.TaskID]
		if internal {
			if !mode.keepsInternal() {
				return nil, false
			}
			a.TaskID = newID
			return a, true
		}
		return a, mode.keepsExternal()
	case componentspec.GraphInputArgument:
		newName, internal := remap.Inputs[a.InputName]
		if internal {
			if !mode.keepsInternal() {
				return nil, false
			}
			a.InputName = newName
			return a, true
		}
		return a, mode.keepsExternal()
	default:
		return arg, true
	}
}

// reconfigureAll applies Reconfigure to every entry of args.
func reconfigureAll(args componentspec.Arguments, mode Mode, remap Remap) componentspec.Arguments {
	if args == nil {
		return nil
	}
	out := make(componentspec.Arguments, len(args))
	for name, arg := range args {
		if next, keep := Reconfigure(arg, mode, remap); keep {
			out[name] = next
		}
	}
	return out
}
