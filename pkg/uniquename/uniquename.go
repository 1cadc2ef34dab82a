// Package uniquename mints names that do not collide with an existing set.
package uniquename

import (
	"fmt"
	"strings"
)

// Generate returns candidate if no name in scope equals it case-insensitively.
// Otherwise it appends " 2", " 3", ... and returns the first free variant.
// scope is not modified.
func Generate(scope []string, candidate string) string {
	taken := make(map[string]struct{}, len(scope))
	for _, name := range scope {
		taken[fold(name)] = struct{}{}
	}
	return generate(taken, candidate)
}

func generate(taken map[string]struct{}, candidate string) string {
	if _, ok := taken[fold(candidate)]; !ok {
		return candidate
	}
	for i := 2; ; i++ {
		name := fmt.Sprintf("%s %d", candidate, i)
		if _, ok := taken[fold(name)]; !ok {
			return name
		}
	}
}

func fold(s string) string {
	return strings.ToLower(s)
}

// Scope is a growing set of taken names. Each name it mints is added to the
// set, so repeated calls never hand out the same name twice.
type Scope struct {
	taken map[string]struct{}
}

// NewScope starts a scope from the existing names.
func NewScope(existing []string) *Scope {
	s := &Scope{taken: make(map[string]struct{}, len(existing))}
	for _, name := range existing {
		s.taken[fold(name)] = struct{}{}
	}
	return s
}

// Next mints a name for candidate and reserves it.
func (s *Scope) Next(candidate string) string {
	name := generate(s.taken, candidate)
	s.taken[fold(name)] = struct{}{}
	return name
}

// Contains reports whether name is taken, ignoring case.
func (s *Scope) Contains(name string) bool {
	_, ok := s.taken[fold(name)]
	return ok
}
