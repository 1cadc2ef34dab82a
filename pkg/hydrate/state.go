package hydrate

import (
	"errors"

	"github.com/rmax-ai/pipeforge/pkg/componentref"
	"github.com/rmax-ai/pipeforge/pkg/store"
)

// State is where a reference sits in the resolution chain.
type State int

const (
	// StateUnresolved: the reference still lacks content.
	StateUnresolved State = iota
	// StateEnriched: content is known but the canonical form is not built yet.
	StateEnriched
	// StateHydrated is terminal and successful.
	StateHydrated
	// StateNull is terminal; the reference cannot be resolved in this call.
	StateNull
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateEnriched:
		return "enriched"
	case StateHydrated:
		return "hydrated"
	case StateNull:
		return "null"
	default:
		return "unknown"
	}
}

// Terminal reports whether the chain stops at s.
func (s State) Terminal() bool {
	return s == StateHydrated || s == StateNull
}

var (
	// ErrInvalidReference is the Null reason for a reference with nothing to resolve from.
	ErrInvalidReference = errors.New("reference carries no text, spec, url or digest")
	// ErrNotCached is the Null reason for a digest-only reference missing from the store.
	ErrNotCached = errors.New("digest not found in component store")
	// ErrNoFetcher is the Null reason when a fetch is needed but none is configured.
	ErrNoFetcher = errors.New("no fetcher configured")
	// ErrTransitionBudget is the Null reason when the chain stops making progress.
	ErrTransitionBudget = errors.New("hydration transition budget exhausted")
)

// Step is the outcome of one transition.
type Step struct {
	State State

	// Next is the reference to continue from when State is not terminal.
	Next componentref.Classified

	// Result is set when State is StateHydrated.
	Result *componentref.Hydrated

	// Err explains a StateNull outcome.
	Err error

	// Cache is a best-effort write requested by the transition itself,
	// e.g. raw text that failed to parse.
	Cache *store.Record
}

func next(state State, c componentref.Classified) Step {
	return Step{State: state, Next: c}
}

func null(err error) Step {
	return Step{State: StateNull, Err: err}
}
