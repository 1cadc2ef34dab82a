// Package hydrate resolves component references into their canonical form.
//
// Resolution is a small state machine over componentref shapes. Each step
// either enriches the reference (store lookup, parse, serialize, fetch) or
// ends the chain as Hydrated or Null. Hydrated results are written back to
// the component store in the background; write failures never change a result.
package hydrate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rmax-ai/pipeforge/pkg/componentref"
	"github.com/rmax-ai/pipeforge/pkg/componentspec"
	"github.com/rmax-ai/pipeforge/pkg/ctxlog"
	"github.com/rmax-ai/pipeforge/pkg/digest"
	"github.com/rmax-ai/pipeforge/pkg/fetch"
	"github.com/rmax-ai/pipeforge/pkg/store"
)

// MaxTransitions bounds the number of steps one Hydrate call may take.
const MaxTransitions = 16

// DefaultWriteTimeout bounds each background cache write.
const DefaultWriteTimeout = 5 * time.Second

// Hydrator resolves references against a component store and the network.
// It is safe for concurrent use.
type Hydrator struct {
	store        store.ComponentStore
	fetcher      fetch.Fetcher
	writeTimeout time.Duration

	writes sync.WaitGroup
}

// Option configures a Hydrator.
type Option func(*Hydrator)

// WithWriteTimeout overrides DefaultWriteTimeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hydrator) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// New creates a Hydrator. A nil fetcher makes every uncached url unresolvable.
func New(s store.ComponentStore, f fetch.Fetcher, opts ...Option) *Hydrator {
	h := &Hydrator{
		store:        s,
		fetcher:      f,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hydrate resolves ref. It returns nil when the reference cannot be resolved;
// the reason is logged, never returned.
func (h *Hydrator) Hydrate(ctx context.Context, ref componentspec.ComponentReference) *componentref.Hydrated {
	logger := ctxlog.FromContext(ctx)
	current := componentref.Classify(ref)

	for i := 0; i < MaxTransitions; i++ {
		shape := current.Shape()
		HydrationTransitionsTotal.WithLabelValues(shape.String()).Inc()

		step := h.Transition(ctx, current)
		if step.Cache != nil {
			h.persist(logger, *step.Cache)
		}

		switch step.State {
		case StateHydrated:
			result := step.Result
			h.persist(logger, store.Record{
				ID:   store.ComponentID(result.Digest),
				URL:  result.URL,
				Data: result.Text,
			})
			HydrationTotal.WithLabelValues("hydrated").Inc()
			logger.Debug("component_hydrated",
				"digest", result.Digest,
				"name", result.Name,
				"steps", i+1,
			)
			return result
		case StateNull:
			HydrationTotal.WithLabelValues("null").Inc()
			logger.Info("component_unresolvable",
				"shape", shape.String(),
				"name", ref.Name,
				"url", ref.URL,
				"error", errString(step.Err),
			)
			return nil
		}
		current = step.Next
	}

	HydrationTotal.WithLabelValues("null").Inc()
	logger.Warn("component_unresolvable",
		"shape", current.Shape().String(),
		"name", ref.Name,
		"error", ErrTransitionBudget.Error(),
	)
	return nil
}

// Transition performs the single step for the shape of c.
func (h *Hydrator) Transition(ctx context.Context, c componentref.Classified) Step {
	switch v := c.(type) {
	case componentref.Invalid:
		return null(ErrInvalidReference)
	case componentref.Hydrated:
		return h.fromHydrated(v)
	case componentref.Contentful:
		return h.fromContentful(v)
	case componentref.TextOnly:
		return h.fromTextOnly(v)
	case componentref.SpecOnly:
		return h.fromSpecOnly(v)
	case componentref.Discoverable:
		return h.fromDiscoverable(ctx, v)
	case componentref.Locatable:
		return h.fromLocatable(ctx, v)
	case componentref.Loadable:
		return h.fromLoadable(ctx, v)
	case componentref.NotMaterialized:
		return h.fromNotMaterialized(ctx, v)
	default:
		return null(fmt.Errorf("unsupported reference shape %T", c))
	}
}

// Flush waits for background cache writes started so far.
func (h *Hydrator) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.writes.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fromHydrated re-derives the digest; a stale one demotes the reference.
func (h *Hydrator) fromHydrated(v componentref.Hydrated) Step {
	d, err := digest.Compute(v.Text)
	if err != nil {
		return null(err)
	}
	if d == v.Digest {
		out := v
		return Step{State: StateHydrated, Result: &out}
	}
	return next(StateEnriched, componentref.Contentful{Name: v.Name, URL: v.URL, Text: v.Text, Spec: v.Spec})
}

func (h *Hydrator) fromContentful(v componentref.Contentful) Step {
	d, err := digest.Compute(v.Text)
	if err != nil {
		return null(err)
	}
	return Step{
		State: StateHydrated,
		Result: &componentref.Hydrated{
			Digest: d,
			Name:   resolveName(v.Name, v.Spec, d),
			URL:    v.URL,
			Text:   v.Text,
			Spec:   v.Spec,
		},
	}
}

func resolveName(explicit string, spec *componentspec.ComponentSpec, d string) string {
	if explicit != "" {
		return explicit
	}
	if spec != nil && spec.Name != "" {
		return spec.Name
	}
	return store.ComponentPrefix + digest.Short(d)
}

// fromTextOnly parses the text. Text that does not parse is still cached by
// digest so it can be inspected later. It is stored without its url so that
// a later lookup by url misses and fetches again.
func (h *Hydrator) fromTextOnly(v componentref.TextOnly) Step {
	spec, err := componentspec.Parse(v.Text)
	if err == nil {
		return next(StateEnriched, componentref.Contentful{Name: v.Name, URL: v.URL, Text: v.Text, Spec: spec})
	}

	step := null(err)
	if d, derr := digest.Compute(v.Text); derr == nil && v.Text != "" {
		step.Cache = &store.Record{ID: store.ComponentID(d), Data: v.Text}
	}
	return step
}

func (h *Hydrator) fromSpecOnly(v componentref.SpecOnly) Step {
	if err := componentspec.Validate(v.Spec); err != nil {
		return null(err)
	}
	text, err := componentspec.Serialize(v.Spec)
	if err != nil {
		return null(err)
	}
	return next(StateEnriched, componentref.Contentful{Name: v.Name, URL: v.URL, Text: text, Spec: v.Spec})
}

func (h *Hydrator) fromDiscoverable(ctx context.Context, v componentref.Discoverable) Step {
	rec := h.lookupDigest(ctx, v.Digest)
	if rec == nil {
		return null(fmt.Errorf("%w: %s", ErrNotCached, v.Digest))
	}
	return next(StateUnresolved, componentref.TextOnly{Name: v.Name, URL: rec.URL, Text: rec.Data})
}

// fromLocatable tries the digest first and falls back to the url.
func (h *Hydrator) fromLocatable(ctx context.Context, v componentref.Locatable) Step {
	rec := h.lookupDigest(ctx, v.Digest)
	if rec == nil {
		return next(StateUnresolved, componentref.Loadable{Name: v.Name, URL: v.URL})
	}
	return next(StateUnresolved, componentref.TextOnly{Name: v.Name, URL: v.URL, Text: rec.Data})
}

func (h *Hydrator) fromLoadable(ctx context.Context, v componentref.Loadable) Step {
	rec, err := h.store.GetByURL(ctx, v.URL)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("component_store_read_failed", "url", v.URL, "error", err.Error())
	}
	if err != nil || rec == nil || rec.Data == "" {
		return next(StateUnresolved, componentref.NotMaterialized{Name: v.Name, URL: v.URL})
	}
	// Cached text that does not parse counts as a miss.
	spec, err := componentspec.Parse(rec.Data)
	if err != nil {
		ctxlog.FromContext(ctx).Info("component_cache_unparsable", "url", v.URL, "id", rec.ID)
		return next(StateUnresolved, componentref.NotMaterialized{Name: v.Name, URL: v.URL})
	}
	return next(StateEnriched, componentref.Contentful{Name: v.Name, URL: v.URL, Text: rec.Data, Spec: spec})
}

func (h *Hydrator) fromNotMaterialized(ctx context.Context, v componentref.NotMaterialized) Step {
	if h.fetcher == nil {
		return null(ErrNoFetcher)
	}

	start := time.Now()
	text, err := h.fetcher.Fetch(ctx, v.URL)
	FetchDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return null(err)
	}
	return next(StateUnresolved, componentref.TextOnly{Name: v.Name, URL: v.URL, Text: text})
}

// lookupDigest treats read errors as misses.
func (h *Hydrator) lookupDigest(ctx context.Context, d string) *store.Record {
	rec, err := h.store.GetByID(ctx, store.ComponentID(d))
	if err != nil {
		ctxlog.FromContext(ctx).Warn("component_store_read_failed", "digest", d, "error", err.Error())
		return nil
	}
	if rec == nil || rec.Data == "" {
		return nil
	}
	return rec
}

// persist writes rec on a detached context. Callers never wait for it.
func (h *Hydrator) persist(logger *slog.Logger, rec store.Record) {
	h.writes.Add(1)
	go func() {
		defer h.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), h.writeTimeout)
		defer cancel()

		if err := h.store.Save(ctx, rec); err != nil {
			StoreWriteFailuresTotal.Inc()
			logger.Warn("component_cache_write_failed", "id", rec.ID, "error", err.Error())
		}
	}()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
