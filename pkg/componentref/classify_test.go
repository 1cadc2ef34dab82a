package componentref

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rmax-ai/pipeforge/pkg/componentspec"
)

func TestClassify(t *testing.T) {
	spec := &componentspec.ComponentSpec{Name: "x"}
	digest := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

	testCases := []struct {
		name string
		ref  componentspec.ComponentReference
		want Shape
	}{
		{name: "empty", ref: componentspec.ComponentReference{}, want: ShapeInvalid},
		{name: "name only", ref: componentspec.ComponentReference{Name: "n"}, want: ShapeInvalid},
		{name: "hydrated", ref: componentspec.ComponentReference{Digest: digest, Name: "n", Text: "t", Spec: spec}, want: ShapeHydrated},
		{name: "hydrated with url", ref: componentspec.ComponentReference{Digest: digest, Name: "n", Text: "t", Spec: spec, URL: "u"}, want: ShapeHydrated},
		{name: "contentful without name", ref: componentspec.ComponentReference{Digest: digest, Text: "t", Spec: spec}, want: ShapeContentful},
		{name: "contentful", ref: componentspec.ComponentReference{Text: "t", Spec: spec}, want: ShapeContentful},
		{name: "text only", ref: componentspec.ComponentReference{Text: "t"}, want: ShapeTextOnly},
		{name: "text with digest and url", ref: componentspec.ComponentReference{Text: "t", Digest: digest, URL: "u"}, want: ShapeTextOnly},
		{name: "spec only", ref: componentspec.ComponentReference{Spec: spec}, want: ShapeSpecOnly},
		{name: "discoverable", ref: componentspec.ComponentReference{Digest: digest}, want: ShapeDiscoverable},
		{name: "locatable", ref: componentspec.ComponentReference{Digest: digest, URL: "u"}, want: ShapeLocatable},
		{name: "loadable", ref: componentspec.ComponentReference{URL: "u"}, want: ShapeLoadable},
		{name: "loadable with name", ref: componentspec.ComponentReference{URL: "u", Name: "n"}, want: ShapeLoadable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.ref)
			assert.Equal(t, tc.want, got.Shape())
		})
	}
}

func TestClassify_ExactlyOnePredicate(t *testing.T) {
	spec := &componentspec.ComponentSpec{}
	predicates := []func(componentspec.ComponentReference) bool{
		IsInvalid, IsHydrated, IsContentful, IsTextOnly, IsSpecOnly, IsDiscoverable, IsLocatable, IsLoadable,
	}

	// Every combination of the five optional fields.
	for mask := 0; mask < 32; mask++ {
		r := componentspec.ComponentReference{}
		if mask&1 != 0 {
			r.Digest = "d"
		}
		if mask&2 != 0 {
			r.Name = "n"
		}
		if mask&4 != 0 {
			r.URL = "u"
		}
		if mask&8 != 0 {
			r.Text = "t"
		}
		if mask&16 != 0 {
			r.Spec = spec
		}

		// Hydrated and Contentful overlap by construction; precedence picks
		// Hydrated. Everything else must match exactly one predicate.
		matches := 0
		for _, p := range predicates {
			if p(r) {
				matches++
			}
		}
		if IsHydrated(r) {
			matches--
		}
		assert.Equal(t, 1, matches, "mask %05b matched %d predicates", mask, matches)

		classified := Classify(r)
		assert.NotEqual(t, ShapeNotMaterialized, classified.Shape())
	}
}

func TestReference_RoundTrip(t *testing.T) {
	spec := &componentspec.ComponentSpec{Name: "x"}
	refs := []componentspec.ComponentReference{
		{Name: "n"},
		{Digest: "d", Name: "n", Text: "t", Spec: spec, URL: "u"},
		{Text: "t", Spec: spec, URL: "u"},
		{Text: "t", Name: "n"},
		{Spec: spec},
		{Digest: "d"},
		{Digest: "d", URL: "u"},
		{URL: "u", Name: "n"},
	}
	for _, r := range refs {
		assert.Equal(t, r, Classify(r).Reference())
	}
}

func TestShapeString(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range Shapes {
		name := s.String()
		assert.NotEqual(t, "unknown", name)
		assert.False(t, seen[name], "duplicate shape name %s", name)
		seen[name] = true
	}
	assert.Len(t, Shapes, 9)
	assert.Equal(t, "unknown", Shape(99).String())
}
