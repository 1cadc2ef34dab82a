// Package componentref classifies component references by which fields they carry.
//
// A reference is exactly one of nine shapes at any time. Each shape is its own
// type implementing the sealed Classified interface, so resolution code
// switches over concrete variants instead of probing optional fields.
package componentref

import (
	"github.com/rmax-ai/pipeforge/pkg/componentspec"
)

// Shape names a reference variant.
type Shape int

const (
	ShapeInvalid Shape = iota
	ShapeHydrated
	ShapeContentful
	ShapeTextOnly
	ShapeSpecOnly
	ShapeDiscoverable
	ShapeLocatable
	ShapeLoadable
	ShapeNotMaterialized
)

// Shapes lists every shape in precedence order.
var Shapes = []Shape{
	ShapeInvalid,
	ShapeHydrated,
	ShapeContentful,
	ShapeTextOnly,
	ShapeSpecOnly,
	ShapeDiscoverable,
	ShapeLocatable,
	ShapeLoadable,
	ShapeNotMaterialized,
}

func (s Shape) String() string {
	switch s {
	case ShapeInvalid:
		return "invalid"
	case ShapeHydrated:
		return "hydrated"
	case ShapeContentful:
		return "contentful"
	case ShapeTextOnly:
		return "text_only"
	case ShapeSpecOnly:
		return "spec_only"
	case ShapeDiscoverable:
		return "discoverable"
	case ShapeLocatable:
		return "locatable"
	case ShapeLoadable:
		return "loadable"
	case ShapeNotMaterialized:
		return "not_materialized"
	default:
		return "unknown"
	}
}

// Classified is a reference narrowed to one shape.
type Classified interface {
	Shape() Shape
	// Reference converts the variant back to its wire form.
	Reference() componentspec.ComponentReference
	sealed()
}

// Invalid carries none of text, spec, url or digest and can never resolve.
type Invalid struct {
	Name string
}

// Hydrated is the canonical, fully populated form.
type Hydrated struct {
	Digest string                       `json:"digest"`
	Name   string                       `json:"name"`
	URL    string                       `json:"url,omitempty"`
	Text   string                       `json:"text"`
	Spec   *componentspec.ComponentSpec `json:"spec"`
}

// Contentful carries both text and spec.
type Contentful struct {
	Name string
	URL  string
	Text string
	Spec *componentspec.ComponentSpec
}

// TextOnly carries serialized text without a parsed spec.
type TextOnly struct {
	Name string
	URL  string
	Text string
}

// SpecOnly carries a parsed spec without its text.
type SpecOnly struct {
	Name string
	URL  string
	Spec *componentspec.ComponentSpec
}

// Discoverable carries only a digest; it resolves only through the store.
type Discoverable struct {
	Name   string
	Digest string
}

// Locatable carries a digest and a url but no content.
type Locatable struct {
	Name   string
	Digest string
	URL    string
}

// Loadable carries a url whose content has not been looked up yet.
type Loadable struct {
	Name string
	URL  string
}

// NotMaterialized is a url that missed the store and needs a network fetch.
// Only resolution produces it; Classify never does.
type NotMaterialized struct {
	Name string
	URL  string
}

func (Invalid) Shape() Shape         { return ShapeInvalid }
func (Hydrated) Shape() Shape        { return ShapeHydrated }
func (Contentful) Shape() Shape      { return ShapeContentful }
func (TextOnly) Shape() Shape        { return ShapeTextOnly }
func (SpecOnly) Shape() Shape        { return ShapeSpecOnly }
func (Discoverable) Shape() Shape    { return ShapeDiscoverable }
func (Locatable) Shape() Shape       { return ShapeLocatable }
func (Loadable) Shape() Shape        { return ShapeLoadable }
func (NotMaterialized) Shape() Shape { return ShapeNotMaterialized }

func (Invalid) sealed()         {}
func (Hydrated) sealed()        {}
func (Contentful) sealed()      {}
func (TextOnly) sealed()        {}
func (SpecOnly) sealed()        {}
func (Discoverable) sealed()    {}
func (Locatable) sealed()       {}
func (Loadable) sealed()        {}
func (NotMaterialized) sealed() {}

func (v Invalid) Reference() componentspec.ComponentReference {
	return componentspec.ComponentReference{Name: v.Name}
}

func (v Hydrated) Reference() componentspec.ComponentReference {
	return componentspec.ComponentReference{Digest: v.Digest, Name: v.Name, URL: v.URL, Text: v.Text, Spec: v.Spec}
}

func (v Contentful) Reference() componentspec.ComponentReference {
	return componentspec.ComponentReference{Name: v.Name, URL: v.URL, Text: v.Text, Spec: v.Spec}
}

func (v TextOnly) Reference() componentspec.ComponentReference {
	return componentspec.ComponentReference{Name: v.Name, URL: v.URL, Text: v.Text}
}

func (v SpecOnly) Reference() componentspec.ComponentReference {
	return componentspec.ComponentReference{Name: v.Name, URL: v.URL, Spec: v.Spec}
}

func (v Discoverable) Reference() componentspec.ComponentReference {
	return componentspec.ComponentReference{Name: v.Name, Digest: v.Digest}
}

func (v Locatable) Reference() componentspec.ComponentReference {
	return componentspec.ComponentReference{Name: v.Name, Digest: v.Digest, URL: v.URL}
}

func (v Loadable) Reference() componentspec.ComponentReference {
	return componentspec.ComponentReference{Name: v.Name, URL: v.URL}
}

func (v NotMaterialized) Reference() componentspec.ComponentReference {
	return componentspec.ComponentReference{Name: v.Name, URL: v.URL}
}
