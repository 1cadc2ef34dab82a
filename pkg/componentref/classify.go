package componentref

import (
	"github.com/rmax-ai/pipeforge/pkg/componentspec"
)

type ref = componentspec.ComponentReference

func hasText(r ref) bool   { return r.Text != "" }
func hasSpec(r ref) bool   { return r.Spec != nil }
func hasURL(r ref) bool    { return r.URL != "" }
func hasDigest(r ref) bool { return r.Digest != "" }

// IsInvalid reports a reference with none of text, spec, url or digest.
func IsInvalid(r ref) bool {
	return !hasText(r) && !hasSpec(r) && !hasURL(r) && !hasDigest(r)
}

// IsHydrated reports a reference with digest, name, spec and text.
func IsHydrated(r ref) bool {
	return hasDigest(r) && r.Name != "" && hasSpec(r) && hasText(r)
}

// IsContentful reports a reference with both text and spec.
func IsContentful(r ref) bool {
	return hasText(r) && hasSpec(r)
}

// IsTextOnly reports a reference with text but no spec.
func IsTextOnly(r ref) bool {
	return hasText(r) && !hasSpec(r)
}

// IsSpecOnly reports a reference with a spec but no text.
func IsSpecOnly(r ref) bool {
	return hasSpec(r) && !hasText(r)
}

// IsDiscoverable reports a digest-only reference.
func IsDiscoverable(r ref) bool {
	return hasDigest(r) && !hasText(r) && !hasSpec(r) && !hasURL(r)
}

// IsLocatable reports a reference with a digest and a url but no content.
func IsLocatable(r ref) bool {
	return hasDigest(r) && hasURL(r) && !hasText(r) && !hasSpec(r)
}

// IsLoadable reports a url-only reference.
func IsLoadable(r ref) bool {
	return hasURL(r) && !hasDigest(r) && !hasText(r) && !hasSpec(r)
}

// Classify narrows r to its shape. Predicates are checked in precedence order
// so exactly one applies. It only inspects fields already present.
func Classify(r componentspec.ComponentReference) Classified {
	switch {
	case IsInvalid(r):
		return Invalid{Name: r.Name}
	case IsHydrated(r):
		return Hydrated{Digest: r.Digest, Name: r.Name, URL: r.URL, Text: r.Text, Spec: r.Spec}
	case IsContentful(r):
		return Contentful{Name: r.Name, URL: r.URL, Text: r.Text, Spec: r.Spec}
	case IsTextOnly(r):
		return TextOnly{Name: r.Name, URL: r.URL, Text: r.Text}
	case IsSpecOnly(r):
		return SpecOnly{Name: r.Name, URL: r.URL, Spec: r.Spec}
	case IsDiscoverable(r):
		return Discoverable{Name: r.Name, Digest: r.Digest}
	case IsLocatable(r):
		return Locatable{Name: r.Name, Digest: r.Digest, URL: r.URL}
	default:
		return Loadable{Name: r.Name, URL: r.URL}
	}
}
