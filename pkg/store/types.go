package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Record id prefixes.
const (
	ComponentPrefix = "component-"
	LibraryPrefix   = "library-"
)

// DefaultListLimit is used when List is called with a non-positive limit.
const DefaultListLimit = 50

// Record is one cached document: component text keyed by digest, or a
// library snapshot keyed by fetch time. Fields the store does not model
// (set by other subsystems) travel in Extra and are preserved across saves.
type Record struct {
	ID        string
	URL       string
	Data      string
	CreatedAt int64 // epoch milliseconds
	UpdatedAt int64 // epoch milliseconds
	Extra     map[string]any
}

// ComponentStore is the persistent key/value cache behind hydration.
type ComponentStore interface {
	// GetByID returns the record with id, or nil if there is none.
	GetByID(ctx context.Context, id string) (*Record, error)

	// GetByURL returns the most recently updated record fetched from url, or nil.
	GetByURL(ctx context.Context, url string) (*Record, error)

	// ExistsByURL reports whether any record was fetched from url.
	ExistsByURL(ctx context.Context, url string) (bool, error)

	// Save upserts rec by id. See Merge for the semantics.
	Save(ctx context.Context, rec Record) error

	// List returns up to limit records, most recently updated first.
	List(ctx context.Context, limit int) ([]Record, error)
}

// ComponentID is the store id of the component with digest d.
func ComponentID(d string) string {
	return ComponentPrefix + d
}

// LibraryID is the store id of a library snapshot taken at t.
func LibraryID(t time.Time) string {
	return fmt.Sprintf("%s%d", LibraryPrefix, t.UnixMilli())
}

// Merge computes the record to write when incoming is saved over existing.
//
// Data and UpdatedAt always come from the write. URL comes from the write
// unless it is empty. CreatedAt and custom fields of the existing record are
// kept; custom fields on the write are layered over them.
func Merge(existing *Record, incoming Record, now time.Time) Record {
	out := incoming
	out.UpdatedAt = now.UnixMilli()
	if existing == nil {
		if out.CreatedAt == 0 {
			out.CreatedAt = out.UpdatedAt
		}
		out.Extra = cloneExtra(incoming.Extra)
		return out
	}

	out.CreatedAt = existing.CreatedAt
	if out.URL == "" {
		out.URL = existing.URL
	}
	merged := cloneExtra(existing.Extra)
	for k, v := range incoming.Extra {
		if merged == nil {
			merged = make(map[string]any, len(incoming.Extra))
		}
		merged[k] = v
	}
	out.Extra = merged
	return out
}

func cloneExtra(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var reservedKeys = map[string]bool{"id": true, "url": true, "data": true, "createdAt": true, "updatedAt": true}

// MarshalJSON flattens Extra into the top-level object:
// {id, url, data, createdAt, updatedAt, ...extra}.
func (r Record) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(r.Extra)+5)
	for k, v := range r.Extra {
		if !reservedKeys[k] {
			obj[k] = v
		}
	}
	obj["id"] = r.ID
	obj["url"] = r.URL
	obj["data"] = r.Data
	obj["createdAt"] = r.CreatedAt
	obj["updatedAt"] = r.UpdatedAt
	return json.Marshal(obj)
}

// UnmarshalJSON collects keys other than the modelled fields into Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	var out Record
	for k, raw := range obj {
		var err error
		switch k {
		case "id":
			err = json.Unmarshal(raw, &out.ID)
		case "url":
			err = json.Unmarshal(raw, &out.URL)
		case "data":
			err = json.Unmarshal(raw, &out.Data)
		case "createdAt":
			err = json.Unmarshal(raw, &out.CreatedAt)
		case "updatedAt":
			err = json.Unmarshal(raw, &out.UpdatedAt)
		default:
			var v any
			err = json.Unmarshal(raw, &v)
			if out.Extra == nil {
				out.Extra = make(map[string]any)
			}
			out.Extra[k] = v
		}
		if err != nil {
			return fmt.Errorf("record field %q: %w", k, err)
		}
	}
	*r = out
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
