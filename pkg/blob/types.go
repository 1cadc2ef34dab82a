// Package blob stores opaque objects, such as component exports, under
// slash-separated keys.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned for a key with no object.
var ErrNotFound = errors.New("blob not found")

// BlobStore is a minimal object store.
type BlobStore interface {
	// Put writes the content of r under key, replacing any existing object.
	Put(ctx context.Context, key string, r io.Reader) error

	// Get opens the object under key. The caller closes it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the object under key.
	Delete(ctx context.Context, key string) error
}
