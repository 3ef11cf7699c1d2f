// Package blobstore persists opaque encrypted records.
//
// Backends store bytes exactly as given and never inspect them. A backend
// that truncates or rewrites a blob will surface as a decryption failure in
// the layer above, not as silently altered data.
package blobstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no blob is stored under an id.
	ErrNotFound = errors.New("blob not found")

	// ErrIDTooLong is returned by backends that cannot store an id of that
	// length.
	ErrIDTooLong = errors.New("blob id too long")
)

// Store is a byte-exact key/value store for encrypted records.
type Store interface {
	// Put stores blob under id, replacing any previous value.
	Put(ctx context.Context, id string, blob []byte) error

	// Get returns the blob stored under id, or ErrNotFound.
	Get(ctx context.Context, id string) ([]byte, error)

	// Delete removes id. Deleting a missing id returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// List returns every stored id in ascending order.
	List(ctx context.Context) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}
