// Package store provides the keyed persistent state abstraction the
// authorization engine reads and writes. Values are JSON-encoded; keys are
// flat strings namespaced by the engine. Implementations must make each
// operation individually atomic, but transaction boundaries across
// operations belong to the caller.
package store

import (
	"context"
	"errors"
)

// ErrClosed is returned when an operation is attempted on a closed store.
var ErrClosed = errors.New("store: closed")

// Store is a keyed JSON document store with get/set/has/delete semantics.
type Store interface {
	// Get unmarshals the value at key into dest and reports whether the key
	// existed. dest is untouched when the key is absent.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set marshals value and stores it at key, replacing any prior value.
	Set(ctx context.Context, key string, value interface{}) error

	// Has reports whether key exists.
	Has(ctx context.Context, key string) (bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
