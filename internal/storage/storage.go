// Package storage provides durable key-value backends for device-local state.
package storage

import (
	"context"
	"time"
)

// WriteTimeout bounds a write started by WriteContext.
const WriteTimeout = 5 * time.Second

// KV is a namespaced key-value store holding opaque serialized values.
// Implementations scope every key to the namespace they were created with.
type KV interface {
	// Get returns the value stored under key.
	// Returns ErrKeyNotFound if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// WriteContext returns a context for persisting a change that has already been
// applied in memory. It keeps the values of ctx (trace and request ids) but not
// its cancellation, so a caller going away does not drop the write.
func WriteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), WriteTimeout)
}
