// Package store provides the shared counter store consumed by the
// conversation governor. Counters live outside the process so horizontally
// scaled workers observe consistent counts.
package store

import (
	"context"
	"time"
)

// CounterStore is an external key-value cache with atomic
// increment-with-expire semantics.
type CounterStore interface {
	// IncrWithTTL atomically increments the counter at key and applies the
	// TTL, returning the new count.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get returns the value at key. The second return is false when the key
	// is absent or expired.
	Get(ctx context.Context, key string) (string, bool, error)

	// SetWithTTL stores value at key with the given TTL.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key.
	Delete(ctx context.Context, key string) error
}
