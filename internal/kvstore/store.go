// Package kvstore provides the concurrency-safe keyed store behind the OTP, session and user tables.
//
// Records carry an absolute expiry. A store keeps an expired record readable for a
// configurable grace period so callers can tell "expired" apart from "never existed";
// after that the record is evicted (by Sweep for MemoryStore, natively for RedisStore).
// A zero expiry means the record never expires.
package kvstore

import (
	"context"
	"time"
)

// Store is a keyed table of V. Implementations must be safe for concurrent use.
// Get returns ok false when the key is absent; expiry is the caller's concern.
type Store[V any] interface {
	Get(ctx context.Context, key string) (v V, ok bool, err error)
	// Set stores v under key, overwriting any existing value.
	Set(ctx context.Context, key string, v V, expiresAt time.Time) error
	// SetIfAbsent stores v only if key is not present. Returns true if v was stored.
	SetIfAbsent(ctx context.Context, key string, v V, expiresAt time.Time) (bool, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteIf removes key only if its current value satisfies match. The read, the match and
	// the delete are atomic with respect to other writers. Returns true if a record was removed.
	DeleteIf(ctx context.Context, key string, match func(V) bool) (bool, error)
}

// Sweeper is implemented by stores that need an explicit pass to evict expired records.
type Sweeper interface {
	// Sweep removes records whose expiry plus grace is not after now and returns how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Sweep runs s.Sweep when s implements Sweeper; otherwise it is a no-op.
func Sweep(ctx context.Context, s any, now time.Time) (int, error) {
	if sw, ok := s.(Sweeper); ok {
		return sw.Sweep(ctx, now)
	}
	return 0, nil
}
