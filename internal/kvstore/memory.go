package kvstore

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// MemoryStore is an in-memory Store guarded by a RWMutex. Process-scoped; not shared across replicas.
type MemoryStore[V any] struct {
	mu    sync.RWMutex
	m     map[string]entry[V]
	grace time.Duration
}

// NewMemoryStore returns an empty in-memory store. grace is how long expired records survive Sweep.
func NewMemoryStore[V any](grace time.Duration) *MemoryStore[V] {
	if grace < 0 {
		grace = 0
	}
	return &MemoryStore[V]{
		m:     make(map[string]entry[V]),
		grace: grace,
	}
}

// Get returns the value for key, including records past their expiry that have not been swept yet.
func (s *MemoryStore[V]) Get(ctx context.Context, key string) (V, bool, error) {
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false, nil
	}
	return e.value, true, nil
}

// Set stores v under key until expiresAt.
func (s *MemoryStore[V]) Set(ctx context.Context, key string, v V, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = entry[V]{value: v, expiresAt: expiresAt}
	return nil
}

// SetIfAbsent stores v only when key is missing. The check and write happen under one lock.
func (s *MemoryStore[V]) SetIfAbsent(ctx context.Context, key string, v V, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[key]; ok {
		return false, nil
	}
	s.m[key] = entry[V]{value: v, expiresAt: expiresAt}
	return true, nil
}

// Delete removes key.
func (s *MemoryStore[V]) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// DeleteIf removes key when match accepts the stored value. Runs under the write lock.
func (s *MemoryStore[V]) DeleteIf(ctx context.Context, key string, match func(V) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok || !match(e.value) {
		return false, nil
	}
	delete(s.m, key)
	return true, nil
}

// Sweep evicts records whose expiresAt+grace is not after now. Records with zero expiry are kept.
func (s *MemoryStore[V]) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, e := range s.m {
		if e.expiresAt.IsZero() {
			continue
		}
		if !e.expiresAt.Add(s.grace).After(now) {
			delete(s.m, k)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of records currently held, expired or not.
func (s *MemoryStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
