package gate

import (
	"context"
	"sync"
	"time"
)

// CachedResolver wraps a Resolver with a per-key TTL cache.
type CachedResolver[K comparable, V any] struct {
	inner Resolver[K, V]
	ttl   time.Duration
	now   func() time.Time

	mu    sync.RWMutex
	cache map[K]cacheEntry[V]
}

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewCachedResolver wraps inner; entries live for ttl.
func NewCachedResolver[K comparable, V any](inner Resolver[K, V], ttl time.Duration) *CachedResolver[K, V] {
	return &CachedResolver[K, V]{
		inner: inner,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[K]cacheEntry[V]),
	}
}

// WithClock replaces the time source. Intended for tests.
func (r *CachedResolver[K, V]) WithClock(now func() time.Time) *CachedResolver[K, V] {
	r.now = now
	return r
}

// Resolve returns the cached value for key or loads it from the inner resolver.
// Errors are not cached.
func (r *CachedResolver[K, V]) Resolve(ctx context.Context, key K) (V, error) {
	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()
	if ok && r.now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	v, err := r.inner.Resolve(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}

	r.mu.Lock()
	r.cache[key] = cacheEntry[V]{value: v, expiresAt: r.now().Add(r.ttl)}
	r.mu.Unlock()
	return v, nil
}

// Invalidate drops one key. Call it when the subject's role or plan changes.
func (r *CachedResolver[K, V]) Invalidate(key K) {
	r.mu.Lock()
	delete(r.cache, key)
	r.mu.Unlock()
}

// InvalidateAll drops every entry, e.g. after a plan's flags are edited.
func (r *CachedResolver[K, V]) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[K]cacheEntry[V])
	r.mu.Unlock()
}

// Len reports the number of cached entries, expired ones included.
func (r *CachedResolver[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
