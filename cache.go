package smklog

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// =====================================
// Caches
// =====================================

// Cache is a keyed lookup cache with explicit invalidation.
type Cache[V any] interface {
	// Get returns the cached value and whether it was present.
	// Example: modules, ok, err := Get(ctx, "7")
	Get(ctx context.Context, key string) (V, bool, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value V) error

	// Invalidate drops key. Missing keys are ignored.
	Invalidate(ctx context.Context, key string) error

	// Clear drops every key.
	Clear(ctx context.Context) error
}

// MemoryCache is an in-process Cache backed by an expirable LRU. A zero TTL
// never expires and a zero size is unbounded.
type MemoryCache[V any] struct {
	lru *expirable.LRU[string, V]
}

// NewMemoryCache creates an unbounded in-process cache.
func NewMemoryCache[V any](ttl time.Duration) *MemoryCache[V] {
	return NewBoundedMemoryCache[V](0, ttl)
}

// NewBoundedMemoryCache creates a cache holding at most size entries,
// evicting the least recently used one when full.
func NewBoundedMemoryCache[V any](size int, ttl time.Duration) *MemoryCache[V] {
	return &MemoryCache[V]{lru: expirable.NewLRU[string, V](size, nil, ttl)}
}

// Get implements Cache.
func (c *MemoryCache[V]) Get(_ context.Context, key string) (V, bool, error) {
	value, ok := c.lru.Get(key)
	return value, ok, nil
}

// Set implements Cache.
func (c *MemoryCache[V]) Set(_ context.Context, key string, value V) error {
	c.lru.Add(key, value)
	return nil
}

// Invalidate implements Cache.
func (c *MemoryCache[V]) Invalidate(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Clear implements Cache.
func (c *MemoryCache[V]) Clear(_ context.Context) error {
	c.lru.Purge()
	return nil
}

// Len returns the number of stored entries.
func (c *MemoryCache[V]) Len() int {
	return c.lru.Len()
}
