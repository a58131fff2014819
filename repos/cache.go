package repos

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/lemmego/smklog"
	"github.com/lemmego/smklog/domain"
)

// =====================================
// Lookup Caches
// =====================================

// ModuleCache holds each specialization's modules in declaration order.
// Concurrent misses for the same specialization share one load.
type ModuleCache struct {
	cache smklog.Cache[[]domain.Module]
	group singleflight.Group
}

// NewModuleCache wraps cache; nil uses an in-process cache without expiry.
func NewModuleCache(cache smklog.Cache[[]domain.Module]) *ModuleCache {
	if cache == nil {
		cache = smklog.NewMemoryCache[[]domain.Module](0)
	}
	return &ModuleCache{cache: cache}
}

// Get returns the cached modules of specializationID, calling load on a miss.
// Callers receive their own copy of the slice.
func (c *ModuleCache) Get(ctx context.Context, specializationID int64, load func(ctx context.Context) ([]domain.Module, error)) ([]domain.Module, error) {
	key := strconv.FormatInt(specializationID, 10)
	if modules, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		return clone(modules), nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		modules, err := load(ctx)
		if err != nil {
			return nil, err
		}
		// a cache write failure only costs a reload
		_ = c.cache.Set(ctx, key, modules)
		return modules, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.([]domain.Module)), nil
}

// Invalidate drops the modules of specializationID.
func (c *ModuleCache) Invalidate(ctx context.Context, specializationID int64) error {
	c.group.Forget(strconv.FormatInt(specializationID, 10))
	return c.cache.Invalidate(ctx, strconv.FormatInt(specializationID, 10))
}

// Clear drops every entry.
func (c *ModuleCache) Clear(ctx context.Context) error {
	return c.cache.Clear(ctx)
}

func clone(modules []domain.Module) []domain.Module {
	if modules == nil {
		return nil
	}
	out := make([]domain.Module, len(modules))
	copy(out, modules)
	return out
}

// SpecializationCache holds specializations by id.
type SpecializationCache struct {
	cache smklog.Cache[domain.Specialization]
}

// NewSpecializationCache wraps cache; nil uses an in-process cache without expiry.
func NewSpecializationCache(cache smklog.Cache[domain.Specialization]) *SpecializationCache {
	if cache == nil {
		cache = smklog.NewMemoryCache[domain.Specialization](0)
	}
	return &SpecializationCache{cache: cache}
}

// Get returns the cached specialization, calling load on a miss. A nil
// result from load is not cached.
func (c *SpecializationCache) Get(ctx context.Context, id int64, load func(ctx context.Context) (*domain.Specialization, error)) (*domain.Specialization, error) {
	key := strconv.FormatInt(id, 10)
	if s, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		return &s, nil
	}
	s, err := load(ctx)
	if err != nil || s == nil {
		return s, err
	}
	_ = c.cache.Set(ctx, key, *s)
	copied := *s
	return &copied, nil
}

// Invalidate drops specialization id.
func (c *SpecializationCache) Invalidate(ctx context.Context, id int64) error {
	return c.cache.Invalidate(ctx, strconv.FormatInt(id, 10))
}

// Clear drops every entry.
func (c *SpecializationCache) Clear(ctx context.Context) error {
	return c.cache.Clear(ctx)
}
