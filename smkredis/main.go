// Package smkredis provides a Redis-backed implementation of smklog.Cache
package smkredis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/lemmego/smklog"
)

// Options configures the Redis connection
type Options struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Connect creates a client and checks that Redis answers
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, smklog.Error{
			Type:    smklog.ErrorTypeConnection,
			Message: "failed to connect to Redis",
			Cause:   err,
		}
	}
	return client, nil
}

// =====================================
// Cache Implementation
// =====================================

// Cache implements smklog.Cache[V] with JSON-encoded values under a key prefix
type Cache[V any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New creates a cache storing keys as prefix+key. A zero ttl never expires.
func New[V any](client *redis.Client, prefix string, ttl time.Duration) *Cache[V] {
	return &Cache[V]{client: client, prefix: prefix, ttl: ttl}
}

func (c *Cache[V]) key(key string) string {
	return c.prefix + key
}

// Get implements smklog.Cache
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var value V
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return value, false, nil
	}
	if err != nil {
		return value, false, convertRedisError(err)
	}
	if err := json.Unmarshal(data, &value); err != nil {
		// a value we cannot decode is treated as a miss and dropped
		c.client.Del(ctx, c.key(key))
		return value, false, nil
	}
	return value, true, nil
}

// Set implements smklog.Cache
func (c *Cache[V]) Set(ctx context.Context, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return smklog.NewErrorWithCause(smklog.ErrorTypeInvalidInput, "failed to encode cache value", err)
	}
	return convertRedisError(c.client.Set(ctx, c.key(key), data, c.ttl).Err())
}

// Invalidate implements smklog.Cache
func (c *Cache[V]) Invalidate(ctx context.Context, key string) error {
	return convertRedisError(c.client.Del(ctx, c.key(key)).Err())
}

// Clear removes every key under the prefix
func (c *Cache[V]) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", 100).Result()
		if err != nil {
			return convertRedisError(err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return convertRedisError(err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// =====================================
// Error Conversion
// =====================================

// convertRedisError converts Redis errors to smklog errors
func convertRedisError(err error) error {
	if err == nil {
		return nil
	}
	if err == context.DeadlineExceeded {
		return smklog.Error{
			Type:    smklog.ErrorTypeTimeout,
			Message: "operation timeout",
			Cause:   err,
		}
	}
	if err == redis.ErrClosed {
		return smklog.Error{
			Type:    smklog.ErrorTypeConnection,
			Message: "redis client closed",
			Cause:   err,
		}
	}
	return smklog.Error{
		Type:    smklog.ErrorTypeConnection,
		Message: "redis operation failed",
		Cause:   err,
	}
}
