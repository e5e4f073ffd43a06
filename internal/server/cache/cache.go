// Package cache is a small read-through cache used by the session layer for
// access cutoffs and principal lookups. Values are stored JSON-encoded so the
// in-process and Redis backends behave the same.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	// Get decodes the value stored under key into dst and reports whether
	// it was present.
	Get(ctx context.Context, key string, dst any) (bool, error)
	// Set stores value under key. A non-positive ttl means no expiry.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// GetOrSet returns the cached value for key or loads, stores and returns it.
// Cache errors are not fatal: the loaded value is returned regardless.
func GetOrSet[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var v T
	if ok, err := c.Get(ctx, key, &v); err == nil && ok {
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return v, nil
}
