package cache

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is a process-local Cache on top of go-cache.
type Memory struct {
	c *gocache.Cache
}

func NewMemory(defaultTTL, cleanupInterval time.Duration) *Memory {
	return &Memory{c: gocache.New(defaultTTL, cleanupInterval)}
}

func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	raw, ok := m.c.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw.([]byte), dst); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(key, b, ttl)
	return nil
}

func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}
