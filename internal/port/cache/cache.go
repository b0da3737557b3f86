// Package cache defines the port interface for in-process caching of
// rule-evaluation results.
package cache

import (
	"context"
	"time"
)

// Cache is a key-value cache with TTL. Implementations are best-effort: a
// miss after Set (eviction, admission refusal) is always legal.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}
