// Package cache provides the time-bounded stores backing cached dashboard resources.
package cache

import (
	"context"
	"time"
)

// Entry is a cached payload together with the time it was written.
type Entry struct {
	Value    []byte    `json:"value"`
	StoredAt time.Time `json:"storedAt"`
}

// Store is a byte store with per-key TTL. A ttl <= 0 means the entry never expires.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ResourceKey returns the hierarchical key for a resource of a farm,
// e.g. resource:weather:farm-123.
func ResourceKey(resource, farmID string) string {
	return "resource:" + resource + ":" + farmID
}
