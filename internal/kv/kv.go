// Package kv provides the expiring key-value store shared by the rate
// limiter and the LLM response cache.
package kv

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store is a key-value store whose entries expire after a TTL.
type Store interface {
	Get(ctx context.Context, key string) (any, bool)
	Set(ctx context.Context, key string, value any, ttl time.Duration)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates an in-process store that sweeps expired entries
// every cleanupInterval.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Get returns the value stored under key if it has not expired.
func (s *MemoryStore) Get(_ context.Context, key string) (any, bool) {
	return s.cache.Get(key)
}

// Set stores value under key for ttl. A non-positive ttl never expires.
func (s *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.cache.Set(key, value, ttl)
}

// Len reports the number of stored items, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}
