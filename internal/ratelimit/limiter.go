// Package ratelimit enforces the per-user chat request budget.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/RomanRochniak/CapstoneGym/internal/kv"
	"github.com/RomanRochniak/CapstoneGym/pkg/metrics"
)

const (
	// DefaultLimit is the number of chat requests allowed per window.
	DefaultLimit = 12
	// DefaultWindow is the counter lifetime, reset on every allowed request.
	DefaultWindow = 60 * time.Second
)

// Limiter counts chat requests per user in a shared store.
//
// The read and the write are separate store calls, so concurrent requests
// from the same user may both pass at the boundary.
type Limiter struct {
	store  kv.Store
	limit  int
	window time.Duration
}

// New creates a limiter allowing limit requests per window.
// Non-positive arguments fall back to the defaults.
func New(store kv.Store, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{store: store, limit: limit, window: window}
}

// Key returns the counter key for a user.
func Key(userID uint) string {
	return "ai:rl:" + strconv.FormatUint(uint64(userID), 10)
}

// Allow reports whether userID may make another request, and records it
// if so. A denied request leaves the counter untouched.
func (l *Limiter) Allow(ctx context.Context, userID uint) bool {
	key := Key(userID)

	current := 0
	if v, ok := l.store.Get(ctx, key); ok {
		if n, ok := v.(int); ok {
			current = n
		}
	}

	if current >= l.limit {
		metrics.RateLimitedTotal.Inc()
		return false
	}

	l.store.Set(ctx, key, current+1, l.window)
	return true
}

// Window returns the counter lifetime.
func (l *Limiter) Window() time.Duration {
	return l.window
}
