// Package ratelimit provides token bucket rate limiting built on golang.org/x/time/rate.
//
// The same limiter type serves both directions: the marketplace client waits
// on the global bucket before each outbound call, and the HTTP middleware
// rejects inbound requests per client key.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter holds a global bucket plus one bucket per key
type Limiter struct {
	mu       sync.Mutex
	config   Config
	limiters map[string]*limiterEntry

	globalLimiter *rate.Limiter

	lastCleanup time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewLimiter creates a new rate limiter
func NewLimiter(config Config) (*Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Limiter{
		config:        config,
		limiters:      make(map[string]*limiterEntry),
		globalLimiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.BurstSize),
		lastCleanup:   time.Now(),
	}, nil
}

// Wait blocks until the global bucket has a token or ctx is done
func (rl *Limiter) Wait(ctx context.Context) error {
	if !rl.config.Enabled {
		return nil
	}
	return rl.globalLimiter.Wait(ctx)
}

// AllowKey takes a token from the bucket for key without blocking
func (rl *Limiter) AllowKey(key string) bool {
	if !rl.config.Enabled {
		return true
	}
	return rl.limiterForKey(key).Allow()
}

// limiterForKey gets or creates the bucket for key
func (rl *Limiter) limiterForKey(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastCleanup) > rl.config.CleanupPeriod {
		rl.cleanup(now)
	}

	entry, exists := rl.limiters[key]
	if !exists {
		entry = &limiterEntry{
			limiter:  rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize),
			lastUsed: now,
		}
		rl.limiters[key] = entry

		if len(rl.limiters) > rl.config.MaxKeys {
			rl.cleanup(now)
		}
	}
	entry.lastUsed = now

	return entry.limiter
}

// cleanup removes buckets that haven't been used recently
func (rl *Limiter) cleanup(now time.Time) {
	cutoff := now.Add(-rl.config.CleanupPeriod)
	for key, entry := range rl.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
	rl.lastCleanup = now
}

// Stats returns rate limiter statistics
func (rl *Limiter) Stats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]interface{}{
		"enabled":             rl.config.Enabled,
		"requests_per_second": rl.config.RequestsPerSecond,
		"burst_size":          rl.config.BurstSize,
		"available_tokens":    rl.globalLimiter.Tokens(),
		"active_keys":         len(rl.limiters),
	}
}
