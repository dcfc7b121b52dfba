package ratelimit

import (
	"fmt"
	"time"
)

// Config represents rate limiter configuration
type Config struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	BurstSize         int     `json:"burst_size"`
	Enabled           bool    `json:"enabled"`

	// Cleanup settings for keyed limiters
	MaxKeys       int           `json:"max_keys,omitempty"`
	CleanupPeriod time.Duration `json:"cleanup_period,omitempty"`
}

// DefaultConfig returns the inbound per-client defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 5,
		BurstSize:         20,
		Enabled:           true,
		MaxKeys:           10000,
		CleanupPeriod:     10 * time.Minute,
	}
}

// Validate validates the rate limiter configuration and fills cleanup defaults
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive, got %v", c.RequestsPerSecond)
	}
	if c.BurstSize <= 0 {
		return fmt.Errorf("burst size must be positive, got %d", c.BurstSize)
	}

	if c.MaxKeys <= 0 {
		c.MaxKeys = 10000
	}
	if c.CleanupPeriod <= 0 {
		c.CleanupPeriod = 10 * time.Minute
	}

	return nil
}
