// Package ratelimit provides token-bucket fetch limiters per warehouse platform
// and per-table audit budgets.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/time/rate"
)

// PlatformRates configures per-platform fetch rates (requests per second).
// A zero rate leaves the platform unlimited.
type PlatformRates map[string]float64

// DefaultPlatformRates returns conservative warehouse query rates.
func DefaultPlatformRates() PlatformRates {
	return PlatformRates{
		"bigquery": 10,
		"athena":   5,
		"postgres": 20,
	}
}

// PlatformLimiter rate-limits warehouse calls per platform using token buckets.
type PlatformLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewPlatformLimiter creates a limiter with the given per-platform rates.
func NewPlatformLimiter(rates PlatformRates) *PlatformLimiter {
	limiters := make(map[string]*rate.Limiter, len(rates))
	for platform, rps := range rates {
		if rps <= 0 {
			continue
		}
		burst := int(math.Ceil(rps))
		limiters[platform] = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &PlatformLimiter{limiters: limiters}
}

// SetRate changes or adds the rate for one platform.
func (pl *PlatformLimiter) SetRate(platform string, rps float64) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if rps <= 0 {
		delete(pl.limiters, platform)
		return
	}
	if l, ok := pl.limiters[platform]; ok {
		l.SetLimit(rate.Limit(rps))
		l.SetBurst(int(math.Ceil(rps)))
		return
	}
	pl.limiters[platform] = rate.NewLimiter(rate.Limit(rps), int(math.Ceil(rps)))
}

// Wait blocks until a token is available for the platform, or ctx is cancelled.
func (pl *PlatformLimiter) Wait(ctx context.Context, platform string) error {
	pl.mu.RLock()
	limiter, ok := pl.limiters[platform]
	pl.mu.RUnlock()
	if !ok {
		return nil // unknown platform = no limit
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", platform, err)
	}
	return nil
}
