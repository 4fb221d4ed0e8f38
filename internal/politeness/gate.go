// Package politeness spaces out outbound navigations to a single site.
package politeness

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the courtesy interval between two navigations to the same site.
const DefaultInterval = 10 * time.Second

// Gate grants at most one acquisition per interval. It is process-local.
type Gate struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewGate builds a gate; a non-positive interval disables waiting.
func NewGate(interval time.Duration) *Gate {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Gate{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
	}
}

// Acquire blocks until the interval has elapsed since the previous grant.
// The first acquisition is granted immediately.
func (g *Gate) Acquire(ctx context.Context) error {
	if g == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}

// Interval returns the configured minimum spacing.
func (g *Gate) Interval() time.Duration {
	if g == nil {
		return 0
	}
	return g.interval
}
