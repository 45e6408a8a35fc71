// Package ratelimit provides per-provider token buckets.
//
// Buckets are keyed by provider; the registry hands out the same bucket for
// the same key so that every code path hitting a provider shares one budget.
// Waiters are served FIFO and released with an error on context cancellation.
package ratelimit

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	literrors "github.com/litfuse/litfuse/internal/errors"
)

// Limit describes a bucket's refill rate and burst capacity.
type Limit struct {
	Rate  float64 // tokens per second
	Burst int
}

// Registry hands out per-key token buckets. The zero value is not usable;
// create one with NewRegistry.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	defaults map[string]Limit
}

// NewRegistry creates a registry with per-key default limits. Keys missing
// from defaults are not limited.
func NewRegistry(defaults map[string]Limit) *Registry {
	return &Registry{
		limiters: make(map[string]*rate.Limiter),
		defaults: defaults,
	}
}

// SetLimit installs or replaces the bucket for key.
func (r *Registry) SetLimit(key string, l Limit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[key] = rate.NewLimiter(rate.Limit(l.Rate), l.Burst)
}

// limiter returns the bucket for key, creating it from defaults on first use.
// Returns nil when the key carries no limit.
func (r *Registry) limiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[key]; ok {
		return l
	}
	d, ok := r.defaults[key]
	if !ok {
		return nil
	}
	l := rate.NewLimiter(rate.Limit(d.Rate), d.Burst)
	r.limiters[key] = l
	return l
}

// Acquire blocks until a token is available for key, or the context is
// cancelled. Unlimited keys return immediately.
func (r *Registry) Acquire(ctx context.Context, key string) error {
	l := r.limiter(key)
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		log.Debug().Str("provider", key).Err(err).Msg("Rate limiter wait aborted")
		return literrors.WrapCancelled("rate_acquire", err)
	}
	return nil
}

// Allow reports whether a token is immediately available for key without
// consuming one on failure.
func (r *Registry) Allow(key string) bool {
	l := r.limiter(key)
	if l == nil {
		return true
	}
	return l.Allow()
}
