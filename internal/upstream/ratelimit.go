// Package upstream provides the outbound HTTP plumbing shared by the
// clients of the OpenCitations collaborators (SPARQL endpoints, the Meta
// REST API and Unpaywall).
package upstream

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// minRateDivisor bounds how far Throttle may lower the rate: never below
// the configured rate divided by this value.
const minRateDivisor = 8

// RateLimiter is a token bucket that slows down when the upstream answers
// 429 and recovers additively on success. It is safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter

	mu      sync.Mutex
	base    float64
	current float64
}

// NewRateLimiter creates a limiter allowing ratePerSecond sustained
// requests with the given burst.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		base:    ratePerSecond,
		current: ratePerSecond,
	}
}

// Wait blocks until a request is allowed or the context is canceled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow returns true if a request is allowed without waiting.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Throttle halves the current rate after a 429.
func (r *RateLimiter) Throttle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set(max(r.current/2, r.base/minRateDivisor))
}

// Restore moves the rate a tenth of the way back to the configured rate.
func (r *RateLimiter) Restore() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current < r.base {
		r.set(min(r.current+r.base/10, r.base))
	}
}

// Rate returns the current requests-per-second limit.
func (r *RateLimiter) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *RateLimiter) set(v float64) {
	r.current = v
	r.limiter.SetLimit(rate.Limit(v))
}
