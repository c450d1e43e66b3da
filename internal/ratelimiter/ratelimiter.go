// Package ratelimiter throttles requests sent to a storage backend.
package ratelimiter

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket shared by every request of one store.
//
// Tokens are added at a constant rate; each request consumes one. Burst is
// the bucket capacity, so up to burst requests can start at once after an
// idle period.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing requestsPerSecond sustained requests.
//
// Special cases:
//   - requestsPerSecond <= 0: no rate limiting
//   - burst <= 0: burst defaults to one second worth of requests (at least 1)
func New(requestsPerSecond float64, burst int) *RateLimiter {
	if requestsPerSecond <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = max(int(requestsPerSecond), 1)
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Unlimited reports whether r lets every request through.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}

// Allow consumes a token if one is available, without waiting.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
//
// Returns ctx.Err() when ctx ends first, so callers can classify the
// failure with errors.Is(err, context.Canceled).
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// The wait would outlast the context deadline
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return nil
}

// Limit returns the sustained rate in requests per second, or 0 when
// unlimited.
func (r *RateLimiter) Limit() float64 {
	if r.Unlimited() {
		return 0
	}
	return float64(r.limiter.Limit())
}
