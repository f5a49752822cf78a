// Package ratelimiter provides per-client request rate limiting using the
// token bucket algorithm.
package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleEvictAfter is how long a client's bucket may sit untouched before the
// cleanup pass drops it.
const idleEvictAfter = 10 * time.Minute

// RateLimiter enforces a token-bucket limit per client key (normally the
// remote IP). Each key gets its own bucket filled at the configured sustained
// rate; burst capacity absorbs short spikes.
//
// Thread Safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*clientBucket
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a RateLimiter allowing requestsPerSecond sustained per client
// with the given burst capacity.
//
// requestsPerSecond = 0 disables limiting entirely (every request allowed).
func New(requestsPerSecond, burst uint) *RateLimiter {
	r := &RateLimiter{
		limit:   rate.Limit(requestsPerSecond),
		burst:   int(burst),
		clients: make(map[string]*clientBucket),
	}
	if requestsPerSecond == 0 {
		r.limit = rate.Inf
	}
	if r.burst < 1 {
		r.burst = 1
	}
	return r
}

// get returns the bucket for key, creating it on first sight.
func (r *RateLimiter) get(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[key] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

// Allow reports whether the client identified by key may proceed, consuming
// one token when it may. This is the fast path: it never blocks.
func (r *RateLimiter) Allow(key string) bool {
	return r.get(key).Allow()
}

// Wait blocks until the client may proceed or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context, key string) error {
	return r.get(key).Wait(ctx)
}

// Tokens returns the current token count for key, for monitoring. A key never
// seen reports a full bucket.
func (r *RateLimiter) Tokens(key string) float64 {
	return r.get(key).Tokens()
}

// Len returns the number of tracked clients.
func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Cleanup drops buckets idle longer than idleEvictAfter and returns how many
// were removed. Intended to be called periodically from a maintenance ticker.
func (r *RateLimiter) Cleanup() int {
	cutoff := time.Now().Add(-idleEvictAfter)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, b := range r.clients {
		if b.lastSeen.Before(cutoff) {
			delete(r.clients, key)
			removed++
		}
	}
	return removed
}
