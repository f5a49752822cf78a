package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_BurstThenReject(t *testing.T) {
	limiter := New(1, 3)

	// Burst capacity serves the first three immediately.
	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("10.0.0.1"), "request %d should pass", i)
	}
	assert.False(t, limiter.Allow("10.0.0.1"))
}

func TestRateLimiter_PerClientIsolation(t *testing.T) {
	limiter := New(1, 1)

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))

	// A different client has its own bucket.
	assert.True(t, limiter.Allow("10.0.0.2"))
}

func TestRateLimiter_ZeroRateUnlimited(t *testing.T) {
	limiter := New(0, 0)

	for i := 0; i < 1000; i++ {
		require.True(t, limiter.Allow("10.0.0.1"))
	}
}

func TestRateLimiter_WaitRespectsContext(t *testing.T) {
	limiter := New(1, 1)
	require.True(t, limiter.Allow("10.0.0.1"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx, "10.0.0.1")
	assert.Error(t, err)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := New(10, 10)

	limiter.Allow("10.0.0.1")
	limiter.Allow("10.0.0.2")
	require.Equal(t, 2, limiter.Len())

	// Nothing is idle yet.
	assert.Equal(t, 0, limiter.Cleanup())

	// Age one bucket past the eviction cutoff.
	limiter.mu.Lock()
	limiter.clients["10.0.0.1"].lastSeen = time.Now().Add(-idleEvictAfter - time.Minute)
	limiter.mu.Unlock()

	assert.Equal(t, 1, limiter.Cleanup())
	assert.Equal(t, 1, limiter.Len())
}
