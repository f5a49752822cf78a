package auth

import (
	"sync"
	"time"
)

// Tracker defaults, matching the deployment's historical behavior.
const (
	DefaultMaxFailures = 5
	DefaultBlockWindow = 5 * time.Minute
)

// attemptRecord tracks authentication failures for a single client IP.
type attemptRecord struct {
	failures     int
	blockedUntil time.Time // zero when not blocked
}

// blocked reports whether the record carries a live block.
func (r *attemptRecord) blocked(now time.Time) bool {
	return !r.blockedUntil.IsZero() && now.Before(r.blockedUntil)
}

// expired reports whether a past block has elapsed.
func (r *attemptRecord) expired(now time.Time) bool {
	return !r.blockedUntil.IsZero() && !now.Before(r.blockedUntil)
}

// TrackerConfig configures an AttemptTracker.
type TrackerConfig struct {
	// MaxFailures is the failure count at which an IP gets blocked.
	MaxFailures int

	// BlockWindow is how long a block lasts.
	BlockWindow time.Duration

	// OnBlock, if set, is invoked whenever an IP crosses the failure
	// threshold. It is always called after the tracker's lock has been
	// released, so implementations may log or perform I/O freely.
	OnBlock func(ip string, window time.Duration)

	// Clock overrides the time source. Nil means time.Now.
	Clock func() time.Time
}

// AttemptTracker keeps per-IP failure counters and block expirations.
//
// State is purely in-memory and guarded by a single mutex; critical sections
// are O(1) map operations and never log or touch I/O while the lock is held.
// A process restart clears all blocks and counters, which is accepted,
// documented behavior: the tracker protects against online brute force, not
// against an attacker who can restart the server.
//
// Records are never explicitly deleted except on success or lazy expiry, so
// memory is bounded by the IP cardinality of the deployment.
type AttemptTracker struct {
	mu      sync.Mutex
	records map[string]*attemptRecord

	maxFailures int
	blockWindow time.Duration
	onBlock     func(ip string, window time.Duration)
	now         func() time.Time
}

// NewAttemptTracker creates a tracker with the given configuration,
// falling back to defaults for zero values.
func NewAttemptTracker(cfg TrackerConfig) *AttemptTracker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.BlockWindow <= 0 {
		cfg.BlockWindow = DefaultBlockWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &AttemptTracker{
		records:     make(map[string]*attemptRecord),
		maxFailures: cfg.MaxFailures,
		blockWindow: cfg.BlockWindow,
		onBlock:     cfg.OnBlock,
		now:         cfg.Clock,
	}
}

// IsBlocked reports whether the IP is inside an active block window.
//
// Expired blocks are lazily cleared: once the window has elapsed the record
// is dropped entirely, resetting the failure count to zero, and the IP is
// treated as if it had never failed.
func (t *AttemptTracker) IsBlocked(ip string) bool {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[ip]
	if !ok {
		return false
	}
	if rec.blocked(now) {
		return true
	}
	if rec.expired(now) {
		delete(t.records, ip)
	}
	return false
}

// RecordFailure increments the failure counter for the IP. When the counter
// reaches the configured threshold the IP is blocked for the block window
// and the OnBlock hook fires (outside the lock).
func (t *AttemptTracker) RecordFailure(ip string) {
	now := t.now()
	blocked := false

	t.mu.Lock()
	rec, ok := t.records[ip]
	if !ok || rec.expired(now) {
		rec = &attemptRecord{}
		t.records[ip] = rec
	}
	rec.failures++
	if rec.failures >= t.maxFailures && !rec.blocked(now) {
		rec.blockedUntil = now.Add(t.blockWindow)
		blocked = true
	}
	t.mu.Unlock()

	if blocked && t.onBlock != nil {
		t.onBlock(ip, t.blockWindow)
	}
}

// RecordSuccess clears the record for the IP entirely, even if it was one
// failure away from the threshold.
func (t *AttemptTracker) RecordSuccess(ip string) {
	t.mu.Lock()
	delete(t.records, ip)
	t.mu.Unlock()
}

// Failures returns the current failure count for the IP. Intended for tests
// and diagnostics.
func (t *AttemptTracker) Failures(ip string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[ip]; ok {
		return rec.failures
	}
	return 0
}
