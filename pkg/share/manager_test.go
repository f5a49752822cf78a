package share

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	store "github.com/marmos91/sharegate/pkg/store/share"
	"github.com/marmos91/sharegate/pkg/store/share/memory"
)

func newTestManager(t *testing.T, opts ...ManagerOption) *Manager {
	t.Helper()
	return NewManager(memory.NewMemoryShareStore(), nil, opts...)
}

func TestMint_DefaultsAndFields(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, WithClock(func() time.Time { return now }))

	link, err := m.Mint(context.Background(), MintRequest{
		FilePath:     "docs/report.pdf",
		Expiry:       2 * time.Hour,
		MaxDownloads: 5,
		Creator:      "10.0.0.9",
	})
	require.NoError(t, err)

	assert.Equal(t, "report.pdf", link.FileName)
	assert.Equal(t, now, link.CreatedAt)
	assert.Equal(t, now.Add(2*time.Hour), link.ExpiresAt)
	assert.Equal(t, 5, link.MaxDownloads)
	assert.Equal(t, 0, link.DownloadCount)
	assert.Equal(t, "10.0.0.9", link.Creator)
	assert.False(t, link.HasPIN())
	assert.GreaterOrEqual(t, len(link.Token), 32, "token must carry at least 128 bits of entropy")
}

func TestMint_TokensAreUnique(t *testing.T) {
	m := newTestManager(t)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		link, err := m.Mint(context.Background(), MintRequest{FilePath: "f"})
		require.NoError(t, err)
		require.False(t, seen[link.Token], "duplicate token minted")
		seen[link.Token] = true
	}
}

func TestMint_NeverExposesPIN(t *testing.T) {
	m := newTestManager(t)

	link, err := m.Mint(context.Background(), MintRequest{FilePath: "secret.txt", PIN: "4321"})
	require.NoError(t, err)

	assert.True(t, link.HasPIN())
	assert.NotContains(t, string(link.PINHash), "4321")

	// The record serializes for API responses; the raw PIN must not
	// appear anywhere in it.
	data, err := json.Marshal(link)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), `"4321"`))
}

func TestMint_Validation(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Mint(context.Background(), MintRequest{})
	assert.Error(t, err)

	_, err = m.Mint(context.Background(), MintRequest{FilePath: "f", MaxDownloads: -1})
	assert.Error(t, err)
}

func TestValidate_Statuses(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := &fakeClock{t: now}
	m := newTestManager(t, WithClock(clock.Now))

	plain, err := m.Mint(ctx, MintRequest{FilePath: "plain.txt", Expiry: time.Hour})
	require.NoError(t, err)
	pinned, err := m.Mint(ctx, MintRequest{FilePath: "pinned.txt", Expiry: time.Hour, PIN: "1234"})
	require.NoError(t, err)

	t.Run("UnknownToken", func(t *testing.T) {
		v, err := m.Validate(ctx, "not-a-token", "")
		require.NoError(t, err)
		assert.Equal(t, StatusInactive, v.Status)
		assert.Nil(t, v.Link)
	})

	t.Run("ActiveWithoutPIN", func(t *testing.T) {
		v, err := m.Validate(ctx, plain.Token, "")
		require.NoError(t, err)
		assert.Equal(t, StatusActive, v.Status)
		require.NotNil(t, v.Link)
		assert.Equal(t, "plain.txt", v.Link.FileName)
	})

	t.Run("RequiresPIN", func(t *testing.T) {
		v, err := m.Validate(ctx, pinned.Token, "")
		require.NoError(t, err)
		assert.Equal(t, StatusRequiresPIN, v.Status)
		assert.Equal(t, "pinned.txt", v.FileName)
		assert.Nil(t, v.Link, "file identity beyond display name must stay hidden")
	})

	t.Run("InvalidPIN", func(t *testing.T) {
		v, err := m.Validate(ctx, pinned.Token, "9999")
		require.NoError(t, err)
		assert.Equal(t, StatusInvalidPIN, v.Status)
		assert.Nil(t, v.Link)
	})

	t.Run("CorrectPIN", func(t *testing.T) {
		v, err := m.Validate(ctx, pinned.Token, "1234")
		require.NoError(t, err)
		assert.Equal(t, StatusActive, v.Status)
		require.NotNil(t, v.Link)
	})

	t.Run("Expired", func(t *testing.T) {
		clock.Advance(2 * time.Hour)
		v, err := m.Validate(ctx, plain.Token, "")
		require.NoError(t, err)
		assert.Equal(t, StatusInactive, v.Status)
	})
}

func TestValidate_WrongPINDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	link, err := m.Mint(ctx, MintRequest{FilePath: "f", Expiry: time.Hour, MaxDownloads: 1, PIN: "1234"})
	require.NoError(t, err)

	v, err := m.Validate(ctx, link.Token, "0000")
	require.NoError(t, err)
	require.Equal(t, StatusInvalidPIN, v.Status)

	stats, err := m.Stats(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.DownloadCount)

	// The single download is still available after the failed PIN.
	v, err = m.Validate(ctx, link.Token, "1234")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, v.Status)
}

func TestConsume_ExactDownloadLimit(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	const limit = 10
	link, err := m.Mint(ctx, MintRequest{FilePath: "f", Expiry: time.Hour, MaxDownloads: limit})
	require.NoError(t, err)

	// Twice as many concurrent consumers as the limit allows: exactly
	// `limit` must succeed, the rest must observe an inactive link.
	var wg sync.WaitGroup
	results := make(chan error, limit*2)
	for i := 0; i < limit*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- m.Consume(ctx, link.Token)
		}()
	}
	wg.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrLinkInactive):
			rejected++
		default:
			t.Fatalf("unexpected consume error: %v", err)
		}
	}
	assert.Equal(t, limit, succeeded)
	assert.Equal(t, limit, rejected)

	stats, err := m.Stats(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, limit, stats.DownloadCount, "download count must never exceed the limit")
	assert.True(t, stats.Revoked, "link must auto-revoke at the limit")
	assert.NotNil(t, stats.LastAccessedAt)
}

func TestConsume_UnlimitedLink(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	link, err := m.Mint(ctx, MintRequest{FilePath: "f", Expiry: time.Hour})
	require.NoError(t, err)

	for i := 0; i < 25; i++ {
		require.NoError(t, m.Consume(ctx, link.Token))
	}

	stats, err := m.Stats(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, 25, stats.DownloadCount)
	assert.False(t, stats.Revoked)
}

func TestRevoke_Idempotent(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	link, err := m.Mint(ctx, MintRequest{FilePath: "f", Expiry: time.Hour})
	require.NoError(t, err)

	revoked, err := m.Revoke(ctx, link.Token)
	require.NoError(t, err)
	assert.True(t, revoked)

	v, err := m.Validate(ctx, link.Token, "")
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, v.Status, "link must be inactive after the first revoke")

	revoked, err = m.Revoke(ctx, link.Token)
	require.NoError(t, err)
	assert.False(t, revoked, "second revoke must report no change")

	revoked, err = m.Revoke(ctx, "no-such-token")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestListActive_NewestFirstAndFiltered(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := &fakeClock{t: now}
	m := newTestManager(t, WithClock(clock.Now))

	first, err := m.Mint(ctx, MintRequest{FilePath: "first.txt", Expiry: time.Hour})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := m.Mint(ctx, MintRequest{FilePath: "second.txt", Expiry: time.Hour})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	third, err := m.Mint(ctx, MintRequest{FilePath: "third.txt", Expiry: time.Hour})
	require.NoError(t, err)

	_, err = m.Revoke(ctx, second.Token)
	require.NoError(t, err)

	active, err := m.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, third.Token, active[0].Token)
	assert.Equal(t, first.Token, active[1].Token)
}

func TestPurgeExpired_Retention(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := &fakeClock{t: now}
	m := newTestManager(t, WithClock(clock.Now))

	shortLived, err := m.Mint(ctx, MintRequest{FilePath: "old.txt", Expiry: time.Hour})
	require.NoError(t, err)
	longLived, err := m.Mint(ctx, MintRequest{FilePath: "new.txt", Expiry: 30 * 24 * time.Hour})
	require.NoError(t, err)

	// One hour past expiry: within retention, nothing purged yet.
	clock.Advance(2 * time.Hour)
	purged, err := m.PurgeExpired(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, purged)

	// Past the retention window the expired link goes away.
	clock.Advance(DefaultRetention)
	purged, err = m.PurgeExpired(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = m.Stats(ctx, shortLived.Token)
	assert.ErrorIs(t, err, store.ErrLinkNotFound)
	_, err = m.Stats(ctx, longLived.Token)
	assert.NoError(t, err)
}

// fakeClock is a mutable time source for expiry tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
