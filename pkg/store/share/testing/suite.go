// Package testing provides a conformance suite for share.Store
// implementations. Each backend runs the same suite so behavior stays
// identical regardless of where links are persisted.
package testing

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/sharegate/pkg/store/share"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite verifies a share.Store implementation against the contract
// documented on the interface.
type StoreTestSuite struct {
	// NewStore returns a fresh, empty store for each test case.
	NewStore func(t *testing.T) share.Store
}

// Run executes the full conformance suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("PutGet", suite.testPutGet)
	t.Run("PutDuplicate", suite.testPutDuplicate)
	t.Run("GetMissing", suite.testGetMissing)
	t.Run("Update", suite.testUpdate)
	t.Run("UpdateAborted", suite.testUpdateAborted)
	t.Run("Delete", suite.testDelete)
	t.Run("List", suite.testList)
	t.Run("PurgeExpired", suite.testPurgeExpired)
}

// testLink builds a minimal valid record.
func testLink(token string, expiresAt time.Time) *share.Link {
	return &share.Link{
		Token:     token,
		FilePath:  "docs/report.pdf",
		FileName:  "report.pdf",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		ExpiresAt: expiresAt,
	}
}

func (suite *StoreTestSuite) testPutGet(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	expires := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	link := testLink("tok-putget", expires)
	link.MaxDownloads = 3
	link.PINHash = []byte{1, 2, 3}
	link.PINSalt = []byte{4, 5, 6}
	link.Creator = "192.168.1.10"

	require.NoError(t, store.Put(ctx, link))

	got, err := store.Get(ctx, "tok-putget")
	require.NoError(t, err)
	assert.Equal(t, link.Token, got.Token)
	assert.Equal(t, link.FilePath, got.FilePath)
	assert.Equal(t, link.FileName, got.FileName)
	assert.Equal(t, 3, got.MaxDownloads)
	assert.Equal(t, 0, got.DownloadCount)
	assert.Equal(t, []byte{1, 2, 3}, got.PINHash)
	assert.Equal(t, "192.168.1.10", got.Creator)
	assert.True(t, expires.Equal(got.ExpiresAt))
	assert.False(t, got.Revoked)

	// The returned record is a copy: mutating it must not leak back.
	got.DownloadCount = 99
	again, err := store.Get(ctx, "tok-putget")
	require.NoError(t, err)
	assert.Equal(t, 0, again.DownloadCount)
}

func (suite *StoreTestSuite) testPutDuplicate(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	link := testLink("tok-dup", time.Now().Add(time.Hour))
	require.NoError(t, store.Put(ctx, link))

	err := store.Put(ctx, testLink("tok-dup", time.Now().Add(2*time.Hour)))
	assert.ErrorIs(t, err, share.ErrDuplicateToken)
}

func (suite *StoreTestSuite) testGetMissing(t *testing.T) {
	store := suite.NewStore(t)

	_, err := store.Get(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, share.ErrLinkNotFound)
}

func (suite *StoreTestSuite) testUpdate(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testLink("tok-upd", time.Now().Add(time.Hour))))

	updated, err := store.Update(ctx, "tok-upd", func(l *share.Link) error {
		l.DownloadCount++
		l.Revoked = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.DownloadCount)
	assert.True(t, updated.Revoked)

	got, err := store.Get(ctx, "tok-upd")
	require.NoError(t, err)
	assert.Equal(t, 1, got.DownloadCount)
	assert.True(t, got.Revoked)

	_, err = store.Update(ctx, "missing", func(l *share.Link) error { return nil })
	assert.ErrorIs(t, err, share.ErrLinkNotFound)
}

func (suite *StoreTestSuite) testUpdateAborted(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testLink("tok-abort", time.Now().Add(time.Hour))))

	_, err := store.Update(ctx, "tok-abort", func(l *share.Link) error {
		l.DownloadCount = 42
		return share.ErrLinkInactive
	})
	assert.ErrorIs(t, err, share.ErrLinkInactive)

	// An aborted update must not persist anything.
	got, err := store.Get(ctx, "tok-abort")
	require.NoError(t, err)
	assert.Equal(t, 0, got.DownloadCount)
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testLink("tok-del", time.Now().Add(time.Hour))))
	require.NoError(t, store.Delete(ctx, "tok-del"))

	_, err := store.Get(ctx, "tok-del")
	assert.ErrorIs(t, err, share.ErrLinkNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "tok-del"), share.ErrLinkNotFound)
}

func (suite *StoreTestSuite) testList(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	links, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, links)

	require.NoError(t, store.Put(ctx, testLink("tok-a", time.Now().Add(time.Hour))))
	require.NoError(t, store.Put(ctx, testLink("tok-b", time.Now().Add(time.Hour))))
	require.NoError(t, store.Put(ctx, testLink("tok-c", time.Now().Add(time.Hour))))

	links, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, links, 3)

	tokens := map[string]bool{}
	for _, l := range links {
		tokens[l.Token] = true
	}
	assert.True(t, tokens["tok-a"] && tokens["tok-b"] && tokens["tok-c"])
}

func (suite *StoreTestSuite) testPurgeExpired(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()
	now := time.Now()

	// Long expired, recently expired, and still active.
	require.NoError(t, store.Put(ctx, testLink("tok-old", now.Add(-10*24*time.Hour))))
	require.NoError(t, store.Put(ctx, testLink("tok-recent", now.Add(-time.Hour))))
	require.NoError(t, store.Put(ctx, testLink("tok-live", now.Add(time.Hour))))

	// Revoked records are purged too once past the cutoff.
	revoked := testLink("tok-revoked", now.Add(-9*24*time.Hour))
	revoked.Revoked = true
	require.NoError(t, store.Put(ctx, revoked))

	purged, err := store.PurgeExpired(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	_, err = store.Get(ctx, "tok-old")
	assert.ErrorIs(t, err, share.ErrLinkNotFound)
	_, err = store.Get(ctx, "tok-revoked")
	assert.ErrorIs(t, err, share.ErrLinkNotFound)

	_, err = store.Get(ctx, "tok-recent")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "tok-live")
	assert.NoError(t, err)
}
