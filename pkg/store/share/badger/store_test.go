package badger

import (
	"context"
	"testing"

	"github.com/marmos91/sharegate/pkg/store/share"
	storetesting "github.com/marmos91/sharegate/pkg/store/share/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) share.Store {
	t.Helper()
	store, err := NewBadgerShareStore(context.Background(), BadgerShareStoreConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerShareStore_Conformance(t *testing.T) {
	suite := &storetesting.StoreTestSuite{NewStore: newTestStore}
	suite.Run(t)
}

func TestBadgerShareStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewBadgerShareStore(ctx, BadgerShareStoreConfig{DBPath: dir})
	require.NoError(t, err)

	link := &share.Link{
		Token:    "tok-durable",
		FilePath: "notes.txt",
		FileName: "notes.txt",
	}
	require.NoError(t, store.Put(ctx, link))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerShareStore(ctx, BadgerShareStoreConfig{DBPath: dir})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Get(ctx, "tok-durable")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", got.FileName)
}

func TestBadgerShareStore_RequiresPath(t *testing.T) {
	_, err := NewBadgerShareStore(context.Background(), BadgerShareStoreConfig{})
	assert.Error(t, err)
}

func TestBadgerShareStore_ClosedStore(t *testing.T) {
	store, err := NewBadgerShareStore(context.Background(), BadgerShareStoreConfig{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.Get(context.Background(), "tok")
	assert.ErrorIs(t, err, share.ErrStoreClosed)
}
