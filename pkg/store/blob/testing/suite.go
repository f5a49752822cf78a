// Package testing provides a reusable conformance suite for blob.BlobStore
// implementations.
package testing

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/sharegate/pkg/store/blob"
)

// StoreTestSuite exercises the BlobStore contract against any implementation.
type StoreTestSuite struct {
	// NewStore returns a fresh, empty store for each subtest.
	NewStore func(t *testing.T) blob.BlobStore
}

// Run executes the full conformance suite.
func (s *StoreTestSuite) Run(t *testing.T) {
	t.Run("CreateAndOpen", s.testCreateAndOpen)
	t.Run("CreateDuplicateSuffixes", s.testCreateDuplicateSuffixes)
	t.Run("DuplicateSuffixBeforeExtension", s.testDuplicateSuffixBeforeExtension)
	t.Run("OpenMissing", s.testOpenMissing)
	t.Run("Stat", s.testStat)
	t.Run("Exists", s.testExists)
	t.Run("Remove", s.testRemove)
	t.Run("EmptyName", s.testEmptyName)
}

func write(t *testing.T, store blob.BlobStore, name string, data []byte) string {
	t.Helper()

	w, actual, err := store.Create(context.Background(), name)
	require.NoError(t, err)

	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return actual
}

func read(t *testing.T, store blob.BlobStore, name string) []byte {
	t.Helper()

	r, err := store.Open(context.Background(), name)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func (s *StoreTestSuite) testCreateAndOpen(t *testing.T) {
	store := s.NewStore(t)

	payload := []byte("hello, blob")
	actual := write(t, store, "greeting.txt", payload)
	assert.Equal(t, "greeting.txt", actual)

	assert.Equal(t, payload, read(t, store, "greeting.txt"))
}

func (s *StoreTestSuite) testCreateDuplicateSuffixes(t *testing.T) {
	store := s.NewStore(t)

	first := write(t, store, "report.pdf", []byte("first"))
	second := write(t, store, "report.pdf", []byte("second"))
	third := write(t, store, "report.pdf", []byte("third"))

	assert.Equal(t, "report.pdf", first)
	assert.Equal(t, "report_1.pdf", second)
	assert.Equal(t, "report_2.pdf", third)

	// The original is untouched.
	assert.Equal(t, []byte("first"), read(t, store, "report.pdf"))
	assert.Equal(t, []byte("second"), read(t, store, "report_1.pdf"))
	assert.Equal(t, []byte("third"), read(t, store, "report_2.pdf"))
}

func (s *StoreTestSuite) testDuplicateSuffixBeforeExtension(t *testing.T) {
	store := s.NewStore(t)

	write(t, store, "archive.tar.gz", []byte("a"))
	second := write(t, store, "archive.tar.gz", []byte("b"))

	// Suffix goes before the final extension.
	assert.Equal(t, "archive.tar_1.gz", second)
}

func (s *StoreTestSuite) testOpenMissing(t *testing.T) {
	store := s.NewStore(t)

	_, err := store.Open(context.Background(), "nope.txt")
	assert.ErrorIs(t, err, blob.ErrBlobNotFound)
}

func (s *StoreTestSuite) testStat(t *testing.T) {
	store := s.NewStore(t)

	write(t, store, "sized.bin", make([]byte, 4096))

	size, err := store.Stat(context.Background(), "sized.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), size)

	_, err = store.Stat(context.Background(), "missing.bin")
	assert.ErrorIs(t, err, blob.ErrBlobNotFound)
}

func (s *StoreTestSuite) testExists(t *testing.T) {
	store := s.NewStore(t)

	exists, err := store.Exists(context.Background(), "ghost.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	write(t, store, "ghost.txt", []byte("boo"))

	exists, err = store.Exists(context.Background(), "ghost.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func (s *StoreTestSuite) testRemove(t *testing.T) {
	store := s.NewStore(t)

	write(t, store, "temp.txt", []byte("x"))

	require.NoError(t, store.Remove(context.Background(), "temp.txt"))

	exists, err := store.Exists(context.Background(), "temp.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	err = store.Remove(context.Background(), "temp.txt")
	assert.ErrorIs(t, err, blob.ErrBlobNotFound)
}

func (s *StoreTestSuite) testEmptyName(t *testing.T) {
	store := s.NewStore(t)

	_, _, err := store.Create(context.Background(), "")
	assert.ErrorIs(t, err, blob.ErrInvalidName)
}
