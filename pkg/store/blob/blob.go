// Package blob defines the storage contract for served file content.
//
// A BlobStore holds the raw bytes behind the directory being shared: the
// upload decoder streams incoming parts into it and the share-link resolver
// reads from it. Metadata (share links, counters) lives elsewhere; this
// layer only moves bytes. Implementations exist for the local filesystem
// (the default deployment), memory (tests), and S3-compatible object
// storage.
package blob

import (
	"context"
	"errors"
	"io"
)

// Sentinel errors returned by BlobStore implementations.
var (
	// ErrBlobNotFound indicates no blob exists under the given name.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrInvalidName indicates the name is empty or tries to escape the
	// store's namespace (path traversal).
	ErrInvalidName = errors.New("invalid blob name")
)

// BlobStore provides named byte storage scoped to the served directory.
//
// Names are slash-separated paths relative to the store root. They must
// already be sanitized by the caller; stores additionally fail closed on
// anything that would resolve outside their root.
//
// All methods are safe for concurrent use. Concurrent writers never clobber
// each other: Create picks a fresh name when the requested one is taken.
type BlobStore interface {
	// Create opens a writer for a new blob. If a blob with the requested
	// name already exists, a numeric suffix is appended (name_1.ext,
	// name_2.ext, ...) until a free name is found; the chosen name is
	// returned. The caller must close the writer on every exit path,
	// including errors - a truncated blob is acceptable, a leaked handle
	// is not.
	Create(ctx context.Context, name string) (io.WriteCloser, string, error)

	// Open returns a reader for the blob. Returns ErrBlobNotFound if it
	// does not exist. The caller must close the reader.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Stat returns the blob's size in bytes, or ErrBlobNotFound.
	Stat(ctx context.Context, name string) (int64, error)

	// Exists reports whether a blob with the given name is present.
	Exists(ctx context.Context, name string) (bool, error)

	// Remove deletes the blob. Returns ErrBlobNotFound if absent.
	Remove(ctx context.Context, name string) error
}
