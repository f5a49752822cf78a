// Package share defines the storage contract for share-link records.
//
// The package contains the Link record type, the Store interface implemented
// by the durable (BadgerDB) and in-memory backends, and the sentinel errors
// shared by all implementations. Business rules (minting, validation,
// consumption) live one level up in pkg/share; stores only guarantee atomic,
// serialized access to individual records.
package share

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrLinkNotFound indicates no record exists for the given token.
	ErrLinkNotFound = errors.New("share link not found")

	// ErrDuplicateToken indicates a Put collided with an existing token.
	ErrDuplicateToken = errors.New("share link token already exists")

	// ErrLinkInactive indicates the link exists but is expired, revoked,
	// or has exhausted its download limit. Update callbacks return it to
	// abort a mutation without persisting anything.
	ErrLinkInactive = errors.New("share link inactive")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("share link store closed")
)

// Store persists share-link records.
//
// Mutating operations (Put, Update, Delete, PurgeExpired) are serialized by
// the implementation: a single writer at a time, so read-modify-write cycles
// inside Update never interleave. This is what upholds the
// DownloadCount <= MaxDownloads invariant under concurrent downloads of the
// same token. Read operations (Get, List) may run concurrently with each
// other and only require a consistent snapshot.
//
// All methods are safe for concurrent use.
type Store interface {
	// Put inserts a new link record.
	//
	// Returns ErrDuplicateToken if a record with the same token already
	// exists (revoked or not).
	Put(ctx context.Context, link *Link) error

	// Get returns a copy of the record for the given token.
	//
	// Returns ErrLinkNotFound if no record exists. Get performs no
	// liveness checks; callers decide what an expired or revoked record
	// means.
	Get(ctx context.Context, token string) (*Link, error)

	// Update atomically applies fn to the record for the given token and
	// persists the result. fn receives a private copy; returning a
	// non-nil error aborts the update without persisting.
	//
	// Returns ErrLinkNotFound if the token does not exist, or the error
	// returned by fn.
	Update(ctx context.Context, token string, fn func(*Link) error) (*Link, error)

	// Delete removes the record for the given token.
	//
	// Returns ErrLinkNotFound if no record exists.
	Delete(ctx context.Context, token string) error

	// List returns copies of all records, in no particular order.
	List(ctx context.Context) ([]*Link, error)

	// PurgeExpired deletes every record whose expiry is before the given
	// cutoff, regardless of revocation state, and returns how many were
	// removed. Housekeeping only; never required for correctness.
	PurgeExpired(ctx context.Context, cutoff time.Time) (int, error)

	// Close releases store resources. Operations after Close return
	// ErrStoreClosed.
	Close() error
}
