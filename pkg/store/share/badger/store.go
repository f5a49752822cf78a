// Package badger implements the durable share-link store on BadgerDB.
package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/sharegate/pkg/store/share"
)

// BadgerShareStore implements share.Store using BadgerDB for persistence.
//
// This is the production backend: share links survive process restarts, which
// is part of the contract (the attempt tracker deliberately does not).
//
// Thread Safety:
// BadgerDB transactions are already isolated, but the share-link contract
// requires strict single-writer behavior for read-modify-write cycles
// (Update must never observe a stale DownloadCount). Rather than relying on
// transaction conflict detection and retries, all mutations are serialized
// by a single mutex. Critical sections are O(1) key operations and perform
// no logging or unrelated I/O. Reads go straight to BadgerDB's MVCC
// snapshots without taking the mutex.
type BadgerShareStore struct {
	db *badger.DB

	// writeMu serializes all mutating operations.
	writeMu sync.Mutex

	// closed guards against use after Close.
	closed   bool
	closedMu sync.RWMutex
}

// BadgerShareStoreConfig contains configuration for creating a BadgerDB
// share-link store.
type BadgerShareStoreConfig struct {
	// DBPath is the directory where BadgerDB stores its files.
	// Ignored when InMemory is true.
	DBPath string `mapstructure:"db_path"`

	// InMemory runs BadgerDB without any on-disk state. Links do not
	// survive restarts; useful for tests and throwaway sessions.
	InMemory bool `mapstructure:"in_memory"`
}

// NewBadgerShareStore opens (or creates) a BadgerDB-backed share-link store.
//
// The returned store is immediately ready for use and safe for concurrent
// access from multiple goroutines.
func NewBadgerShareStore(ctx context.Context, cfg BadgerShareStoreConfig) (*BadgerShareStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !cfg.InMemory && cfg.DBPath == "" {
		return nil, fmt.Errorf("badger share store: db_path is required")
	}

	opts := badger.DefaultOptions(cfg.DBPath).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)
	if cfg.InMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &BadgerShareStore{db: db}, nil
}

// Put inserts a new link record. Returns share.ErrDuplicateToken if the
// token is already present.
func (s *BadgerShareStore) Put(ctx context.Context, link *share.Link) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}

	data, err := encodeLink(link)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		key := keyLink(link.Token)
		if _, err := txn.Get(key); err == nil {
			return share.ErrDuplicateToken
		} else if err != badger.ErrKeyNotFound {
			return fmt.Errorf("failed to probe share link: %w", err)
		}
		return txn.Set(key, data)
	})
}

// Get returns the record for the given token.
func (s *BadgerShareStore) Get(ctx context.Context, token string) (*share.Link, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	var link *share.Link
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyLink(token))
		if err == badger.ErrKeyNotFound {
			return share.ErrLinkNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get share link: %w", err)
		}
		return item.Value(func(val []byte) error {
			l, err := decodeLink(val)
			if err != nil {
				return err
			}
			link = l
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// Update atomically applies fn to the record and persists the result.
func (s *BadgerShareStore) Update(ctx context.Context, token string, fn func(*share.Link) error) (*share.Link, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var updated *share.Link
	err := s.db.Update(func(txn *badger.Txn) error {
		key := keyLink(token)
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return share.ErrLinkNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get share link: %w", err)
		}

		var link *share.Link
		if err := item.Value(func(val []byte) error {
			l, derr := decodeLink(val)
			if derr != nil {
				return derr
			}
			link = l
			return nil
		}); err != nil {
			return err
		}

		if err := fn(link); err != nil {
			return err
		}

		data, err := encodeLink(link)
		if err != nil {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("failed to persist share link: %w", err)
		}
		updated = link
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the record for the given token.
func (s *BadgerShareStore) Delete(ctx context.Context, token string) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		key := keyLink(token)
		if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
			return share.ErrLinkNotFound
		} else if err != nil {
			return fmt.Errorf("failed to probe share link: %w", err)
		}
		return txn.Delete(key)
	})
}

// List returns all records in no particular order.
func (s *BadgerShareStore) List(ctx context.Context) ([]*share.Link, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	var links []*share.Link
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(linkKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				link, derr := decodeLink(val)
				if derr != nil {
					return derr
				}
				links = append(links, link)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

// PurgeExpired deletes every record whose expiry is before the cutoff.
func (s *BadgerShareStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int, error) {
	if err := s.checkOpen(ctx); err != nil {
		return 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	purged := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(linkKeyPrefix)
		it := txn.NewIterator(opts)

		// Collect first, delete after closing the iterator: Badger does
		// not allow deletes while an iterator is open on the same txn.
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				link, derr := decodeLink(val)
				if derr != nil {
					return derr
				}
				if link.ExpiresAt.Before(cutoff) {
					stale = append(stale, item.KeyCopy(nil))
				}
				return nil
			}); err != nil {
				it.Close()
				return err
			}
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("failed to purge share link: %w", err)
			}
		}
		purged = len(stale)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

// Close closes the underlying database. Safe to call more than once.
func (s *BadgerShareStore) Close() error {
	s.closedMu.Lock()
	defer s.closedMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// checkOpen verifies the store is usable and the context is live.
func (s *BadgerShareStore) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.closedMu.RLock()
	defer s.closedMu.RUnlock()
	if s.closed {
		return share.ErrStoreClosed
	}
	return nil
}
