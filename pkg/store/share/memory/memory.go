// Package memory implements an in-memory share-link store.
//
// Links held here do not survive restarts, so this backend is meant for
// tests and throwaway sessions where durability is explicitly unwanted.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/sharegate/pkg/store/share"
)

// MemoryShareStore implements share.Store with a mutex-guarded map.
//
// A single mutex serializes every operation. Records are cloned on the way
// in and out so callers can never alias internal state.
type MemoryShareStore struct {
	mu     sync.Mutex
	links  map[string]*share.Link
	closed bool
}

// NewMemoryShareStore creates an empty in-memory store.
func NewMemoryShareStore() *MemoryShareStore {
	return &MemoryShareStore{
		links: make(map[string]*share.Link),
	}
}

func (s *MemoryShareStore) Put(ctx context.Context, link *share.Link) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return share.ErrStoreClosed
	}
	if _, ok := s.links[link.Token]; ok {
		return share.ErrDuplicateToken
	}
	s.links[link.Token] = link.Clone()
	return nil
}

func (s *MemoryShareStore) Get(ctx context.Context, token string) (*share.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, share.ErrStoreClosed
	}
	link, ok := s.links[token]
	if !ok {
		return nil, share.ErrLinkNotFound
	}
	return link.Clone(), nil
}

func (s *MemoryShareStore) Update(ctx context.Context, token string, fn func(*share.Link) error) (*share.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, share.ErrStoreClosed
	}
	link, ok := s.links[token]
	if !ok {
		return nil, share.ErrLinkNotFound
	}

	// fn works on a copy; only a nil error publishes the change.
	candidate := link.Clone()
	if err := fn(candidate); err != nil {
		return nil, err
	}
	s.links[token] = candidate
	return candidate.Clone(), nil
}

func (s *MemoryShareStore) Delete(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return share.ErrStoreClosed
	}
	if _, ok := s.links[token]; !ok {
		return share.ErrLinkNotFound
	}
	delete(s.links, token)
	return nil
}

func (s *MemoryShareStore) List(ctx context.Context) ([]*share.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, share.ErrStoreClosed
	}
	links := make([]*share.Link, 0, len(s.links))
	for _, link := range s.links {
		links = append(links, link.Clone())
	}
	return links, nil
}

func (s *MemoryShareStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, share.ErrStoreClosed
	}
	purged := 0
	for token, link := range s.links {
		if link.ExpiresAt.Before(cutoff) {
			delete(s.links, token)
			purged++
		}
	}
	return purged, nil
}

func (s *MemoryShareStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
