// Package memory implements an in-memory blob store used in tests and
// short-lived deployments.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/marmos91/sharegate/pkg/store/blob"
)

// MemoryBlobStore implements blob.BlobStore on a map. Contents vanish on
// process exit.
type MemoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryBlobStore creates an empty in-memory blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{
		blobs: make(map[string][]byte),
	}
}

// memoryWriter buffers writes and publishes the blob on Close.
type memoryWriter struct {
	store  *MemoryBlobStore
	name   string
	buf    bytes.Buffer
	closed bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.store.blobs[w.name] = w.buf.Bytes()
	return nil
}

func (s *MemoryBlobStore) Create(ctx context.Context, name string) (io.WriteCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if name == "" {
		return nil, "", blob.ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for counter := 1; ; counter++ {
		if _, exists := s.blobs[candidate]; !exists {
			break
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, counter, ext)
	}

	// Reserve the name so concurrent creates pick distinct candidates.
	s.blobs[candidate] = nil

	return &memoryWriter{store: s, name: candidate}, candidate, nil
}

func (s *MemoryBlobStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	data, ok := s.blobs[name]
	s.mu.Unlock()
	if !ok {
		return nil, blob.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryBlobStore) Stat(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	data, ok := s.blobs[name]
	s.mu.Unlock()
	if !ok {
		return 0, blob.ErrBlobNotFound
	}
	return int64(len(data)), nil
}

func (s *MemoryBlobStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	_, ok := s.blobs[name]
	s.mu.Unlock()
	return ok, nil
}

func (s *MemoryBlobStore) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[name]; !ok {
		return blob.ErrBlobNotFound
	}
	delete(s.blobs, name)
	return nil
}
