// Package fs implements the blob store on a local directory - the directory
// being served.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/sharegate/pkg/store/blob"
)

// FSBlobStore implements blob.BlobStore on a directory subtree.
//
// Every name is resolved relative to the root and then checked to still be
// inside it, so a hostile name can never reach a file outside the served
// directory even if upstream sanitization failed.
//
// Duplicate handling follows the upload contract: Create probes
// name.ext, name_1.ext, name_2.ext, ... with O_EXCL, so concurrent uploads
// of the same filename each get their own file instead of overwriting.
type FSBlobStore struct {
	root string
}

// FSBlobStoreConfig contains configuration for the filesystem blob store.
type FSBlobStoreConfig struct {
	// Path is the directory to serve. Must exist and be a directory.
	Path string `mapstructure:"path"`
}

// NewFSBlobStore creates a filesystem blob store rooted at the given path.
func NewFSBlobStore(cfg FSBlobStoreConfig) (*FSBlobStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("fs blob store: path is required")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("fs blob store: failed to resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("fs blob store: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fs blob store: %s is not a directory", abs)
	}
	return &FSBlobStore{root: abs}, nil
}

// Root returns the absolute served directory.
func (s *FSBlobStore) Root() string {
	return s.root
}

// resolve maps a blob name onto an absolute path inside the root, failing
// closed on traversal attempts.
func (s *FSBlobStore) resolve(name string) (string, error) {
	if name == "" {
		return "", blob.ErrInvalidName
	}
	full := filepath.Join(s.root, filepath.FromSlash(name))
	full = filepath.Clean(full)
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", blob.ErrInvalidName
	}
	return full, nil
}

func (s *FSBlobStore) Create(ctx context.Context, name string) (io.WriteCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	full, err := s.resolve(name)
	if err != nil {
		return nil, "", err
	}

	dir := filepath.Dir(full)
	base := filepath.Base(full)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	candidate := base
	for counter := 1; ; counter++ {
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, candidate, nil
		}
		if !os.IsExist(err) {
			return nil, "", fmt.Errorf("fs blob store: failed to create %s: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, counter, ext)
	}
}

func (s *FSBlobStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if os.IsNotExist(err) {
		return nil, blob.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fs blob store: failed to open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("fs blob store: failed to stat %s: %w", name, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, blob.ErrBlobNotFound
	}
	return f, nil
}

func (s *FSBlobStore) Stat(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	full, err := s.resolve(name)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		return 0, blob.ErrBlobNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("fs blob store: failed to stat %s: %w", name, err)
	}
	if info.IsDir() {
		return 0, blob.ErrBlobNotFound
	}
	return info.Size(), nil
}

func (s *FSBlobStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.Stat(ctx, name)
	if errors.Is(err, blob.ErrBlobNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *FSBlobStore) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(name)
	if err != nil {
		return err
	}
	err = os.Remove(full)
	if os.IsNotExist(err) {
		return blob.ErrBlobNotFound
	}
	if err != nil {
		return fmt.Errorf("fs blob store: failed to remove %s: %w", name, err)
	}
	return nil
}
