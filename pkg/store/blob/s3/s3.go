// Package s3 implements the blob store on Amazon S3 or S3-compatible storage
// (MinIO, Cubbit DS3, ...).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/sharegate/pkg/store/blob"
)

// S3BlobStore implements blob.BlobStore on an S3 bucket.
//
// Key Design:
//   - The blob name is used directly as the object key (with optional prefix),
//     so the bucket mirrors the served directory and stays human-inspectable.
//
// Thread Safety:
// Safe for concurrent use. The duplicate-suffix probe in Create is a
// HeadObject check, not an atomic reservation, so two simultaneous uploads of
// the same name racing from different processes may land on the same key with
// last-write-wins semantics. Within one process, concurrent uploads go through
// the decoder one request at a time per file so the probe is sufficient.
type S3BlobStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// S3BlobStoreConfig contains configuration for the S3 blob store.
type S3BlobStoreConfig struct {
	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket is the S3 bucket name. Must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys.
	// Example: "sharegate/" results in keys like "sharegate/report.pdf".
	KeyPrefix string
}

// NewS3BlobStore creates a new S3-backed blob store.
//
// The bucket must already exist - this function verifies access with a
// HeadBucket call but does not create it.
func NewS3BlobStore(ctx context.Context, cfg S3BlobStoreConfig) (*S3BlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3BlobStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// getObjectKey returns the full S3 object key for a blob name.
func (s *S3BlobStore) getObjectKey(name string) string {
	if s.keyPrefix != "" {
		return s.keyPrefix + name
	}
	return name
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

// Create returns a writer that buffers the blob in memory and uploads it with
// PutObject on Close. The final name may carry a numeric suffix when the
// requested name is already taken.
func (s *S3BlobStore) Create(ctx context.Context, name string) (io.WriteCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if name == "" {
		return nil, "", blob.ErrInvalidName
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for counter := 1; ; counter++ {
		exists, err := s.Exists(ctx, candidate)
		if err != nil {
			return nil, "", err
		}
		if !exists {
			break
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, counter, ext)
	}

	return &s3Writer{
		store:  s,
		ctx:    ctx,
		name:   candidate,
		buffer: &bytes.Buffer{},
	}, candidate, nil
}

// s3Writer implements io.WriteCloser for streaming writes to S3.
type s3Writer struct {
	store  *S3BlobStore
	ctx    context.Context
	name   string
	buffer *bytes.Buffer
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.buffer.Write(p)
}

func (w *s3Writer) Close() error {
	if err := w.ctx.Err(); err != nil {
		return err
	}

	key := w.store.getObjectKey(w.name)

	_, err := w.store.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.store.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(w.buffer.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("failed to write blob to S3: %w", err)
	}

	return nil
}

func (s *S3BlobStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := s.getObjectKey(name)

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, blob.ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	return result.Body, nil
}

func (s *S3BlobStore) Stat(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	key := s.getObjectKey(name)

	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, blob.ErrBlobNotFound
		}
		return 0, fmt.Errorf("failed to head object: %w", err)
	}

	if result.ContentLength == nil {
		return 0, fmt.Errorf("content length not available for %s", name)
	}

	return *result.ContentLength, nil
}

func (s *S3BlobStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	key := s.getObjectKey(name)

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}

	return true, nil
}

func (s *S3BlobStore) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return blob.ErrBlobNotFound
	}

	key := s.getObjectKey(name)

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}

	return nil
}
