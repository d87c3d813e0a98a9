package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/marquee/apiserver/config"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// Open builds the backend selected by cfg and makes sure its bucket exists.
// It returns nil, nil when object storage is disabled.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "", config.BackendNone:
		return nil, nil
	case config.BackendMinio:
		backend, err = NewMinioClient(cfg.Minio)
	case config.BackendGCS:
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s storage: %w", cfg.Backend, err)
	}

	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %q: %w", backend.Bucket(), err)
	}
	return NewStorage(backend), nil
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object to the configured bucket.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Get opens a reader for an object in the configured bucket.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

var posterExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// PosterKey returns the object key for a movie poster of the given content
// type. ok is false for content types that are not accepted as posters.
func PosterKey(movieID int, contentType string) (key string, ok bool) {
	mediaType, _, _ := strings.Cut(contentType, ";")
	ext, ok := posterExtensions[strings.ToLower(strings.TrimSpace(mediaType))]
	if !ok {
		return "", false
	}
	return path.Join("posters", fmt.Sprintf("%d", movieID), "poster"+ext), true
}
