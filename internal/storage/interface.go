package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStorage is the blob store holding uploaded videos and thumbnails.
type ObjectStorage interface {
	// Upload stores size bytes from reader under key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// GetURL returns the canonical, unsigned URL of key.
	GetURL(key string) string
	// PresignGetURL returns a read URL for key that expires after ttl.
	PresignGetURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// EnsureBucket creates the bucket when the provider allows it.
	EnsureBucket(ctx context.Context) error
}
