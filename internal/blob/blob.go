// Package blob stores event photos in S3-compatible object storage and
// hands out time-limited read URLs for them.
package blob

import (
	"context"
	"time"
)

// Store is the object storage used for event photos.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// DeleteMany removes keys. Missing keys are not an error.
	DeleteMany(ctx context.Context, keys []string) error
	// Presign returns a URL granting read access to key for ttl.
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}
