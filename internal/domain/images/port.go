package images

import (
	"context"
	"time"
)

// ObjectStore port (interface untuk penyimpanan object / presigned URL)
type ObjectStore interface {
	Bucket() string
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// Delete accepts any locator understood by ParseLocator.
	Delete(ctx context.Context, locator string) error
}
