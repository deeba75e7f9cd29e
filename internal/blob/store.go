// Package blob stores opaque documents by key, on local disk or in an
// S3-compatible bucket.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned by GetObject when the key does not exist.
var ErrNotFound = errors.New("blob not found")

// Store is the minimal key/value surface the progress cache needs.
type Store interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) (int64, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
	DeleteObject(ctx context.Context, key string) error
}
