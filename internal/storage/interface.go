package storage

import (
	"context"
	"io"
)

// ObjectStorage stores files uploaded as sources.
type ObjectStorage interface {
	// Upload stores an object under key
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// GetURL returns the URL the workflow engine fetches the object from
	GetURL(key string) string

	// Delete removes an object
	Delete(ctx context.Context, key string) error

	// EnsureBucket creates the bucket when the provider allows it
	EnsureBucket(ctx context.Context) error
}
