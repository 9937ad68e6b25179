package domain

import (
	"context"
	"io"
)

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	// PutMultipart splits the payload into parts of partSize bytes and
	// uploads them concurrently. Implementations clamp partSize to their
	// backend's minimum.
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}
