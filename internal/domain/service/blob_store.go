package service

import (
	"context"
)

// BlobStore persists opaque binary assets and hands back a retrievable URL.
type BlobStore interface {
	// Upload writes data under key and returns the URL clients fetch it from.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Delete removes the object stored under key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
}
