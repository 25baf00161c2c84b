// Package storage defines the blob storage abstraction behind report
// artifacts. Implementations cover Google Cloud Storage, the local
// filesystem, and an in-memory store for development and tests.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound indicates the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Provider is the common interface for report artifact storage.
type Provider interface {
	// PutObject uploads the object and returns a backend URI for it.
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
	// GetObject returns the object's content.
	GetObject(ctx context.Context, path string) ([]byte, error)
}
