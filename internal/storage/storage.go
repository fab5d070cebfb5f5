// Package storage defines the object store contract shared by the artifact
// sinks and the durable index tiers.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when an object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore reads and writes named blobs.
type ObjectStore interface {
	// PutObject writes data under path and returns a URI for it.
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	// GetObject returns the bytes stored under path or ErrObjectNotFound.
	GetObject(ctx context.Context, path string) ([]byte, error)
	// ListObjects returns the paths that start with prefix, sorted.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}
