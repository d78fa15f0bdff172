// Package storage persists run artifacts such as balancing reports.
// It defines the Storage interface and implementations for local disk and
// local disk mirrored to S3.
package storage

import (
	"context"
	"io"
)

// Storage defines where run artifacts are written.
type Storage interface {
	// Save writes data to a file called name and returns its path.
	// An existing file with the same name is replaced atomically.
	Save(ctx context.Context, name string, data io.Reader) (path string, err error)

	// Load opens a previously saved artifact.
	// The caller is responsible for closing the returned ReadCloser.
	Load(ctx context.Context, path string) (io.ReadCloser, error)

	// UploadToS3 uploads data to S3 and returns the object URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
