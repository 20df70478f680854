// Package storage moves index snapshots between the local disk and an object
// store.
package storage

import (
	"context"
	"errors"
)

var (
	ErrObjectNotFound = errors.New("snapshot object not found")
	ErrUploadFailed   = errors.New("snapshot upload failed")
	ErrDownloadFailed = errors.New("snapshot download failed")
)

// ObjectStorage publishes and fetches snapshot files.
type ObjectStorage interface {
	// Upload copies the file at localPath to objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download copies objectPath to localPath. It returns ErrObjectNotFound
	// when the object does not exist.
	Download(ctx context.Context, objectPath, localPath string) error

	// Exists reports whether objectPath has been published.
	Exists(ctx context.Context, objectPath string) (bool, error)
}
