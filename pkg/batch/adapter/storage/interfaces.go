// Package storage defines where input streams come from: local files, embedded
// file systems and object stores reached through a StorageConnection.
package storage

import (
	"context"
	"io"
)

// Resource is a re-openable input stream. Every Open starts from the beginning.
type Resource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// String describes the resource in logs and errors.
	String() string
}

// StorageConnection is a named connection to an object store.
type StorageConnection interface {
	Name() string
	// Type returns the store type, e.g. "gcs".
	Type() string
	// Download opens bucket/objectName for reading. The caller closes the reader.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	Close() error
}
