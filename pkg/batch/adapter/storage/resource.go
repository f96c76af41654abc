package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strings"
)

type fileResource struct {
	path string
}

// FileResource reads a file from the local file system.
func FileResource(path string) Resource {
	return fileResource{path: path}
}

func (r fileResource) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file '%s': %w", r.path, err)
	}
	return f, nil
}

func (r fileResource) String() string { return "file:" + r.path }

type fsResource struct {
	fsys fs.FS
	name string
}

// FSResource reads name from fsys, typically an embed.FS.
func FSResource(fsys fs.FS, name string) Resource {
	return fsResource{fsys: fsys, name: name}
}

func (r fsResource) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := r.fsys.Open(r.name)
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s': %w", r.name, err)
	}
	return f, nil
}

func (r fsResource) String() string { return "fs:" + r.name }

type objectResource struct {
	conn   StorageConnection
	bucket string
	object string
}

// ObjectResource reads bucket/object through conn.
func ObjectResource(conn StorageConnection, bucket, object string) Resource {
	return objectResource{conn: conn, bucket: bucket, object: object}
}

func (r objectResource) Open(ctx context.Context) (io.ReadCloser, error) {
	rc, err := r.conn.Download(ctx, r.bucket, r.object)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", r, err)
	}
	return rc, nil
}

func (r objectResource) String() string {
	return fmt.Sprintf("%s://%s/%s", schemeOf(r.conn.Type()), r.bucket, r.object)
}

func schemeOf(storageType string) string {
	if storageType == "gcs" {
		return "gs"
	}
	return storageType
}

// ParseObjectURI splits "gs://bucket/path/to/object" into its bucket and object name.
func ParseObjectURI(uri string) (scheme, bucket, object string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", "", fmt.Errorf("invalid object location %q: %w", uri, err)
	}
	object = strings.TrimPrefix(u.Path, "/")
	if u.Scheme == "" || u.Host == "" || object == "" {
		return "", "", "", fmt.Errorf("object location %q must look like scheme://bucket/object", uri)
	}
	return u.Scheme, u.Host, object, nil
}

// ResolveResource maps a location to a Resource. Plain paths and file:// URLs are
// local files; other schemes need a connection of the matching type in conns
// ("gs" needs a "gcs" connection).
func ResolveResource(location string, conns ...StorageConnection) (Resource, error) {
	if location == "" {
		return nil, fmt.Errorf("input location is empty")
	}
	if strings.HasPrefix(location, "file://") {
		return FileResource(strings.TrimPrefix(location, "file://")), nil
	}
	if !strings.Contains(location, "://") {
		return FileResource(location), nil
	}

	scheme, bucket, object, err := ParseObjectURI(location)
	if err != nil {
		return nil, err
	}
	for _, c := range conns {
		if c != nil && schemeOf(c.Type()) == scheme {
			return ObjectResource(c, bucket, object), nil
		}
	}
	return nil, fmt.Errorf("no storage connection configured for %s:// locations", scheme)
}
