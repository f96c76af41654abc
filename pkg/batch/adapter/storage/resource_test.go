package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	objects map[string]string
}

func (f fakeConn) Name() string { return "fake" }
func (f fakeConn) Type() string { return "gcs" }
func (f fakeConn) Close() error { return nil }
func (f fakeConn) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	body, ok := f.objects[bucket+"/"+objectName]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func readAll(t *testing.T, r Resource) string {
	t.Helper()
	rc, err := r.Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestResolveResource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("local"), 0o644))
	conn := fakeConn{objects: map[string]string{"b/dir/in.csv": "remote"}}

	r, err := ResolveResource(path, conn)
	require.NoError(t, err)
	assert.Equal(t, "local", readAll(t, r))

	r, err = ResolveResource("file://"+path, conn)
	require.NoError(t, err)
	assert.Equal(t, "local", readAll(t, r))

	r, err = ResolveResource("gs://b/dir/in.csv", conn)
	require.NoError(t, err)
	assert.Equal(t, "remote", readAll(t, r))
	assert.Equal(t, "gs://b/dir/in.csv", r.String())

	_, err = ResolveResource("gs://b/dir/in.csv")
	assert.Error(t, err)
	_, err = ResolveResource("")
	assert.Error(t, err)

	missing, err := ResolveResource("gs://b/other.csv", conn)
	require.NoError(t, err)
	_, err = missing.Open(context.Background())
	assert.Error(t, err)
}

func TestFSResource(t *testing.T) {
	fsys := fstest.MapFS{"data/in.csv": {Data: []byte("embedded")}}
	assert.Equal(t, "embedded", readAll(t, FSResource(fsys, "data/in.csv")))
	_, err := FSResource(fsys, "nope").Open(context.Background())
	assert.Error(t, err)
}
