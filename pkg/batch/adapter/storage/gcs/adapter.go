// Package gcs reads input objects from Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	storageAdapter "github.com/tigerroll/csvload/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/csvload/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// ProviderType is the storage type handled by this package.
const ProviderType = "gcs"

// Adapter implements storage.StorageConnection over a GCS client.
type Adapter struct {
	client *storage.Client
	name   string
}

var _ storageAdapter.StorageConnection = (*Adapter)(nil)

// NewAdapter creates a client from cfg. Without a credentials file the
// application default credentials are used.
func NewAdapter(ctx context.Context, cfg storageConfig.StorageConfig, name string, extra ...option.ClientOption) (*Adapter, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	opts = append(opts, extra...)

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs adapter '%s': failed to create client: %w", name, err)
	}
	return &Adapter{client: client, name: name}, nil
}

// NewAdapterWithClient wraps an existing client.
func NewAdapterWithClient(client *storage.Client, name string) *Adapter {
	return &Adapter{client: client, name: name}
}

func (a *Adapter) Name() string { return a.name }
func (a *Adapter) Type() string { return ProviderType }

// Download opens a streaming reader on the object.
func (a *Adapter) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	r, err := a.client.Bucket(bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, objectName, err)
	}
	logger.Debugf("Opened gs://%s/%s (%d bytes) via '%s'.", bucket, objectName, r.Attrs.Size, a.name)
	return r, nil
}

func (a *Adapter) Close() error {
	logger.Debugf("GCS storage adapter '%s' closed.", a.name)
	return a.client.Close()
}

// NewResource returns the Resource for a gs://bucket/object location.
func NewResource(a *Adapter, uri string) (storageAdapter.Resource, error) {
	scheme, bucket, object, err := storageAdapter.ParseObjectURI(uri)
	if err != nil {
		return nil, err
	}
	if scheme != "gs" {
		return nil, fmt.Errorf("not a gs:// location: %q", uri)
	}
	return storageAdapter.ObjectResource(a, bucket, object), nil
}
