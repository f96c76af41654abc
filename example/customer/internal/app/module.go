package app

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"go.uber.org/fx"

	customerjob "github.com/tigerroll/csvload/example/customer/internal/job"
	"github.com/tigerroll/csvload/example/customer/internal/resources"
	"github.com/tigerroll/csvload/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/csvload/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/csvload/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/csvload/pkg/batch/adapter/storage"
	storageconfig "github.com/tigerroll/csvload/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/csvload/pkg/batch/adapter/storage/gcs"
	"github.com/tigerroll/csvload/pkg/batch/core/application/usecase"
	"github.com/tigerroll/csvload/pkg/batch/core/config"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/repository"
	"github.com/tigerroll/csvload/pkg/batch/core/job"
	"github.com/tigerroll/csvload/pkg/batch/core/metrics"
	"github.com/tigerroll/csvload/pkg/batch/infrastructure/repository/inmemory"
	sqlrepo "github.com/tigerroll/csvload/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// InputStorageName is the surfin.adapter.storage entry used for gs:// inputs.
const InputStorageName = "input"

// NewDBProvider opens the configured database connections on demand and
// closes them when the application stops.
func NewDBProvider(lc fx.Lifecycle, cfg *config.Config) database.DBProvider {
	p := gormadapter.NewProvider(cfg)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return p.CloseAll()
		},
	})
	return p
}

type metadataConnection struct {
	fx.Out
	Conn database.DBConnection `name:"metadataDB"`
}

// NewMetadataConnection opens the job repository connection. With the
// in-memory repository there is none.
func NewMetadataConnection(cfg *config.Config, p database.DBProvider) (metadataConnection, error) {
	infra := cfg.Surfin.Infrastructure
	if infra.JobRepositoryType != "sql" {
		return metadataConnection{}, nil
	}
	conn, err := p.GetConnection(infra.JobRepositoryDBRef)
	if err != nil {
		return metadataConnection{}, fmt.Errorf("job repository connection '%s': %w", infra.JobRepositoryDBRef, err)
	}
	return metadataConnection{Conn: conn}, nil
}

type jobRepositoryParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Metadata  database.DBConnection `name:"metadataDB" optional:"true"`
}

// NewJobRepository returns the SQL repository over the metadata connection,
// or an in-memory one when there is no metadata connection.
func NewJobRepository(p jobRepositoryParams) repository.JobRepository {
	var repo repository.JobRepository
	if p.Metadata == nil {
		logger.Warnf("Using the in-memory job repository: checkpoints do not survive this process.")
		repo = inmemory.NewInMemoryJobRepository()
	} else {
		repo = sqlrepo.NewSQLJobRepository(p.Metadata)
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return repo.Close()
		},
	})
	return repo
}

// NewInputResource resolves surfin.batch.input. An empty input reads the
// embedded sample file; gs:// locations go through the "input" storage adapter.
func NewInputResource(lc fx.Lifecycle, cfg *config.Config) (storage.Resource, error) {
	location := cfg.Surfin.Batch.Input
	if location == "" {
		logger.Infof("No input configured; reading the embedded %s.", resources.SampleInputName)
		return storage.FSResource(resources.SampleInput(), resources.SampleInputName), nil
	}
	if !strings.HasPrefix(location, "gs://") {
		return storage.ResolveResource(location)
	}

	storageCfg, err := storageconfig.DecodeStorageConfig(cfg.Surfin.Adapter.Storage[InputStorageName])
	if err != nil {
		return nil, fmt.Errorf("failed to decode storage config '%s': %w", InputStorageName, err)
	}
	adapter, err := gcs.NewAdapter(context.Background(), storageCfg, InputStorageName)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return adapter.Close()
		},
	})
	return storage.ResolveResource(location, adapter)
}

type jobParams struct {
	fx.In
	Config         *config.Config
	Provider       database.DBProvider
	Repository     repository.JobRepository
	Input          storage.Resource
	Metadata       database.DBConnection `name:"metadataDB" optional:"true"`
	MetricRecorder metrics.MetricRecorder
	Tracer         metrics.Tracer
}

// NewJob builds the customer job over the configured datasource.
func NewJob(p jobParams) (*job.SimpleJob, error) {
	batch := p.Config.Surfin.Batch
	workload, err := p.Provider.GetConnection(batch.Datasource)
	if err != nil {
		return nil, fmt.Errorf("datasource '%s': %w", batch.Datasource, err)
	}
	var migrations fs.FS
	if p.Config.Surfin.Infrastructure.MigrateOnStart {
		migrations = resources.Migrations()
	}
	sharedStore := p.Metadata != nil && sameDatabase(p.Metadata.Config(), workload.Config())
	if p.Metadata != nil && !sharedStore {
		logger.Warnf("Job metadata and datasource '%s' are in different databases: checkpoints are saved after each commit.", batch.Datasource)
	}
	return customerjob.NewCustomerJob(customerjob.Dependencies{
		Batch:               batch,
		Input:               p.Input,
		Workload:            workload,
		Repository:          p.Repository,
		MigrationsFS:        migrations,
		CheckpointInChunkTx: sharedStore,
		MetricRecorder:      p.MetricRecorder,
		Tracer:              p.Tracer,
	})
}

// sameDatabase reports whether a and b address the same database.
func sameDatabase(a, b dbconfig.DatabaseConfig) bool {
	return a.Type == b.Type && a.Host == b.Host && a.Port == b.Port &&
		a.Database == b.Database && a.Schema == b.Schema
}

// Module provides the connections, the job repository, the input, the job
// and the launcher and operator running it.
var Module = fx.Options(
	fx.Provide(NewDBProvider),
	fx.Provide(NewMetadataConnection),
	fx.Provide(NewJobRepository),
	fx.Provide(NewInputResource),
	fx.Provide(NewJob),
	fx.Provide(usecase.NewSimpleJobLauncher),
	fx.Provide(usecase.NewDefaultJobOperator),
)
