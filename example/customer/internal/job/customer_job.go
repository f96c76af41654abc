// Package job assembles the customer load job.
package job

import (
	"io/fs"

	"github.com/tigerroll/csvload/example/customer/internal/domain/entity"
	"github.com/tigerroll/csvload/example/customer/internal/step/processor"
	"github.com/tigerroll/csvload/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/csvload/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/csvload/pkg/batch/adapter/storage"
	"github.com/tigerroll/csvload/pkg/batch/component/step/reader"
	"github.com/tigerroll/csvload/pkg/batch/component/step/writer"
	"github.com/tigerroll/csvload/pkg/batch/component/tasklet/migration"
	"github.com/tigerroll/csvload/pkg/batch/core/application/port"
	"github.com/tigerroll/csvload/pkg/batch/core/config"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/repository"
	"github.com/tigerroll/csvload/pkg/batch/core/job"
	"github.com/tigerroll/csvload/pkg/batch/core/metrics"
	"github.com/tigerroll/csvload/pkg/batch/core/support/incrementer"
	"github.com/tigerroll/csvload/pkg/batch/core/tx"
	"github.com/tigerroll/csvload/pkg/batch/engine/step/item"
	"github.com/tigerroll/csvload/pkg/batch/engine/step/tasklet"
	"github.com/tigerroll/csvload/pkg/batch/listener/logging"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
)

const (
	// JobName is the default name of the customer job.
	JobName = "customer"
	// LoadStepName is the chunk step loading the input file.
	LoadStepName = "step1"
	// MigrateStepName is the tasklet step creating CUSTOMER_INFO.
	MigrateStepName = "migrateCustomerInfo"
)

// Dependencies holds what NewCustomerJob wires together.
type Dependencies struct {
	Batch      config.BatchConfig
	Input      storage.Resource
	Workload   database.DBConnection
	Repository repository.JobRepository

	// MigrationsFS, when set, adds a first step applying the application
	// migrations found under the directory named after the workload database type.
	MigrationsFS fs.FS

	// CheckpointInChunkTx saves the load step's checkpoint in each chunk
	// transaction. Repository must keep its checkpoints in the Workload database.
	CheckpointInChunkTx bool

	// Optional. Default to no-ops.
	MetricRecorder metrics.MetricRecorder
	Tracer         metrics.Tracer
}

// NewCustomerJob builds the customer job: an optional migration step followed
// by the chunk step reading customers from Input and inserting them into the
// target table of Workload.
func NewCustomerJob(deps Dependencies) (*job.SimpleJob, error) {
	b := deps.Batch
	if deps.Input == nil || deps.Workload == nil || deps.Repository == nil {
		return nil, exception.NewBatchErrorf(JobName, "input, workload connection and job repository are required")
	}

	delimiter, err := b.DelimiterRune()
	if err != nil {
		return nil, exception.NewBatchError(JobName, "invalid delimiter", err)
	}
	fieldNames := b.FieldNames
	if len(fieldNames) == 0 {
		fieldNames = config.DefaultFieldNames
	}
	table := b.TargetTable
	if table == "" {
		table = entity.TableName
	}

	r, err := reader.NewFlatFileReader("customerReader", deps.Input, reader.Options{
		FieldNames:  fieldNames,
		Delimiter:   delimiter,
		Strict:      b.Strict,
		LinesToSkip: b.LinesToSkip,
	})
	if err != nil {
		return nil, err
	}
	w, err := writer.NewNamedSQLWriter[entity.Customer]("customerWriter", table, entity.Attributes, entity.Parameters)
	if err != nil {
		return nil, err
	}

	var txManager tx.TransactionManager
	if txManager, err = gormadapter.NewTransactionManager(deps.Workload); err != nil {
		return nil, err
	}
	if b.ExclusiveCommit {
		txManager = tx.NewSerializedTransactionManager(txManager)
	}

	load, err := item.NewChunkStep[reader.RawRecord, entity.Customer](
		LoadStepName, r, entity.NewMapper(), processor.NewCustomerProcessor(), w,
		b.ChunkSize, txManager, deps.Repository,
	)
	if err != nil {
		return nil, err
	}
	load.SetCheckpointInTransaction(deps.CheckpointInChunkTx)
	load.SetMetricRecorder(deps.MetricRecorder)
	load.SetTracer(deps.Tracer)
	load.RegisterStepExecutionListener(logging.NewLoggingStepListener())
	load.RegisterChunkListener(logging.NewLoggingChunkListener())

	var steps []port.Step
	if deps.MigrationsFS != nil {
		t, err := migration.NewMigrationTasklet(deps.Workload, nil, deps.MigrationsFS, map[string]string{"command": "up"})
		if err != nil {
			return nil, err
		}
		migrate := tasklet.NewTaskletStep(MigrateStepName, t, deps.Repository)
		migrate.SetMetricRecorder(deps.MetricRecorder)
		migrate.SetTracer(deps.Tracer)
		migrate.RegisterStepExecutionListener(logging.NewLoggingStepListener())
		steps = append(steps, migrate)
	}
	steps = append(steps, load)

	name := b.JobName
	if name == "" {
		name = JobName
	}
	j, err := job.NewSimpleJob(name, deps.Repository, steps...)
	if err != nil {
		return nil, err
	}
	j.SetIncrementer(incrementer.NewRunIDIncrementer(""))
	j.SetMetricRecorder(deps.MetricRecorder)
	j.SetTracer(deps.Tracer)
	j.RegisterJobExecutionListener(logging.NewLoggingJobListener())
	return j, nil
}
