package sql_test

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/csvload/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/csvload/pkg/batch/adapter/database/gorm"
	_ "github.com/tigerroll/csvload/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/csvload/pkg/batch/component/tasklet/migration"
	"github.com/tigerroll/csvload/pkg/batch/component/tasklet/migration/filesystem"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/repository"
	"github.com/tigerroll/csvload/pkg/batch/core/tx"
	sqlrepo "github.com/tigerroll/csvload/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
	"github.com/tigerroll/csvload/pkg/batch/test"
)

func newSQLiteRepository(t *testing.T) *sqlrepo.SQLJobRepository {
	t.Helper()
	conn, err := gormadapter.Open("metadata", dbconfig.DatabaseConfig{
		Type:     "sqlite",
		Database: filepath.Join(t.TempDir(), "batch.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	fsys, err := filesystem.ProvideFrameworkMigrationsFS()
	require.NoError(t, err)
	require.NoError(t, migration.NewMigrator(conn).Up(context.Background(), fsys, "sqlite", migration.FrameworkMigrationsTable))
	return sqlrepo.NewSQLJobRepository(conn)
}

func saveExecution(t *testing.T, repo *sqlrepo.SQLJobRepository, params model.JobParameters) (*model.JobInstance, *model.JobExecution) {
	t.Helper()
	ctx := context.Background()
	inst, err := model.NewJobInstance("customerJob", params)
	require.NoError(t, err)
	require.NoError(t, repo.SaveJobInstance(ctx, inst))

	runID, err := repo.NextRunID(ctx)
	require.NoError(t, err)
	je := model.NewJobExecution(inst, runID)
	require.NoError(t, repo.SaveJobExecution(ctx, je))
	return inst, je
}

func TestSQLJobRepository_JobInstance(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)
	params := test.NewTestJobParameters(map[string]interface{}{"input": "customers.csv", "run.id": 1})
	inst, _ := saveExecution(t, repo, params)

	byID, err := repo.FindJobInstanceByID(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, inst.ParametersHash, byID.ParametersHash)
	runID, ok := byID.Parameters.GetInt64("run.id")
	assert.True(t, ok)
	assert.Equal(t, int64(1), runID)

	byParams, err := repo.FindJobInstanceByJobNameAndParameters(ctx, "customerJob", params.Copy())
	require.NoError(t, err)
	assert.Equal(t, inst.ID, byParams.ID)

	latest, err := repo.FindLatestJobInstance(ctx, "customerJob")
	require.NoError(t, err)
	assert.Equal(t, inst.ID, latest.ID)

	_, err = repo.FindJobInstanceByJobNameAndParameters(ctx, "customerJob", model.NewJobParameters())
	assert.ErrorIs(t, err, repository.ErrJobInstanceNotFound)

	// (job_name, parameters_hash) is unique.
	dup, err := model.NewJobInstance("customerJob", params)
	require.NoError(t, err)
	assert.Error(t, repo.SaveJobInstance(ctx, dup))
}

func TestSQLJobRepository_NextRunIDIsMonotonic(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)

	var last int64
	for i := 0; i < 5; i++ {
		id, err := repo.NextRunID(ctx)
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
}

func TestSQLJobRepository_JobExecutionLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)
	inst, je := saveExecution(t, repo, model.NewJobParameters())

	se := model.NewStepExecution(je, "loadCustomers")
	require.NoError(t, repo.SaveStepExecution(ctx, se))

	je.MarkAsStarted()
	require.NoError(t, repo.UpdateJobExecution(ctx, je))
	assert.Equal(t, 1, je.Version)

	se.MarkAsStarted()
	se.ReadCount, se.WriteCount, se.CommitCount, se.Offset = 7, 7, 3, 7
	se.MarkAsFailed(errors.New("write failed"))
	require.NoError(t, repo.UpdateStepExecution(ctx, se))

	je.MarkAsFailed(errors.New("step loadCustomers failed"))
	require.NoError(t, repo.UpdateJobExecution(ctx, je))

	found, err := repo.FindJobExecutionByID(ctx, je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusFailed, found.Status)
	assert.Equal(t, model.ExitStatusFailed, found.ExitStatus)
	assert.Equal(t, []string{"step loadCustomers failed"}, found.Failures)
	require.NotNil(t, found.EndTime)
	require.Len(t, found.StepExecutions, 1)

	foundStep := found.StepExecution("loadCustomers")
	require.NotNil(t, foundStep)
	assert.Same(t, found, foundStep.JobExecution)
	assert.Equal(t, 7, foundStep.Offset)
	assert.Equal(t, 3, foundStep.CommitCount)
	assert.Equal(t, []string{"write failed"}, foundStep.Failures)

	// A restart gets a higher run id and becomes the latest execution.
	runID, err := repo.NextRunID(ctx)
	require.NoError(t, err)
	restarted := model.NewJobExecution(inst, runID)
	restarted.RestartCount = 1
	require.NoError(t, repo.SaveJobExecution(ctx, restarted))

	latest, err := repo.FindLatestJobExecution(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, restarted.ID, latest.ID)
	assert.Equal(t, 1, latest.RestartCount)
	assert.Empty(t, latest.StepExecutions)
}

func TestSQLJobRepository_OptimisticLocking(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)
	_, je := saveExecution(t, repo, model.NewJobParameters())

	stale, err := repo.FindJobExecutionByID(ctx, je.ID)
	require.NoError(t, err)

	je.MarkAsStarted()
	require.NoError(t, repo.UpdateJobExecution(ctx, je))

	stale.MarkAsStarted()
	err = repo.UpdateJobExecution(ctx, stale)
	assert.True(t, exception.IsOptimisticLockingFailure(err))
	assert.Equal(t, 0, stale.Version)
}

func TestSQLJobRepository_Checkpoint(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)
	key := model.CheckpointKey("inst-1", "loadCustomers")

	_, err := repo.FindCheckpoint(ctx, key)
	assert.ErrorIs(t, err, repository.ErrCheckpointDataNotFound)

	require.NoError(t, repo.SaveCheckpoint(ctx, &model.CheckpointData{
		StepKey: key, JobInstanceID: "inst-1", StepName: "loadCustomers",
		Offset: 3, ChunksCommitted: 1, ChunkSize: 3, ReadCount: 3, WriteCount: 3,
	}))
	require.NoError(t, repo.SaveCheckpoint(ctx, &model.CheckpointData{
		StepKey: key, JobInstanceID: "inst-1", StepName: "loadCustomers",
		Offset: 6, ChunksCommitted: 2, ChunkSize: 3, ReadCount: 6, WriteCount: 5, FilterCount: 1,
	}))

	cp, err := repo.FindCheckpoint(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 6, cp.Offset)
	assert.Equal(t, 2, cp.ChunksCommitted)
	assert.Equal(t, 1, cp.FilterCount)
	assert.False(t, cp.LastUpdated.IsZero())

	offset, err := repository.LoadOffset(ctx, repo, key)
	require.NoError(t, err)
	assert.Equal(t, 6, offset)
}

func TestSQLJobRepository_MissingTablesMeanNotFound(t *testing.T) {
	conn, err := gormadapter.Open("metadata", dbconfig.DatabaseConfig{
		Type:     "sqlite",
		Database: filepath.Join(t.TempDir(), "empty.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	repo := sqlrepo.NewSQLJobRepository(conn)

	_, err = repo.FindLatestJobInstance(context.Background(), "customerJob")
	assert.ErrorIs(t, err, repository.ErrJobInstanceNotFound)
	_, err = repo.FindCheckpoint(context.Background(), "x/y")
	assert.ErrorIs(t, err, repository.ErrCheckpointDataNotFound)
}

func TestSQLJobRepository_QueryErrorIsWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(gdb, dbconfig.DatabaseConfig{Type: "mysql"}, "metadata")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `batch_step_execution`")).
		WillReturnError(errors.New("connection reset"))

	_, err = sqlrepo.NewSQLJobRepository(conn).FindStepExecutionByID(context.Background(), "se-1")
	require.Error(t, err)
	assert.True(t, exception.IsBatchError(err))
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLJobRepository_UsesTransactionFromContext(t *testing.T) {
	conn := test.NewMockDBConnection("metadata", "mysql")
	mockTx := new(test.MockTx)
	mockTx.On("ExecuteUpdate", mock.Anything, mock.AnythingOfType("*sql.JobSeqEntity"), "CREATE", "batch_job_seq", mock.Anything).
		Run(func(args mock.Arguments) { args.Get(1).(*sqlrepo.JobSeqEntity).ID = 42 }).
		Return(int64(1), nil).Once()

	repo := sqlrepo.NewSQLJobRepository(conn)
	id, err := repo.NextRunID(tx.ContextWithTx(context.Background(), mockTx))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	mockTx.AssertExpectations(t)
	conn.AssertNotCalled(t, "ExecuteUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSQLJobRepository_CheckpointQueryFailure(t *testing.T) {
	conn := test.NewMockDBConnection("metadata", "postgres")
	boom := errors.New("connection reset")
	conn.On("ExecuteQueryAdvanced", mock.Anything, mock.Anything, mock.Anything, mock.Anything, 1).Return(boom).Once()
	conn.On("IsTableNotExistError", boom).Return(false).Once()

	_, err := sqlrepo.NewSQLJobRepository(conn).FindCheckpoint(context.Background(), "inst:step1")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, repository.ErrCheckpointDataNotFound)
	conn.AssertExpectations(t)
}
