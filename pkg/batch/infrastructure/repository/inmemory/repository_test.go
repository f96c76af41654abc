package inmemory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/repository"
	"github.com/tigerroll/csvload/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
	"github.com/tigerroll/csvload/pkg/batch/test"
)

func TestInMemoryJobRepository_InstanceLookup(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	params := test.NewTestJobParameters(map[string]interface{}{"run.id": int64(1), "input": "a.csv"})
	inst, err := model.NewJobInstance("customerJob", params)
	require.NoError(t, err)
	require.NoError(t, repo.SaveJobInstance(ctx, inst))
	assert.Error(t, repo.SaveJobInstance(ctx, inst))

	same := test.NewTestJobParameters(map[string]interface{}{"input": "a.csv", "run.id": int64(1)})
	found, err := repo.FindJobInstanceByJobNameAndParameters(ctx, "customerJob", same)
	require.NoError(t, err)
	assert.Equal(t, inst.ID, found.ID)

	other := test.NewTestJobParameters(map[string]interface{}{"run.id": int64(2)})
	_, err = repo.FindJobInstanceByJobNameAndParameters(ctx, "customerJob", other)
	assert.ErrorIs(t, err, repository.ErrJobInstanceNotFound)

	latest, err := repo.FindLatestJobInstance(ctx, "customerJob")
	require.NoError(t, err)
	assert.Equal(t, inst.ID, latest.ID)
}

func TestInMemoryJobRepository_ExecutionsAndRunIDs(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	inst, err := model.NewJobInstance("customerJob", model.NewJobParameters())
	require.NoError(t, err)
	require.NoError(t, repo.SaveJobInstance(ctx, inst))

	var last int64
	for i := 0; i < 2; i++ {
		runID, err := repo.NextRunID(ctx)
		require.NoError(t, err)
		assert.Greater(t, runID, last)
		last = runID

		je := model.NewJobExecution(inst, runID)
		require.NoError(t, repo.SaveJobExecution(ctx, je))
		se := model.NewStepExecution(je, "loadCustomers")
		require.NoError(t, repo.SaveStepExecution(ctx, se))
	}

	latest, err := repo.FindLatestJobExecution(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, last, latest.RunID)
	require.Len(t, latest.StepExecutions, 1)
	assert.Same(t, latest, latest.StepExecutions[0].JobExecution)
}

func TestInMemoryJobRepository_UpdateJobExecutionDetectsStaleCopy(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	je := test.NewTestJobExecution(t, "customerJob", 1)
	require.NoError(t, repo.SaveJobExecution(ctx, je))

	stale, err := repo.FindJobExecutionByID(ctx, je.ID)
	require.NoError(t, err)

	je.MarkAsCompleted()
	require.NoError(t, repo.UpdateJobExecution(ctx, je))
	assert.Equal(t, 1, je.Version)

	stale.MarkAsFailed(assert.AnError)
	err = repo.UpdateJobExecution(ctx, stale)
	assert.True(t, exception.IsOptimisticLockingFailure(err))

	stored, err := repo.FindJobExecutionByID(ctx, je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, stored.Status)
}

func TestInMemoryJobRepository_StoresCopies(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	je := test.NewTestJobExecution(t, "customerJob", 1)
	se := test.NewTestStepExecution(je, "loadCustomers")
	require.NoError(t, repo.SaveStepExecution(ctx, se))

	se.ReadCount = 99
	stored, err := repo.FindStepExecutionByID(ctx, se.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.ReadCount)

	require.NoError(t, repo.UpdateStepExecution(ctx, se))
	stored, err = repo.FindStepExecutionByID(ctx, se.ID)
	require.NoError(t, err)
	assert.Equal(t, 99, stored.ReadCount)
}

func TestInMemoryJobRepository_Checkpoint(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	key := model.CheckpointKey("inst-1", "loadCustomers")

	offset, err := repository.LoadOffset(ctx, repo, key)
	require.NoError(t, err)
	assert.Zero(t, offset)

	require.NoError(t, repo.SaveCheckpoint(ctx, &model.CheckpointData{StepKey: key, Offset: 4, ChunksCommitted: 2, ChunkSize: 2}))
	require.NoError(t, repo.SaveCheckpoint(ctx, &model.CheckpointData{StepKey: key, Offset: 6, ChunksCommitted: 3, ChunkSize: 2}))

	offset, err = repository.LoadOffset(ctx, repo, key)
	require.NoError(t, err)
	assert.Equal(t, 6, offset)

	cp, err := repo.FindCheckpoint(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, cp.ChunksCommitted)
	assert.False(t, cp.LastUpdated.IsZero())
}
