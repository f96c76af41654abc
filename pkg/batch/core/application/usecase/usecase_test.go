package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/csvload/pkg/batch/core/application/usecase"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/job"
	"github.com/tigerroll/csvload/pkg/batch/core/support/incrementer"
	"github.com/tigerroll/csvload/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/csvload/pkg/batch/test"
)

// flakyStep fails while fail is set.
type flakyStep struct {
	name string
	fail bool
	runs int
	// onRun, when set, is called with the execution's context.
	onRun func(ctx context.Context, je *model.JobExecution)
}

func (s *flakyStep) StepName() string { return s.name }

func (s *flakyStep) Execute(ctx context.Context, je *model.JobExecution, se *model.StepExecution) error {
	s.runs++
	if s.onRun != nil {
		s.onRun(ctx, je)
	}
	se.MarkAsStarted()
	if s.fail {
		err := errors.New("write failed")
		se.MarkAsFailed(err)
		return err
	}
	se.MarkAsCompleted()
	return nil
}

func newJob(t *testing.T, repo *inmemory.InMemoryJobRepository, load, report *flakyStep) *job.SimpleJob {
	t.Helper()
	j, err := job.NewSimpleJob("customerJob", repo, load, report)
	require.NoError(t, err)
	j.SetIncrementer(incrementer.NewRunIDIncrementer(""))
	return j
}

func TestSimpleJobLauncher_NewInstanceThenAlreadyComplete(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	launcher := usecase.NewSimpleJobLauncher(repo)
	j := newJob(t, repo, &flakyStep{name: "load"}, &flakyStep{name: "report"})
	params := test.NewTestJobParameters(map[string]interface{}{"input": "customers.csv"})

	je, err := launcher.Run(ctx, j, params)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	assert.Equal(t, int64(1), je.RunID)
	assert.Zero(t, je.RestartCount)

	_, err = launcher.Run(ctx, j, params)
	assert.ErrorIs(t, err, usecase.ErrJobInstanceAlreadyComplete)
}

func TestSimpleJobLauncher_RestartsFailedExecution(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	launcher := usecase.NewSimpleJobLauncher(repo)
	load, report := &flakyStep{name: "load"}, &flakyStep{name: "report", fail: true}
	j := newJob(t, repo, load, report)
	params := model.NewJobParameters()

	first, err := launcher.Run(ctx, j, params)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusFailed, first.Status)
	assert.NotEmpty(t, first.Failures)

	report.fail = false
	second, err := launcher.Run(ctx, j, params)
	require.NoError(t, err)

	assert.Equal(t, model.BatchStatusCompleted, second.Status)
	assert.Equal(t, first.JobInstanceID, second.JobInstanceID)
	assert.Greater(t, second.RunID, first.RunID, "run ids are never reused")
	assert.Equal(t, 1, second.RestartCount)
	assert.Equal(t, 1, load.runs, "completed step is not run again")
	assert.Equal(t, 2, report.runs)

	stored, err := repo.FindLatestJobExecution(ctx, second.JobInstanceID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, stored.ID)
	require.NotNil(t, stored.StepExecution("load"))
	assert.Equal(t, model.BatchStatusCompleted, stored.StepExecution("load").Status)
}

func TestSimpleJobLauncher_RefusesRunningExecution(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	launcher := usecase.NewSimpleJobLauncher(repo)
	params := model.NewJobParameters()

	inst, err := model.NewJobInstance("customerJob", params)
	require.NoError(t, err)
	require.NoError(t, repo.SaveJobInstance(ctx, inst))
	running := model.NewJobExecution(inst, 1)
	running.MarkAsStarted()
	require.NoError(t, repo.SaveJobExecution(ctx, running))

	load := &flakyStep{name: "load"}
	_, err = launcher.Run(ctx, newJob(t, repo, load, &flakyStep{name: "report"}), params)
	assert.ErrorIs(t, err, usecase.ErrJobExecutionAlreadyRunning)
	assert.Zero(t, load.runs)
}

func TestDefaultJobOperator_StartNextInstance(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	launcher := usecase.NewSimpleJobLauncher(repo)
	operator := usecase.NewDefaultJobOperator(repo, launcher)
	j := newJob(t, repo, &flakyStep{name: "load"}, &flakyStep{name: "report"})

	first, err := operator.StartNextInstance(ctx, j)
	require.NoError(t, err)
	second, err := operator.StartNextInstance(ctx, j)
	require.NoError(t, err)

	assert.NotEqual(t, first.JobInstanceID, second.JobInstanceID)
	id, _ := second.Parameters.GetInt64("run.id")
	assert.Equal(t, int64(2), id)
	assert.Equal(t, model.BatchStatusCompleted, second.Status)
}

func TestDefaultJobOperator_RestartRecoversOrphanedExecution(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	launcher := usecase.NewSimpleJobLauncher(repo)
	operator := usecase.NewDefaultJobOperator(repo, launcher)
	j := newJob(t, repo, &flakyStep{name: "load"}, &flakyStep{name: "report"})

	// A process died while running this execution.
	inst, err := model.NewJobInstance("customerJob", model.NewJobParameters())
	require.NoError(t, err)
	require.NoError(t, repo.SaveJobInstance(ctx, inst))
	orphan := model.NewJobExecution(inst, 7)
	orphan.MarkAsStarted()
	require.NoError(t, repo.SaveJobExecution(ctx, orphan))

	je, err := operator.Restart(ctx, j)
	require.NoError(t, err)

	assert.Equal(t, inst.ID, je.JobInstanceID)
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	assert.Greater(t, je.RunID, int64(7))

	stored, err := repo.FindJobExecutionByID(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStopped, stored.Status)
}

func TestDefaultJobOperator_StopCancelsRunningExecution(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	launcher := usecase.NewSimpleJobLauncher(repo)
	operator := usecase.NewDefaultJobOperator(repo, launcher)

	var stopErr error
	load := &flakyStep{name: "load"}
	load.onRun = func(ctx context.Context, je *model.JobExecution) {
		stopErr = operator.Stop(ctx, je.ID)
		<-ctx.Done()
	}
	report := &flakyStep{name: "report"}
	j := newJob(t, repo, load, report)

	je, err := launcher.Run(ctx, j, model.NewJobParameters())
	require.NoError(t, err)
	require.NoError(t, stopErr)

	// load completes its work; the job stops before report.
	assert.Equal(t, model.BatchStatusStopped, je.Status)
	assert.Zero(t, report.runs)

	assert.Error(t, operator.Stop(ctx, je.ID), "finished executions cannot be stopped")
}

func TestDefaultJobOperator_Abandon(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	launcher := usecase.NewSimpleJobLauncher(repo)
	operator := usecase.NewDefaultJobOperator(repo, launcher)
	load := &flakyStep{name: "load", fail: true}
	j := newJob(t, repo, load, &flakyStep{name: "report"})

	failed, err := launcher.Run(ctx, j, model.NewJobParameters())
	require.NoError(t, err)
	require.NoError(t, operator.Abandon(ctx, failed.ID))

	_, err = launcher.Run(ctx, j, model.NewJobParameters())
	assert.ErrorIs(t, err, usecase.ErrJobInstanceAbandoned)
}
