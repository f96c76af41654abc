package job_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/job"
	"github.com/tigerroll/csvload/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/csvload/pkg/batch/test"
)

// scriptedStep ends in a fixed status.
type scriptedStep struct {
	name   string
	status model.JobStatus
	err    error
	runs   int
}

func (s *scriptedStep) StepName() string { return s.name }

func (s *scriptedStep) Execute(_ context.Context, _ *model.JobExecution, se *model.StepExecution) error {
	s.runs++
	se.MarkAsStarted()
	switch s.status {
	case model.BatchStatusFailed:
		se.MarkAsFailed(s.err)
		return s.err
	case model.BatchStatusStopped:
		se.MarkAsStopped()
	default:
		se.MarkAsCompleted()
	}
	return nil
}

type recordingJobListener struct{ before, after int }

func (l *recordingJobListener) BeforeJob(context.Context, *model.JobExecution) { l.before++ }
func (l *recordingJobListener) AfterJob(context.Context, *model.JobExecution)  { l.after++ }

func newExecution(t *testing.T, repo *inmemory.InMemoryJobRepository) *model.JobExecution {
	t.Helper()
	inst, err := model.NewJobInstance("customerJob", model.NewJobParameters())
	require.NoError(t, err)
	je := model.NewJobExecution(inst, 1)
	require.NoError(t, repo.SaveJobExecution(context.Background(), je))
	return je
}

func TestNewSimpleJob_Validation(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()

	_, err := job.NewSimpleJob("", repo, &scriptedStep{name: "a"})
	assert.Error(t, err)
	_, err = job.NewSimpleJob("j", repo)
	assert.Error(t, err)
	_, err = job.NewSimpleJob("j", repo, &scriptedStep{name: "a"}, &scriptedStep{name: "a"})
	assert.ErrorContains(t, err, "twice")
}

func TestSimpleJob_RunsStepsInOrder(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	first, second := &scriptedStep{name: "first"}, &scriptedStep{name: "second"}
	j, err := job.NewSimpleJob("customerJob", repo, first, second)
	require.NoError(t, err)
	listener := &recordingJobListener{}
	j.RegisterJobExecutionListener(listener)

	je := newExecution(t, repo)
	require.NoError(t, j.Run(context.Background(), je))

	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	assert.Equal(t, model.ExitStatusCompleted, je.ExitStatus)
	require.Len(t, je.StepExecutions, 2)
	assert.Equal(t, "first", je.StepExecutions[0].StepName)
	assert.Equal(t, 1, listener.before)
	assert.Equal(t, 1, listener.after)

	stored, err := repo.FindJobExecutionByID(context.Background(), je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, stored.Status)
	assert.Len(t, stored.StepExecutions, 2)
}

func TestSimpleJob_FailedStepHaltsTheJob(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	cause := errors.New("chunk 3 rolled back")
	failing, never := &scriptedStep{name: "load", status: model.BatchStatusFailed, err: cause}, &scriptedStep{name: "report"}
	j, err := job.NewSimpleJob("customerJob", repo, failing, never)
	require.NoError(t, err)

	je := newExecution(t, repo)
	err = j.Run(context.Background(), je)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, model.BatchStatusFailed, je.Status)
	assert.Contains(t, je.Failures, cause.Error())
	assert.Zero(t, never.runs)
}

func TestSimpleJob_StoppedStepStopsTheJob(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	stopping, never := &scriptedStep{name: "load", status: model.BatchStatusStopped}, &scriptedStep{name: "report"}
	j, err := job.NewSimpleJob("customerJob", repo, stopping, never)
	require.NoError(t, err)

	je := newExecution(t, repo)
	require.NoError(t, j.Run(context.Background(), je))

	assert.Equal(t, model.BatchStatusStopped, je.Status)
	assert.Zero(t, never.runs)
}

func TestSimpleJob_SkipsStepsCompletedBeforeRestart(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	done, pending := &scriptedStep{name: "load"}, &scriptedStep{name: "report"}
	j, err := job.NewSimpleJob("customerJob", repo, done, pending)
	require.NoError(t, err)

	je := newExecution(t, repo)
	prev := test.NewTestStepExecution(je, "load")
	prev.MarkAsStarted()
	prev.MarkAsCompleted()

	require.NoError(t, j.Run(context.Background(), je))

	assert.Zero(t, done.runs)
	assert.Equal(t, 1, pending.runs)
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
}

func TestSimpleJob_CancelledBeforeFirstStep(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	step := &scriptedStep{name: "load"}
	j, err := job.NewSimpleJob("customerJob", repo, step)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	je := newExecution(t, repo)
	require.NoError(t, j.Run(ctx, je))

	assert.Equal(t, model.BatchStatusStopped, je.Status)
	assert.Zero(t, step.runs)
}
