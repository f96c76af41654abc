package tasklet_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/engine/step/tasklet"
	"github.com/tigerroll/csvload/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/csvload/pkg/batch/test"
)

type fakeTasklet struct {
	exit     model.ExitStatus
	err      error
	closeErr error
	closed   bool
}

func (f *fakeTasklet) Execute(context.Context, *model.StepExecution) (model.ExitStatus, error) {
	return f.exit, f.err
}

func (f *fakeTasklet) Close(context.Context) error {
	f.closed = true
	return f.closeErr
}

func run(t *testing.T, tl *fakeTasklet) (*model.StepExecution, error) {
	t.Helper()
	repo := inmemory.NewInMemoryJobRepository()
	je := test.NewTestJobExecution(t, "customerJob", 1)
	se := test.NewTestStepExecution(je, "migrate")
	require.NoError(t, repo.SaveStepExecution(context.Background(), se))

	step := tasklet.NewTaskletStep("migrate", tl, repo)
	err := step.Execute(context.Background(), je, se)

	stored, findErr := repo.FindStepExecutionByID(context.Background(), se.ID)
	require.NoError(t, findErr)
	assert.Equal(t, se.Status, stored.Status)
	return se, err
}

func TestTaskletStep_Completes(t *testing.T) {
	tl := &fakeTasklet{exit: model.ExitStatusNoOp}
	se, err := run(t, tl)

	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	assert.Equal(t, model.ExitStatusNoOp, se.ExitStatus)
	assert.True(t, tl.closed)
}

func TestTaskletStep_FailsOnTaskletError(t *testing.T) {
	tl := &fakeTasklet{err: errors.New("dirty database version 3")}
	se, err := run(t, tl)

	assert.ErrorContains(t, err, "dirty database")
	assert.Equal(t, model.BatchStatusFailed, se.Status)
	assert.True(t, tl.closed)
}

func TestTaskletStep_FailsOnCloseError(t *testing.T) {
	se, err := run(t, &fakeTasklet{closeErr: errors.New("close failed")})

	assert.Error(t, err)
	assert.Equal(t, model.BatchStatusFailed, se.Status)
}
