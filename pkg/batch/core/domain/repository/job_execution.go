package repository

import (
	"context"
	"errors"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
)

// ErrJobExecutionNotFound is returned when a JobExecution is not found.
var ErrJobExecutionNotFound = errors.New("job execution not found")

func init() {
	exception.RegisterErrorType("ErrJobExecutionNotFound", ErrJobExecutionNotFound)
}

// JobExecution persists job executions and hands out run ids.
type JobExecution interface {
	// NextRunID returns a run id greater than any previously returned one.
	NextRunID(ctx context.Context) (int64, error)

	// SaveJobExecution persists a new JobExecution.
	SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error

	// UpdateJobExecution updates an existing JobExecution. Implementations check
	// Version and fail with exception.ErrOptimisticLockingFailure on a stale copy.
	UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error

	// FindJobExecutionByID finds a JobExecution together with its StepExecutions.
	FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error)

	// FindLatestJobExecution finds the newest execution of an instance, with its StepExecutions.
	FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error)
}
