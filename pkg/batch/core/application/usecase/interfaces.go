package usecase

import (
	"context"

	"github.com/tigerroll/csvload/pkg/batch/core/application/port"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
)

// JobLauncher runs a job for a set of identifying parameters.
type JobLauncher interface {
	// Run finds or creates the job instance for params and runs a new execution
	// of it to the end. The error reports a launch failure; the outcome of the
	// job itself is the status of the returned JobExecution.
	Run(ctx context.Context, job port.Job, params model.JobParameters) (*model.JobExecution, error)
}

// JobOperator starts, restarts and stops jobs.
type JobOperator interface {
	// StartNextInstance runs a new instance of job with parameters derived by
	// the job's incrementer from the latest instance.
	StartNextInstance(ctx context.Context, job port.Job) (*model.JobExecution, error)

	// Restart re-runs the latest instance of job from its checkpoints.
	Restart(ctx context.Context, job port.Job) (*model.JobExecution, error)

	// Stop asks a running execution to stop at its next chunk boundary.
	Stop(ctx context.Context, executionID string) error

	// Abandon marks a FAILED or STOPPED execution as never to be restarted.
	Abandon(ctx context.Context, executionID string) error
}
