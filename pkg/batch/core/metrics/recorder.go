// Package metrics declares the observability ports used by steps and jobs.
// Backends live in pkg/batch/infrastructure/metrics.
package metrics

import (
	"context"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
)

// MetricRecorder records job, step and chunk metrics.
type MetricRecorder interface {
	// RecordJobStart records that a JobExecution started.
	RecordJobStart(ctx context.Context, execution *model.JobExecution)
	// RecordJobEnd records the outcome and duration of a finished JobExecution.
	RecordJobEnd(ctx context.Context, execution *model.JobExecution)

	// RecordStepStart records that a StepExecution started.
	RecordStepStart(ctx context.Context, execution *model.StepExecution)
	// RecordStepEnd records the outcome and duration of a finished StepExecution.
	RecordStepEnd(ctx context.Context, execution *model.StepExecution)

	// RecordChunkCommit records a committed chunk: items read, filtered and written for it.
	RecordChunkCommit(ctx context.Context, execution *model.StepExecution, read, filtered, written int)
	// RecordChunkRollback records a rolled back chunk.
	RecordChunkRollback(ctx context.Context, execution *model.StepExecution)
}

// JobName returns the job name of se, or "" when se is not attached to a job.
func JobName(se *model.StepExecution) string {
	if se.JobExecution == nil {
		return ""
	}
	return se.JobExecution.JobName
}
