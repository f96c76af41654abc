package metrics

import (
	"context"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
)

// Tracer creates spans around jobs, steps and chunks.
// Each Start method returns the derived context and a function ending the span.
type Tracer interface {
	StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func())
	StartStepSpan(ctx context.Context, execution *model.StepExecution) (context.Context, func())
	StartChunkSpan(ctx context.Context, execution *model.StepExecution, chunkIndex int) (context.Context, func())

	// RecordError attaches err to the span in ctx.
	RecordError(ctx context.Context, module string, err error)
	// RecordEvent adds a named event with attributes to the span in ctx.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
