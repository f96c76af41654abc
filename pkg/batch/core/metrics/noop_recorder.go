package metrics

import (
	"context"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder discards all metrics.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder returns a MetricRecorder that records nothing.
func NewNoOpMetricRecorder() MetricRecorder { return &NoOpMetricRecorder{} }

func (NoOpMetricRecorder) RecordJobStart(context.Context, *model.JobExecution)   {}
func (NoOpMetricRecorder) RecordJobEnd(context.Context, *model.JobExecution)     {}
func (NoOpMetricRecorder) RecordStepStart(context.Context, *model.StepExecution) {}
func (NoOpMetricRecorder) RecordStepEnd(context.Context, *model.StepExecution)   {}
func (NoOpMetricRecorder) RecordChunkCommit(context.Context, *model.StepExecution, int, int, int) {
}
func (NoOpMetricRecorder) RecordChunkRollback(context.Context, *model.StepExecution) {}

// NoOpTracer creates no spans.
type NoOpTracer struct{}

// NewNoOpTracer returns a Tracer that traces nothing.
func NewNoOpTracer() Tracer { return &NoOpTracer{} }

func (NoOpTracer) StartJobSpan(ctx context.Context, _ *model.JobExecution) (context.Context, func()) {
	return ctx, func() {}
}

func (NoOpTracer) StartStepSpan(ctx context.Context, _ *model.StepExecution) (context.Context, func()) {
	return ctx, func() {}
}

func (NoOpTracer) StartChunkSpan(ctx context.Context, _ *model.StepExecution, _ int) (context.Context, func()) {
	return ctx, func() {}
}

func (NoOpTracer) RecordError(context.Context, string, error)                    {}
func (NoOpTracer) RecordEvent(context.Context, string, map[string]interface{}) {}

var (
	_ MetricRecorder = (*NoOpMetricRecorder)(nil)
	_ Tracer         = (*NoOpTracer)(nil)
)
