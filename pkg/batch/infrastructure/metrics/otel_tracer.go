package metrics

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/metrics"
)

const instrumentationName = "github.com/tigerroll/csvload/pkg/batch"

// OpenTelemetryTracer implements metrics.Tracer with OpenTelemetry spans.
// Job spans parent step spans, which parent chunk spans.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)

// NewOpenTelemetryTracer creates a tracer on provider.
func NewOpenTelemetryTracer(provider trace.TracerProvider) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: provider.Tracer(instrumentationName)}
}

func (t *OpenTelemetryTracer) StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "job "+execution.JobName, trace.WithAttributes(
		attribute.String("batch.job.name", execution.JobName),
		attribute.String("batch.job.execution_id", execution.ID),
		attribute.String("batch.job.instance_id", execution.JobInstanceID),
		attribute.Int64("batch.job.run_id", execution.RunID),
		attribute.Int("batch.job.restart_count", execution.RestartCount),
	))
	return ctx, func() {
		span.SetAttributes(
			attribute.String("batch.status", execution.Status.String()),
			attribute.String("batch.exit_status", execution.ExitStatus.String()),
		)
		endWithStatus(span, execution.Status, execution.Failures)
	}
}

func (t *OpenTelemetryTracer) StartStepSpan(ctx context.Context, execution *model.StepExecution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "step "+execution.StepName, trace.WithAttributes(
		attribute.String("batch.job.name", metrics.JobName(execution)),
		attribute.String("batch.step.name", execution.StepName),
		attribute.String("batch.step.execution_id", execution.ID),
	))
	return ctx, func() {
		span.SetAttributes(
			attribute.String("batch.status", execution.Status.String()),
			attribute.Int("batch.step.read_count", execution.ReadCount),
			attribute.Int("batch.step.write_count", execution.WriteCount),
			attribute.Int("batch.step.filter_count", execution.FilterCount),
			attribute.Int("batch.step.commit_count", execution.CommitCount),
			attribute.Int("batch.step.rollback_count", execution.RollbackCount),
			attribute.Int("batch.step.offset", execution.Offset),
		)
		endWithStatus(span, execution.Status, execution.Failures)
	}
}

func (t *OpenTelemetryTracer) StartChunkSpan(ctx context.Context, execution *model.StepExecution, chunkIndex int) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "chunk", trace.WithAttributes(
		attribute.String("batch.step.name", execution.StepName),
		attribute.Int("batch.chunk.index", chunkIndex),
		attribute.Int("batch.chunk.start_offset", execution.Offset),
	))
	return ctx, func() { span.End() }
}

func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("batch.module", module)))
	span.SetStatus(codes.Error, err.Error())
}

func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
}

func endWithStatus(span trace.Span, status model.JobStatus, failures []string) {
	if status == model.BatchStatusFailed {
		desc := "failed"
		if len(failures) > 0 {
			desc = failures[len(failures)-1]
		}
		span.SetStatus(codes.Error, desc)
	}
	span.End()
}

// toAttributes converts attrs in key order. Unsupported value types are formatted with %v.
func toAttributes(attrs map[string]interface{}) []attribute.KeyValue {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kvs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		switch v := attrs[k].(type) {
		case string:
			kvs = append(kvs, attribute.String(k, v))
		case int:
			kvs = append(kvs, attribute.Int(k, v))
		case int64:
			kvs = append(kvs, attribute.Int64(k, v))
		case float64:
			kvs = append(kvs, attribute.Float64(k, v))
		case bool:
			kvs = append(kvs, attribute.Bool(k, v))
		default:
			kvs = append(kvs, attribute.String(k, fmt.Sprintf("%v", v)))
		}
	}
	return kvs
}
