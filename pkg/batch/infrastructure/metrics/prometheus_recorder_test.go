package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/test"
)

func finishedStep(t *testing.T) *model.StepExecution {
	t.Helper()
	je := test.NewTestJobExecution(t, "customerJob", 1)
	se := test.NewTestStepExecution(je, "step1")
	se.MarkAsStarted()
	se.StartTime = se.StartTime.Add(-2 * time.Second)
	se.MarkAsCompleted()
	return se
}

func TestPrometheusRecorder_ChunkCounters(t *testing.T) {
	ctx := context.Background()
	r := NewPrometheusRecorder()
	se := finishedStep(t)

	r.RecordChunkCommit(ctx, se, 3, 1, 2)
	r.RecordChunkCommit(ctx, se, 3, 0, 3)
	r.RecordChunkRollback(ctx, se)

	assert.Equal(t, 6.0, testutil.ToFloat64(r.stepReadCount.WithLabelValues("customerJob", "step1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stepFilterCount.WithLabelValues("customerJob", "step1")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.stepWriteCount.WithLabelValues("customerJob", "step1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.stepCommitCount.WithLabelValues("customerJob", "step1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stepRollbackCount.WithLabelValues("customerJob", "step1")))
}

func TestPrometheusRecorder_JobAndStepLifecycle(t *testing.T) {
	ctx := context.Background()
	r := NewPrometheusRecorder()
	se := finishedStep(t)
	je := se.JobExecution

	r.RecordJobStart(ctx, je)
	r.RecordStepEnd(ctx, se)
	je.MarkAsCompleted()
	r.RecordJobEnd(ctx, je)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobStatusCounter.WithLabelValues("customerJob", "STARTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobStatusCounter.WithLabelValues("customerJob", "COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stepStatusCounter.WithLabelValues("customerJob", "step1", "COMPLETED")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.stepDurationSeconds))
	assert.Equal(t, 1, testutil.CollectAndCount(r.jobDurationSeconds))
}

func TestPrometheusRecorder_Handler(t *testing.T) {
	r := NewPrometheusRecorder()
	r.RecordChunkCommit(context.Background(), finishedStep(t), 1, 0, 1)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `batch_step_write_total{job_name="customerJob",step_name="step1"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}

func TestAsyncMetricRecorder_DrainsOnClose(t *testing.T) {
	ctx := context.Background()
	prom := NewPrometheusRecorder()
	async := NewAsyncMetricRecorder(16, prom)
	se := finishedStep(t)

	for i := 0; i < 5; i++ {
		async.RecordChunkCommit(ctx, se, 2, 0, 2)
	}
	se.StepName = "renamed"
	async.Close()
	async.RecordChunkRollback(ctx, se)

	assert.Equal(t, 5.0, testutil.ToFloat64(prom.stepCommitCount.WithLabelValues("customerJob", "step1")))
	assert.Equal(t, 10.0, testutil.ToFloat64(prom.stepWriteCount.WithLabelValues("customerJob", "step1")))
	assert.Equal(t, 0, testutil.CollectAndCount(prom.stepRollbackCount))
}
