package metrics

import (
	"context"
	"sync"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/metrics"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

type metricEventType int

const (
	metricEventJobStart metricEventType = iota
	metricEventJobEnd
	metricEventStepStart
	metricEventStepEnd
	metricEventChunkCommit
	metricEventChunkRollback
)

// metricEvent carries copies of the executions, taken by the caller, so the
// worker never reads an execution the step is still mutating.
type metricEvent struct {
	kind          metricEventType
	jobExecution  model.JobExecution
	stepExecution model.StepExecution
	read          int
	filtered      int
	written       int
}

// AsyncMetricRecorder queues events and replays them on another recorder from
// a single worker goroutine. When the queue is full the event is dropped.
type AsyncMetricRecorder struct {
	eventQueue   chan metricEvent
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	syncRecorder metrics.MetricRecorder
}

var _ metrics.MetricRecorder = (*AsyncMetricRecorder)(nil)

// NewAsyncMetricRecorder starts the worker. bufferSize <= 0 means 100.
func NewAsyncMetricRecorder(bufferSize int, syncRecorder metrics.MetricRecorder) *AsyncMetricRecorder {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	r := &AsyncMetricRecorder{
		eventQueue:   make(chan metricEvent, bufferSize),
		stopCh:       make(chan struct{}),
		syncRecorder: syncRecorder,
	}
	r.wg.Add(1)
	go r.run()
	logger.Debugf("AsyncMetricRecorder: worker started (buffer size: %d).", bufferSize)
	return r
}

func (r *AsyncMetricRecorder) run() {
	defer r.wg.Done()
	for {
		select {
		case event := <-r.eventQueue:
			r.processEvent(event)
		case <-r.stopCh:
			remaining := len(r.eventQueue)
			for i := 0; i < remaining; i++ {
				r.processEvent(<-r.eventQueue)
			}
			logger.Debugf("AsyncMetricRecorder: worker stopped. Processed %d remaining events.", remaining)
			return
		}
	}
}

func (r *AsyncMetricRecorder) processEvent(event metricEvent) {
	ctx := context.Background()
	switch event.kind {
	case metricEventJobStart:
		r.syncRecorder.RecordJobStart(ctx, &event.jobExecution)
	case metricEventJobEnd:
		r.syncRecorder.RecordJobEnd(ctx, &event.jobExecution)
	case metricEventStepStart:
		r.syncRecorder.RecordStepStart(ctx, &event.stepExecution)
	case metricEventStepEnd:
		r.syncRecorder.RecordStepEnd(ctx, &event.stepExecution)
	case metricEventChunkCommit:
		r.syncRecorder.RecordChunkCommit(ctx, &event.stepExecution, event.read, event.filtered, event.written)
	case metricEventChunkRollback:
		r.syncRecorder.RecordChunkRollback(ctx, &event.stepExecution)
	}
}

// Close stops the worker after it has drained the queue. Events recorded
// after Close are dropped.
func (r *AsyncMetricRecorder) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *AsyncMetricRecorder) sendEvent(event metricEvent) {
	select {
	case <-r.stopCh:
		return
	default:
	}
	select {
	case r.eventQueue <- event:
	default:
		logger.Warnf("AsyncMetricRecorder: event queue is full. Event %d discarded.", event.kind)
	}
}

// jobSnapshot copies je without its step executions.
func jobSnapshot(je *model.JobExecution) model.JobExecution {
	c := *je
	c.StepExecutions = nil
	c.Failures = nil
	return c
}

// stepSnapshot copies se, pointing at a snapshot of its job so the job name survives.
func stepSnapshot(se *model.StepExecution) model.StepExecution {
	c := *se
	c.Failures = nil
	if se.JobExecution != nil {
		je := jobSnapshot(se.JobExecution)
		c.JobExecution = &je
	}
	return c
}

func (r *AsyncMetricRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.sendEvent(metricEvent{kind: metricEventJobStart, jobExecution: jobSnapshot(execution)})
}

func (r *AsyncMetricRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	r.sendEvent(metricEvent{kind: metricEventJobEnd, jobExecution: jobSnapshot(execution)})
}

func (r *AsyncMetricRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	r.sendEvent(metricEvent{kind: metricEventStepStart, stepExecution: stepSnapshot(execution)})
}

func (r *AsyncMetricRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	r.sendEvent(metricEvent{kind: metricEventStepEnd, stepExecution: stepSnapshot(execution)})
}

func (r *AsyncMetricRecorder) RecordChunkCommit(ctx context.Context, execution *model.StepExecution, read, filtered, written int) {
	r.sendEvent(metricEvent{kind: metricEventChunkCommit, stepExecution: stepSnapshot(execution), read: read, filtered: filtered, written: written})
}

func (r *AsyncMetricRecorder) RecordChunkRollback(ctx context.Context, execution *model.StepExecution) {
	r.sendEvent(metricEvent{kind: metricEventChunkRollback, stepExecution: stepSnapshot(execution)})
}
