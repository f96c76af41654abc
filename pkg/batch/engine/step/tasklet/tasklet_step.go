// Package tasklet implements a step that runs one Tasklet.
package tasklet

import (
	"context"

	"github.com/tigerroll/csvload/pkg/batch/core/application/port"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/repository"
	"github.com/tigerroll/csvload/pkg/batch/core/metrics"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// TaskletStep runs a Tasklet once. It has no chunks and no checkpoint: a
// restarted job runs it again unless it completed before.
type TaskletStep struct {
	name                   string
	tasklet                port.Tasklet
	jobRepository          repository.JobRepository
	stepExecutionListeners []port.StepExecutionListener
	metricRecorder         metrics.MetricRecorder
	tracer                 metrics.Tracer
}

var _ port.Step = (*TaskletStep)(nil)

// NewTaskletStep creates a TaskletStep named name.
func NewTaskletStep(name string, tasklet port.Tasklet, jobRepository repository.JobRepository) *TaskletStep {
	return &TaskletStep{
		name:           name,
		tasklet:        tasklet,
		jobRepository:  jobRepository,
		metricRecorder: metrics.NewNoOpMetricRecorder(),
		tracer:         metrics.NewNoOpTracer(),
	}
}

func (s *TaskletStep) StepName() string { return s.name }

func (s *TaskletStep) SetMetricRecorder(recorder metrics.MetricRecorder) {
	if recorder != nil {
		s.metricRecorder = recorder
	}
}

func (s *TaskletStep) SetTracer(tracer metrics.Tracer) {
	if tracer != nil {
		s.tracer = tracer
	}
}

func (s *TaskletStep) RegisterStepExecutionListener(l port.StepExecutionListener) {
	s.stepExecutionListeners = append(s.stepExecutionListeners, l)
}

// Execute runs the tasklet and records its outcome on stepExecution.
func (s *TaskletStep) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) (err error) {
	logger.Infof("TaskletStep '%s' executing.", s.name)

	ctx, endSpan := s.tracer.StartStepSpan(ctx, stepExecution)
	defer endSpan()

	stepExecution.MarkAsStarted()
	s.metricRecorder.RecordStepStart(ctx, stepExecution)
	if err := s.jobRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
		stepExecution.MarkAsFailed(err)
		return exception.NewBatchError(s.name, "failed to update StepExecution status to STARTED", err)
	}
	for _, l := range s.stepExecutionListeners {
		l.BeforeStep(ctx, stepExecution)
	}

	exitStatus, err := s.tasklet.Execute(ctx, stepExecution)
	if closeErr := s.tasklet.Close(ctx); closeErr != nil {
		logger.Errorf("TaskletStep '%s': failed to close tasklet: %v", s.name, closeErr)
		if err == nil {
			err = closeErr
		}
	}

	if err != nil {
		s.tracer.RecordError(ctx, s.name, err)
		stepExecution.MarkAsFailed(err)
	} else {
		stepExecution.MarkAsCompleted()
		if exitStatus != "" {
			stepExecution.ExitStatus = exitStatus
		}
	}

	for _, l := range s.stepExecutionListeners {
		l.AfterStep(ctx, stepExecution)
	}
	s.metricRecorder.RecordStepEnd(ctx, stepExecution)

	if updateErr := s.jobRepository.UpdateStepExecution(context.WithoutCancel(ctx), stepExecution); updateErr != nil {
		logger.Errorf("TaskletStep '%s': failed to update final StepExecution state: %v", s.name, updateErr)
		if err == nil {
			err = updateErr
		}
	}

	logger.Infof("TaskletStep '%s' finished. ExitStatus: %s", s.name, stepExecution.ExitStatus)
	return err
}
