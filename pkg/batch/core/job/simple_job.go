// Package job runs the steps of a job in order.
package job

import (
	"context"

	"github.com/tigerroll/csvload/pkg/batch/core/application/port"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/repository"
	"github.com/tigerroll/csvload/pkg/batch/core/metrics"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// SimpleJob executes its steps sequentially. The first step that does not
// complete decides the job status: FAILED or STOPPED.
type SimpleJob struct {
	name           string
	steps          []port.Step
	jobRepository  repository.JobRepository
	incrementer    port.JobParametersIncrementer
	jobListeners   []port.JobExecutionListener
	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

var _ port.Job = (*SimpleJob)(nil)

// NewSimpleJob creates a job named name running steps in the given order.
// Step names must be unique within the job.
func NewSimpleJob(name string, jobRepository repository.JobRepository, steps ...port.Step) (*SimpleJob, error) {
	if name == "" {
		return nil, exception.NewBatchErrorf("job", "job name is required")
	}
	if len(steps) == 0 {
		return nil, exception.NewBatchErrorf(name, "job has no steps")
	}
	seen := make(map[string]struct{}, len(steps))
	for _, s := range steps {
		if _, dup := seen[s.StepName()]; dup {
			return nil, exception.NewBatchErrorf(name, "step name '%s' is used twice", s.StepName())
		}
		seen[s.StepName()] = struct{}{}
	}
	return &SimpleJob{
		name:           name,
		steps:          steps,
		jobRepository:  jobRepository,
		metricRecorder: metrics.NewNoOpMetricRecorder(),
		tracer:         metrics.NewNoOpTracer(),
	}, nil
}

func (j *SimpleJob) JobName() string { return j.name }

func (j *SimpleJob) Steps() []port.Step { return j.steps }

func (j *SimpleJob) Incrementer() port.JobParametersIncrementer { return j.incrementer }

// SetIncrementer sets the incrementer used by JobOperator.StartNextInstance.
func (j *SimpleJob) SetIncrementer(inc port.JobParametersIncrementer) { j.incrementer = inc }

func (j *SimpleJob) SetMetricRecorder(recorder metrics.MetricRecorder) {
	if recorder != nil {
		j.metricRecorder = recorder
	}
}

func (j *SimpleJob) SetTracer(tracer metrics.Tracer) {
	if tracer != nil {
		j.tracer = tracer
	}
}

func (j *SimpleJob) RegisterJobExecutionListener(l port.JobExecutionListener) {
	j.jobListeners = append(j.jobListeners, l)
}

// Run executes the steps of jobExecution. Steps found COMPLETED on
// jobExecution (copied from the execution being restarted) are not run again.
// It returns the error of the step that failed, if any; the final status is
// always recorded on jobExecution and persisted.
func (j *SimpleJob) Run(ctx context.Context, jobExecution *model.JobExecution) (runErr error) {
	logger.Infof("Starting Job '%s' (Execution ID: %s, run %d).", j.name, jobExecution.ID, jobExecution.RunID)

	ctx, endSpan := j.tracer.StartJobSpan(ctx, jobExecution)
	defer endSpan()

	jobExecution.MarkAsStarted()
	if err := j.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
		logger.Errorf("Job '%s': failed to update JobExecution (ID: %s) status to STARTED: %v", j.name, jobExecution.ID, err)
		jobExecution.MarkAsFailed(err)
		return exception.NewBatchError(j.name, "failed to update JobExecution status to STARTED", err)
	}
	j.metricRecorder.RecordJobStart(ctx, jobExecution)
	for _, l := range j.jobListeners {
		l.BeforeJob(ctx, jobExecution)
	}

	defer func() {
		for _, l := range j.jobListeners {
			l.AfterJob(ctx, jobExecution)
		}
		j.metricRecorder.RecordJobEnd(ctx, jobExecution)
		if err := j.jobRepository.UpdateJobExecution(context.WithoutCancel(ctx), jobExecution); err != nil {
			logger.Errorf("Job '%s': failed to update final JobExecution (ID: %s) state: %v", j.name, jobExecution.ID, err)
			if runErr == nil {
				runErr = err
			}
		}
		logger.Infof("Job '%s' (Execution ID: %s) finished. Status: %s, Exit Status: %s",
			j.name, jobExecution.ID, jobExecution.Status, jobExecution.ExitStatus)
	}()

	for _, step := range j.steps {
		if ctx.Err() != nil {
			logger.Warnf("Job '%s': stop requested before step '%s'.", j.name, step.StepName())
			jobExecution.MarkAsStopped()
			return nil
		}

		stepExecution := jobExecution.StepExecution(step.StepName())
		if stepExecution != nil && stepExecution.Status == model.BatchStatusCompleted {
			logger.Infof("Job '%s': step '%s' already completed. Skipping.", j.name, step.StepName())
			continue
		}
		if stepExecution == nil {
			stepExecution = model.NewStepExecution(jobExecution, step.StepName())
		}
		if err := j.jobRepository.SaveStepExecution(ctx, stepExecution); err != nil {
			err = exception.NewBatchError(j.name, "failed to save StepExecution for step '"+step.StepName()+"'", err)
			j.tracer.RecordError(ctx, "job", err)
			jobExecution.MarkAsFailed(err)
			return err
		}

		err := step.Execute(ctx, jobExecution, stepExecution)
		switch stepExecution.Status {
		case model.BatchStatusCompleted:
			logger.Infof("Job '%s': step '%s' completed.", j.name, step.StepName())
		case model.BatchStatusStopped:
			jobExecution.MarkAsStopped()
			return nil
		default:
			if err == nil {
				err = exception.NewBatchErrorf(j.name, "step '%s' ended in status %s", step.StepName(), stepExecution.Status)
			}
			j.tracer.RecordError(ctx, "job", err)
			jobExecution.MarkAsFailed(err)
			return err
		}
	}

	jobExecution.MarkAsCompleted()
	return nil
}
