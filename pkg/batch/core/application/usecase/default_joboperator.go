package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/tigerroll/csvload/pkg/batch/core/application/port"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/repository"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// DefaultJobOperator implements JobOperator on top of a SimpleJobLauncher.
type DefaultJobOperator struct {
	jobRepository repository.JobRepository
	jobLauncher   *SimpleJobLauncher
}

var _ JobOperator = (*DefaultJobOperator)(nil)

// NewDefaultJobOperator creates an operator launching through launcher.
func NewDefaultJobOperator(jobRepository repository.JobRepository, launcher *SimpleJobLauncher) *DefaultJobOperator {
	return &DefaultJobOperator{jobRepository: jobRepository, jobLauncher: launcher}
}

// StartNextInstance applies the job's incrementer to the parameters of the
// latest instance of the job (or to empty parameters) and runs the result.
func (o *DefaultJobOperator) StartNextInstance(ctx context.Context, job port.Job) (*model.JobExecution, error) {
	inc := job.Incrementer()
	if inc == nil {
		return nil, exception.NewBatchErrorf("job_operator", "Job '%s' has no JobParametersIncrementer", job.JobName())
	}

	params := model.NewJobParameters()
	latest, err := o.jobRepository.FindLatestJobInstance(ctx, job.JobName())
	switch {
	case err == nil:
		params = latest.Parameters
	case !errors.Is(err, repository.ErrJobInstanceNotFound):
		return nil, exception.NewBatchError("job_operator", "failed to load the latest JobInstance", err)
	}

	next := inc.GetNext(params)
	logger.Infof("JobOperator: starting next instance of Job '%s' with %s.", job.JobName(), next.String())
	return o.jobLauncher.Run(ctx, job, next)
}

// Restart relaunches the latest instance of job. An execution left running by
// a process that no longer exists is marked STOPPED first so it can be resumed.
func (o *DefaultJobOperator) Restart(ctx context.Context, job port.Job) (*model.JobExecution, error) {
	instance, err := o.jobRepository.FindLatestJobInstance(ctx, job.JobName())
	if err != nil {
		return nil, exception.NewBatchError("job_operator", fmt.Sprintf("no JobInstance of Job '%s' to restart", job.JobName()), err)
	}

	latest, err := o.jobRepository.FindLatestJobExecution(ctx, instance.ID)
	if err != nil && !errors.Is(err, repository.ErrJobExecutionNotFound) {
		return nil, exception.NewBatchError("job_operator", "failed to load the latest JobExecution", err)
	}
	if latest != nil && latest.Status.IsRunning() {
		if _, live := o.jobLauncher.GetCancelFunc(latest.ID); live {
			return nil, exception.NewBatchError("job_operator",
				fmt.Sprintf("JobExecution (ID: %s) is still running", latest.ID), ErrJobExecutionAlreadyRunning)
		}
		logger.Warnf("JobOperator: JobExecution (ID: %s) is %s but not running in this process. Marking it STOPPED.", latest.ID, latest.Status)
		latest.MarkAsStopped()
		if err := o.jobRepository.UpdateJobExecution(ctx, latest); err != nil {
			return nil, exception.NewBatchError("job_operator", fmt.Sprintf("failed to mark JobExecution (ID: %s) STOPPED", latest.ID), err)
		}
	}

	logger.Infof("JobOperator: restarting JobInstance (ID: %s) of Job '%s'.", instance.ID, job.JobName())
	return o.jobLauncher.Run(ctx, job, instance.Parameters)
}

// Stop cancels the context of a running execution. The running step stops
// after its current chunk.
func (o *DefaultJobOperator) Stop(ctx context.Context, executionID string) error {
	jobExecution, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return exception.NewBatchError("job_operator", fmt.Sprintf("failed to load JobExecution (ID: %s)", executionID), err)
	}
	if jobExecution.Status.IsFinished() {
		return exception.NewBatchErrorf("job_operator", "JobExecution (ID: %s) is already finished (%s)", executionID, jobExecution.Status)
	}
	cancel, ok := o.jobLauncher.GetCancelFunc(executionID)
	if !ok {
		return exception.NewBatchErrorf("job_operator", "JobExecution (ID: %s) is not running in this process", executionID)
	}
	cancel()
	logger.Infof("JobOperator: sent stop signal to JobExecution (ID: %s).", executionID)
	return nil
}

// Abandon marks a FAILED or STOPPED execution ABANDONED; its instance can no
// longer be restarted.
func (o *DefaultJobOperator) Abandon(ctx context.Context, executionID string) error {
	jobExecution, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return exception.NewBatchError("job_operator", fmt.Sprintf("failed to load JobExecution (ID: %s)", executionID), err)
	}
	switch {
	case jobExecution.Status == model.BatchStatusAbandoned:
		return nil
	case !jobExecution.Status.IsRestartable():
		return exception.NewBatchErrorf("job_operator", "JobExecution (ID: %s) cannot be abandoned in status %s", executionID, jobExecution.Status)
	}
	jobExecution.MarkAsAbandoned()
	if err := o.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
		return exception.NewBatchError("job_operator", fmt.Sprintf("failed to update JobExecution (ID: %s)", executionID), err)
	}
	logger.Infof("JobOperator: abandoned JobExecution (ID: %s).", executionID)
	return nil
}
