package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tigerroll/csvload/pkg/batch/core/application/port"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/repository"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

var (
	// ErrJobExecutionAlreadyRunning is returned when the job instance has an execution that has not finished.
	ErrJobExecutionAlreadyRunning = errors.New("job execution already running")
	// ErrJobInstanceAlreadyComplete is returned when the job instance has already completed.
	ErrJobInstanceAlreadyComplete = errors.New("job instance already complete")
	// ErrJobInstanceAbandoned is returned when the latest execution of the job instance was abandoned.
	ErrJobInstanceAbandoned = errors.New("job instance abandoned")
)

func init() {
	exception.RegisterErrorType("JobExecutionAlreadyRunningException", ErrJobExecutionAlreadyRunning)
	exception.RegisterErrorType("JobInstanceAlreadyCompleteException", ErrJobInstanceAlreadyComplete)
	exception.RegisterErrorType("JobInstanceAbandonedException", ErrJobInstanceAbandoned)
}

// SimpleJobLauncher runs jobs synchronously in the calling goroutine.
type SimpleJobLauncher struct {
	jobRepository repository.JobRepository

	// activeJobCancellations holds the cancel functions of the executions
	// running in this process, by execution ID.
	activeJobCancellations map[string]context.CancelFunc
	mu                     sync.Mutex
}

var _ JobLauncher = (*SimpleJobLauncher)(nil)

// NewSimpleJobLauncher creates a launcher persisting through repo.
func NewSimpleJobLauncher(repo repository.JobRepository) *SimpleJobLauncher {
	return &SimpleJobLauncher{
		jobRepository:          repo,
		activeJobCancellations: make(map[string]context.CancelFunc),
	}
}

func (l *SimpleJobLauncher) registerCancelFunc(executionID string, cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.activeJobCancellations[executionID] = cancel
}

func (l *SimpleJobLauncher) unregisterCancelFunc(executionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.activeJobCancellations, executionID)
}

// GetCancelFunc returns the cancel function of an execution running in this process.
func (l *SimpleJobLauncher) GetCancelFunc(executionID string) (context.CancelFunc, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cancel, ok := l.activeJobCancellations[executionID]
	return cancel, ok
}

// Run launches job with params.
//
// A new JobInstance is created the first time params are seen. For a known
// instance the latest execution decides: a running one is refused with
// ErrJobExecutionAlreadyRunning, a COMPLETED one with ErrJobInstanceAlreadyComplete,
// and a FAILED or STOPPED one is restarted, carrying over the steps it completed.
// Every execution gets a new run id from the repository.
func (l *SimpleJobLauncher) Run(ctx context.Context, job port.Job, params model.JobParameters) (*model.JobExecution, error) {
	const op = "job_launcher"
	jobName := job.JobName()
	logger.Infof("Launching Job '%s'. Parameters: %s", jobName, params.String())

	instance, previous, err := l.resolveInstance(ctx, jobName, params)
	if err != nil {
		return nil, err
	}

	runID, err := l.jobRepository.NextRunID(ctx)
	if err != nil {
		return nil, exception.NewBatchError(op, "failed to allocate a run id", err)
	}
	jobExecution := model.NewJobExecution(instance, runID)
	var carried []*model.StepExecution
	if previous != nil {
		jobExecution.RestartCount = previous.RestartCount + 1
		for _, se := range previous.StepExecutions {
			if se.Status != model.BatchStatusCompleted {
				continue
			}
			copied := se.CopyForRestart()
			jobExecution.AddStepExecution(copied)
			carried = append(carried, copied)
		}
		logger.Infof("Restarting JobInstance (ID: %s) after execution (ID: %s, status %s). Restart count: %d, completed steps carried over: %d.",
			instance.ID, previous.ID, previous.Status, jobExecution.RestartCount, len(carried))
	}

	if err := l.jobRepository.SaveJobExecution(ctx, jobExecution); err != nil {
		return nil, exception.NewBatchError(op, "failed to save JobExecution", err)
	}
	for _, se := range carried {
		if err := l.jobRepository.SaveStepExecution(ctx, se); err != nil {
			return nil, exception.NewBatchError(op, fmt.Sprintf("failed to save carried-over StepExecution for step '%s'", se.StepName), err)
		}
	}

	jobCtx, cancel := context.WithCancel(ctx)
	l.registerCancelFunc(jobExecution.ID, cancel)
	defer func() {
		l.unregisterCancelFunc(jobExecution.ID)
		cancel()
	}()

	if err := job.Run(jobCtx, jobExecution); err != nil {
		logger.Errorf("Job '%s' (Execution ID: %s) ended with error: %v", jobName, jobExecution.ID, err)
	}
	return jobExecution, nil
}

// resolveInstance returns the instance for params and, when it must be
// restarted, its latest execution.
func (l *SimpleJobLauncher) resolveInstance(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, *model.JobExecution, error) {
	const op = "job_launcher"

	instance, err := l.jobRepository.FindJobInstanceByJobNameAndParameters(ctx, jobName, params)
	if errors.Is(err, repository.ErrJobInstanceNotFound) {
		instance, err = model.NewJobInstance(jobName, params)
		if err != nil {
			return nil, nil, exception.NewBatchError(op, "failed to create JobInstance", err)
		}
		if err := l.jobRepository.SaveJobInstance(ctx, instance); err != nil {
			return nil, nil, exception.NewBatchError(op, fmt.Sprintf("failed to save new JobInstance for '%s'", jobName), err)
		}
		logger.Infof("Created JobInstance (ID: %s) for Job '%s'.", instance.ID, jobName)
		return instance, nil, nil
	}
	if err != nil {
		return nil, nil, exception.NewBatchError(op, "failed to search for an existing JobInstance", err)
	}

	latest, err := l.jobRepository.FindLatestJobExecution(ctx, instance.ID)
	if errors.Is(err, repository.ErrJobExecutionNotFound) {
		return instance, nil, nil
	}
	if err != nil {
		return nil, nil, exception.NewBatchError(op, "failed to load the latest JobExecution", err)
	}

	switch {
	case latest.Status.IsRunning():
		return nil, nil, exception.NewBatchError(op,
			fmt.Sprintf("JobExecution (ID: %s, status %s) of JobInstance (ID: %s) has not finished", latest.ID, latest.Status, instance.ID),
			ErrJobExecutionAlreadyRunning)
	case latest.Status == model.BatchStatusCompleted:
		return nil, nil, exception.NewBatchError(op,
			fmt.Sprintf("JobInstance (ID: %s) of Job '%s' already completed with these parameters", instance.ID, jobName),
			ErrJobInstanceAlreadyComplete)
	case latest.Status.IsRestartable():
		return instance, latest, nil
	default:
		return nil, nil, exception.NewBatchError(op,
			fmt.Sprintf("latest JobExecution (ID: %s) of JobInstance (ID: %s) is %s", latest.ID, instance.ID, latest.Status),
			ErrJobInstanceAbandoned)
	}
}
