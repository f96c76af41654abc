package model

import (
	"fmt"
	"time"

	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// JobInstance is the logical run of a job: a job name plus identifying parameters.
// Every execution of the same instance resumes the same checkpoints.
type JobInstance struct {
	ID             string
	JobName        string
	Parameters     JobParameters
	ParametersHash string
	CreateTime     time.Time
	Version        int
}

// NewJobInstance creates a JobInstance for jobName and params.
func NewJobInstance(jobName string, params JobParameters) (*JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	return &JobInstance{
		ID:             NewID(),
		JobName:        jobName,
		Parameters:     params,
		ParametersHash: hash,
		CreateTime:     time.Now(),
	}, nil
}

// JobExecution is one invocation of a JobInstance.
// RunID is assigned by the repository, increases with every invocation and is
// never reused, restarts included.
type JobExecution struct {
	ID             string
	RunID          int64
	JobInstanceID  string
	JobName        string
	Parameters     JobParameters
	Status         JobStatus
	ExitStatus     ExitStatus
	StartTime      time.Time
	EndTime        *time.Time
	CreateTime     time.Time
	LastUpdated    time.Time
	Failures       []string
	StepExecutions []*StepExecution
	RestartCount   int
	Version        int
}

// NewJobExecution creates a JobExecution in STARTING status.
func NewJobExecution(instance *JobInstance, runID int64) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:             NewID(),
		RunID:          runID,
		JobInstanceID:  instance.ID,
		JobName:        instance.JobName,
		Parameters:     instance.Parameters,
		Status:         BatchStatusStarting,
		ExitStatus:     ExitStatusUnknown,
		CreateTime:     now,
		LastUpdated:    now,
		Failures:       make([]string, 0),
		StepExecutions: make([]*StepExecution, 0),
	}
}

func isValidJobTransition(current, next JobStatus) bool {
	switch current {
	case BatchStatusStarting:
		return next == BatchStatusStarted || next == BatchStatusFailed || next == BatchStatusStopped || next == BatchStatusAbandoned
	case BatchStatusStarted:
		return next == BatchStatusStopping || next == BatchStatusCompleted || next == BatchStatusFailed || next == BatchStatusStopped || next == BatchStatusAbandoned
	case BatchStatusStopping:
		return next == BatchStatusStopped || next == BatchStatusFailed || next == BatchStatusAbandoned
	case BatchStatusFailed, BatchStatusStopped:
		return next == BatchStatusAbandoned
	}
	return false
}

// TransitionTo changes Status if the transition is allowed.
func (je *JobExecution) TransitionTo(next JobStatus) error {
	if !isValidJobTransition(je.Status, next) {
		return fmt.Errorf("JobExecution (ID: %s): invalid state transition: %s -> %s", je.ID, je.Status, next)
	}
	je.Status = next
	je.LastUpdated = time.Now()
	return nil
}

// forceStatus applies next even when the transition is not allowed, logging the anomaly.
func (je *JobExecution) forceStatus(next JobStatus) {
	if err := je.TransitionTo(next); err != nil {
		logger.Warnf("%v; forcing status %s.", err, next)
		je.Status = next
		je.LastUpdated = time.Now()
	}
}

func (je *JobExecution) finish(status JobStatus) {
	je.forceStatus(status)
	je.ExitStatus = status.ToExitStatus()
	now := time.Now()
	je.EndTime = &now
	je.LastUpdated = now
}

// MarkAsStarted sets STARTED and the start time.
func (je *JobExecution) MarkAsStarted() {
	je.forceStatus(BatchStatusStarted)
	je.StartTime = time.Now()
}

// MarkAsCompleted sets COMPLETED.
func (je *JobExecution) MarkAsCompleted() { je.finish(BatchStatusCompleted) }

// MarkAsStopped sets STOPPED.
func (je *JobExecution) MarkAsStopped() { je.finish(BatchStatusStopped) }

// MarkAsAbandoned sets ABANDONED. Used for executions that will never be resumed.
func (je *JobExecution) MarkAsAbandoned() { je.finish(BatchStatusAbandoned) }

// MarkAsFailed sets FAILED and records err.
func (je *JobExecution) MarkAsFailed(err error) {
	je.finish(BatchStatusFailed)
	je.AddFailureException(err)
}

// AddFailureException records err once; duplicates are ignored.
func (je *JobExecution) AddFailureException(err error) {
	if err == nil {
		return
	}
	je.Failures = appendFailure(je.Failures, err)
	je.LastUpdated = time.Now()
}

// AddStepExecution appends se and links it to the execution.
func (je *JobExecution) AddStepExecution(se *StepExecution) {
	se.JobExecution = je
	se.JobExecutionID = je.ID
	je.StepExecutions = append(je.StepExecutions, se)
}

// StepExecution returns the step execution named stepName, or nil.
func (je *JobExecution) StepExecution(stepName string) *StepExecution {
	for _, se := range je.StepExecutions {
		if se.StepName == stepName {
			return se
		}
	}
	return nil
}

func appendFailure(failures []string, err error) []string {
	msg := err.Error()
	for _, f := range failures {
		if f == msg {
			return failures
		}
	}
	return append(failures, msg)
}
