package model

import (
	"fmt"
	"time"

	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// StepExecution is the state of one step within a JobExecution.
//
// CommitCount is the number of chunks committed and Offset the number of input
// records consumed by those chunks: the position a restart resumes from.
type StepExecution struct {
	ID             string
	StepName       string
	JobExecutionID string
	JobExecution   *JobExecution
	Status         JobStatus
	ExitStatus     ExitStatus
	StartTime      time.Time
	EndTime        *time.Time
	ReadCount      int
	WriteCount     int
	FilterCount    int
	CommitCount    int
	RollbackCount  int
	Offset         int
	Failures       []string
	LastUpdated    time.Time
	Version        int
}

// NewStepExecution creates a StepExecution in STARTING status and attaches it to je.
func NewStepExecution(je *JobExecution, stepName string) *StepExecution {
	now := time.Now()
	se := &StepExecution{
		ID:          NewID(),
		StepName:    stepName,
		Status:      BatchStatusStarting,
		ExitStatus:  ExitStatusUnknown,
		Failures:    make([]string, 0),
		LastUpdated: now,
	}
	je.AddStepExecution(se)
	return se
}

// CopyForRestart creates the step execution of a new JobExecution from this one.
// A COMPLETED step keeps its status and counters so the job can skip it;
// anything else starts over in STARTING with the counters cleared (the
// restart position comes from the checkpoint, not from these counters).
func (se *StepExecution) CopyForRestart() *StepExecution {
	c := &StepExecution{
		ID:          NewID(),
		StepName:    se.StepName,
		Failures:    make([]string, 0),
		LastUpdated: time.Now(),
	}
	if se.Status == BatchStatusCompleted {
		c.Status = BatchStatusCompleted
		c.ExitStatus = se.ExitStatus
		c.StartTime = se.StartTime
		c.EndTime = se.EndTime
		c.ReadCount = se.ReadCount
		c.WriteCount = se.WriteCount
		c.FilterCount = se.FilterCount
		c.CommitCount = se.CommitCount
		c.RollbackCount = se.RollbackCount
		c.Offset = se.Offset
		return c
	}
	c.Status = BatchStatusStarting
	c.ExitStatus = ExitStatusUnknown
	return c
}

func isValidStepTransition(current, next JobStatus) bool {
	switch current {
	case BatchStatusStarting:
		return next == BatchStatusStarted || next == BatchStatusFailed || next == BatchStatusStopped
	case BatchStatusStarted:
		return next == BatchStatusCompleted || next == BatchStatusFailed || next == BatchStatusStopped
	}
	return false
}

// TransitionTo changes Status if the transition is allowed.
func (se *StepExecution) TransitionTo(next JobStatus) error {
	if !isValidStepTransition(se.Status, next) {
		return fmt.Errorf("StepExecution (ID: %s, step: %s): invalid state transition: %s -> %s", se.ID, se.StepName, se.Status, next)
	}
	se.Status = next
	se.LastUpdated = time.Now()
	return nil
}

func (se *StepExecution) forceStatus(next JobStatus) {
	if err := se.TransitionTo(next); err != nil {
		logger.Warnf("%v; forcing status %s.", err, next)
		se.Status = next
		se.LastUpdated = time.Now()
	}
}

func (se *StepExecution) finish(status JobStatus) {
	se.forceStatus(status)
	se.ExitStatus = status.ToExitStatus()
	now := time.Now()
	se.EndTime = &now
	se.LastUpdated = now
}

// MarkAsStarted sets STARTED and the start time.
func (se *StepExecution) MarkAsStarted() {
	se.forceStatus(BatchStatusStarted)
	se.StartTime = time.Now()
}

// MarkAsCompleted sets COMPLETED.
func (se *StepExecution) MarkAsCompleted() { se.finish(BatchStatusCompleted) }

// MarkAsStopped sets STOPPED.
func (se *StepExecution) MarkAsStopped() { se.finish(BatchStatusStopped) }

// MarkAsFailed sets FAILED and records err.
func (se *StepExecution) MarkAsFailed(err error) {
	se.finish(BatchStatusFailed)
	se.AddFailureException(err)
}

// AddFailureException records err once; duplicates are ignored.
func (se *StepExecution) AddFailureException(err error) {
	if err == nil {
		return
	}
	se.Failures = appendFailure(se.Failures, err)
	se.LastUpdated = time.Now()
}
