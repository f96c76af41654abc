// Package logging provides job, step and chunk listeners that write lifecycle
// events to the batch logger.
package logging

import (
	"context"
	"time"

	"github.com/tigerroll/csvload/pkg/batch/core/application/port"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// --- Job Execution Listener ---

type LoggingJobListener struct{}

func NewLoggingJobListener() *LoggingJobListener {
	return &LoggingJobListener{}
}

func (l *LoggingJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	logger.Infof("JobExecutionListener: BeforeJob - JobName: %s, ID: %s, RunID: %d, Restart: %d, Params: %s",
		jobExecution.JobName, jobExecution.ID, jobExecution.RunID, jobExecution.RestartCount, jobExecution.Parameters)
}

// AfterJob logs a one-line summary; anything but COMPLETED is logged as a warning.
func (l *LoggingJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	duration := time.Duration(0)
	if jobExecution.EndTime != nil {
		duration = jobExecution.EndTime.Sub(jobExecution.StartTime)
	}
	const format = "JobExecutionListener: AfterJob - JobName: %s, Status: %s, ExitStatus: %s, Duration: %s, Failures: %d"
	if jobExecution.Status == model.BatchStatusCompleted {
		logger.Infof(format, jobExecution.JobName, jobExecution.Status, jobExecution.ExitStatus, duration, len(jobExecution.Failures))
		return
	}
	logger.Warnf(format, jobExecution.JobName, jobExecution.Status, jobExecution.ExitStatus, duration, len(jobExecution.Failures))
	for _, f := range jobExecution.Failures {
		logger.Warnf("JobExecutionListener: failure - %s", f)
	}
}

var _ port.JobExecutionListener = (*LoggingJobListener)(nil)

// --- Step Execution Listener ---

type LoggingStepListener struct{}

func NewLoggingStepListener() *LoggingStepListener {
	return &LoggingStepListener{}
}

func (l *LoggingStepListener) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Infof("StepExecutionListener: BeforeStep - StepName: %s, ID: %s, Offset: %d", stepExecution.StepName, stepExecution.ID, stepExecution.Offset)
}

func (l *LoggingStepListener) AfterStep(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Infof("StepExecutionListener: AfterStep - StepName: %s, Status: %s, ExitStatus: %s, Read: %d, Filtered: %d, Written: %d, Commits: %d, Rollbacks: %d",
		stepExecution.StepName, stepExecution.Status, stepExecution.ExitStatus,
		stepExecution.ReadCount, stepExecution.FilterCount, stepExecution.WriteCount,
		stepExecution.CommitCount, stepExecution.RollbackCount)
}

var _ port.StepExecutionListener = (*LoggingStepListener)(nil)

// --- Chunk Listener ---

type LoggingChunkListener struct{}

func NewLoggingChunkListener() *LoggingChunkListener {
	return &LoggingChunkListener{}
}

func (l *LoggingChunkListener) BeforeChunk(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Debugf("ChunkListener: BeforeChunk - StepName: %s, Chunk: %d, Offset: %d", stepExecution.StepName, stepExecution.CommitCount, stepExecution.Offset)
}

func (l *LoggingChunkListener) AfterChunk(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Debugf("ChunkListener: AfterChunk - StepName: %s, Read: %d, Write: %d, Offset: %d", stepExecution.StepName, stepExecution.ReadCount, stepExecution.WriteCount, stepExecution.Offset)
}

func (l *LoggingChunkListener) AfterChunkError(ctx context.Context, stepExecution *model.StepExecution, err error) {
	logger.Errorf("ChunkListener: AfterChunkError - StepName: %s, Chunk: %d rolled back: %v", stepExecution.StepName, stepExecution.CommitCount, err)
}

var _ port.ChunkListener = (*LoggingChunkListener)(nil)
