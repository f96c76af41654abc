// Package port defines the contracts between the execution engine and the
// components it drives: readers, mappers, processors, writers, steps, jobs and
// their listeners.
package port

import (
	"context"
	"errors"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/tx"
)

// ErrNoMoreItems is returned by ItemReader.Read at the end of its input.
var ErrNoMoreItems = errors.New("no more items to read")

// ErrSkipItem is returned by an ItemProcessor to filter the item out of the
// chunk. A filtered item is counted, not treated as a failure.
var ErrSkipItem = errors.New("item filtered")

// ItemReader produces items one at a time, forward only.
type ItemReader[O any] interface {
	// Open prepares the underlying input.
	Open(ctx context.Context) error
	// Read returns the next item, or ErrNoMoreItems.
	Read(ctx context.Context) (O, error)
	// Close releases the input.
	Close(ctx context.Context) error
}

// Skipper is implemented by readers that can discard n items more cheaply
// than reading them. Steps use it to move to a restart offset.
type Skipper interface {
	Skip(ctx context.Context, n int) error
}

// ItemMapper converts one raw item into a typed item. Implementations are pure.
type ItemMapper[I, O any] interface {
	Map(ctx context.Context, item I) (O, error)
}

// ItemProcessor transforms one item. It returns ErrSkipItem to filter the item
// and any other error to fail the current chunk.
type ItemProcessor[I, O any] interface {
	Process(ctx context.Context, item I) (O, error)
}

// ItemWriter persists one chunk through the chunk's transaction.
// Either every item of the chunk is written or an error is returned; the
// caller rolls the transaction back on error.
type ItemWriter[I any] interface {
	Write(ctx context.Context, t tx.Tx, items []I) error
	// Close releases writer resources at the end of the step.
	Close(ctx context.Context) error
}

// Step is one execution unit of a Job.
type Step interface {
	// StepName returns the name unique within the job. It is part of the checkpoint key.
	StepName() string
	// Execute runs the step, updating stepExecution. The returned error is also
	// recorded on stepExecution.
	Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error
}

// Job is an ordered sequence of steps sharing a run identity.
type Job interface {
	JobName() string
	Steps() []Step
	// Run executes the steps of jobExecution sequentially.
	Run(ctx context.Context, jobExecution *model.JobExecution) error
	// Incrementer returns the parameters incrementer used to start a new instance, or nil.
	Incrementer() JobParametersIncrementer
}

// JobParametersIncrementer derives the parameters of the next job instance.
type JobParametersIncrementer interface {
	GetNext(params model.JobParameters) model.JobParameters
}

// JobExecutionListener is notified around a job execution.
type JobExecutionListener interface {
	BeforeJob(ctx context.Context, jobExecution *model.JobExecution)
	AfterJob(ctx context.Context, jobExecution *model.JobExecution)
}

// StepExecutionListener is notified around a step execution.
type StepExecutionListener interface {
	BeforeStep(ctx context.Context, stepExecution *model.StepExecution)
	AfterStep(ctx context.Context, stepExecution *model.StepExecution)
}

// ChunkListener is notified around each chunk transaction.
type ChunkListener interface {
	BeforeChunk(ctx context.Context, stepExecution *model.StepExecution)
	AfterChunk(ctx context.Context, stepExecution *model.StepExecution)
	AfterChunkError(ctx context.Context, stepExecution *model.StepExecution, err error)
}

// Tasklet is a single unit of work run by a tasklet step, such as a schema migration.
type Tasklet interface {
	// Execute performs the work and returns the step's exit status.
	Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error)
	// Close releases tasklet resources.
	Close(ctx context.Context) error
}
