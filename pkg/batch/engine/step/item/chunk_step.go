// Package item implements the chunk-oriented step.
package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	itemcomponent "github.com/tigerroll/csvload/pkg/batch/component/item"
	"github.com/tigerroll/csvload/pkg/batch/core/application/port"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/repository"
	"github.com/tigerroll/csvload/pkg/batch/core/metrics"
	"github.com/tigerroll/csvload/pkg/batch/core/tx"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// ErrChunkSizeChanged is returned when a step is restarted with a chunk size
// different from the one its checkpoint was written with.
var ErrChunkSizeChanged = errors.New("chunk size changed since the last checkpoint")

// ErrCheckpointNotSaved is returned when the checkpoint of a chunk could not be
// persisted. The step fails so that a restart never resumes before a chunk
// whose rows were kept.
var ErrCheckpointNotSaved = errors.New("checkpoint not saved")

func init() {
	exception.RegisterErrorType("ErrChunkSizeChanged", ErrChunkSizeChanged)
	exception.RegisterErrorType("ErrCheckpointNotSaved", ErrCheckpointNotSaved)
}

// ChunkStep reads items of type I, maps them to O, processes them and writes
// them in chunks of chunkSize, one transaction per chunk.
//
// Restart is chunk-granular: the checkpoint saved after every commit records
// how many input records the committed chunks consumed, and a restarted step
// skips that many records before reading.
type ChunkStep[I, O any] struct {
	name      string
	reader    port.ItemReader[I]
	mapper    port.ItemMapper[I, O]
	processor port.ItemProcessor[O, O]
	writer    port.ItemWriter[O]
	chunkSize int

	txManager      tx.TransactionManager
	txOptions      *sql.TxOptions
	repo           repository.JobRepository
	checkpointInTx bool

	stepListeners  []port.StepExecutionListener
	chunkListeners []port.ChunkListener
	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

var _ port.Step = (*ChunkStep[any, any])(nil)

// NewChunkStep creates a chunk step. processor may be nil.
func NewChunkStep[I, O any](
	name string,
	reader port.ItemReader[I],
	mapper port.ItemMapper[I, O],
	processor port.ItemProcessor[O, O],
	writer port.ItemWriter[O],
	chunkSize int,
	txManager tx.TransactionManager,
	repo repository.JobRepository,
) (*ChunkStep[I, O], error) {
	switch {
	case name == "":
		return nil, exception.NewBatchErrorf("step", "step name is required")
	case chunkSize <= 0:
		return nil, exception.NewBatchErrorf("step", "step '%s': chunk size must be a positive integer, got %d", name, chunkSize)
	case reader == nil || mapper == nil || writer == nil:
		return nil, exception.NewBatchErrorf("step", "step '%s' needs a reader, a mapper and a writer", name)
	case txManager == nil || repo == nil:
		return nil, exception.NewBatchErrorf("step", "step '%s' needs a transaction manager and a job repository", name)
	}
	if processor == nil {
		processor = itemcomponent.NewPassThroughItemProcessor[O]()
	}
	return &ChunkStep[I, O]{
		name:           name,
		reader:         reader,
		mapper:         mapper,
		processor:      processor,
		writer:         writer,
		chunkSize:      chunkSize,
		txManager:      txManager,
		repo:           repo,
		metricRecorder: metrics.NewNoOpMetricRecorder(),
		tracer:         metrics.NewNoOpTracer(),
	}, nil
}

func (s *ChunkStep[I, O]) StepName() string { return s.name }

// ChunkSize returns the number of items per chunk.
func (s *ChunkStep[I, O]) ChunkSize() int { return s.chunkSize }

func (s *ChunkStep[I, O]) SetMetricRecorder(recorder metrics.MetricRecorder) {
	if recorder != nil {
		s.metricRecorder = recorder
	}
}

func (s *ChunkStep[I, O]) SetTracer(tracer metrics.Tracer) {
	if tracer != nil {
		s.tracer = tracer
	}
}

// SetTransactionOptions sets the options every chunk transaction is begun with.
func (s *ChunkStep[I, O]) SetTransactionOptions(opts *sql.TxOptions) { s.txOptions = opts }

// SetCheckpointInTransaction makes the step save its checkpoint inside each
// chunk transaction instead of after the commit, so rows and offset commit or
// roll back together. The repository must store checkpoints in the database of
// the transaction manager and join the transaction found in the context, as
// the SQL job repository does.
func (s *ChunkStep[I, O]) SetCheckpointInTransaction(enabled bool) { s.checkpointInTx = enabled }

func (s *ChunkStep[I, O]) RegisterStepExecutionListener(l port.StepExecutionListener) {
	s.stepListeners = append(s.stepListeners, l)
}

func (s *ChunkStep[I, O]) RegisterChunkListener(l port.ChunkListener) {
	s.chunkListeners = append(s.chunkListeners, l)
}

// Execute runs the step to completion, failure, or a stop requested through ctx.
// Cancellation is only observed between chunks; a chunk that has started runs
// to commit or rollback. The returned error is also recorded on stepExecution.
func (s *ChunkStep[I, O]) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error {
	logger.Infof("ChunkStep '%s' executing (chunk size %d).", s.name, s.chunkSize)

	ctx, endSpan := s.tracer.StartStepSpan(ctx, stepExecution)
	defer endSpan()

	stepExecution.MarkAsStarted()
	s.metricRecorder.RecordStepStart(ctx, stepExecution)
	for _, l := range s.stepListeners {
		l.BeforeStep(ctx, stepExecution)
	}
	if err := s.repo.UpdateStepExecution(ctx, stepExecution); err != nil {
		return s.finish(ctx, stepExecution, exception.NewBatchError(s.name, "failed to update StepExecution status to STARTED", err), false)
	}

	stepKey := model.CheckpointKey(jobExecution.JobInstanceID, s.name)
	if err := s.restore(ctx, stepKey, stepExecution); err != nil {
		return s.finish(ctx, stepExecution, err, false)
	}
	if err := s.open(ctx, stepExecution.Offset); err != nil {
		return s.finish(ctx, stepExecution, err, true)
	}

	savedOffset := stepExecution.Offset
	var stepErr error
	for {
		if ctx.Err() != nil {
			logger.Warnf("ChunkStep '%s': stop requested (%v). Stopping after %d committed chunks at offset %d.",
				s.name, context.Cause(ctx), stepExecution.CommitCount, stepExecution.Offset)
			stepExecution.MarkAsStopped()
			break
		}
		done, err := s.processChunk(ctx, stepKey, stepExecution, &savedOffset)
		if err != nil {
			stepErr = err
			break
		}
		if done {
			break
		}
	}
	return s.finish(ctx, stepExecution, stepErr, true)
}

// restore loads the checkpoint of stepKey into stepExecution.
func (s *ChunkStep[I, O]) restore(ctx context.Context, stepKey string, se *model.StepExecution) error {
	cp, err := s.repo.FindCheckpoint(ctx, stepKey)
	if errors.Is(err, repository.ErrCheckpointDataNotFound) {
		return nil
	}
	if err != nil {
		return exception.NewBatchError(s.name, "failed to load checkpoint", err)
	}
	if cp.ChunkSize != s.chunkSize {
		return exception.NewBatchError(s.name,
			fmt.Sprintf("checkpoint '%s' was written with chunk size %d but the step is configured with %d", stepKey, cp.ChunkSize, s.chunkSize),
			ErrChunkSizeChanged)
	}
	se.Offset = cp.Offset
	se.CommitCount = cp.ChunksCommitted
	se.ReadCount = cp.ReadCount
	se.WriteCount = cp.WriteCount
	se.FilterCount = cp.FilterCount
	s.tracer.RecordEvent(ctx, "checkpoint.restored", map[string]interface{}{
		"batch.step.offset":           cp.Offset,
		"batch.step.chunks_committed": cp.ChunksCommitted,
	})
	logger.Infof("ChunkStep '%s': restarting from offset %d (%d chunks already committed).", s.name, cp.Offset, cp.ChunksCommitted)
	return nil
}

// open opens the reader and moves it to offset.
func (s *ChunkStep[I, O]) open(ctx context.Context, offset int) error {
	if err := s.reader.Open(ctx); err != nil {
		return exception.NewBatchError(s.name, "failed to open ItemReader", err)
	}
	if offset == 0 {
		return nil
	}
	if skipper, ok := s.reader.(port.Skipper); ok {
		if err := skipper.Skip(ctx, offset); err != nil {
			return exception.NewBatchError(s.name, fmt.Sprintf("failed to skip to offset %d", offset), err)
		}
		return nil
	}
	for i := 0; i < offset; i++ {
		if _, err := s.reader.Read(ctx); err != nil {
			return exception.NewBatchError(s.name, fmt.Sprintf("failed to skip to offset %d (stopped at %d)", offset, i), err)
		}
	}
	return nil
}

// processChunk assembles and writes one chunk inside one transaction, then
// records the checkpoint. savedOffset tracks the offset of the last checkpoint
// actually persisted. It reports done when the reader is exhausted.
func (s *ChunkStep[I, O]) processChunk(parent context.Context, stepKey string, se *model.StepExecution, savedOffset *int) (done bool, err error) {
	chunkIndex := se.CommitCount
	// A started chunk is not interrupted by cancellation of parent.
	ctx, endSpan := s.tracer.StartChunkSpan(context.WithoutCancel(parent), se, chunkIndex)
	defer endSpan()

	for _, l := range s.chunkListeners {
		l.BeforeChunk(ctx, se)
	}

	var (
		read, filtered int
		items          = make([]O, 0, s.chunkSize)
	)
	err = func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic while processing chunk: %v", p)
			}
		}()
		return tx.WithTransaction(ctx, s.txManager, func(ctx context.Context, t tx.Tx) error {
			for len(items) < s.chunkSize {
				raw, err := s.reader.Read(ctx)
				if errors.Is(err, port.ErrNoMoreItems) {
					done = true
					break
				}
				if err != nil {
					return err
				}
				read++

				mapped, err := s.mapper.Map(ctx, raw)
				if err != nil {
					return err
				}
				out, err := s.processor.Process(ctx, mapped)
				if errors.Is(err, port.ErrSkipItem) {
					filtered++
					continue
				}
				if err != nil {
					return err
				}
				items = append(items, out)
			}
			if len(items) == 0 {
				return nil
			}
			if err := s.writer.Write(ctx, t, items); err != nil {
				return err
			}
			if !s.checkpointInTx {
				return nil
			}
			// se is only advanced after the commit.
			cp := s.checkpoint(stepKey, se)
			cp.Offset += read
			cp.ChunksCommitted++
			cp.ReadCount += read
			cp.WriteCount += len(items)
			cp.FilterCount += filtered
			if err := s.repo.SaveCheckpoint(tx.ContextWithTx(ctx, t), cp); err != nil {
				return fmt.Errorf("%w: %w", ErrCheckpointNotSaved, err)
			}
			return nil
		}, s.txOptions)
	}()

	if err != nil {
		se.RollbackCount++
		s.metricRecorder.RecordChunkRollback(ctx, se)
		s.tracer.RecordError(ctx, s.name, err)
		for _, l := range s.chunkListeners {
			l.AfterChunkError(ctx, se, err)
		}
		return false, &exception.ChunkError{Step: s.name, ChunkIndex: chunkIndex, Offset: *savedOffset, Err: err}
	}

	se.ReadCount += read
	se.FilterCount += filtered
	if len(items) == 0 {
		// Only filtered records (or none) were left before the end of input.
		// Nothing was written, so a restart may safely read them again.
		se.Offset += read
		return done, nil
	}
	se.WriteCount += len(items)
	se.CommitCount++
	s.metricRecorder.RecordChunkCommit(ctx, se, read, filtered, len(items))

	if !s.checkpointInTx {
		cp := s.checkpoint(stepKey, se)
		cp.Offset += read
		if err := s.repo.SaveCheckpoint(ctx, cp); err != nil {
			// The chunk is committed but a restart would replay it.
			s.tracer.RecordError(ctx, s.name, err)
			for _, l := range s.chunkListeners {
				l.AfterChunkError(ctx, se, err)
			}
			return false, &exception.ChunkError{Step: s.name, ChunkIndex: chunkIndex, Offset: *savedOffset, Committed: true,
				Err: fmt.Errorf("%w: %w", ErrCheckpointNotSaved, err)}
		}
	}
	se.Offset += read
	*savedOffset = se.Offset
	logger.Debugf("ChunkStep '%s': checkpoint saved (offset %d, chunks %d).", s.name, se.Offset, se.CommitCount)

	for _, l := range s.chunkListeners {
		l.AfterChunk(ctx, se)
	}
	return done, nil
}

// checkpoint returns the checkpoint describing se.
func (s *ChunkStep[I, O]) checkpoint(stepKey string, se *model.StepExecution) *model.CheckpointData {
	cp := &model.CheckpointData{
		StepKey:         stepKey,
		StepName:        s.name,
		Offset:          se.Offset,
		ChunksCommitted: se.CommitCount,
		ChunkSize:       s.chunkSize,
		ReadCount:       se.ReadCount,
		WriteCount:      se.WriteCount,
		FilterCount:     se.FilterCount,
	}
	if se.JobExecution != nil {
		cp.JobInstanceID = se.JobExecution.JobInstanceID
	}
	return cp
}

// finish closes the reader and writer when opened, sets the final status and
// persists stepExecution.
func (s *ChunkStep[I, O]) finish(ctx context.Context, se *model.StepExecution, stepErr error, opened bool) error {
	if opened {
		var closeErr error
		if err := s.reader.Close(ctx); err != nil {
			closeErr = multierror.Append(closeErr, fmt.Errorf("close reader: %w", err))
		}
		if err := s.writer.Close(ctx); err != nil {
			closeErr = multierror.Append(closeErr, fmt.Errorf("close writer: %w", err))
		}
		if closeErr != nil {
			logger.Warnf("ChunkStep '%s': %v", s.name, closeErr)
			if stepErr == nil {
				stepErr = exception.NewBatchError(s.name, "failed to release step resources", closeErr)
			}
		}
	}

	switch {
	case stepErr != nil:
		s.tracer.RecordError(ctx, s.name, stepErr)
		se.MarkAsFailed(stepErr)
		logger.Errorf("ChunkStep '%s' failed: %v", s.name, stepErr)
	case se.Status == model.BatchStatusStopped:
	default:
		se.MarkAsCompleted()
	}

	for _, l := range s.stepListeners {
		l.AfterStep(ctx, se)
	}
	s.metricRecorder.RecordStepEnd(ctx, se)

	if err := s.repo.UpdateStepExecution(context.WithoutCancel(ctx), se); err != nil {
		logger.Errorf("ChunkStep '%s': failed to update final StepExecution state: %v", s.name, err)
		if stepErr == nil {
			stepErr = err
		}
	}
	logger.Infof("ChunkStep '%s' finished. Status: %s, read: %d, written: %d, filtered: %d, chunks: %d, offset: %d.",
		s.name, se.Status, se.ReadCount, se.WriteCount, se.FilterCount, se.CommitCount, se.Offset)
	return stepErr
}
