// Package sql provides a JobRepository backed by a relational database through
// the gorm adapter. Tables are created by the framework migrations of the
// component/tasklet/migration/filesystem package.
package sql

import (
	"context"
	"fmt"
	"time"

	"github.com/tigerroll/csvload/pkg/batch/adapter/database"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/repository"
	"github.com/tigerroll/csvload/pkg/batch/core/tx"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
)

// SQLJobRepository implements repository.JobRepository on a DBConnection.
type SQLJobRepository struct {
	conn database.DBConnection
}

var _ repository.JobRepository = (*SQLJobRepository)(nil)

// NewSQLJobRepository creates a repository on conn. The repository does not own conn.
func NewSQLJobRepository(conn database.DBConnection) *SQLJobRepository {
	return &SQLJobRepository{conn: conn}
}

// getTxExecutor returns the Tx carried by ctx, or the connection itself when
// there is none. Callers only put a Tx of this connection's database in ctx.
func (r *SQLJobRepository) getTxExecutor(ctx context.Context) tx.TxExecutor {
	if t, ok := tx.TxFromContext(ctx); ok {
		return t
	}
	return r.conn
}

// --- JobInstance implementation ---

func (r *SQLJobRepository) SaveJobInstance(ctx context.Context, instance *model.JobInstance) error {
	const op = "SQLJobRepository.SaveJobInstance"
	entity, err := fromDomainJobInstance(instance)
	if err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to serialize parameters of JobInstance (ID: %s)", instance.ID), err)
	}
	if _, err := r.getTxExecutor(ctx).ExecuteUpdate(ctx, entity, "CREATE", entity.TableName(), nil); err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to save JobInstance (ID: %s)", instance.ID), err)
	}
	return nil
}

func (r *SQLJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	return r.findJobInstance(ctx, "SQLJobRepository.FindJobInstanceByID", map[string]interface{}{"id": id}, "")
}

func (r *SQLJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	const op = "SQLJobRepository.FindJobInstanceByJobNameAndParameters"
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	return r.findJobInstance(ctx, op, map[string]interface{}{"job_name": jobName, "parameters_hash": hash}, "")
}

func (r *SQLJobRepository) FindLatestJobInstance(ctx context.Context, jobName string) (*model.JobInstance, error) {
	return r.findJobInstance(ctx, "SQLJobRepository.FindLatestJobInstance", map[string]interface{}{"job_name": jobName}, "create_time desc")
}

func (r *SQLJobRepository) findJobInstance(ctx context.Context, op string, query map[string]interface{}, orderBy string) (*model.JobInstance, error) {
	var entities []JobInstanceEntity
	if err := r.conn.ExecuteQueryAdvanced(ctx, &entities, query, orderBy, 1); err != nil {
		if r.conn.IsTableNotExistError(err) {
			return nil, repository.ErrJobInstanceNotFound
		}
		return nil, exception.NewBatchError(op, "failed to query JobInstance", err)
	}
	if len(entities) == 0 {
		return nil, repository.ErrJobInstanceNotFound
	}
	instance, err := toDomainJobInstance(&entities[0])
	if err != nil {
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to restore parameters of JobInstance (ID: %s)", entities[0].ID), err)
	}
	return instance, nil
}

// --- JobExecution implementation ---

// NextRunID inserts a row into batch_job_seq and returns its generated ID.
func (r *SQLJobRepository) NextRunID(ctx context.Context) (int64, error) {
	const op = "SQLJobRepository.NextRunID"
	seq := &JobSeqEntity{CreateTime: time.Now()}
	if _, err := r.getTxExecutor(ctx).ExecuteUpdate(ctx, seq, "CREATE", seq.TableName(), nil); err != nil {
		return 0, exception.NewBatchError(op, "failed to allocate run id", err)
	}
	if seq.ID <= 0 {
		return 0, exception.NewBatchErrorf(op, "database returned no run id")
	}
	return seq.ID, nil
}

func (r *SQLJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	const op = "SQLJobRepository.SaveJobExecution"
	entity, err := fromDomainJobExecution(jobExecution)
	if err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to serialize parameters of JobExecution (ID: %s)", jobExecution.ID), err)
	}
	if _, err := r.getTxExecutor(ctx).ExecuteUpdate(ctx, entity, "CREATE", entity.TableName(), nil); err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to save JobExecution (ID: %s)", jobExecution.ID), err)
	}
	return nil
}

// UpdateJobExecution writes jobExecution where the stored version still equals
// jobExecution.Version, then increments Version.
func (r *SQLJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	const op = "SQLJobRepository.UpdateJobExecution"

	originalVersion := jobExecution.Version
	jobExecution.Version++
	entity, err := fromDomainJobExecution(jobExecution)
	if err != nil {
		jobExecution.Version = originalVersion
		return exception.NewBatchError(op, fmt.Sprintf("failed to serialize parameters of JobExecution (ID: %s)", jobExecution.ID), err)
	}

	rowsAffected, err := r.getTxExecutor(ctx).ExecuteUpdate(ctx, entity, "UPDATE", entity.TableName(),
		map[string]interface{}{"version": originalVersion})
	if err != nil {
		jobExecution.Version = originalVersion
		return exception.NewBatchError(op, fmt.Sprintf("failed to update JobExecution (ID: %s)", jobExecution.ID), err)
	}
	if rowsAffected == 0 {
		jobExecution.Version = originalVersion
		return exception.NewOptimisticLockingFailureException("repository",
			fmt.Sprintf("JobExecution (ID: %s) with version %d not found for update", jobExecution.ID, originalVersion), nil)
	}
	return nil
}

func (r *SQLJobRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error) {
	return r.findJobExecution(ctx, "SQLJobRepository.FindJobExecutionByID", map[string]interface{}{"id": executionID}, "")
}

func (r *SQLJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	return r.findJobExecution(ctx, "SQLJobRepository.FindLatestJobExecution", map[string]interface{}{"job_instance_id": jobInstanceID}, "run_id desc")
}

func (r *SQLJobRepository) findJobExecution(ctx context.Context, op string, query map[string]interface{}, orderBy string) (*model.JobExecution, error) {
	var entities []JobExecutionEntity
	if err := r.conn.ExecuteQueryAdvanced(ctx, &entities, query, orderBy, 1); err != nil {
		if r.conn.IsTableNotExistError(err) {
			return nil, repository.ErrJobExecutionNotFound
		}
		return nil, exception.NewBatchError(op, "failed to query JobExecution", err)
	}
	if len(entities) == 0 {
		return nil, repository.ErrJobExecutionNotFound
	}
	jobExecution, err := toDomainJobExecution(&entities[0])
	if err != nil {
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to restore parameters of JobExecution (ID: %s)", entities[0].ID), err)
	}

	stepExecutions, err := r.findStepExecutionsByJobExecutionID(ctx, jobExecution.ID)
	if err != nil {
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to load StepExecutions of JobExecution (ID: %s)", jobExecution.ID), err)
	}
	for _, se := range stepExecutions {
		jobExecution.AddStepExecution(se)
	}
	return jobExecution, nil
}

func (r *SQLJobRepository) findStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error) {
	var entities []StepExecutionEntity
	if err := r.conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"job_execution_id": jobExecutionID}, "start_time, step_name", 0); err != nil {
		if r.conn.IsTableNotExistError(err) {
			return nil, nil
		}
		return nil, err
	}
	stepExecutions := make([]*model.StepExecution, 0, len(entities))
	for i := range entities {
		stepExecutions = append(stepExecutions, toDomainStepExecution(&entities[i]))
	}
	return stepExecutions, nil
}

// --- StepExecution implementation ---

func (r *SQLJobRepository) SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	const op = "SQLJobRepository.SaveStepExecution"
	entity := fromDomainStepExecution(stepExecution)
	if _, err := r.getTxExecutor(ctx).ExecuteUpdate(ctx, entity, "CREATE", entity.TableName(), nil); err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to save StepExecution (ID: %s)", stepExecution.ID), err)
	}
	return nil
}

func (r *SQLJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	const op = "SQLJobRepository.UpdateStepExecution"

	originalVersion := stepExecution.Version
	stepExecution.Version++
	entity := fromDomainStepExecution(stepExecution)

	rowsAffected, err := r.getTxExecutor(ctx).ExecuteUpdate(ctx, entity, "UPDATE", entity.TableName(),
		map[string]interface{}{"version": originalVersion})
	if err != nil {
		stepExecution.Version = originalVersion
		return exception.NewBatchError(op, fmt.Sprintf("failed to update StepExecution (ID: %s)", stepExecution.ID), err)
	}
	if rowsAffected == 0 {
		stepExecution.Version = originalVersion
		return exception.NewOptimisticLockingFailureException("repository",
			fmt.Sprintf("StepExecution (ID: %s) with version %d not found for update", stepExecution.ID, originalVersion), nil)
	}
	return nil
}

func (r *SQLJobRepository) FindStepExecutionByID(ctx context.Context, executionID string) (*model.StepExecution, error) {
	const op = "SQLJobRepository.FindStepExecutionByID"
	var entities []StepExecutionEntity
	if err := r.conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"id": executionID}, "", 1); err != nil {
		if r.conn.IsTableNotExistError(err) {
			return nil, repository.ErrStepExecutionNotFound
		}
		return nil, exception.NewBatchError(op, "failed to query StepExecution", err)
	}
	if len(entities) == 0 {
		return nil, repository.ErrStepExecutionNotFound
	}
	return toDomainStepExecution(&entities[0]), nil
}

// --- CheckpointData implementation ---

// SaveCheckpoint upserts the row keyed by data.StepKey.
func (r *SQLJobRepository) SaveCheckpoint(ctx context.Context, data *model.CheckpointData) error {
	const op = "SQLJobRepository.SaveCheckpoint"
	entity := fromDomainCheckpointData(data)
	entity.LastUpdated = time.Now()
	if _, err := r.getTxExecutor(ctx).ExecuteUpsert(ctx, entity, entity.TableName(), []string{"step_key"}, checkpointUpdateColumns); err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to save checkpoint '%s'", data.StepKey), err)
	}
	return nil
}

func (r *SQLJobRepository) FindCheckpoint(ctx context.Context, stepKey string) (*model.CheckpointData, error) {
	const op = "SQLJobRepository.FindCheckpoint"
	var entities []CheckpointDataEntity
	if err := r.conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"step_key": stepKey}, "", 1); err != nil {
		if r.conn.IsTableNotExistError(err) {
			return nil, repository.ErrCheckpointDataNotFound
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to query checkpoint '%s'", stepKey), err)
	}
	if len(entities) == 0 {
		return nil, repository.ErrCheckpointDataNotFound
	}
	return toDomainCheckpointData(&entities[0]), nil
}

// Close does not close the connection; its provider does.
func (r *SQLJobRepository) Close() error {
	return nil
}
