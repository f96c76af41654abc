package inmemory

import (
	"context"
	"fmt"
	"sort"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/repository"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
)

// NextRunID returns the next value of a process-wide counter starting at 1.
func (r *InMemoryJobRepository) NextRunID(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastRunID++
	return r.lastRunID, nil
}

// SaveJobExecution persists a new JobExecution.
// It returns an error if a JobExecution with the same ID already exists.
func (r *InMemoryJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobExecutions[jobExecution.ID]; exists {
		return fmt.Errorf("JobExecution with ID %s already exists", jobExecution.ID)
	}
	if jobExecution.RunID > r.lastRunID {
		r.lastRunID = jobExecution.RunID
	}
	r.jobExecutions[jobExecution.ID] = cloneJobExecution(jobExecution)
	return nil
}

// UpdateJobExecution replaces a stored JobExecution and increments its Version.
// A caller holding an older Version gets exception.ErrOptimisticLockingFailure.
func (r *InMemoryJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.jobExecutions[jobExecution.ID]
	if !exists {
		return fmt.Errorf("JobExecution with ID %s not found for update: %w", jobExecution.ID, repository.ErrJobExecutionNotFound)
	}
	if stored.Version != jobExecution.Version {
		return exception.NewOptimisticLockingFailureException("inmemory",
			fmt.Sprintf("JobExecution %s was updated concurrently (version %d, stored %d)", jobExecution.ID, jobExecution.Version, stored.Version), nil)
	}
	jobExecution.Version++
	r.jobExecutions[jobExecution.ID] = cloneJobExecution(jobExecution)
	return nil
}

// FindJobExecutionByID finds a JobExecution together with its StepExecutions.
func (r *InMemoryJobRepository) FindJobExecutionByID(ctx context.Context, id string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	je, ok := r.jobExecutions[id]
	if !ok {
		return nil, repository.ErrJobExecutionNotFound
	}
	return r.withStepExecutions(je), nil
}

// FindLatestJobExecution finds the JobExecution of jobInstanceID with the highest run id.
func (r *InMemoryJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *model.JobExecution
	for _, je := range r.jobExecutions {
		if je.JobInstanceID != jobInstanceID {
			continue
		}
		if latest == nil || je.RunID > latest.RunID {
			latest = je
		}
	}
	if latest == nil {
		return nil, repository.ErrJobExecutionNotFound
	}
	return r.withStepExecutions(latest), nil
}

// withStepExecutions returns a copy of je linked to copies of its step
// executions, in start order. r.mu must be held.
func (r *InMemoryJobRepository) withStepExecutions(je *model.JobExecution) *model.JobExecution {
	cloned := cloneJobExecution(je)
	var steps []*model.StepExecution
	for _, se := range r.stepExecutions {
		if se.JobExecutionID == je.ID {
			steps = append(steps, cloneStepExecution(se))
		}
	}
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].StartTime.Before(steps[j].StartTime)
	})
	for _, se := range steps {
		cloned.AddStepExecution(se)
	}
	return cloned
}

func cloneJobExecution(je *model.JobExecution) *model.JobExecution {
	cloned := *je
	cloned.Parameters = je.Parameters.Copy()
	cloned.Failures = append([]string(nil), je.Failures...)
	cloned.StepExecutions = make([]*model.StepExecution, 0)
	return &cloned
}
