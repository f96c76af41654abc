package inmemory

import (
	"context"
	"fmt"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/repository"
)

// SaveStepExecution persists a new StepExecution.
// It returns an error if a StepExecution with the same ID already exists.
func (r *InMemoryJobRepository) SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stepExecutions[stepExecution.ID]; exists {
		return fmt.Errorf("StepExecution with ID %s already exists", stepExecution.ID)
	}
	r.stepExecutions[stepExecution.ID] = cloneStepExecution(stepExecution)
	return nil
}

// UpdateStepExecution replaces a stored StepExecution.
func (r *InMemoryJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stepExecutions[stepExecution.ID]; !exists {
		return fmt.Errorf("StepExecution with ID %s not found for update: %w", stepExecution.ID, repository.ErrStepExecutionNotFound)
	}
	stepExecution.Version++
	r.stepExecutions[stepExecution.ID] = cloneStepExecution(stepExecution)
	return nil
}

// FindStepExecutionByID finds a StepExecution by its ID.
func (r *InMemoryJobRepository) FindStepExecutionByID(ctx context.Context, id string) (*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	se, ok := r.stepExecutions[id]
	if !ok {
		return nil, repository.ErrStepExecutionNotFound
	}
	return cloneStepExecution(se), nil
}

// cloneStepExecution copies se without its JobExecution back-reference.
func cloneStepExecution(se *model.StepExecution) *model.StepExecution {
	cloned := *se
	cloned.JobExecution = nil
	cloned.Failures = append([]string(nil), se.Failures...)
	return &cloned
}
