package inmemory

import (
	"context"
	"fmt"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/repository"
)

// SaveJobInstance persists a new JobInstance.
// It returns an error if a JobInstance with the same ID already exists.
func (r *InMemoryJobRepository) SaveJobInstance(ctx context.Context, jobInstance *model.JobInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobInstances[jobInstance.ID]; exists {
		return fmt.Errorf("JobInstance with ID %s already exists", jobInstance.ID)
	}
	cloned := *jobInstance
	cloned.Parameters = jobInstance.Parameters.Copy()
	r.jobInstances[jobInstance.ID] = &cloned
	return nil
}

// FindJobInstanceByID finds a JobInstance by its ID.
func (r *InMemoryJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ji, ok := r.jobInstances[id]
	if !ok {
		return nil, repository.ErrJobInstanceNotFound
	}
	cloned := *ji
	return &cloned, nil
}

// FindJobInstanceByJobNameAndParameters finds the JobInstance of jobName whose
// parameters hash equals the hash of params.
func (r *InMemoryJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ji := range r.jobInstances {
		if ji.JobName == jobName && ji.ParametersHash == hash {
			cloned := *ji
			return &cloned, nil
		}
	}
	return nil, repository.ErrJobInstanceNotFound
}

// FindLatestJobInstance returns the most recently created JobInstance of jobName.
func (r *InMemoryJobRepository) FindLatestJobInstance(ctx context.Context, jobName string) (*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *model.JobInstance
	for _, ji := range r.jobInstances {
		if ji.JobName != jobName {
			continue
		}
		if latest == nil || ji.CreateTime.After(latest.CreateTime) {
			latest = ji
		}
	}
	if latest == nil {
		return nil, repository.ErrJobInstanceNotFound
	}
	cloned := *latest
	return &cloned, nil
}
