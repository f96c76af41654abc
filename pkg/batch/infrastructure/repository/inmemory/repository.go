// Package inmemory provides a JobRepository that keeps all metadata in process
// memory. It is meant for tests and for runs that do not need to survive a crash.
package inmemory

import (
	"sync"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/repository"
)

// InMemoryJobRepository stores copies of everything it is given, so callers
// mutating their objects do not change what was persisted.
type InMemoryJobRepository struct {
	jobInstances   map[string]*model.JobInstance
	jobExecutions  map[string]*model.JobExecution
	stepExecutions map[string]*model.StepExecution
	checkpointData map[string]*model.CheckpointData
	lastRunID      int64
	mu             sync.RWMutex
}

var _ repository.JobRepository = (*InMemoryJobRepository)(nil)

// NewInMemoryJobRepository creates an empty repository.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobInstances:   make(map[string]*model.JobInstance),
		jobExecutions:  make(map[string]*model.JobExecution),
		stepExecutions: make(map[string]*model.StepExecution),
		checkpointData: make(map[string]*model.CheckpointData),
	}
}

// Close is a no-op.
func (r *InMemoryJobRepository) Close() error {
	return nil
}
