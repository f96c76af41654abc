package inmemory

import (
	"context"
	"time"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/repository"
)

// SaveCheckpoint replaces the checkpoint stored under data.StepKey.
func (r *InMemoryJobRepository) SaveCheckpoint(ctx context.Context, data *model.CheckpointData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cloned := *data
	cloned.LastUpdated = time.Now()
	r.checkpointData[data.StepKey] = &cloned
	return nil
}

// FindCheckpoint returns a copy of the checkpoint stored under stepKey.
func (r *InMemoryJobRepository) FindCheckpoint(ctx context.Context, stepKey string) (*model.CheckpointData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.checkpointData[stepKey]
	if !ok {
		return nil, repository.ErrCheckpointDataNotFound
	}
	cloned := *data
	return &cloned, nil
}
