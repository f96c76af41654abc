package repository

import (
	"context"
	"errors"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
)

// ErrCheckpointDataNotFound is returned when a step has no checkpoint yet.
var ErrCheckpointDataNotFound = errors.New("checkpoint data not found")

func init() {
	exception.RegisterErrorType("ErrCheckpointDataNotFound", ErrCheckpointDataNotFound)
}

// CheckpointRepository stores the restart position of chunk-oriented steps.
type CheckpointRepository interface {
	// SaveCheckpoint inserts or replaces the checkpoint for data.StepKey.
	SaveCheckpoint(ctx context.Context, data *model.CheckpointData) error

	// FindCheckpoint returns the checkpoint for stepKey or ErrCheckpointDataNotFound.
	FindCheckpoint(ctx context.Context, stepKey string) (*model.CheckpointData, error)
}

// LoadOffset returns the committed offset for stepKey, 0 when the step has never committed.
func LoadOffset(ctx context.Context, repo CheckpointRepository, stepKey string) (int, error) {
	cp, err := repo.FindCheckpoint(ctx, stepKey)
	if errors.Is(err, ErrCheckpointDataNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cp.Offset, nil
}
