package repository

import (
	"context"
	"errors"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
)

// ErrJobInstanceNotFound is returned when a JobInstance is not found.
var ErrJobInstanceNotFound = errors.New("job instance not found")

func init() {
	exception.RegisterErrorType("ErrJobInstanceNotFound", ErrJobInstanceNotFound)
}

// JobInstance persists job instances.
type JobInstance interface {
	// SaveJobInstance persists a new JobInstance.
	SaveJobInstance(ctx context.Context, instance *model.JobInstance) error

	// FindJobInstanceByID finds a JobInstance by its ID.
	FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error)

	// FindJobInstanceByJobNameAndParameters finds the instance whose parameters hash equals params'.
	FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error)

	// FindLatestJobInstance returns the most recently created instance of jobName.
	FindLatestJobInstance(ctx context.Context, jobName string) (*model.JobInstance, error)
}
