// Package incrementer derives the parameters of the next job instance.
package incrementer

import (
	"fmt"

	"github.com/tigerroll/csvload/pkg/batch/core/application/port"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// DefaultRunIDKey is the parameter RunIDIncrementer increments when no name is given.
const DefaultRunIDKey = "run.id"

// RunIDIncrementer sets a numeric parameter to 1 when absent and increments it otherwise,
// so every call yields parameters that identify a new job instance.
type RunIDIncrementer struct {
	name string
}

// NewRunIDIncrementer creates a RunIDIncrementer for the parameter name
// (DefaultRunIDKey when empty).
func NewRunIDIncrementer(name string) *RunIDIncrementer {
	if name == "" {
		name = DefaultRunIDKey
	}
	return &RunIDIncrementer{name: name}
}

// GetNext returns a copy of params with the run id parameter incremented.
func (i *RunIDIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	next := params.Copy()

	current, ok := params.GetInt64(i.name)
	if !ok {
		next.Put(i.name, int64(1))
		logger.Debugf("RunIDIncrementer: '%s' not found, setting it to 1.", i.name)
		return next
	}
	next.Put(i.name, current+1)
	logger.Debugf("RunIDIncrementer: incrementing '%s' from %d to %d.", i.name, current, current+1)
	return next
}

func (i *RunIDIncrementer) String() string {
	return fmt.Sprintf("RunIDIncrementer[name=%s]", i.name)
}

var _ port.JobParametersIncrementer = (*RunIDIncrementer)(nil)
