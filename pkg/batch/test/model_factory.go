package test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
)

// NewTestJobParameters creates JobParameters from a plain map.
func NewTestJobParameters(params map[string]interface{}) model.JobParameters {
	jp := model.NewJobParameters()
	for k, v := range params {
		jp.Put(k, v)
	}
	return jp
}

// NewTestJobExecution creates a JobInstance for jobName and a STARTED execution of it.
func NewTestJobExecution(t testing.TB, jobName string, runID int64) *model.JobExecution {
	t.Helper()
	inst, err := model.NewJobInstance(jobName, model.NewJobParameters())
	require.NoError(t, err)
	je := model.NewJobExecution(inst, runID)
	je.MarkAsStarted()
	return je
}

// NewTestStepExecution attaches a new StepExecution named stepName to je.
func NewTestStepExecution(je *model.JobExecution, stepName string) *model.StepExecution {
	return model.NewStepExecution(je, stepName)
}
