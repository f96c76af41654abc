package sql

import (
	"time"

	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
)

func fromDomainJobInstance(ji *model.JobInstance) (*JobInstanceEntity, error) {
	params, err := ji.Parameters.ToJSON()
	if err != nil {
		return nil, err
	}
	return &JobInstanceEntity{
		ID:             ji.ID,
		JobName:        ji.JobName,
		Parameters:     params,
		ParametersHash: ji.ParametersHash,
		CreateTime:     ji.CreateTime,
		Version:        ji.Version,
	}, nil
}

func toDomainJobInstance(entity *JobInstanceEntity) (*model.JobInstance, error) {
	params, err := model.ParseJobParameters(entity.Parameters)
	if err != nil {
		return nil, err
	}
	return &model.JobInstance{
		ID:             entity.ID,
		JobName:        entity.JobName,
		Parameters:     params,
		ParametersHash: entity.ParametersHash,
		CreateTime:     entity.CreateTime,
		Version:        entity.Version,
	}, nil
}

func fromDomainJobExecution(je *model.JobExecution) (*JobExecutionEntity, error) {
	params, err := je.Parameters.ToJSON()
	if err != nil {
		return nil, err
	}
	return &JobExecutionEntity{
		ID:            je.ID,
		RunID:         je.RunID,
		JobInstanceID: je.JobInstanceID,
		JobName:       je.JobName,
		Parameters:    params,
		Status:        string(je.Status),
		ExitStatus:    string(je.ExitStatus),
		StartTime:     timePtr(je.StartTime),
		EndTime:       je.EndTime,
		CreateTime:    je.CreateTime,
		LastUpdated:   je.LastUpdated,
		Failures:      nonNil(je.Failures),
		RestartCount:  je.RestartCount,
		Version:       je.Version,
	}, nil
}

func toDomainJobExecution(entity *JobExecutionEntity) (*model.JobExecution, error) {
	params, err := model.ParseJobParameters(entity.Parameters)
	if err != nil {
		return nil, err
	}
	return &model.JobExecution{
		ID:             entity.ID,
		RunID:          entity.RunID,
		JobInstanceID:  entity.JobInstanceID,
		JobName:        entity.JobName,
		Parameters:     params,
		Status:         model.JobStatus(entity.Status),
		ExitStatus:     model.ExitStatus(entity.ExitStatus),
		StartTime:      timeValue(entity.StartTime),
		EndTime:        entity.EndTime,
		CreateTime:     entity.CreateTime,
		LastUpdated:    entity.LastUpdated,
		Failures:       nonNil(entity.Failures),
		StepExecutions: make([]*model.StepExecution, 0),
		RestartCount:   entity.RestartCount,
		Version:        entity.Version,
	}, nil
}

func fromDomainStepExecution(se *model.StepExecution) *StepExecutionEntity {
	return &StepExecutionEntity{
		ID:             se.ID,
		StepName:       se.StepName,
		JobExecutionID: se.JobExecutionID,
		Status:         string(se.Status),
		ExitStatus:     string(se.ExitStatus),
		StartTime:      timePtr(se.StartTime),
		EndTime:        se.EndTime,
		ReadCount:      se.ReadCount,
		WriteCount:     se.WriteCount,
		FilterCount:    se.FilterCount,
		CommitCount:    se.CommitCount,
		RollbackCount:  se.RollbackCount,
		Offset:         se.Offset,
		Failures:       nonNil(se.Failures),
		LastUpdated:    se.LastUpdated,
		Version:        se.Version,
	}
}

func toDomainStepExecution(entity *StepExecutionEntity) *model.StepExecution {
	return &model.StepExecution{
		ID:             entity.ID,
		StepName:       entity.StepName,
		JobExecutionID: entity.JobExecutionID,
		Status:         model.JobStatus(entity.Status),
		ExitStatus:     model.ExitStatus(entity.ExitStatus),
		StartTime:      timeValue(entity.StartTime),
		EndTime:        entity.EndTime,
		ReadCount:      entity.ReadCount,
		WriteCount:     entity.WriteCount,
		FilterCount:    entity.FilterCount,
		CommitCount:    entity.CommitCount,
		RollbackCount:  entity.RollbackCount,
		Offset:         entity.Offset,
		Failures:       nonNil(entity.Failures),
		LastUpdated:    entity.LastUpdated,
		Version:        entity.Version,
	}
}

func fromDomainCheckpointData(cd *model.CheckpointData) *CheckpointDataEntity {
	return &CheckpointDataEntity{
		StepKey:         cd.StepKey,
		JobInstanceID:   cd.JobInstanceID,
		StepName:        cd.StepName,
		Offset:          cd.Offset,
		ChunksCommitted: cd.ChunksCommitted,
		ChunkSize:       cd.ChunkSize,
		ReadCount:       cd.ReadCount,
		WriteCount:      cd.WriteCount,
		FilterCount:     cd.FilterCount,
		LastUpdated:     cd.LastUpdated,
	}
}

func toDomainCheckpointData(entity *CheckpointDataEntity) *model.CheckpointData {
	return &model.CheckpointData{
		StepKey:         entity.StepKey,
		JobInstanceID:   entity.JobInstanceID,
		StepName:        entity.StepName,
		Offset:          entity.Offset,
		ChunksCommitted: entity.ChunksCommitted,
		ChunkSize:       entity.ChunkSize,
		ReadCount:       entity.ReadCount,
		WriteCount:      entity.WriteCount,
		FilterCount:     entity.FilterCount,
		LastUpdated:     entity.LastUpdated,
	}
}

// timePtr stores a zero time as NULL.
func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func nonNil(failures []string) []string {
	if failures == nil {
		return make([]string, 0)
	}
	return failures
}
