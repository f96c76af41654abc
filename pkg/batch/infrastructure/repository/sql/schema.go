package sql

import "time"

// JobInstanceEntity is the row of batch_job_instance.
type JobInstanceEntity struct {
	ID             string `gorm:"primaryKey"`
	JobName        string
	Parameters     string
	ParametersHash string
	CreateTime     time.Time
	Version        int
}

func (JobInstanceEntity) TableName() string {
	return "batch_job_instance"
}

// JobExecutionEntity is the row of batch_job_execution.
type JobExecutionEntity struct {
	ID            string `gorm:"primaryKey"`
	RunID         int64
	JobInstanceID string
	JobName       string
	Parameters    string
	Status        string
	ExitStatus    string
	StartTime     *time.Time
	EndTime       *time.Time
	CreateTime    time.Time
	LastUpdated   time.Time
	Failures      []string `gorm:"serializer:json"`
	RestartCount  int
	Version       int
}

func (JobExecutionEntity) TableName() string {
	return "batch_job_execution"
}

// StepExecutionEntity is the row of batch_step_execution.
type StepExecutionEntity struct {
	ID             string `gorm:"primaryKey"`
	StepName       string
	JobExecutionID string
	Status         string
	ExitStatus     string
	StartTime      *time.Time
	EndTime        *time.Time
	ReadCount      int
	WriteCount     int
	FilterCount    int
	CommitCount    int
	RollbackCount  int
	Offset         int      `gorm:"column:restart_offset"`
	Failures       []string `gorm:"serializer:json"`
	LastUpdated    time.Time
	Version        int
}

func (StepExecutionEntity) TableName() string {
	return "batch_step_execution"
}

// CheckpointDataEntity is the row of batch_checkpoint_data, one per job instance and step.
type CheckpointDataEntity struct {
	StepKey         string `gorm:"primaryKey"`
	JobInstanceID   string
	StepName        string
	Offset          int `gorm:"column:restart_offset"`
	ChunksCommitted int
	ChunkSize       int
	ReadCount       int
	WriteCount      int
	FilterCount     int
	LastUpdated     time.Time
}

func (CheckpointDataEntity) TableName() string {
	return "batch_checkpoint_data"
}

// checkpointUpdateColumns are overwritten when a checkpoint row already exists.
var checkpointUpdateColumns = []string{
	"job_instance_id", "step_name", "restart_offset", "chunks_committed", "chunk_size",
	"read_count", "write_count", "filter_count", "last_updated",
}

// JobSeqEntity is a row of batch_job_seq. Its auto-increment ID is the run id source.
type JobSeqEntity struct {
	ID         int64 `gorm:"primaryKey;autoIncrement"`
	CreateTime time.Time
}

func (JobSeqEntity) TableName() string {
	return "batch_job_seq"
}
