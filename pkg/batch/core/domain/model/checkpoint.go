package model

import "time"

// CheckpointData is the restart position of a step within a job instance.
// It is written once per committed chunk, after the commit.
type CheckpointData struct {
	StepKey         string
	JobInstanceID   string
	StepName        string
	Offset          int
	ChunksCommitted int
	ChunkSize       int
	ReadCount       int
	WriteCount      int
	FilterCount     int
	LastUpdated     time.Time
}

// CheckpointKey identifies a step across all executions of one job instance.
func CheckpointKey(jobInstanceID, stepName string) string {
	return jobInstanceID + "/" + stepName
}
