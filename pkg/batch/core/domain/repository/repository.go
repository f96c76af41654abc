// Package repository declares the persistence ports for batch metadata.
package repository

// JobRepository persists everything the launcher and steps need to run and restart jobs.
type JobRepository interface {
	JobInstance
	JobExecution
	StepExecution
	CheckpointRepository

	// Close releases resources held by the repository.
	Close() error
}
