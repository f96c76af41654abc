package migration

import (
	"context"
	"io/fs"
)

// Tables recording applied migration versions.
const (
	FrameworkMigrationsTable = "batch_framework_migrations"
	AppMigrationsTable       = "batch_app_migrations"
)

// Migrator applies schema migrations read from an fs.FS.
type Migrator interface {
	// Up applies all pending migrations found under path. tableName is the
	// history table, so framework and application migrations version independently.
	Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
	// Down rolls back all applied migrations found under path.
	Down(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
}
