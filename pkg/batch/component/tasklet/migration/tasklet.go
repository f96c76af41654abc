package migration

import (
	"context"
	"io/fs"
	"strings"

	"github.com/tigerroll/csvload/pkg/batch/adapter/database"
	"github.com/tigerroll/csvload/pkg/batch/core/application/port"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

const taskletName = "migration_tasklet"

// MigrationTasklet applies the migrations of one fs.FS to one connection.
//
// Recognized properties:
//
//	migrationDir  directory inside the FS; defaults to the connection's database type
//	command       "up" (default) or "down"
//	isFramework   "true" records history in the framework table instead of the application one
type MigrationTasklet struct {
	dbConn      database.DBConnection
	migrator    Migrator
	migrationFS fs.FS

	migrationDir         string
	command              string
	isFrameworkMigration bool
}

var _ port.Tasklet = (*MigrationTasklet)(nil)

// NewMigrationTasklet creates a MigrationTasklet for dbConn.
func NewMigrationTasklet(dbConn database.DBConnection, migrator Migrator, migrationFS fs.FS, properties map[string]string) (*MigrationTasklet, error) {
	if dbConn == nil {
		return nil, exception.NewBatchErrorf(taskletName, "a database connection is required")
	}
	if migrationFS == nil {
		return nil, exception.NewBatchErrorf(taskletName, "a migration filesystem is required")
	}
	if migrator == nil {
		migrator = NewMigrator(dbConn)
	}

	command := strings.ToLower(properties["command"])
	if command == "" {
		command = "up"
	}
	if command != "up" && command != "down" {
		return nil, exception.NewBatchErrorf(taskletName, "unknown migration command: %s", command)
	}

	t := &MigrationTasklet{
		dbConn:               dbConn,
		migrator:             migrator,
		migrationFS:          migrationFS,
		migrationDir:         properties["migrationDir"],
		command:              command,
		isFrameworkMigration: strings.EqualFold(properties["isFramework"], "true"),
	}
	logger.Debugf("MigrationTasklet initialized: DB=%s, Dir=%s, Command=%s, IsFramework=%t",
		dbConn.Name(), t.migrationDir, command, t.isFrameworkMigration)
	return t, nil
}

// Execute runs the configured migration command.
func (t *MigrationTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	if t.dbConn.Type() == "dummy" {
		logger.Infof("MigrationTasklet: skipping migration for dummy database connection '%s'.", t.dbConn.Name())
		return model.ExitStatusNoOp, nil
	}

	table := AppMigrationsTable
	if t.isFrameworkMigration {
		table = FrameworkMigrationsTable
	}
	dir := t.migrationDir
	if dir == "" {
		dir = t.dbConn.Type()
	}

	var err error
	if t.command == "down" {
		err = t.migrator.Down(ctx, t.migrationFS, dir, table)
	} else {
		err = t.migrator.Up(ctx, t.migrationFS, dir, table)
	}
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(taskletName, "migration '"+t.command+"' failed", err)
	}
	return model.ExitStatusCompleted, nil
}

// Close has nothing to release; the connection belongs to its provider.
func (t *MigrationTasklet) Close(ctx context.Context) error {
	return nil
}
