// Package migration runs golang-migrate migrations on a database adapter
// connection, either directly or as a tasklet step.
package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/csvload/pkg/batch/adapter/database"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// migratorImpl implements Migrator on the *sql.DB of a DBConnection.
// The pool belongs to the connection and stays open after a migration.
type migratorImpl struct {
	dbConn database.DBConnection
	dbType string
}

var _ Migrator = (*migratorImpl)(nil)

// NewMigrator creates a Migrator for dbConn.
func NewMigrator(dbConn database.DBConnection) Migrator {
	return &migratorImpl{
		dbConn: dbConn,
		dbType: dbConn.Type(),
	}
}

// getDatabaseDriver returns the migrate driver for the connection's database
// type and a release func. mysql and postgres drivers are bound to a single
// *sql.Conn, which release returns to the pool. The sqlite driver wraps the
// pool itself and closing it would close the pool, so its release is a no-op.
func (m *migratorImpl) getDatabaseDriver(ctx context.Context, tableName string) (migratedb.Driver, func(), error) {
	sqlDB, err := m.dbConn.GetSQLDB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	switch m.dbType {
	case "postgres", "redshift", "mysql":
		conn, err := sqlDB.Conn(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to acquire connection for migration: %w", err)
		}
		var driver migratedb.Driver
		if m.dbType == "mysql" {
			driver, err = mysql.WithConnection(ctx, conn, &mysql.Config{MigrationsTable: tableName})
		} else {
			driver, err = postgres.WithConnection(ctx, conn, &postgres.Config{MigrationsTable: tableName})
		}
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return driver, func() {
			if err := driver.Close(); err != nil {
				logger.Warnf("Failed to release migration connection: %v", err)
			}
		}, nil
	case "sqlite":
		driver, err := sqlite.WithInstance(sqlDB, &sqlite.Config{MigrationsTable: tableName})
		if err != nil {
			return nil, nil, err
		}
		return driver, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type for migration: %s", m.dbType)
	}
}

func (m *migratorImpl) runMigration(ctx context.Context, migrationFS fs.FS, path string, command string, tableName string) error {
	logger.Infof("Executing migration '%s' on '%s' (Path: %s, Table: %s)", command, m.dbConn.Name(), path, tableName)

	sourceDriver, err := iofs.New(migrationFS, path)
	if err != nil {
		return fmt.Errorf("failed to create iofs source driver for path %s: %w", path, err)
	}
	defer sourceDriver.Close()

	dbDriver, release, err := m.getDatabaseDriver(ctx, tableName)
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	defer release()

	// Closing the migrate instance would close dbDriver and with it the shared pool.
	mInstance, err := migrate.NewWithInstance("iofs", sourceDriver, m.dbType, dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	var migrateErr error
	switch command {
	case "up":
		migrateErr = mInstance.Up()
	case "down":
		migrateErr = mInstance.Down()
	default:
		return fmt.Errorf("unsupported migration command: %s", command)
	}

	if errors.Is(migrateErr, migrate.ErrNoChange) {
		logger.Infof("Migration '%s' on '%s': no change.", command, m.dbConn.Name())
		return nil
	}
	if migrateErr != nil {
		if version, dirty, versionErr := mInstance.Version(); versionErr == nil {
			logger.Errorf("Migration failed at version %d (dirty: %t).", version, dirty)
		}
		return fmt.Errorf("migration failed for command '%s' (DB: %s, Path: %s): %w", command, m.dbType, path, migrateErr)
	}

	logger.Infof("Migration '%s' on '%s' completed successfully.", command, m.dbConn.Name())
	return nil
}

func (m *migratorImpl) Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error {
	return m.runMigration(ctx, migrationFS, path, "up", tableName)
}

func (m *migratorImpl) Down(ctx context.Context, migrationFS fs.FS, path string, tableName string) error {
	return m.runMigration(ctx, migrationFS, path, "down", tableName)
}
