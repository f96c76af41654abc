// Package database defines the database connection abstraction used by writers
// and the SQL job repository.
package database

import (
	"context"
	"database/sql"

	dbconfig "github.com/tigerroll/csvload/pkg/batch/adapter/database/config"
	"github.com/tigerroll/csvload/pkg/batch/core/tx"
)

// DBConnection is a named connection to one database.
// Writes made through the embedded TxExecutor run outside of any transaction;
// chunk writes go through a tx.Tx instead.
type DBConnection interface {
	tx.TxExecutor

	// Name returns the configured connection name (e.g. "metadata", "workload").
	Name() string
	// Type returns the database type ("sqlite", "mysql", "postgres").
	Type() string
	// Close closes the underlying pool.
	Close() error

	// ExecuteQuery loads the rows matching query into target (a pointer to a slice or struct).
	ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error
	// ExecuteQueryAdvanced is ExecuteQuery with ordering and a row limit (0 means no limit).
	ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error
	// Count counts the rows of model's table matching query.
	Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error)

	// IsTableNotExistError reports whether err means a missing table.
	IsTableNotExistError(err error) bool
	// Config returns the configuration the connection was opened with.
	Config() dbconfig.DatabaseConfig
	// GetSQLDB returns the underlying *sql.DB.
	GetSQLDB() (*sql.DB, error)
}

// DBProvider opens and caches named connections.
type DBProvider interface {
	// GetConnection returns the connection named name, opening it on first use.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes every connection opened by the provider.
	CloseAll() error
}
