// Package tx provides the transaction abstraction of the batch engine.
// A chunk is committed through exactly one Tx; writers receive the Tx and perform
// all of their store mutations through it so that the chunk commits or rolls back
// as a unit.
package tx

import (
	"context"
	"database/sql"
)

// TxExecutor defines the write operations available inside a transaction.
// It is embedded in both DBConnection and Tx, so data access code is written
// the same way with or without an open transaction.
type TxExecutor interface {
	// ExecuteUpdate performs an entity write ("CREATE", "UPDATE", "DELETE") on model.
	// tableName overrides the table resolved from the model; query holds the
	// WHERE conditions of UPDATE and DELETE (combined with AND).
	ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpsert inserts model, updating updateColumns when conflictColumns
	// collide (or doing nothing when updateColumns is empty).
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)

	// ExecuteNamed executes a statement with named bind parameters written as
	// @NAME; params maps NAME to its value.
	ExecuteNamed(ctx context.Context, statement string, params map[string]interface{}) (rowsAffected int64, err error)
}

// Tx represents an ongoing transaction.
type Tx interface {
	TxExecutor

	// Savepoint creates a savepoint within the transaction.
	Savepoint(name string) error
	// RollbackToSavepoint undoes the changes made after the named savepoint.
	RollbackToSavepoint(name string) error
}

// TransactionManager manages the lifecycle of transactions.
type TransactionManager interface {
	// Begin starts a transaction. opts[0], when present, sets isolation and read-only mode.
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	// Commit commits tx.
	Commit(tx Tx) error
	// Rollback rolls tx back.
	Rollback(tx Tx) error
}

type txContextKey struct{}

// ContextWithTx returns a copy of ctx carrying t.
// Repositories use it to join the chunk transaction when they have one.
func ContextWithTx(ctx context.Context, t Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, t)
}

// TxFromContext returns the Tx stored by ContextWithTx, if any.
func TxFromContext(ctx context.Context) (Tx, bool) {
	t, ok := ctx.Value(txContextKey{}).(Tx)
	return t, ok && t != nil
}
