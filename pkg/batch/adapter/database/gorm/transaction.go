package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/csvload/pkg/batch/adapter/database"
	"github.com/tigerroll/csvload/pkg/batch/core/tx"
)

// GormTxAdapter implements tx.Tx over a gorm transaction session.
type GormTxAdapter struct {
	db     *gorm.DB
	dbType string
}

var _ tx.Tx = (*GormTxAdapter)(nil)

func (t *GormTxAdapter) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (int64, error) {
	return executeUpdate(t.db.WithContext(ctx), model, operation, tableName, query)
}

func (t *GormTxAdapter) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	return executeUpsert(t.db.WithContext(ctx), model, tableName, conflictColumns, updateColumns)
}

func (t *GormTxAdapter) ExecuteNamed(ctx context.Context, statement string, params map[string]interface{}) (int64, error) {
	return executeNamed(t.db.WithContext(ctx), statement, params)
}

func (t *GormTxAdapter) Savepoint(name string) error {
	return t.db.SavePoint(name).Error
}

func (t *GormTxAdapter) RollbackToSavepoint(name string) error {
	return t.db.RollbackTo(name).Error
}

// IsTableNotExistError reports whether err means a missing table in this dialect.
func (t *GormTxAdapter) IsTableNotExistError(err error) bool {
	return isTableNotExistError(t.dbType, err)
}

// GormTransactionManager implements tx.TransactionManager for one connection.
type GormTransactionManager struct {
	conn *GormDBAdapter
}

// NewTransactionManager returns a transaction manager bound to conn,
// which must have been opened by this package.
func NewTransactionManager(conn database.DBConnection) (tx.TransactionManager, error) {
	adapter, ok := conn.(*GormDBAdapter)
	if !ok {
		return nil, fmt.Errorf("connection '%s' is not a gorm connection (%T)", conn.Name(), conn)
	}
	return &GormTransactionManager{conn: adapter}, nil
}

func (m *GormTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	var txOpts *sql.TxOptions
	if len(opts) > 0 {
		txOpts = opts[0]
	}
	gormTx := m.conn.db.WithContext(ctx).Begin(txOpts)
	if gormTx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction on '%s': %w", m.conn.name, gormTx.Error)
	}
	return &GormTxAdapter{db: gormTx, dbType: m.conn.cfg.Type}, nil
}

func (m *GormTransactionManager) Commit(t tx.Tx) error {
	gormTx, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTxAdapter, got %T", t)
	}
	return gormTx.db.Commit().Error
}

func (m *GormTransactionManager) Rollback(t tx.Tx) error {
	gormTx, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTxAdapter, got %T", t)
	}
	return gormTx.db.Rollback().Error
}
