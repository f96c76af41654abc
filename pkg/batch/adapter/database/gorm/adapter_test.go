package gorm_test

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tigerroll/csvload/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/csvload/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/csvload/pkg/batch/adapter/database/gorm"
	_ "github.com/tigerroll/csvload/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/csvload/pkg/batch/core/config"
	"github.com/tigerroll/csvload/pkg/batch/core/tx"
)

type widget struct {
	ID   int64  `gorm:"column:ID;primaryKey;autoIncrement"`
	Name string `gorm:"column:NAME"`
}

func (widget) TableName() string { return "WIDGET" }

func openSQLite(t *testing.T) *gormadapter.GormDBAdapter {
	t.Helper()
	conn, err := gormadapter.Open("test", dbconfig.DatabaseConfig{
		Type:     "sqlite",
		Database: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.GormDB().AutoMigrate(&widget{}))
	return conn
}

func TestGormDBAdapter_CRUD(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)

	n, err := conn.ExecuteUpdate(ctx, &widget{Name: "a"}, "CREATE", "", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = conn.ExecuteNamed(ctx, "INSERT INTO WIDGET (NAME) VALUES (@NAME)", map[string]interface{}{"NAME": "b"})
	require.NoError(t, err)

	var all []widget
	require.NoError(t, conn.ExecuteQueryAdvanced(ctx, &all, nil, "ID", 0))
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[1].Name)

	count, err := conn.Count(ctx, &widget{}, map[string]interface{}{"NAME": "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = conn.ExecuteUpdate(ctx, &widget{}, "MERGE", "", nil)
	assert.Error(t, err)
}

func TestGormDBAdapter_IsTableNotExistError(t *testing.T) {
	conn := openSQLite(t)
	var rows []map[string]interface{}
	err := conn.GormDB().Table("MISSING").Find(&rows).Error
	require.Error(t, err)
	assert.True(t, conn.IsTableNotExistError(err))
	assert.False(t, conn.IsTableNotExistError(errors.New("boom")))
	assert.False(t, conn.IsTableNotExistError(nil))
}

func TestGormTransactionManager_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	m, err := gormadapter.NewTransactionManager(conn)
	require.NoError(t, err)

	err = tx.WithTransaction(ctx, m, func(ctx context.Context, t tx.Tx) error {
		_, err := t.ExecuteNamed(ctx, "INSERT INTO WIDGET (NAME) VALUES (@NAME)", map[string]interface{}{"NAME": "kept"})
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = tx.WithTransaction(ctx, m, func(ctx context.Context, t tx.Tx) error {
		if _, err := t.ExecuteNamed(ctx, "INSERT INTO WIDGET (NAME) VALUES (@NAME)", map[string]interface{}{"NAME": "lost"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	count, err := conn.Count(ctx, &widget{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGormTxAdapter_NamedInsertWithSQLMock(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "mysql"}, "workload")
	require.NoError(t, err)
	m, err := gormadapter.NewTransactionManager(conn)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO T (A,B) VALUES (?,?)")).
		WithArgs("x", int64(2)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = tx.WithTransaction(context.Background(), m, func(ctx context.Context, txn tx.Tx) error {
		n, err := txn.ExecuteNamed(ctx, "INSERT INTO T (A,B) VALUES (@A,@B)", map[string]interface{}{"A": "x", "B": int64(2)})
		assert.Equal(t, int64(1), n)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvider_GetConnectionAndCloseAll(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Surfin.Adapter.Database = map[string]interface{}{
		"workload": map[string]interface{}{
			"type":     "sqlite",
			"database": filepath.Join(t.TempDir(), "w.db"),
			"pool":     map[string]interface{}{"max_open_conns": "4"},
		},
	}
	p := gormadapter.NewProvider(cfg)

	conn, err := p.GetConnection("workload")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", conn.Type())
	assert.Equal(t, 4, conn.Config().Pool.MaxOpenConns)

	again, err := p.GetConnection("workload")
	require.NoError(t, err)
	assert.Same(t, conn, again)

	_, err = p.GetConnection("missing")
	assert.Error(t, err)

	assert.NoError(t, p.CloseAll())
}

func TestNewTransactionManager_RejectsForeignConnection(t *testing.T) {
	_, err := gormadapter.NewTransactionManager(foreignConn{})
	assert.Error(t, err)
}

type foreignConn struct{ database.DBConnection }

func (foreignConn) Name() string { return "foreign" }
