package test

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/tigerroll/csvload/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/csvload/pkg/batch/adapter/database/config"
)

// MockDBConnection is a testify mock of database.DBConnection.
// Name and Type return the fields below and need no expectations.
type MockDBConnection struct {
	mock.Mock
	ConnName string
	DBType   string
}

var _ database.DBConnection = (*MockDBConnection)(nil)

// NewMockDBConnection returns a mock connection called name of type dbType.
func NewMockDBConnection(name, dbType string) *MockDBConnection {
	return &MockDBConnection{ConnName: name, DBType: dbType}
}

func (m *MockDBConnection) Name() string { return m.ConnName }
func (m *MockDBConnection) Type() string { return m.DBType }

func (m *MockDBConnection) Close() error {
	return m.Called().Error(0)
}

func (m *MockDBConnection) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (int64, error) {
	args := m.Called(ctx, model, operation, tableName, query)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDBConnection) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	args := m.Called(ctx, model, tableName, conflictColumns, updateColumns)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDBConnection) ExecuteNamed(ctx context.Context, statement string, params map[string]interface{}) (int64, error) {
	args := m.Called(ctx, statement, params)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDBConnection) ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error {
	return m.Called(ctx, target, query).Error(0)
}

func (m *MockDBConnection) ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error {
	return m.Called(ctx, target, query, orderBy, limit).Error(0)
}

func (m *MockDBConnection) Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error) {
	args := m.Called(ctx, model, query)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDBConnection) IsTableNotExistError(err error) bool {
	return m.Called(err).Bool(0)
}

func (m *MockDBConnection) Config() dbconfig.DatabaseConfig {
	return dbconfig.DatabaseConfig{Type: m.DBType}
}

func (m *MockDBConnection) GetSQLDB() (*sql.DB, error) {
	args := m.Called()
	db, _ := args.Get(0).(*sql.DB)
	return db, args.Error(1)
}
