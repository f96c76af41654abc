// Package gorm implements the database adapter on top of gorm.io/gorm.
// Dialects register themselves from the sqlite, mysql and postgres sub-packages.
package gorm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/csvload/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/csvload/pkg/batch/adapter/database/config"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// TableNamer is implemented by entities that name their own table.
type TableNamer interface {
	TableName() string
}

var tableNamerType = reflect.TypeOf((*TableNamer)(nil)).Elem()

// applyTableName scopes db to the table of model. Slices resolve through their element type.
func applyTableName(db *gorm.DB, model interface{}) *gorm.DB {
	if namer, ok := model.(TableNamer); ok {
		return db.Table(namer.TableName())
	}

	val := reflect.ValueOf(model)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() == reflect.Slice || val.Kind() == reflect.Array {
		elemType := val.Type().Elem()
		if elemType.Kind() == reflect.Ptr {
			elemType = elemType.Elem()
		}
		if reflect.PointerTo(elemType).Implements(tableNamerType) {
			if namer, ok := reflect.New(elemType).Interface().(TableNamer); ok {
				return db.Table(namer.TableName())
			}
		}
	}
	return db.Model(model)
}

// GormDBAdapter implements database.DBConnection.
type GormDBAdapter struct {
	db    *gorm.DB
	sqlDB *sql.DB
	cfg   dbconfig.DatabaseConfig
	name  string
}

var _ database.DBConnection = (*GormDBAdapter)(nil)

// NewGormDBAdapter wraps an open gorm session.
func NewGormDBAdapter(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string) (*GormDBAdapter, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB of '%s': %w", name, err)
	}
	return &GormDBAdapter{db: db, sqlDB: sqlDB, cfg: cfg, name: name}, nil
}

// GormDB returns the wrapped session.
func (a *GormDBAdapter) GormDB() *gorm.DB { return a.db }

func (a *GormDBAdapter) Name() string { return a.name }
func (a *GormDBAdapter) Type() string { return a.cfg.Type }

func (a *GormDBAdapter) Config() dbconfig.DatabaseConfig { return a.cfg }

func (a *GormDBAdapter) GetSQLDB() (*sql.DB, error) {
	if a.sqlDB == nil {
		return nil, errors.New("underlying sql.DB is nil")
	}
	return a.sqlDB, nil
}

func (a *GormDBAdapter) Close() error {
	if a.sqlDB == nil {
		return nil
	}
	logger.Infof("Closing database connection '%s'...", a.name)
	return a.sqlDB.Close()
}

func (a *GormDBAdapter) ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error {
	return a.ExecuteQueryAdvanced(ctx, target, query, "", 0)
}

func (a *GormDBAdapter) ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error {
	db := applyTableName(a.db.WithContext(ctx), target)
	if len(query) > 0 {
		db = db.Where(query)
	}
	if orderBy != "" {
		db = db.Order(orderBy)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	return db.Find(target).Error
}

func (a *GormDBAdapter) Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error) {
	db := applyTableName(a.db.WithContext(ctx), model)
	if len(query) > 0 {
		db = db.Where(query)
	}
	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ExecuteUpdate runs outside any transaction; gorm's implicit per-statement
// transaction is disabled.
func (a *GormDBAdapter) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (int64, error) {
	db := a.db.WithContext(ctx).Session(&gorm.Session{SkipDefaultTransaction: true})
	return executeUpdate(db, model, operation, tableName, query)
}

func (a *GormDBAdapter) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	db := a.db.WithContext(ctx).Session(&gorm.Session{SkipDefaultTransaction: true})
	return executeUpsert(db, model, tableName, conflictColumns, updateColumns)
}

func (a *GormDBAdapter) ExecuteNamed(ctx context.Context, statement string, params map[string]interface{}) (int64, error) {
	return executeNamed(a.db.WithContext(ctx), statement, params)
}

func (a *GormDBAdapter) IsTableNotExistError(err error) bool {
	return isTableNotExistError(a.cfg.Type, err)
}

func executeUpdate(db *gorm.DB, model interface{}, operation string, tableName string, query map[string]interface{}) (int64, error) {
	if tableName != "" {
		db = db.Table(tableName)
	}

	var result *gorm.DB
	switch operation {
	case "CREATE":
		result = db.Create(model)
	case "UPDATE":
		result = db.Model(model).Where(query).Updates(model)
	case "DELETE":
		if len(query) > 0 {
			db = db.Where(query)
		}
		result = db.Delete(model)
	default:
		return 0, fmt.Errorf("unsupported update operation: %s", operation)
	}
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func executeUpsert(db *gorm.DB, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	if tableName != "" {
		db = db.Table(tableName)
	}
	columns := make([]clause.Column, 0, len(conflictColumns))
	for _, col := range conflictColumns {
		columns = append(columns, clause.Column{Name: col})
	}
	onConflict := clause.OnConflict{Columns: columns}
	if len(updateColumns) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(updateColumns)
	} else {
		onConflict.DoNothing = true
	}

	result := db.Clauses(onConflict).Create(model)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// executeNamed relies on gorm expanding @NAME placeholders from a map argument
// into the dialect's bind variables.
func executeNamed(db *gorm.DB, statement string, params map[string]interface{}) (int64, error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	result := db.Exec(statement, params)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func isTableNotExistError(dbType string, err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	postgres := strings.Contains(msg, "relation \"") && strings.Contains(msg, "does not exist")
	mysql := strings.Contains(msg, "Error 1146") || (strings.Contains(msg, "Table '") && strings.Contains(msg, "doesn't exist"))
	sqlite := strings.Contains(msg, "no such table")

	switch dbType {
	case "postgres", "redshift":
		return postgres
	case "mysql":
		return mysql
	case "sqlite":
		return sqlite
	default:
		return postgres || mysql || sqlite
	}
}
