// Package writer provides chunk writers that persist items through the chunk transaction.
package writer

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm/schema"

	"github.com/tigerroll/csvload/pkg/batch/core/application/port"
	"github.com/tigerroll/csvload/pkg/batch/core/tx"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

var naming = schema.NamingStrategy{}

// ColumnName returns the UPPER_SNAKE column for an attribute name (firstName -> FIRST_NAME).
func ColumnName(attribute string) string {
	return strings.ToUpper(naming.ColumnName("", attribute))
}

// ParameterSource returns the bind values of item keyed by attribute name.
type ParameterSource[T any] func(item T) map[string]interface{}

// NamedSQLWriter inserts each item with one named-parameter INSERT:
//
//	INSERT INTO <table> (<COL>, ...) VALUES (@<COL>, ...)
//
// Columns are derived from the attribute names with ColumnName.
type NamedSQLWriter[T any] struct {
	name       string
	table      string
	attributes []string
	columns    []string
	statement  string
	params     ParameterSource[T]
}

var _ port.ItemWriter[any] = (*NamedSQLWriter[any])(nil)

// NewNamedSQLWriter creates a writer inserting attributes of each item into table.
func NewNamedSQLWriter[T any](name, table string, attributes []string, params ParameterSource[T]) (*NamedSQLWriter[T], error) {
	if table == "" {
		return nil, exception.NewBatchErrorf("writer", "writer '%s' has no target table", name)
	}
	if len(attributes) == 0 {
		return nil, exception.NewBatchErrorf("writer", "writer '%s' has no attributes", name)
	}
	if params == nil {
		return nil, exception.NewBatchErrorf("writer", "writer '%s' has no parameter source", name)
	}

	columns := make([]string, len(attributes))
	binds := make([]string, len(attributes))
	for i, attr := range attributes {
		columns[i] = ColumnName(attr)
		binds[i] = "@" + columns[i]
	}
	statement := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(binds, ", "))

	return &NamedSQLWriter[T]{
		name:       name,
		table:      table,
		attributes: attributes,
		columns:    columns,
		statement:  statement,
		params:     params,
	}, nil
}

// Statement returns the INSERT statement executed per item.
func (w *NamedSQLWriter[T]) Statement() string { return w.statement }

// Write inserts items in order through t. The first failure returns a
// *exception.WriteError and leaves the rollback to the caller.
func (w *NamedSQLWriter[T]) Write(ctx context.Context, t tx.Tx, items []T) error {
	for i, item := range items {
		values := w.params(item)
		named := make(map[string]interface{}, len(w.columns))
		for j, attr := range w.attributes {
			v, ok := values[attr]
			if !ok {
				return &exception.WriteError{Table: w.table, Index: i, Size: len(items), Err: fmt.Errorf("no value for attribute '%s'", attr)}
			}
			named[w.columns[j]] = v
		}
		if _, err := t.ExecuteNamed(ctx, w.statement, named); err != nil {
			return &exception.WriteError{Table: w.table, Index: i, Size: len(items), Err: err}
		}
	}
	logger.Debugf("Writer '%s': inserted %d items into %s.", w.name, len(items), w.table)
	return nil
}

// Close has nothing to release.
func (w *NamedSQLWriter[T]) Close(ctx context.Context) error { return nil }
