package writer

import (
	"context"

	"github.com/tigerroll/csvload/pkg/batch/core/application/port"
	"github.com/tigerroll/csvload/pkg/batch/core/tx"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// RepositoryWriter persists gorm entities with one batch statement per chunk.
// With conflict columns it upserts; updateColumns empty means DO NOTHING on conflict.
type RepositoryWriter[T any] struct {
	name            string
	tableName       string // empty: resolved from the entity
	conflictColumns []string
	updateColumns   []string
}

var _ port.ItemWriter[any] = (*RepositoryWriter[any])(nil)

// NewRepositoryWriter creates a writer inserting into tableName.
func NewRepositoryWriter[T any](name, tableName string) *RepositoryWriter[T] {
	return &RepositoryWriter[T]{name: name, tableName: tableName}
}

// NewUpsertRepositoryWriter creates a writer resolving conflicts on conflictColumns.
func NewUpsertRepositoryWriter[T any](name, tableName string, conflictColumns, updateColumns []string) *RepositoryWriter[T] {
	return &RepositoryWriter[T]{name: name, tableName: tableName, conflictColumns: conflictColumns, updateColumns: updateColumns}
}

func (w *RepositoryWriter[T]) Write(ctx context.Context, t tx.Tx, items []T) error {
	if len(items) == 0 {
		return nil
	}
	var err error
	if len(w.conflictColumns) > 0 {
		_, err = t.ExecuteUpsert(ctx, &items, w.tableName, w.conflictColumns, w.updateColumns)
	} else {
		_, err = t.ExecuteUpdate(ctx, &items, "CREATE", w.tableName, nil)
	}
	if err != nil {
		return &exception.WriteError{Table: w.tableName, Index: -1, Size: len(items), Err: err}
	}
	logger.Debugf("RepositoryWriter '%s': wrote %d items.", w.name, len(items))
	return nil
}

func (w *RepositoryWriter[T]) Close(ctx context.Context) error { return nil }
