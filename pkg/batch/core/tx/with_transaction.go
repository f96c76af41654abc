package tx

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// WithTransaction runs fn inside a transaction begun on m.
//
// The transaction is committed when fn returns nil and rolled back on every other
// exit path: a non-nil error, a failed commit, or a panic (which is re-raised
// after the rollback). When both fn and the rollback fail, the returned error
// carries both.
func WithTransaction(ctx context.Context, m TransactionManager, fn func(ctx context.Context, t Tx) error, opts ...*sql.TxOptions) (err error) {
	t, err := m.Begin(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if p := recover(); p != nil {
			_ = m.Rollback(t)
			panic(p)
		}
		if rbErr := m.Rollback(t); rbErr != nil {
			err = multierror.Append(err, fmt.Errorf("rollback failed: %w", rbErr))
		}
	}()

	if err = fn(ContextWithTx(ctx, t), t); err != nil {
		return err
	}
	if err = m.Commit(t); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}
