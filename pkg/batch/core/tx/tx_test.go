package tx_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/csvload/pkg/batch/core/tx"
	"github.com/tigerroll/csvload/pkg/batch/test"
)

func TestWithTransaction_CommitsOnSuccess(t *testing.T) {
	mockTx := new(test.MockTx)
	mgr := new(test.MockTxManager)
	mgr.On("Begin", mock.Anything, mock.Anything).Return(mockTx, nil).Once()
	mgr.On("Commit", mockTx).Return(nil).Once()

	err := tx.WithTransaction(context.Background(), mgr, func(ctx context.Context, t2 tx.Tx) error {
		fromCtx, ok := tx.TxFromContext(ctx)
		assert.True(t, ok)
		assert.Same(t, mockTx, fromCtx)
		return nil
	})

	require.NoError(t, err)
	mgr.AssertExpectations(t)
	mgr.AssertNotCalled(t, "Rollback", mock.Anything)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	mockTx := new(test.MockTx)
	mgr := new(test.MockTxManager)
	mgr.On("Begin", mock.Anything, mock.Anything).Return(mockTx, nil).Once()
	mgr.On("Rollback", mockTx).Return(nil).Once()

	cause := errors.New("write failed")
	err := tx.WithTransaction(context.Background(), mgr, func(context.Context, tx.Tx) error {
		return cause
	})

	assert.ErrorIs(t, err, cause)
	mgr.AssertExpectations(t)
	mgr.AssertNotCalled(t, "Commit", mock.Anything)
}

func TestWithTransaction_ReportsRollbackFailureWithCause(t *testing.T) {
	mockTx := new(test.MockTx)
	mgr := new(test.MockTxManager)
	mgr.On("Begin", mock.Anything, mock.Anything).Return(mockTx, nil).Once()
	mgr.On("Rollback", mockTx).Return(errors.New("connection lost")).Once()

	cause := errors.New("write failed")
	err := tx.WithTransaction(context.Background(), mgr, func(context.Context, tx.Tx) error {
		return cause
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection lost")
}

func TestWithTransaction_RollsBackAfterFailedCommit(t *testing.T) {
	mockTx := new(test.MockTx)
	mgr := new(test.MockTxManager)
	mgr.On("Begin", mock.Anything, mock.Anything).Return(mockTx, nil).Once()
	mgr.On("Commit", mockTx).Return(errors.New("serialization failure")).Once()
	mgr.On("Rollback", mockTx).Return(nil).Once()

	err := tx.WithTransaction(context.Background(), mgr, func(context.Context, tx.Tx) error { return nil })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
	mgr.AssertExpectations(t)
}

func TestWithTransaction_RollsBackAndRepanics(t *testing.T) {
	mockTx := new(test.MockTx)
	mgr := new(test.MockTxManager)
	mgr.On("Begin", mock.Anything, mock.Anything).Return(mockTx, nil).Once()
	mgr.On("Rollback", mockTx).Return(nil).Once()

	assert.PanicsWithValue(t, "boom", func() {
		_ = tx.WithTransaction(context.Background(), mgr, func(context.Context, tx.Tx) error {
			panic("boom")
		})
	})
	mgr.AssertExpectations(t)
}

func TestWithTransaction_BeginFailure(t *testing.T) {
	mgr := new(test.MockTxManager)
	mgr.On("Begin", mock.Anything, mock.Anything).Return(nil, errors.New("pool exhausted")).Once()

	called := false
	err := tx.WithTransaction(context.Background(), mgr, func(context.Context, tx.Tx) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
	assert.Contains(t, err.Error(), "pool exhausted")
}

func TestSerializedTransactionManager_NoInterleaving(t *testing.T) {
	mockTx := new(test.MockTx)
	inner := new(test.MockTxManager)
	inner.On("Begin", mock.Anything, mock.Anything).Return(mockTx, nil)
	inner.On("Commit", mockTx).Return(nil)

	mgr := tx.NewSerializedTransactionManager(inner)

	var open, maxOpen int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := tx.WithTransaction(context.Background(), mgr, func(context.Context, tx.Tx) error {
				n := atomic.AddInt32(&open, 1)
				for {
					m := atomic.LoadInt32(&maxOpen)
					if n <= m || atomic.CompareAndSwapInt32(&maxOpen, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&open, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxOpen))
	inner.AssertNumberOfCalls(t, "Commit", 4)
}

func TestSerializedTransactionManager_ReleasesAfterFailedCommit(t *testing.T) {
	mockTx := new(test.MockTx)
	inner := new(test.MockTxManager)
	inner.On("Begin", mock.Anything, mock.Anything).Return(mockTx, nil)
	inner.On("Commit", mockTx).Return(errors.New("deadlock")).Once()
	inner.On("Commit", mockTx).Return(nil).Once()
	inner.On("Rollback", mockTx).Return(nil).Once()

	mgr := tx.NewSerializedTransactionManager(inner)

	err := tx.WithTransaction(context.Background(), mgr, func(context.Context, tx.Tx) error { return nil })
	require.Error(t, err)

	done := make(chan error, 1)
	go func() {
		done <- tx.WithTransaction(context.Background(), mgr, func(context.Context, tx.Tx) error { return nil })
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("commit scope was not released after the failed commit")
	}
	inner.AssertExpectations(t)
}
