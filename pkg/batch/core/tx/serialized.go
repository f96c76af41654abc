package tx

import (
	"context"
	"database/sql"
	"sync"
)

// SerializedTransactionManager allows at most one open transaction at a time.
// Steps or jobs that share it never interleave inside a chunk's commit scope.
type SerializedTransactionManager struct {
	inner TransactionManager
	mu    sync.Mutex

	heldMu sync.Mutex
	held   Tx
}

// NewSerializedTransactionManager wraps inner.
func NewSerializedTransactionManager(inner TransactionManager) *SerializedTransactionManager {
	return &SerializedTransactionManager{inner: inner}
}

// Begin blocks until no other transaction of this manager is open.
func (m *SerializedTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error) {
	m.mu.Lock()
	t, err := m.inner.Begin(ctx, opts...)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.heldMu.Lock()
	m.held = t
	m.heldMu.Unlock()
	return t, nil
}

// Commit commits t. The commit scope is released on success; after a failed
// commit it stays held until t is rolled back.
func (m *SerializedTransactionManager) Commit(t Tx) error {
	if err := m.inner.Commit(t); err != nil {
		return err
	}
	m.release(t)
	return nil
}

// Rollback rolls t back and releases the commit scope.
func (m *SerializedTransactionManager) Rollback(t Tx) error {
	defer m.release(t)
	return m.inner.Rollback(t)
}

// release unlocks the scope once for the transaction that holds it.
func (m *SerializedTransactionManager) release(t Tx) {
	m.heldMu.Lock()
	defer m.heldMu.Unlock()
	if m.held == nil || m.held != t {
		return
	}
	m.held = nil
	m.mu.Unlock()
}
