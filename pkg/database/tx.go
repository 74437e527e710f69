package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Transaction is the handle of one open unit of work.
// Rollback after a successful Commit is a no-op, so callers can always
// defer Rollback right after Begin.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxManager starts transactions on the scope carried by a context.
type TxManager interface {
	// Begin opens a transaction and returns a context whose scope routes
	// repository statements through it.
	Begin(ctx context.Context) (context.Context, Transaction, error)
}

type scopeTxManager struct{}

// NewTxManager creates a TxManager that uses the scope found in each context.
func NewTxManager() TxManager {
	return &scopeTxManager{}
}

var _ TxManager = (*scopeTxManager)(nil)

func (m *scopeTxManager) Begin(ctx context.Context) (context.Context, Transaction, error) {
	scope, ok := GetScope(ctx)
	if !ok || scope == nil {
		return nil, nil, ErrNoScope
	}
	if scope.Tx != nil {
		return nil, nil, errors.New("transaction already open on scope")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	txScope := &Scope{Conn: scope.Conn, Tx: tx}
	return SetScope(ctx, txScope), &scopeTx{tx: tx}, nil
}

type scopeTx struct {
	tx   pgx.Tx
	done bool
}

func (t *scopeTx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *scopeTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	// Rollback must run even when ctx was cancelled mid-transaction.
	if err := t.tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}
