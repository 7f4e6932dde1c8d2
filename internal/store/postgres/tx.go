package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

// querier is the subset of pgx operations the stores need. Both *pgxpool.Pool
// and pgx.Tx satisfy it, so the same store code runs pooled or inside a
// transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner implements domain.TxRunner on a connection pool: the callback's
// stores all share one transaction, committed on nil and rolled back on
// error.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner creates a transaction runner over the pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// WithinTx runs fn with transaction-scoped stores.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, stores domain.ProductionStores) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	stores := txStores{tx: tx}
	if err := fn(ctx, stores); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

type txStores struct {
	tx pgx.Tx
}

func (s txStores) Instances() domain.InstanceStore { return &InstanceStore{db: s.tx} }
func (s txStores) Ledger() domain.LedgerStore      { return &LedgerStore{db: s.tx} }
