package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL.
type LedgerStore struct {
	db querier
}

// NewLedgerStore creates a new LedgerStore backed by the given connection
// pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{db: pool}
}

// GetAccount retrieves a ledger account by id.
func (s *LedgerStore) GetAccount(ctx context.Context, id string) (domain.LedgerAccount, error) {
	var a domain.LedgerAccount
	err := s.db.QueryRow(ctx,
		`SELECT id, label, balance, created_at, updated_at
		 FROM ledger_accounts WHERE id = $1`, id,
	).Scan(&a.ID, &a.Label, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.LedgerAccount{}, domain.ErrNotFound
		}
		return domain.LedgerAccount{}, fmt.Errorf("postgres: get ledger account %s: %w", id, err)
	}
	return a, nil
}

// CreateAccount inserts a new ledger account.
func (s *LedgerStore) CreateAccount(ctx context.Context, a domain.LedgerAccount) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO ledger_accounts (id, label, balance, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())`,
		a.ID, a.Label, a.Balance,
	)
	if err != nil {
		return fmt.Errorf("postgres: create ledger account %s: %w", a.ID, err)
	}
	return nil
}

// AdjustBalance applies a signed delta to an account balance. A debit that
// would take the balance negative fails with domain.ErrInsufficientFunds.
func (s *LedgerStore) AdjustBalance(ctx context.Context, id string, delta float64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE ledger_accounts
		 SET balance = balance + $2, updated_at = NOW()
		 WHERE id = $1 AND balance + $2 >= 0`,
		id, delta,
	)
	if err != nil {
		return fmt.Errorf("postgres: adjust balance of account %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM ledger_accounts WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: adjust balance of account %s: %w", id, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return fmt.Errorf("postgres: account %s: %w", id, domain.ErrInsufficientFunds)
	}
	return nil
}

// AppendTransaction writes one append-only ledger row.
func (s *LedgerStore) AppendTransaction(ctx context.Context, tx domain.LedgerTransaction) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO ledger_transactions (id, account_id, amount, type, reason, instance_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tx.ID, tx.AccountID, tx.Amount, string(tx.Type), tx.Reason, tx.InstanceID, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append ledger transaction %s: %w", tx.ID, err)
	}
	return nil
}
