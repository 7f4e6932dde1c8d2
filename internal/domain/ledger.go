package domain

import "time"

// LedgerTxType classifies ledger transaction rows.
type LedgerTxType string

const (
	LedgerTxSeed LedgerTxType = "LIQUIDITY_SEED"
)

// LedgerAccount is a system balance account. The engine touches exactly two:
// the liquidity-pool account it debits and the AMM account it credits.
type LedgerAccount struct {
	ID        string
	Label     string
	Balance   float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LedgerTransaction is one append-only ledger row. Every seeding produces a
// paired debit/credit of equal magnitude, each tagged with the instance that
// was funded.
type LedgerTransaction struct {
	ID         string
	AccountID  string
	Amount     float64 // negative = debit, positive = credit
	Type       LedgerTxType
	Reason     string
	InstanceID string
	CreatedAt  time.Time
}

// SeedResult is the pool state produced by one liquidity seeding.
type SeedResult struct {
	YesAmount float64
	NoAmount  float64
	K         float64
	Seed      float64
	Skipped   bool // true when the liquidity account was underfunded
}
