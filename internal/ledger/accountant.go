// Package ledger seeds automated-market-maker liquidity for freshly produced
// market instances.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

// Config identifies the two system accounts and the seed sizing. Account IDs
// are injected rather than looked up by well-known labels so the accountant
// stays testable with fixtures.
type Config struct {
	LiquidityAccountID string
	AMMAccountID       string
	DefaultSeed        float64
	MinSeed            float64
}

// Accountant moves the seed amount from the liquidity-pool account into the
// AMM account and splits it into the yes/no pool. It must run inside the same
// transaction that creates the instance.
type Accountant struct {
	cfg    Config
	logger *slog.Logger
}

// NewAccountant creates an accountant with the given account configuration.
func NewAccountant(cfg Config, logger *slog.Logger) *Accountant {
	return &Accountant{cfg: cfg, logger: logger}
}

// SeedAmount returns the configured seed, raised to the minimum when the
// default would produce a degenerate near-zero pool.
func (a *Accountant) SeedAmount() float64 {
	if a.cfg.DefaultSeed < a.cfg.MinSeed {
		return a.cfg.MinSeed
	}
	return a.cfg.DefaultSeed
}

// SeedLiquidity funds the instance pool with amount, split by
// splitProbability. An underfunded or missing liquidity account skips seeding
// (logged, Skipped=true) and never fails the caller's transaction; any other
// store error propagates and rolls the whole production transaction back.
//
// The split is penny-exact: yesAmount is floored to 2 decimals and noAmount
// is the remainder, so yesAmount + noAmount == amount always.
func (a *Accountant) SeedLiquidity(ctx context.Context, store domain.LedgerStore, instanceID string, amount, splitProbability float64) (domain.SeedResult, error) {
	if amount <= 0 {
		return domain.SeedResult{Skipped: true}, nil
	}
	if splitProbability <= 0 || splitProbability >= 1 {
		splitProbability = 0.5
	}

	lp, err := store.GetAccount(ctx, a.cfg.LiquidityAccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.logger.Warn("ledger: liquidity account missing, seeding skipped",
				slog.String("account_id", a.cfg.LiquidityAccountID),
				slog.String("instance_id", instanceID),
			)
			return domain.SeedResult{Skipped: true}, nil
		}
		return domain.SeedResult{}, fmt.Errorf("ledger: load liquidity account: %w", err)
	}
	if lp.Balance < amount {
		a.logger.Warn("ledger: liquidity account underfunded, seeding skipped",
			slog.Float64("balance", lp.Balance),
			slog.Float64("amount", amount),
			slog.String("instance_id", instanceID),
		)
		return domain.SeedResult{Skipped: true}, nil
	}

	// The AMM account is created lazily on first use.
	if _, err := store.GetAccount(ctx, a.cfg.AMMAccountID); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.SeedResult{}, fmt.Errorf("ledger: load amm account: %w", err)
		}
		now := time.Now().UTC()
		if err := store.CreateAccount(ctx, domain.LedgerAccount{
			ID:        a.cfg.AMMAccountID,
			Label:     "amm pool",
			Balance:   0,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return domain.SeedResult{}, fmt.Errorf("ledger: create amm account: %w", err)
		}
	}

	yes, no, k := Split(amount, splitProbability)

	if err := store.AdjustBalance(ctx, a.cfg.LiquidityAccountID, -amount); err != nil {
		return domain.SeedResult{}, fmt.Errorf("ledger: debit liquidity account: %w", err)
	}
	if err := store.AdjustBalance(ctx, a.cfg.AMMAccountID, amount); err != nil {
		return domain.SeedResult{}, fmt.Errorf("ledger: credit amm account: %w", err)
	}

	reason := fmt.Sprintf("initial liquidity seed for instance %s", instanceID)
	now := time.Now().UTC()
	for _, tx := range []domain.LedgerTransaction{
		{ID: uuid.NewString(), AccountID: a.cfg.LiquidityAccountID, Amount: -amount, Type: domain.LedgerTxSeed, Reason: reason, InstanceID: instanceID, CreatedAt: now},
		{ID: uuid.NewString(), AccountID: a.cfg.AMMAccountID, Amount: amount, Type: domain.LedgerTxSeed, Reason: reason, InstanceID: instanceID, CreatedAt: now},
	} {
		if err := store.AppendTransaction(ctx, tx); err != nil {
			return domain.SeedResult{}, fmt.Errorf("ledger: append transaction: %w", err)
		}
	}

	return domain.SeedResult{
		YesAmount: yes,
		NoAmount:  no,
		K:         k,
		Seed:      amount,
	}, nil
}

// Split divides amount into a yes/no pool at the given probability.
// yesAmount = floor(amount * p, 2dp), noAmount = amount - yesAmount,
// k = yesAmount * noAmount.
func Split(amount, probability float64) (yes, no, k float64) {
	amt := decimal.NewFromFloat(amount)
	dy := amt.Mul(decimal.NewFromFloat(probability)).RoundFloor(2)
	dn := amt.Sub(dy)

	yes, _ = dy.Float64()
	no, _ = dn.Float64()
	k, _ = dy.Mul(dn).Float64()
	return yes, no, k
}
