package domain

import (
	"context"
	"time"
)

// TemplateStore persists recurring-market templates.
type TemplateStore interface {
	Create(ctx context.Context, t Template) error
	GetByID(ctx context.Context, id string) (Template, error)
	// FindBySymbolPeriod returns the template for (symbol, period), or
	// ErrNotFound. It is the dedup key of template ingestion.
	FindBySymbolPeriod(ctx context.Context, symbol string, periodMinutes int) (Template, error)
	ListActive(ctx context.Context) ([]Template, error)
	// UpdateSeriesBinding refreshes the harvested name and external series
	// linkage of an existing template.
	UpdateSeriesBinding(ctx context.Context, id, name, seriesID string) error
	// UpdateFailureState writes the circuit-breaker outcome of one
	// production attempt: the new counter and, when the threshold was
	// crossed, the paused status with its reason.
	UpdateFailureState(ctx context.Context, id string, failureCount int, status TemplateStatus, isActive bool, pauseReason string) error
	// SetLastProduced records the most recent successfully produced slot.
	SetLastProduced(ctx context.Context, id, slotID string, at time.Time) error
}

// InstanceStore persists produced market instances.
type InstanceStore interface {
	Create(ctx context.Context, m MarketInstance) error
	GetByID(ctx context.Context, id string) (MarketInstance, error)
	// FindByBoundary returns the instance for (templateID, endTime) within
	// the given tolerance, or ErrNotFound. It is the dedup key of the
	// production pipeline.
	FindByBoundary(ctx context.Context, templateID string, endTime time.Time, tolerance time.Duration) (MarketInstance, error)
	// ListFuture returns the template's instances with endTime in
	// (from, until], ordered by endTime ascending.
	ListFuture(ctx context.Context, templateID string, from, until time.Time) ([]MarketInstance, error)
	// ListExpiredOpen returns OPEN instances whose endTime has passed.
	ListExpiredOpen(ctx context.Context, now time.Time, limit int) ([]MarketInstance, error)
	Close(ctx context.Context, id string) error
	// ResetPool overwrites the AMM pool split and external binding, but
	// only while the instance has accumulated zero traded volume.
	ResetPool(ctx context.Context, id string, yes, no, k float64, externalID string) error
	ListClosedBefore(ctx context.Context, before time.Time, limit int) ([]MarketInstance, error)
}

// LedgerStore persists system accounts and their append-only transaction log.
type LedgerStore interface {
	GetAccount(ctx context.Context, id string) (LedgerAccount, error)
	CreateAccount(ctx context.Context, a LedgerAccount) error
	AdjustBalance(ctx context.Context, id string, delta float64) error
	AppendTransaction(ctx context.Context, tx LedgerTransaction) error
}

// ProductionStores bundles the stores that participate in the single
// transaction spanning instance creation and liquidity seeding.
type ProductionStores interface {
	Instances() InstanceStore
	Ledger() LedgerStore
}

// TxRunner executes fn inside one database transaction. The ledger
// debit/credit is atomic with instance creation; a rollback leaves neither.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, stores ProductionStores) error) error
}

// ExternalFeed is the bulk external-market collaborator. Implementations own
// pagination and retry; they return partial results on partial failure
// rather than erroring.
type ExternalFeed interface {
	FetchOpenCandidates(ctx context.Context) ([]ExternalCandidate, error)
	// FetchAllCandidates includes closed markets and is used as the
	// fallback snapshot when the open fetch comes back empty.
	FetchAllCandidates(ctx context.Context) ([]ExternalCandidate, error)
	FetchOne(ctx context.Context, externalID string) (*ExternalCandidate, error)
	// FetchYesPrice returns the current YES outcome price (0..1) of a
	// single external market, or ErrNoPrice when it cannot be extracted.
	FetchYesPrice(ctx context.Context, externalID string) (float64, error)
	// FetchSeriesLine resolves the reference line of an external series,
	// or ErrNoPrice when the series carries none.
	FetchSeriesLine(ctx context.Context, seriesID string) (float64, error)
}

// SeriesCatalog lists the recurring series published by the external venue.
// The harvester walks it to discover templates worth producing locally.
type SeriesCatalog interface {
	FetchSeriesCatalog(ctx context.Context) ([]ExternalSeries, error)
	// FetchSeriesEventTitles returns the titles of the series' events, used
	// when the series title alone does not identify the underlying asset.
	FetchSeriesEventTitles(ctx context.Context, seriesID string) ([]string, error)
}

// PriceOracle is the authoritative last-resort price source.
type PriceOracle interface {
	GetPrice(ctx context.Context, symbol string) (PriceQuote, error)
}

// SettingsStore is the key-value settings collaborator used for liveness
// heartbeats and the global scheduler switch.
type SettingsStore interface {
	SetHeartbeat(ctx context.Context, key string, at time.Time) error
	// SchedulerActive reports the persisted on/off switch; a missing key
	// means active.
	SchedulerActive(ctx context.Context) (bool, error)
}
