// Package producer turns a template plus a boundary into one durable market
// instance: dedup, pricing, external reconciliation, and transactional
// liquidity seeding.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Jock20242024/yesno-factory/internal/domain"
	"github.com/Jock20242024/yesno-factory/internal/feed"
	"github.com/Jock20242024/yesno-factory/internal/ledger"
	"github.com/Jock20242024/yesno-factory/internal/match"
	"github.com/Jock20242024/yesno-factory/internal/schedule"
)

// DedupTolerance is the end-time window inside which an existing instance
// counts as the same slot.
const DedupTolerance = time.Second

const resyncTimeout = 15 * time.Second

// Producer orchestrates one production attempt end to end.
type Producer struct {
	templates  domain.TemplateStore
	instances  domain.InstanceStore
	txRunner   domain.TxRunner
	cache      *feed.Cache
	feed       domain.ExternalFeed
	oracle     domain.PriceOracle
	matcher    *match.Engine
	accountant *ledger.Accountant
	breaker    *CircuitBreaker
	logger     *slog.Logger

	// now is swappable for tests.
	now func() time.Time

	// Attempts for the same template are serialized; the dedup check is
	// read-then-write.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// resyncs tracks in-flight post-commit odds resyncs so shutdown can
	// wait for them.
	resyncs sync.WaitGroup
}

// New creates a producer.
func New(
	templates domain.TemplateStore,
	instances domain.InstanceStore,
	txRunner domain.TxRunner,
	cache *feed.Cache,
	externalFeed domain.ExternalFeed,
	oracle domain.PriceOracle,
	matcher *match.Engine,
	accountant *ledger.Accountant,
	breaker *CircuitBreaker,
	logger *slog.Logger,
) *Producer {
	return &Producer{
		templates:  templates,
		instances:  instances,
		txRunner:   txRunner,
		cache:      cache,
		feed:       externalFeed,
		oracle:     oracle,
		matcher:    matcher,
		accountant: accountant,
		breaker:    breaker,
		logger:     logger,
		now:        time.Now,
		locks:      map[string]*sync.Mutex{},
	}
}

// Produce materializes the template's slot ending at endTime and returns its
// id. Producing twice for the same (template, endTime) returns the existing
// instance's id. Errors propagate to the caller, which records the circuit
// breaker failure.
func (p *Producer) Produce(ctx context.Context, tpl domain.Template, endTime time.Time) (string, error) {
	if tpl.Paused() {
		return "", domain.ErrTemplatePaused
	}

	unlock := p.lockTemplate(tpl.ID)
	defer unlock()

	endTime = endTime.UTC().Truncate(time.Second)

	// Dedup on (templateID, endTime): the production pipeline is
	// idempotent on this key.
	if existing, err := p.instances.FindByBoundary(ctx, tpl.ID, endTime, DedupTolerance); err == nil {
		return existing.ID, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("producer: dedup lookup: %w", err)
	}

	now := p.now().UTC()
	startTime := schedule.StartTime(endTime, tpl.Period)

	// Elapsed windows take the historical fast path: created CLOSED with a
	// zero price and no external calls of any kind.
	if !startTime.After(now) || !endTime.After(now) {
		return p.createHistorical(ctx, tpl, startTime, endTime, now)
	}

	price, err := p.resolvePrice(ctx, tpl)
	if err != nil {
		return "", err
	}

	externalID, score := p.reconcile(ctx, tpl, endTime)

	inst := domain.MarketInstance{
		ID:             uuid.NewString(),
		TemplateID:     tpl.ID,
		Title:          tpl.Name,
		Symbol:         tpl.Symbol,
		Period:         tpl.Period,
		StartTime:      startTime,
		EndTime:        endTime,
		Status:         domain.SlotStatusOpen,
		ReferencePrice: price,
		ExternalID:     externalID,
		CategorySlug:   categorySlug(tpl),
		Source:         "INTERNAL",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	seed := p.accountant.SeedAmount()
	err = p.txRunner.WithinTx(ctx, func(ctx context.Context, stores domain.ProductionStores) error {
		res, seedErr := p.accountant.SeedLiquidity(ctx, stores.Ledger(), inst.ID, seed, 0.5)
		if seedErr != nil {
			return seedErr
		}
		if !res.Skipped {
			inst.YesAmount = res.YesAmount
			inst.NoAmount = res.NoAmount
			inst.PoolK = res.K
			inst.InitialSeed = res.Seed
		}
		return stores.Instances().Create(ctx, inst)
	})
	if err != nil {
		return "", fmt.Errorf("producer: create instance: %w", err)
	}

	if externalID != nil {
		p.logger.Info("instance bound to external market",
			slog.String("instance_id", inst.ID),
			slog.String("external_id", *externalID),
			slog.Float64("score", score),
		)
		p.resyncs.Add(1)
		go p.resyncOdds(inst.ID, *externalID)
	}

	if err := p.finishSuccess(ctx, tpl.ID, inst.ID, now); err != nil {
		p.logger.Warn("producer: post-create bookkeeping failed", slog.String("error", err.Error()))
	}
	return inst.ID, nil
}

// Wait blocks until all fire-and-forget odds resyncs have finished.
func (p *Producer) Wait() {
	p.resyncs.Wait()
}

func (p *Producer) lockTemplate(id string) func() {
	p.locksMu.Lock()
	mu, ok := p.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		p.locks[id] = mu
	}
	p.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// createHistorical writes an already-elapsed slot directly as CLOSED with a
// zero reference price.
func (p *Producer) createHistorical(ctx context.Context, tpl domain.Template, startTime, endTime, now time.Time) (string, error) {
	inst := domain.MarketInstance{
		ID:           uuid.NewString(),
		TemplateID:   tpl.ID,
		Title:        tpl.Name,
		Symbol:       tpl.Symbol,
		Period:       tpl.Period,
		StartTime:    startTime,
		EndTime:      endTime,
		Status:       domain.SlotStatusClosed,
		CategorySlug: categorySlug(tpl),
		Source:       "INTERNAL",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := p.txRunner.WithinTx(ctx, func(ctx context.Context, stores domain.ProductionStores) error {
		return stores.Instances().Create(ctx, inst)
	})
	if err != nil {
		return "", fmt.Errorf("producer: create historical instance: %w", err)
	}

	if err := p.finishSuccess(ctx, tpl.ID, inst.ID, now); err != nil {
		p.logger.Warn("producer: post-create bookkeeping failed", slog.String("error", err.Error()))
	}
	return inst.ID, nil
}

// resolvePrice prefers the reference line of the template's external series
// and falls back to the live oracle. A future slot is never priced at zero:
// when both sources fail the attempt fails.
func (p *Producer) resolvePrice(ctx context.Context, tpl domain.Template) (float64, error) {
	if tpl.SeriesID != "" {
		line, err := p.feed.FetchSeriesLine(ctx, tpl.SeriesID)
		if err == nil && line > 0 {
			return line, nil
		}
		if err != nil && !errors.Is(err, domain.ErrNoPrice) {
			p.logger.Warn("producer: series line lookup failed, falling back to oracle",
				slog.String("series_id", tpl.SeriesID),
				slog.String("error", err.Error()),
			)
		}
	}

	quote, err := p.oracle.GetPrice(ctx, tpl.Symbol)
	if err != nil {
		return 0, fmt.Errorf("producer: price %s: %w", tpl.Symbol, err)
	}
	if quote.Price <= 0 {
		return 0, fmt.Errorf("producer: price %s: %w", tpl.Symbol, domain.ErrNoPrice)
	}
	return quote.Price, nil
}

// reconcile looks for the matching external market. A miss is not an error;
// the instance is created unbound and may be matched later. On a miss the
// snapshot is force-refreshed once and the match retried.
func (p *Producer) reconcile(ctx context.Context, tpl domain.Template, endTime time.Time) (*string, float64) {
	want := match.Want{
		Asset:   tpl.BaseAsset(),
		Period:  tpl.Period,
		EndTime: endTime,
		Status:  domain.SlotStatusOpen,
	}

	best, res := p.matcher.Best(p.cache.Candidates(ctx, false), want)
	if best == nil {
		best, res = p.matcher.Best(p.cache.Candidates(ctx, true), want)
	}
	if best == nil {
		return nil, 0
	}
	id := best.ID
	return &id, res.Score
}

// resyncOdds fetches the bound market's current price split and overwrites
// the freshly seeded 50/50 pool, but only while the instance has zero traded
// volume. It runs post-commit and holds no locks.
func (p *Producer) resyncOdds(instanceID, externalID string) {
	defer p.resyncs.Done()

	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()

	yesProb, err := p.feed.FetchYesPrice(ctx, externalID)
	if err != nil {
		if !errors.Is(err, domain.ErrNoPrice) {
			p.logger.Warn("odds resync failed",
				slog.String("instance_id", instanceID),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	if yesProb <= 0 || yesProb >= 1 {
		return
	}

	inst, err := p.instances.GetByID(ctx, instanceID)
	if err != nil {
		p.logger.Warn("odds resync: instance lookup failed",
			slog.String("instance_id", instanceID),
			slog.String("error", err.Error()),
		)
		return
	}
	if inst.TradedVolume > 0 {
		// Never override a pool someone has already traded against.
		return
	}
	total := inst.YesAmount + inst.NoAmount
	if total <= 0 {
		return
	}

	yes, no, k := ledger.Split(total, yesProb)
	if err := p.instances.ResetPool(ctx, instanceID, yes, no, k, externalID); err != nil {
		p.logger.Warn("odds resync: pool reset failed",
			slog.String("instance_id", instanceID),
			slog.String("error", err.Error()),
		)
		return
	}
	p.logger.Debug("odds resync applied",
		slog.String("instance_id", instanceID),
		slog.Float64("yes_probability", yesProb),
	)
}

// finishSuccess records the produced slot on the template and resets the
// circuit breaker.
func (p *Producer) finishSuccess(ctx context.Context, templateID, instanceID string, at time.Time) error {
	if err := p.templates.SetLastProduced(ctx, templateID, instanceID, at); err != nil {
		return err
	}
	return p.breaker.RecordSuccess(ctx, templateID)
}

func categorySlug(tpl domain.Template) string {
	base := tpl.CategorySlug
	if base == "" {
		base = "crypto"
	}
	suffix := periodSlug(tpl.Period)
	if suffix == "" {
		return base
	}
	return base + "-" + suffix
}

func periodSlug(period int) string {
	switch period {
	case schedule.PeriodQuarterHour:
		return "15m"
	case schedule.PeriodHour:
		return "1h"
	case schedule.PeriodFourHours:
		return "4h"
	case schedule.PeriodDay:
		return "daily"
	case schedule.PeriodWeek:
		return "weekly"
	case schedule.PeriodMonth:
		return "monthly"
	default:
		return ""
	}
}
