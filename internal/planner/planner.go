// Package planner runs the recurring production loop: on every tick it writes
// a heartbeat, settles expired slots, and keeps each active template's
// boundary horizon filled with market instances.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jock20242024/yesno-factory/internal/domain"
	"github.com/Jock20242024/yesno-factory/internal/schedule"
)

// InstanceProducer materializes one slot for a template. Wait blocks until
// any asynchronous post-production work has drained.
type InstanceProducer interface {
	Produce(ctx context.Context, tpl domain.Template, endTime time.Time) (string, error)
	Wait()
}

// FailureRecorder tracks consecutive production failures per template.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, templateID string) (bool, error)
}

const (
	// DefaultTick is the production loop interval.
	DefaultTick = 30 * time.Second

	// DefaultHorizon is how far ahead of now each template is kept filled.
	DefaultHorizon = 24 * time.Hour

	// MaxBatchPerTemplate caps how many instances one template may produce
	// in a single tick, so a freshly added monthly template cannot stall
	// the loop behind a 15-minute one.
	MaxBatchPerTemplate = 50

	// HeartbeatKey is the settings key the loop stamps every tick.
	HeartbeatKey = "factory:last_heartbeat"

	sweepLimit = 100
)

// Planner drives the production schedule. It owns no business logic itself:
// boundary math lives in schedule, the per-slot pipeline in producer.
type Planner struct {
	templates domain.TemplateStore
	instances domain.InstanceStore
	producer  InstanceProducer
	breaker   FailureRecorder
	settings  domain.SettingsStore
	archiver  domain.Archiver
	logger    *slog.Logger

	tick             time.Duration
	horizon          time.Duration
	batchCap         int
	archiveEvery     time.Duration
	archiveRetention time.Duration

	lastArchive time.Time

	// now is swappable for tests.
	now func() time.Time
}

// Options tunes the loop. Zero values fall back to the defaults above;
// archival is disabled when Archiver is nil.
type Options struct {
	Tick             time.Duration
	Horizon          time.Duration
	BatchCap         int
	ArchiveEvery     time.Duration
	ArchiveRetention time.Duration
}

// New creates a planner. settings and archiver may be nil; a nil settings
// store disables the heartbeat and the scheduler gate.
func New(
	templates domain.TemplateStore,
	instances domain.InstanceStore,
	prod InstanceProducer,
	breaker FailureRecorder,
	settings domain.SettingsStore,
	archiver domain.Archiver,
	opts Options,
	logger *slog.Logger,
) *Planner {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Horizon <= 0 {
		opts.Horizon = DefaultHorizon
	}
	if opts.BatchCap <= 0 {
		opts.BatchCap = MaxBatchPerTemplate
	}
	if opts.ArchiveEvery <= 0 {
		opts.ArchiveEvery = 24 * time.Hour
	}
	if opts.ArchiveRetention <= 0 {
		opts.ArchiveRetention = 7 * 24 * time.Hour
	}
	return &Planner{
		templates:        templates,
		instances:        instances,
		producer:         prod,
		breaker:          breaker,
		settings:         settings,
		archiver:         archiver,
		logger:           logger,
		tick:             opts.Tick,
		horizon:          opts.Horizon,
		batchCap:         opts.BatchCap,
		archiveEvery:     opts.ArchiveEvery,
		archiveRetention: opts.ArchiveRetention,
		now:              time.Now,
	}
}

// Run executes the loop until the context is cancelled. Tick errors are
// logged, never fatal: a bad tick must not take the whole factory down.
func (p *Planner) Run(ctx context.Context) error {
	p.logger.Info("planner starting",
		slog.Duration("tick", p.tick),
		slog.Duration("horizon", p.horizon),
		slog.Int("batch_cap", p.batchCap),
	)

	// Run immediately on start.
	if err := p.Tick(ctx); err != nil {
		p.logger.Error("planner tick failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.producer.Wait()
			p.logger.Info("planner stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				p.logger.Error("planner tick failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Tick runs one full pass: heartbeat, scheduler gate, settlement sweep,
// horizon fill per active template, and the daily archival when due.
func (p *Planner) Tick(ctx context.Context) error {
	now := p.now().UTC()

	if p.settings != nil {
		if err := p.settings.SetHeartbeat(ctx, HeartbeatKey, now); err != nil {
			p.logger.Warn("heartbeat write failed", slog.String("error", err.Error()))
		}

		// The gate fails open: an unreadable flag must never silently
		// stop production.
		active, err := p.settings.SchedulerActive(ctx)
		if err != nil {
			p.logger.Warn("scheduler flag unreadable, proceeding",
				slog.String("error", err.Error()))
		} else if !active {
			p.logger.Info("scheduler disabled, skipping tick")
			return nil
		}
	}

	p.sweepExpired(ctx, now)

	templates, err := p.templates.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("planner: list active templates: %w", err)
	}

	for _, tpl := range templates {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.fillTemplate(ctx, tpl, now)
	}

	p.archiveIfDue(ctx, now)
	return nil
}

// sweepExpired closes OPEN slots whose end time has passed. Settlement of the
// outcome itself happens elsewhere; the sweep only stops trading.
func (p *Planner) sweepExpired(ctx context.Context, now time.Time) {
	expired, err := p.instances.ListExpiredOpen(ctx, now, sweepLimit)
	if err != nil {
		p.logger.Warn("settlement sweep: listing expired slots failed",
			slog.String("error", err.Error()))
		return
	}
	closed := 0
	for _, inst := range expired {
		if err := p.instances.Close(ctx, inst.ID); err != nil {
			p.logger.Warn("settlement sweep: close failed",
				slog.String("instance_id", inst.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		closed++
	}
	if closed > 0 {
		p.logger.Info("settlement sweep closed expired slots", slog.Int("count", closed))
	}
}

// fillTemplate produces every missing boundary inside the horizon, capped per
// tick. The first production error records a circuit-breaker failure and ends
// this template's fill; remaining boundaries are retried next tick.
func (p *Planner) fillTemplate(ctx context.Context, tpl domain.Template, now time.Time) {
	until := now.Add(p.horizon)

	existing, err := p.instances.ListFuture(ctx, tpl.ID, now, until)
	if err != nil {
		p.logger.Warn("horizon fill: listing future slots failed",
			slog.String("template_id", tpl.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	covered := make(map[int64]struct{}, len(existing))
	for _, inst := range existing {
		covered[inst.EndTime.UTC().Truncate(time.Second).Unix()] = struct{}{}
	}

	expected := int((p.horizon + time.Duration(tpl.Period)*time.Minute - 1) / (time.Duration(tpl.Period) * time.Minute))
	produced := 0

	boundary := schedule.NextBoundary(tpl.Period, now)
	for i := 0; i < expected && produced < p.batchCap; i++ {
		if boundary.After(until) {
			break
		}
		key := boundary.Truncate(time.Second).Unix()
		if _, ok := covered[key]; ok {
			boundary = schedule.NextBoundary(tpl.Period, boundary)
			continue
		}

		if _, err := p.producer.Produce(ctx, tpl, boundary); err != nil {
			if errors.Is(err, domain.ErrTemplatePaused) {
				return
			}
			p.logger.Error("production failed",
				slog.String("template_id", tpl.ID),
				slog.String("symbol", tpl.Symbol),
				slog.Time("boundary", boundary),
				slog.String("error", err.Error()),
			)
			paused, bErr := p.breaker.RecordFailure(ctx, tpl.ID)
			if bErr != nil {
				p.logger.Warn("recording production failure failed",
					slog.String("template_id", tpl.ID),
					slog.String("error", bErr.Error()),
				)
			}
			if paused {
				p.logger.Warn("template paused, abandoning horizon fill",
					slog.String("template_id", tpl.ID))
			}
			return
		}
		produced++
		boundary = schedule.NextBoundary(tpl.Period, boundary)
	}

	if produced > 0 {
		p.logger.Info("horizon filled",
			slog.String("template_id", tpl.ID),
			slog.String("symbol", tpl.Symbol),
			slog.Int("produced", produced),
		)
	}
}

// archiveIfDue exports old closed slots to cold storage at most once per
// archive interval.
func (p *Planner) archiveIfDue(ctx context.Context, now time.Time) {
	if p.archiver == nil {
		return
	}
	if !p.lastArchive.IsZero() && now.Sub(p.lastArchive) < p.archiveEvery {
		return
	}

	before := now.Add(-p.archiveRetention)
	count, err := p.archiver.ArchiveInstances(ctx, before)
	if err != nil {
		p.logger.Warn("archival failed", slog.String("error", err.Error()))
		return
	}
	p.lastArchive = now
	if count > 0 {
		p.logger.Info("archived closed slots",
			slog.Int64("count", count),
			slog.Time("before", before),
		)
	}
}
