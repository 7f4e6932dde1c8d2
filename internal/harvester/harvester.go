// Package harvester discovers recurring series on the external venue and
// keeps the local template catalog in sync: known symbol/period pairs get
// their name and series linkage refreshed, new pairs become active templates.
package harvester

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

const (
	// DefaultInterval is how often the catalog is re-walked. Series come and
	// go rarely, so hours are plenty.
	DefaultInterval = 6 * time.Hour

	// defaultAdvanceTime is the production lead for harvested templates.
	defaultAdvanceTime = 120 // seconds

	categorySlug = "crypto"
)

// Harvester walks the external series catalog and upserts templates.
type Harvester struct {
	catalog   domain.SeriesCatalog
	templates domain.TemplateStore
	logger    *slog.Logger
	every     time.Duration
}

// Stats summarizes one harvest pass.
type Stats struct {
	Created   int
	Updated   int
	Unchanged int
	Skipped   int
}

// New creates a harvester. A non-positive interval falls back to the default.
func New(catalog domain.SeriesCatalog, templates domain.TemplateStore, every time.Duration, logger *slog.Logger) *Harvester {
	if every <= 0 {
		every = DefaultInterval
	}
	return &Harvester{
		catalog:   catalog,
		templates: templates,
		logger:    logger,
		every:     every,
	}
}

// Run harvests immediately, then on every interval until the context is
// cancelled. Harvest errors are logged, never fatal: the catalog going
// unreachable must not take production down with it.
func (h *Harvester) Run(ctx context.Context) error {
	h.logger.Info("harvester starting", slog.Duration("interval", h.every))

	if _, err := h.Harvest(ctx); err != nil && ctx.Err() == nil {
		h.logger.Error("harvest failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(h.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("harvester stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := h.Harvest(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				h.logger.Error("harvest failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Harvest runs one full catalog pass. Per-series failures are skipped so one
// bad record cannot abort the walk; only a failed catalog listing errors.
func (h *Harvester) Harvest(ctx context.Context) (Stats, error) {
	series, err := h.catalog.FetchSeriesCatalog(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("harvester: list series catalog: %w", err)
	}

	var stats Stats
	seen := make(map[string]struct{})

	for _, s := range series {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		tpl, ok := h.inspect(ctx, s)
		if !ok {
			stats.Skipped++
			continue
		}

		// First series wins a symbol/period pair within one pass.
		key := fmt.Sprintf("%s:%d", tpl.Symbol, tpl.Period)
		if _, dup := seen[key]; dup {
			stats.Skipped++
			continue
		}
		seen[key] = struct{}{}

		switch outcome, err := h.upsert(ctx, tpl); {
		case err != nil:
			h.logger.Warn("template upsert failed",
				slog.String("symbol", tpl.Symbol),
				slog.Int("period", tpl.Period),
				slog.String("error", err.Error()),
			)
			stats.Skipped++
		case outcome == outcomeCreated:
			h.logger.Info("template harvested",
				slog.String("symbol", tpl.Symbol),
				slog.Int("period", tpl.Period),
				slog.String("series_id", tpl.SeriesID),
			)
			stats.Created++
		case outcome == outcomeUpdated:
			stats.Updated++
		default:
			stats.Unchanged++
		}
	}

	h.logger.Info("harvest complete",
		slog.Int("series", len(series)),
		slog.Int("created", stats.Created),
		slog.Int("updated", stats.Updated),
		slog.Int("unchanged", stats.Unchanged),
		slog.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// inspect decides whether a series is worth producing locally and, if so,
// projects it onto a template. Sub-hourly series are crypto by venue
// convention; longer cadences must name a crypto asset or the category.
func (h *Harvester) inspect(ctx context.Context, s domain.ExternalSeries) (domain.Template, bool) {
	text := strings.ToLower(s.Title + " " + s.Slug)

	period, ok := periodFromText(text, s.Recurrence)
	if !ok {
		return domain.Template{}, false
	}
	if _, std := standardPeriods[period]; !std {
		return domain.Template{}, false
	}
	if period > 60 && !looksCrypto(text) {
		return domain.Template{}, false
	}

	symbol, ok := extractSymbol(text)
	if !ok {
		// The series title may be generic ("Crypto Prices Weekly"); the
		// event titles usually carry the asset.
		titles, err := h.catalog.FetchSeriesEventTitles(ctx, s.ID)
		if err != nil {
			h.logger.Warn("series event lookup failed",
				slog.String("series_id", s.ID),
				slog.String("error", err.Error()),
			)
			return domain.Template{}, false
		}
		for _, t := range titles {
			if symbol, ok = extractSymbol(strings.ToLower(t)); ok {
				break
			}
		}
		if !ok {
			return domain.Template{}, false
		}
	}

	name := s.Title
	if name == "" {
		name = s.Slug
	}

	return domain.Template{
		ID:           uuid.NewString(),
		Name:         name,
		Symbol:       symbol,
		Period:       period,
		AdvanceTime:  defaultAdvanceTime,
		CategorySlug: categorySlug,
		SeriesID:     s.ID,
		IsActive:     true,
		Status:       domain.TemplateStatusActive,
	}, true
}

type upsertOutcome int

const (
	outcomeUnchanged upsertOutcome = iota
	outcomeCreated
	outcomeUpdated
)

// upsert creates the template or refreshes an existing one's name and series
// binding. Activation state is never touched: a template the breaker paused
// stays paused across harvests.
func (h *Harvester) upsert(ctx context.Context, tpl domain.Template) (upsertOutcome, error) {
	existing, err := h.templates.FindBySymbolPeriod(ctx, tpl.Symbol, tpl.Period)
	switch {
	case err == nil:
		if existing.Name == tpl.Name && existing.SeriesID == tpl.SeriesID {
			return outcomeUnchanged, nil
		}
		if err := h.templates.UpdateSeriesBinding(ctx, existing.ID, tpl.Name, tpl.SeriesID); err != nil {
			return outcomeUnchanged, err
		}
		return outcomeUpdated, nil
	case errors.Is(err, domain.ErrNotFound):
		if err := h.templates.Create(ctx, tpl); err != nil {
			return outcomeUnchanged, err
		}
		return outcomeCreated, nil
	default:
		return outcomeUnchanged, err
	}
}
