package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

// TemplateStore implements domain.TemplateStore using PostgreSQL.
type TemplateStore struct {
	db querier
}

// NewTemplateStore creates a new TemplateStore backed by the given connection
// pool.
func NewTemplateStore(pool *pgxpool.Pool) *TemplateStore {
	return &TemplateStore{db: pool}
}

const templateCols = `id, name, symbol, period_minutes, advance_time_seconds,
	category_slug, series_id, is_active, status, failure_count, pause_reason,
	last_slot_id, last_run_at, created_at, updated_at`

// Create inserts a new template.
func (s *TemplateStore) Create(ctx context.Context, t domain.Template) error {
	const query = `
		INSERT INTO market_templates (
			id, name, symbol, period_minutes, advance_time_seconds,
			category_slug, series_id, is_active, status, failure_count,
			pause_reason, last_slot_id, last_run_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, NOW(), NOW()
		)`

	_, err := s.db.Exec(ctx, query,
		t.ID, t.Name, t.Symbol, t.Period, t.AdvanceTime,
		t.CategorySlug, t.SeriesID, t.IsActive, string(t.Status), t.FailureCount,
		t.PauseReason, t.LastSlotID, t.LastRunAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create template %s: %w", t.ID, err)
	}
	return nil
}

// GetByID retrieves a template by its primary key.
func (s *TemplateStore) GetByID(ctx context.Context, id string) (domain.Template, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+templateCols+` FROM market_templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Template{}, domain.ErrNotFound
		}
		return domain.Template{}, fmt.Errorf("postgres: get template %s: %w", id, err)
	}
	return t, nil
}

// FindBySymbolPeriod returns the template producing the given symbol at the
// given cadence. The pair is the harvester's dedup key.
func (s *TemplateStore) FindBySymbolPeriod(ctx context.Context, symbol string, periodMinutes int) (domain.Template, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+templateCols+`
		 FROM market_templates
		 WHERE symbol = $1 AND period_minutes = $2
		 ORDER BY created_at
		 LIMIT 1`,
		symbol, periodMinutes,
	)
	t, err := scanTemplate(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Template{}, domain.ErrNotFound
		}
		return domain.Template{}, fmt.Errorf("postgres: find template %s/%d: %w", symbol, periodMinutes, err)
	}
	return t, nil
}

// ListActive returns all templates eligible for production, oldest first so
// long-standing templates are filled before newly added ones.
func (s *TemplateStore) ListActive(ctx context.Context) ([]domain.Template, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+templateCols+`
		 FROM market_templates
		 WHERE is_active = TRUE AND status = 'ACTIVE'
		 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active templates: %w", err)
	}
	defer rows.Close()

	var out []domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateSeriesBinding refreshes the harvested name and series linkage.
func (s *TemplateStore) UpdateSeriesBinding(ctx context.Context, id, name, seriesID string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE market_templates
		 SET name = $2, series_id = $3, updated_at = NOW()
		 WHERE id = $1`,
		id, name, seriesID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update series binding for template %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateFailureState persists the circuit-breaker state in one write.
func (s *TemplateStore) UpdateFailureState(ctx context.Context, id string, failureCount int, status domain.TemplateStatus, isActive bool, pauseReason string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE market_templates
		 SET failure_count = $2, status = $3, is_active = $4, pause_reason = $5, updated_at = NOW()
		 WHERE id = $1`,
		id, failureCount, string(status), isActive, pauseReason,
	)
	if err != nil {
		return fmt.Errorf("postgres: update failure state for template %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetLastProduced records the template's most recent production.
func (s *TemplateStore) SetLastProduced(ctx context.Context, id, slotID string, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE market_templates
		 SET last_slot_id = $2, last_run_at = $3, updated_at = NOW()
		 WHERE id = $1`,
		id, slotID, at,
	)
	if err != nil {
		return fmt.Errorf("postgres: set last produced for template %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// scanTemplate scans a single template row into a domain.Template.
func scanTemplate(row pgx.Row) (domain.Template, error) {
	var t domain.Template
	var status string
	err := row.Scan(
		&t.ID, &t.Name, &t.Symbol, &t.Period, &t.AdvanceTime,
		&t.CategorySlug, &t.SeriesID, &t.IsActive, &status, &t.FailureCount,
		&t.PauseReason, &t.LastSlotID, &t.LastRunAt,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.Template{}, err
	}
	t.Status = domain.TemplateStatus(status)
	return t, nil
}
