package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

// InstanceStore implements domain.InstanceStore using PostgreSQL.
type InstanceStore struct {
	db querier
}

// NewInstanceStore creates a new InstanceStore backed by the given connection
// pool.
func NewInstanceStore(pool *pgxpool.Pool) *InstanceStore {
	return &InstanceStore{db: pool}
}

const instanceCols = `id, template_id, title, symbol, period_minutes,
	start_time, end_time, status, reference_price, external_id,
	category_slug, source, yes_amount, no_amount, pool_k, initial_seed,
	traded_volume, created_at, updated_at`

// Create inserts a new market instance. A conflicting (template_id, end_time)
// pair maps to domain.ErrAlreadyExists.
func (s *InstanceStore) Create(ctx context.Context, m domain.MarketInstance) error {
	const query = `
		INSERT INTO market_instances (
			id, template_id, title, symbol, period_minutes,
			start_time, end_time, status, reference_price, external_id,
			category_slug, source, yes_amount, no_amount, pool_k,
			initial_seed, traded_volume, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18, $19
		)
		ON CONFLICT (template_id, end_time) DO NOTHING`

	tag, err := s.db.Exec(ctx, query,
		m.ID, m.TemplateID, m.Title, m.Symbol, m.Period,
		m.StartTime, m.EndTime, string(m.Status), m.ReferencePrice, m.ExternalID,
		m.CategorySlug, m.Source, m.YesAmount, m.NoAmount, m.PoolK,
		m.InitialSeed, m.TradedVolume, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create instance %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// GetByID retrieves an instance by its primary key.
func (s *InstanceStore) GetByID(ctx context.Context, id string) (domain.MarketInstance, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+instanceCols+` FROM market_instances WHERE id = $1`, id)
	m, err := scanInstance(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.MarketInstance{}, domain.ErrNotFound
		}
		return domain.MarketInstance{}, fmt.Errorf("postgres: get instance %s: %w", id, err)
	}
	return m, nil
}

// FindByBoundary returns the template's instance whose end time lies within
// tolerance of endTime.
func (s *InstanceStore) FindByBoundary(ctx context.Context, templateID string, endTime time.Time, tolerance time.Duration) (domain.MarketInstance, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+instanceCols+`
		 FROM market_instances
		 WHERE template_id = $1 AND end_time BETWEEN $2 AND $3
		 ORDER BY end_time
		 LIMIT 1`,
		templateID, endTime.Add(-tolerance), endTime.Add(tolerance),
	)
	m, err := scanInstance(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.MarketInstance{}, domain.ErrNotFound
		}
		return domain.MarketInstance{}, fmt.Errorf("postgres: find instance by boundary: %w", err)
	}
	return m, nil
}

// ListFuture returns the template's instances with end times in (from, until].
func (s *InstanceStore) ListFuture(ctx context.Context, templateID string, from, until time.Time) ([]domain.MarketInstance, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+instanceCols+`
		 FROM market_instances
		 WHERE template_id = $1 AND end_time > $2 AND end_time <= $3
		 ORDER BY end_time`,
		templateID, from, until,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list future instances: %w", err)
	}
	return collectInstances(rows)
}

// ListExpiredOpen returns OPEN instances whose end time has passed.
func (s *InstanceStore) ListExpiredOpen(ctx context.Context, now time.Time, limit int) ([]domain.MarketInstance, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+instanceCols+`
		 FROM market_instances
		 WHERE status = 'OPEN' AND end_time < $1
		 ORDER BY end_time
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list expired open instances: %w", err)
	}
	return collectInstances(rows)
}

// Close marks an instance CLOSED.
func (s *InstanceStore) Close(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE market_instances
		 SET status = 'CLOSED', updated_at = NOW()
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("postgres: close instance %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ResetPool rewrites the AMM pool split and external binding, guarded so a
// pool that has already absorbed user trades is never overwritten.
func (s *InstanceStore) ResetPool(ctx context.Context, id string, yes, no, k float64, externalID string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE market_instances
		 SET yes_amount = $2, no_amount = $3, pool_k = $4, external_id = $5, updated_at = NOW()
		 WHERE id = $1 AND traded_volume = 0`,
		id, yes, no, k, externalID,
	)
	if err != nil {
		return fmt.Errorf("postgres: reset pool for instance %s: %w", id, err)
	}
	return nil
}

// ListClosedBefore returns CLOSED instances that ended before the cutoff,
// oldest first.
func (s *InstanceStore) ListClosedBefore(ctx context.Context, before time.Time, limit int) ([]domain.MarketInstance, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+instanceCols+`
		 FROM market_instances
		 WHERE status = 'CLOSED' AND end_time < $1
		 ORDER BY end_time
		 LIMIT $2`,
		before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed instances: %w", err)
	}
	return collectInstances(rows)
}

func collectInstances(rows pgx.Rows) ([]domain.MarketInstance, error) {
	defer rows.Close()
	var out []domain.MarketInstance
	for rows.Next() {
		m, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan instance: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// scanInstance scans a single instance row into a domain.MarketInstance.
func scanInstance(row pgx.Row) (domain.MarketInstance, error) {
	var m domain.MarketInstance
	var status string
	err := row.Scan(
		&m.ID, &m.TemplateID, &m.Title, &m.Symbol, &m.Period,
		&m.StartTime, &m.EndTime, &status, &m.ReferencePrice, &m.ExternalID,
		&m.CategorySlug, &m.Source, &m.YesAmount, &m.NoAmount, &m.PoolK,
		&m.InitialSeed, &m.TradedVolume, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.MarketInstance{}, err
	}
	m.Status = domain.SlotStatus(status)
	return m, nil
}
