package planner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeTemplates struct {
	active   []domain.Template
	listErr  error
	failures map[string]int
}

func (f *fakeTemplates) Create(ctx context.Context, t domain.Template) error { return nil }

func (f *fakeTemplates) GetByID(ctx context.Context, id string) (domain.Template, error) {
	for _, t := range f.active {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Template{}, domain.ErrNotFound
}

func (f *fakeTemplates) FindBySymbolPeriod(ctx context.Context, symbol string, periodMinutes int) (domain.Template, error) {
	return domain.Template{}, domain.ErrNotFound
}

func (f *fakeTemplates) ListActive(ctx context.Context) ([]domain.Template, error) {
	return f.active, f.listErr
}

func (f *fakeTemplates) UpdateSeriesBinding(ctx context.Context, id, name, seriesID string) error {
	return nil
}

func (f *fakeTemplates) UpdateFailureState(ctx context.Context, id string, failureCount int, status domain.TemplateStatus, isActive bool, pauseReason string) error {
	return nil
}

func (f *fakeTemplates) SetLastProduced(ctx context.Context, id, slotID string, at time.Time) error {
	return nil
}

type fakeInstances struct {
	mu      sync.Mutex
	future  []domain.MarketInstance
	expired []domain.MarketInstance
	closed  []string
}

func (f *fakeInstances) Create(ctx context.Context, inst domain.MarketInstance) error { return nil }

func (f *fakeInstances) GetByID(ctx context.Context, id string) (domain.MarketInstance, error) {
	return domain.MarketInstance{}, domain.ErrNotFound
}

func (f *fakeInstances) FindByBoundary(ctx context.Context, templateID string, endTime time.Time, tolerance time.Duration) (domain.MarketInstance, error) {
	return domain.MarketInstance{}, domain.ErrNotFound
}

func (f *fakeInstances) ListFuture(ctx context.Context, templateID string, from, until time.Time) ([]domain.MarketInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.MarketInstance
	for _, inst := range f.future {
		if inst.TemplateID == templateID {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (f *fakeInstances) ListExpiredOpen(ctx context.Context, now time.Time, limit int) ([]domain.MarketInstance, error) {
	return f.expired, nil
}

func (f *fakeInstances) Close(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, id)
	return nil
}

func (f *fakeInstances) ResetPool(ctx context.Context, id string, yes, no, k float64, externalID string) error {
	return nil
}

func (f *fakeInstances) ListClosedBefore(ctx context.Context, before time.Time, limit int) ([]domain.MarketInstance, error) {
	return nil, nil
}

type fakeProducer struct {
	mu         sync.Mutex
	boundaries []time.Time
	failFrom   int // fail every call once len(boundaries) >= failFrom; -1 never
	err        error
}

func (f *fakeProducer) Produce(ctx context.Context, tpl domain.Template, endTime time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFrom >= 0 && len(f.boundaries) >= f.failFrom {
		return "", f.err
	}
	f.boundaries = append(f.boundaries, endTime)
	return "inst", nil
}

func (f *fakeProducer) Wait() {}

type fakeBreaker struct {
	failures map[string]int
	pauseAt  int
}

func (f *fakeBreaker) RecordFailure(ctx context.Context, templateID string) (bool, error) {
	f.failures[templateID]++
	return f.pauseAt > 0 && f.failures[templateID] >= f.pauseAt, nil
}

type fakeSettings struct {
	heartbeats []time.Time
	active     bool
	activeErr  error
}

func (f *fakeSettings) SetHeartbeat(ctx context.Context, key string, at time.Time) error {
	f.heartbeats = append(f.heartbeats, at)
	return nil
}

func (f *fakeSettings) SchedulerActive(ctx context.Context) (bool, error) {
	return f.active, f.activeErr
}

type fakeArchiver struct {
	calls int
	count int64
}

func (f *fakeArchiver) ArchiveInstances(ctx context.Context, before time.Time) (int64, error) {
	f.calls++
	return f.count, nil
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

var tickNow = time.Date(2024, 1, 1, 0, 7, 0, 0, time.UTC)

func hourlyTemplate() domain.Template {
	return domain.Template{
		ID:          "tpl-1h",
		Symbol:      "BTC/USD",
		Period:      60,
		AdvanceTime: 120,
		IsActive:    true,
		Status:      domain.TemplateStatusActive,
	}
}

func newPlanner(templates *fakeTemplates, instances *fakeInstances, prod *fakeProducer, breaker *fakeBreaker, settings *fakeSettings, archiver *fakeArchiver, opts Options) *Planner {
	var s domain.SettingsStore
	if settings != nil {
		s = settings
	}
	var a domain.Archiver
	if archiver != nil {
		a = archiver
	}
	p := New(templates, instances, prod, breaker, s, a, opts, slog.Default())
	p.now = func() time.Time { return tickNow }
	return p
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestTickFillsHourlyHorizon(t *testing.T) {
	prod := &fakeProducer{failFrom: -1}
	p := newPlanner(
		&fakeTemplates{active: []domain.Template{hourlyTemplate()}},
		&fakeInstances{},
		prod,
		&fakeBreaker{failures: map[string]int{}},
		nil, nil, Options{},
	)

	require.NoError(t, p.Tick(context.Background()))

	// 24h horizon at 1h period: 01:00 through next-day 00:00.
	require.Len(t, prod.boundaries, 24)
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), prod.boundaries[0])
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), prod.boundaries[23])
	for i := 1; i < len(prod.boundaries); i++ {
		assert.Equal(t, time.Hour, prod.boundaries[i].Sub(prod.boundaries[i-1]))
	}
}

func TestTickSkipsCoveredBoundaries(t *testing.T) {
	prod := &fakeProducer{failFrom: -1}
	instances := &fakeInstances{future: []domain.MarketInstance{
		{TemplateID: "tpl-1h", EndTime: time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)},
		{TemplateID: "tpl-1h", EndTime: time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)},
	}}
	p := newPlanner(
		&fakeTemplates{active: []domain.Template{hourlyTemplate()}},
		instances,
		prod,
		&fakeBreaker{failures: map[string]int{}},
		nil, nil, Options{},
	)

	require.NoError(t, p.Tick(context.Background()))

	require.Len(t, prod.boundaries, 22)
	assert.Equal(t, time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC), prod.boundaries[0])
}

func TestTickRespectsBatchCap(t *testing.T) {
	tpl := hourlyTemplate()
	tpl.ID = "tpl-15m"
	tpl.Period = 15
	prod := &fakeProducer{failFrom: -1}
	p := newPlanner(
		&fakeTemplates{active: []domain.Template{tpl}},
		&fakeInstances{},
		prod,
		&fakeBreaker{failures: map[string]int{}},
		nil, nil, Options{},
	)

	require.NoError(t, p.Tick(context.Background()))

	// 96 boundaries fit in the horizon; the cap wins.
	assert.Len(t, prod.boundaries, MaxBatchPerTemplate)
}

func TestTickWritesHeartbeatAndGatesOnFlag(t *testing.T) {
	prod := &fakeProducer{failFrom: -1}
	settings := &fakeSettings{active: false}
	p := newPlanner(
		&fakeTemplates{active: []domain.Template{hourlyTemplate()}},
		&fakeInstances{},
		prod,
		&fakeBreaker{failures: map[string]int{}},
		settings, nil, Options{},
	)

	require.NoError(t, p.Tick(context.Background()))

	assert.Len(t, settings.heartbeats, 1)
	assert.Empty(t, prod.boundaries, "disabled scheduler must not produce")
}

func TestTickFailsOpenWhenFlagUnreadable(t *testing.T) {
	prod := &fakeProducer{failFrom: -1}
	settings := &fakeSettings{activeErr: errors.New("redis down")}
	p := newPlanner(
		&fakeTemplates{active: []domain.Template{hourlyTemplate()}},
		&fakeInstances{},
		prod,
		&fakeBreaker{failures: map[string]int{}},
		settings, nil, Options{},
	)

	require.NoError(t, p.Tick(context.Background()))
	assert.NotEmpty(t, prod.boundaries)
}

func TestTickSweepsExpiredOpenSlots(t *testing.T) {
	instances := &fakeInstances{expired: []domain.MarketInstance{
		{ID: "old-1", Status: domain.SlotStatusOpen},
		{ID: "old-2", Status: domain.SlotStatusOpen},
	}}
	p := newPlanner(
		&fakeTemplates{},
		instances,
		&fakeProducer{failFrom: -1},
		&fakeBreaker{failures: map[string]int{}},
		nil, nil, Options{},
	)

	require.NoError(t, p.Tick(context.Background()))
	assert.ElementsMatch(t, []string{"old-1", "old-2"}, instances.closed)
}

func TestTickProductionFailureStopsTemplateFill(t *testing.T) {
	prod := &fakeProducer{failFrom: 3, err: errors.New("oracle down")}
	breaker := &fakeBreaker{failures: map[string]int{}, pauseAt: 3}
	p := newPlanner(
		&fakeTemplates{active: []domain.Template{hourlyTemplate()}},
		&fakeInstances{},
		prod,
		breaker,
		nil, nil, Options{},
	)

	require.NoError(t, p.Tick(context.Background()))

	// Three successes, then the first failure ends the fill.
	assert.Len(t, prod.boundaries, 3)
	assert.Equal(t, 1, breaker.failures["tpl-1h"])
}

func TestTickPausedTemplateSkippedSilently(t *testing.T) {
	tpl := hourlyTemplate()
	tpl.Status = domain.TemplateStatusPaused
	tpl.IsActive = false
	prod := &fakeProducer{failFrom: 0, err: domain.ErrTemplatePaused}
	breaker := &fakeBreaker{failures: map[string]int{}}
	p := newPlanner(
		&fakeTemplates{active: []domain.Template{tpl}},
		&fakeInstances{},
		prod,
		breaker,
		nil, nil, Options{},
	)

	require.NoError(t, p.Tick(context.Background()))
	assert.Empty(t, prod.boundaries)
	assert.Zero(t, breaker.failures["tpl-1h"], "a pause rejection is not a new failure")
}

func TestArchivalRunsOncePerInterval(t *testing.T) {
	archiver := &fakeArchiver{count: 12}
	p := newPlanner(
		&fakeTemplates{},
		&fakeInstances{},
		&fakeProducer{failFrom: -1},
		&fakeBreaker{failures: map[string]int{}},
		nil, archiver, Options{ArchiveEvery: 24 * time.Hour},
	)

	ctx := context.Background()
	require.NoError(t, p.Tick(ctx))
	require.NoError(t, p.Tick(ctx))
	assert.Equal(t, 1, archiver.calls)
}
