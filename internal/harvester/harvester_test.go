package harvester

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

type fakeCatalog struct {
	series      []domain.ExternalSeries
	eventTitles map[string][]string
	listErr     error
	eventErr    error
}

func (f *fakeCatalog) FetchSeriesCatalog(ctx context.Context) ([]domain.ExternalSeries, error) {
	return f.series, f.listErr
}

func (f *fakeCatalog) FetchSeriesEventTitles(ctx context.Context, seriesID string) ([]string, error) {
	if f.eventErr != nil {
		return nil, f.eventErr
	}
	return f.eventTitles[seriesID], nil
}

type fakeTemplates struct {
	existing []domain.Template
	created  []domain.Template
	rebound  []string // "id|name|seriesID"
}

func (f *fakeTemplates) Create(ctx context.Context, t domain.Template) error {
	f.created = append(f.created, t)
	return nil
}

func (f *fakeTemplates) GetByID(ctx context.Context, id string) (domain.Template, error) {
	return domain.Template{}, domain.ErrNotFound
}

func (f *fakeTemplates) FindBySymbolPeriod(ctx context.Context, symbol string, periodMinutes int) (domain.Template, error) {
	for _, t := range f.existing {
		if t.Symbol == symbol && t.Period == periodMinutes {
			return t, nil
		}
	}
	return domain.Template{}, domain.ErrNotFound
}

func (f *fakeTemplates) ListActive(ctx context.Context) ([]domain.Template, error) {
	return f.existing, nil
}

func (f *fakeTemplates) UpdateSeriesBinding(ctx context.Context, id, name, seriesID string) error {
	f.rebound = append(f.rebound, id+"|"+name+"|"+seriesID)
	return nil
}

func (f *fakeTemplates) UpdateFailureState(ctx context.Context, id string, failureCount int, status domain.TemplateStatus, isActive bool, pauseReason string) error {
	return nil
}

func (f *fakeTemplates) SetLastProduced(ctx context.Context, id, slotID string, at time.Time) error {
	return nil
}

func TestPeriodFromText(t *testing.T) {
	cases := []struct {
		name       string
		text       string
		recurrence string
		want       int
		ok         bool
	}{
		{"15 minute", "bitcoin up or down 15 min", "", 15, true},
		{"15m compact", "btc 15m price", "", 15, true},
		{"hourly", "ethereum hourly", "", 60, true},
		{"plain hour", "eth up or down this hour", "", 60, true},
		{"4h", "solana 4h candle", "", 240, true},
		{"4 hour spelled out", "sol every 4 hours", "", 240, true},
		{"daily", "bitcoin daily close", "", 1440, true},
		{"weekly", "eth weekly", "", 10080, true},
		{"monthly beats weekly mention", "btc monthly", "", 43200, true},
		{"month word", "bitcoin this month", "", 43200, true},
		{"recurrence fallback daily", "bitcoin price", "daily", 1440, true},
		{"recurrence fallback hourly", "eth price", "Hourly", 60, true},
		{"no cadence at all", "bitcoin price", "", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := periodFromText(tc.text, tc.recurrence)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestExtractSymbolWordBoundaries(t *testing.T) {
	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"bitcoin up or down", "BTC/USD", true},
		{"btc hourly", "BTC/USD", true},
		{"ethereum weekly close", "ETH/USD", true},
		{"cardano daily", "ADA/USD", true},
		{"will canada win gold", "", false},  // "canada" must not read as ADA
		{"airbnb stock this week", "", false}, // "airbnb" must not read as BNB
		{"bnb price hourly", "BNB/USD", true},
		{"chainlink vs polygon", "LINK/USD", true}, // first named asset wins
		{"weather in paris", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got, ok := extractSymbol(tc.text)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHarvestCreatesTemplates(t *testing.T) {
	catalog := &fakeCatalog{series: []domain.ExternalSeries{
		{ID: "s1", Title: "Bitcoin Up or Down 15 Min", Slug: "bitcoin-up-or-down-15-min"},
		{ID: "s2", Title: "Ethereum Hourly", Slug: "ethereum-hourly"},
	}}
	store := &fakeTemplates{}

	h := New(catalog, store, 0, slog.Default())
	stats, err := h.Harvest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Created)
	require.Len(t, store.created, 2)

	btc := store.created[0]
	assert.Equal(t, "BTC/USD", btc.Symbol)
	assert.Equal(t, 15, btc.Period)
	assert.Equal(t, 120, btc.AdvanceTime)
	assert.Equal(t, "crypto", btc.CategorySlug)
	assert.Equal(t, "s1", btc.SeriesID)
	assert.True(t, btc.IsActive)
	assert.Equal(t, domain.TemplateStatusActive, btc.Status)
	assert.NotEmpty(t, btc.ID)

	eth := store.created[1]
	assert.Equal(t, "ETH/USD", eth.Symbol)
	assert.Equal(t, 60, eth.Period)
}

func TestHarvestUpdatesExistingBinding(t *testing.T) {
	catalog := &fakeCatalog{series: []domain.ExternalSeries{
		{ID: "s-new", Title: "Bitcoin Up or Down Hourly", Slug: "btc-hourly"},
	}}
	store := &fakeTemplates{existing: []domain.Template{
		{ID: "tpl-1", Name: "Old Name", Symbol: "BTC/USD", Period: 60, SeriesID: "s-old"},
	}}

	h := New(catalog, store, 0, slog.Default())
	stats, err := h.Harvest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Updated)
	assert.Empty(t, store.created)
	require.Len(t, store.rebound, 1)
	assert.Equal(t, "tpl-1|Bitcoin Up or Down Hourly|s-new", store.rebound[0])
}

func TestHarvestLeavesUnchangedAlone(t *testing.T) {
	catalog := &fakeCatalog{series: []domain.ExternalSeries{
		{ID: "s1", Title: "Bitcoin Hourly", Slug: "btc-hourly"},
	}}
	store := &fakeTemplates{existing: []domain.Template{
		{ID: "tpl-1", Name: "Bitcoin Hourly", Symbol: "BTC/USD", Period: 60, SeriesID: "s1"},
	}}

	h := New(catalog, store, 0, slog.Default())
	stats, err := h.Harvest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Unchanged)
	assert.Empty(t, store.created)
	assert.Empty(t, store.rebound)
}

func TestHarvestDedupsWithinPass(t *testing.T) {
	catalog := &fakeCatalog{series: []domain.ExternalSeries{
		{ID: "s1", Title: "Bitcoin Hourly", Slug: "btc-hourly"},
		{ID: "s2", Title: "BTC Hourly Rerun", Slug: "btc-hourly-2"},
	}}
	store := &fakeTemplates{}

	h := New(catalog, store, 0, slog.Default())
	stats, err := h.Harvest(context.Background())
	require.NoError(t, err)

	// First series wins the BTC/USD-hourly pair.
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.Skipped)
	require.Len(t, store.created, 1)
	assert.Equal(t, "s1", store.created[0].SeriesID)
}

func TestHarvestSkipsUnrelatedSeries(t *testing.T) {
	catalog := &fakeCatalog{series: []domain.ExternalSeries{
		{ID: "s1", Title: "Presidential Election Winner", Slug: "election"},
		{ID: "s2", Title: "NFL Games Weekly", Slug: "nfl-weekly"},
		{ID: "s3", Title: "Bitcoin Fortnightly", Slug: "btc-every-two"},
	}}
	store := &fakeTemplates{}

	h := New(catalog, store, 0, slog.Default())
	stats, err := h.Harvest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Skipped)
	assert.Empty(t, store.created)
}

func TestHarvestFindsSymbolInEventTitles(t *testing.T) {
	catalog := &fakeCatalog{
		series: []domain.ExternalSeries{
			{ID: "s1", Title: "Crypto Prices Weekly", Slug: "crypto-weekly"},
		},
		eventTitles: map[string][]string{
			"s1": {"Will it rain", "Solana above $200 this week?"},
		},
	}
	store := &fakeTemplates{}

	h := New(catalog, store, 0, slog.Default())
	stats, err := h.Harvest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Created)
	require.Len(t, store.created, 1)
	assert.Equal(t, "SOL/USD", store.created[0].Symbol)
	assert.Equal(t, 10080, store.created[0].Period)
}

func TestHarvestSkipsSeriesWithoutResolvableSymbol(t *testing.T) {
	catalog := &fakeCatalog{
		series: []domain.ExternalSeries{
			{ID: "s1", Title: "Crypto Prices Weekly", Slug: "crypto-weekly"},
		},
		eventTitles: map[string][]string{"s1": {"Something else entirely"}},
	}
	store := &fakeTemplates{}

	h := New(catalog, store, 0, slog.Default())
	stats, err := h.Harvest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, store.created)
}

func TestHarvestErrorsWhenCatalogUnreachable(t *testing.T) {
	catalog := &fakeCatalog{listErr: errors.New("boom")}
	h := New(catalog, &fakeTemplates{}, 0, slog.Default())

	_, err := h.Harvest(context.Background())
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	catalog := &fakeCatalog{}
	h := New(catalog, &fakeTemplates{}, time.Hour, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
