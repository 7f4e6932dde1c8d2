// Package polymarket is the REST client for the Polymarket Gamma API, the
// external feed that recurring markets are matched and priced against.
package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

const (
	// DefaultBaseURL is the public Gamma API root.
	DefaultBaseURL = "https://gamma-api.polymarket.com"

	// pageLimit is the requested page size. The API may clamp it lower, so
	// pagination advances by the actual returned count and stops only on an
	// empty page.
	pageLimit = 1000

	// maxCandidates bounds a full crawl so a runaway listing cannot loop
	// forever.
	maxCandidates = 6000

	// maxClosedPages bounds the closed-markets fallback crawl.
	maxClosedPages = 3

	retryAttempts = 3
	retryBaseWait = 500 * time.Millisecond
)

// GammaClient fetches markets, series, and prices from the Gamma API. It
// implements domain.ExternalFeed and domain.SeriesCatalog.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGammaClient creates a new Gamma API client. An empty baseURL falls back
// to the public endpoint.
func NewGammaClient(baseURL string, logger *slog.Logger) *GammaClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// FetchOpenCandidates crawls every open market, ordered by volume. Pages are
// fetched until the API returns an empty page or the safety cap is hit; a
// mid-crawl page failure returns what was collected so far.
func (g *GammaClient) FetchOpenCandidates(ctx context.Context) ([]domain.ExternalCandidate, error) {
	params := url.Values{}
	params.Set("closed", "false")
	params.Set("order", "volume")
	params.Set("ascending", "false")
	return g.crawl(ctx, params, 0)
}

// FetchAllCandidates crawls markets without the closed filter. Closed markets
// are plentiful, so the crawl is capped at a few pages; it exists as the
// fallback when the open listing comes back empty.
func (g *GammaClient) FetchAllCandidates(ctx context.Context) ([]domain.ExternalCandidate, error) {
	params := url.Values{}
	params.Set("order", "volume")
	params.Set("ascending", "false")
	return g.crawl(ctx, params, maxClosedPages)
}

func (g *GammaClient) crawl(ctx context.Context, params url.Values, maxPages int) ([]domain.ExternalCandidate, error) {
	var out []domain.ExternalCandidate
	seen := map[string]struct{}{}
	offset := 0

	for page := 1; maxPages <= 0 || page <= maxPages; page++ {
		if len(out) >= maxCandidates {
			g.logger.Warn("polymarket/gamma: crawl hit safety cap",
				slog.Int("candidates", len(out)))
			break
		}

		params.Set("limit", strconv.Itoa(pageLimit))
		params.Set("offset", strconv.Itoa(offset))

		body, err := g.doGet(ctx, "/markets?"+params.Encode())
		if err != nil {
			if len(out) > 0 {
				g.logger.Warn("polymarket/gamma: crawl page failed, returning partial listing",
					slog.Int("page", page),
					slog.String("error", err.Error()),
				)
				return out, nil
			}
			return nil, fmt.Errorf("polymarket/gamma: crawl markets: %w", err)
		}

		var markets []APIMarket
		if err := json.Unmarshal(body, &markets); err != nil {
			if len(out) > 0 {
				return out, nil
			}
			return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
		}
		if len(markets) == 0 {
			break
		}

		for i := range markets {
			m := &markets[i]
			if m.ID == "" {
				continue
			}
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, m.ToCandidate())
		}

		// The API may clamp the page size below the requested limit, so
		// advance by the actual count.
		offset += len(markets)
	}

	return out, nil
}

// FetchOne returns a single market by its Gamma ID.
func (g *GammaClient) FetchOne(ctx context.Context, id string) (*domain.ExternalCandidate, error) {
	m, err := g.getMarket(ctx, id)
	if err != nil {
		return nil, err
	}
	c := m.ToCandidate()
	return &c, nil
}

// FetchYesPrice returns the current YES outcome price of the given market.
// A market without a parseable price yields domain.ErrNoPrice.
func (g *GammaClient) FetchYesPrice(ctx context.Context, id string) (float64, error) {
	m, err := g.getMarket(ctx, id)
	if err != nil {
		return 0, err
	}
	price, ok := m.YesPrice()
	if !ok {
		return 0, fmt.Errorf("polymarket/gamma: market %s: %w", id, domain.ErrNoPrice)
	}
	return price, nil
}

// FetchSeriesCatalog lists the venue's recurring series. A single page is
// requested at the maximum size; the catalog is small enough that the API
// returns it whole.
func (g *GammaClient) FetchSeriesCatalog(ctx context.Context) ([]domain.ExternalSeries, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(pageLimit))

	body, err := g.doGet(ctx, "/series?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list series: %w", err)
	}

	var series []APISeries
	if err := json.Unmarshal(body, &series); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode series listing: %w", err)
	}

	out := make([]domain.ExternalSeries, 0, len(series))
	for _, s := range series {
		if s.ID == "" {
			continue
		}
		out = append(out, domain.ExternalSeries{
			ID:         s.ID,
			Title:      s.Title,
			Slug:       s.Slug,
			Recurrence: s.Recurrence,
		})
	}
	return out, nil
}

// FetchSeriesEventTitles returns the titles of the series' events.
func (g *GammaClient) FetchSeriesEventTitles(ctx context.Context, seriesID string) ([]string, error) {
	series, err := g.getSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(series.Events))
	for _, e := range series.Events {
		if e.Title != "" {
			titles = append(titles, e.Title)
		}
	}
	return titles, nil
}

// FetchSeriesLine resolves the reference line of a recurring series: the
// series' most relevant event (active preferred, then closed, then first)
// is looked up as a market and its "line" field returned.
func (g *GammaClient) FetchSeriesLine(ctx context.Context, seriesID string) (float64, error) {
	series, err := g.getSeries(ctx, seriesID)
	if err != nil {
		return 0, err
	}

	event := pickSeriesEvent(series.Events)
	if event == nil {
		return 0, fmt.Errorf("polymarket/gamma: series %s has no events: %w", seriesID, domain.ErrNoPrice)
	}

	m, err := g.getMarket(ctx, event.ID)
	if err != nil {
		return 0, err
	}
	if m.Line == nil || float64(*m.Line) <= 0 {
		return 0, fmt.Errorf("polymarket/gamma: series %s: %w", seriesID, domain.ErrNoPrice)
	}
	return float64(*m.Line), nil
}

func pickSeriesEvent(events []APIEvent) *APIEvent {
	for i := range events {
		if bool(events[i].Active) && !events[i].Closed {
			return &events[i]
		}
	}
	for i := range events {
		if events[i].Closed {
			return &events[i]
		}
	}
	if len(events) > 0 {
		return &events[0]
	}
	return nil
}

func (g *GammaClient) getSeries(ctx context.Context, id string) (*APISeries, error) {
	body, err := g.doGet(ctx, "/series/"+url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get series %s: %w", id, err)
	}
	var s APISeries
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode series: %w", err)
	}
	return &s, nil
}

func (g *GammaClient) getMarket(ctx context.Context, id string) (*APIMarket, error) {
	body, err := g.doGet(ctx, "/markets/"+url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get market %s: %w", id, err)
	}
	var m APIMarket
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode market: %w", err)
	}
	return &m, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doGet sends an unauthenticated GET request with linear-backoff retries on
// server errors and transport failures.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if attempt > 1 {
			wait := time.Duration(attempt-1) * retryBaseWait
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		body, retryable, err := g.tryGet(ctx, path)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable || errors.Is(err, context.Canceled) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", retryAttempts, lastErr)
}

func (g *GammaClient) tryGet(ctx context.Context, path string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("http %d: %w", resp.StatusCode, domain.ErrNotFound)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body))
	case resp.StatusCode >= 400:
		return nil, false, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body))
	}
	return body, false, nil
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
