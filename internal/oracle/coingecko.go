// Package oracle resolves live spot prices for template symbols. CoinGecko is
// the reference source; it needs no API key for the simple price endpoint.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

// DefaultBaseURL is the public CoinGecko API root.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// coinIDs maps a template's base asset to CoinGecko's coin id.
var coinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"BNB":   "binancecoin",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"AVAX":  "avalanche-2",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"LINK":  "chainlink",
	"LTC":   "litecoin",
}

// CoinGecko is a price oracle backed by the CoinGecko simple price API. It
// implements domain.PriceOracle.
type CoinGecko struct {
	baseURL    string
	httpClient *http.Client
}

// NewCoinGecko creates a CoinGecko oracle. An empty baseURL falls back to the
// public endpoint.
func NewCoinGecko(baseURL string) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &CoinGecko{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetPrice returns the current USD price for a symbol like "BTC/USD" or
// "ETH-USD". Symbols whose base asset is not a known coin yield
// domain.ErrNoPrice.
func (c *CoinGecko) GetPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	coinID, ok := coinIDs[baseAsset(symbol)]
	if !ok {
		return domain.PriceQuote{}, fmt.Errorf("oracle: unsupported symbol %s: %w", symbol, domain.ErrNoPrice)
	}

	params := url.Values{}
	params.Set("ids", coinID)
	params.Set("vs_currencies", "usd")
	params.Set("include_last_updated_at", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/simple/price?"+params.Encode(), nil)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("oracle: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("oracle: fetch %s: %w", coinID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("oracle: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.PriceQuote{}, fmt.Errorf("oracle: http %d fetching %s", resp.StatusCode, coinID)
	}

	var payload map[string]struct {
		USD           float64 `json:"usd"`
		LastUpdatedAt int64   `json:"last_updated_at"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("oracle: decode response: %w", err)
	}

	entry, ok := payload[coinID]
	if !ok || entry.USD <= 0 {
		return domain.PriceQuote{}, fmt.Errorf("oracle: no price for %s: %w", symbol, domain.ErrNoPrice)
	}

	asOf := time.Now().UTC()
	if entry.LastUpdatedAt > 0 {
		asOf = time.Unix(entry.LastUpdatedAt, 0).UTC()
	}
	return domain.PriceQuote{
		Price:  entry.USD,
		AsOf:   asOf,
		Source: "coingecko",
	}, nil
}

func baseAsset(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range []string{"/", "-"} {
		if i := strings.Index(s, sep); i > 0 {
			return s[:i]
		}
	}
	return s
}
