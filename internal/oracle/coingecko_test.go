package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

func TestGetPriceResolvesCoinID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bitcoin", r.URL.Query().Get("ids"))
		fmt.Fprint(w, `{"bitcoin":{"usd":97123.5,"last_updated_at":1704067200}}`)
	}))
	defer srv.Close()

	quote, err := NewCoinGecko(srv.URL).GetPrice(context.Background(), "BTC/USD")
	require.NoError(t, err)
	assert.InDelta(t, 97123.5, quote.Price, 1e-9)
	assert.Equal(t, "coingecko", quote.Source)
	assert.Equal(t, int64(1704067200), quote.AsOf.Unix())
}

func TestGetPriceAcceptsDashSeparator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ethereum", r.URL.Query().Get("ids"))
		fmt.Fprint(w, `{"ethereum":{"usd":3300}}`)
	}))
	defer srv.Close()

	quote, err := NewCoinGecko(srv.URL).GetPrice(context.Background(), "eth-usd")
	require.NoError(t, err)
	assert.InDelta(t, 3300.0, quote.Price, 1e-9)
}

func TestGetPriceUnsupportedSymbol(t *testing.T) {
	_, err := NewCoinGecko("http://unused").GetPrice(context.Background(), "SHIBX/USD")
	assert.ErrorIs(t, err, domain.ErrNoPrice)
}

func TestGetPriceZeroPriceRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"bitcoin":{"usd":0}}`)
	}))
	defer srv.Close()

	_, err := NewCoinGecko(srv.URL).GetPrice(context.Background(), "BTC/USD")
	assert.ErrorIs(t, err, domain.ErrNoPrice)
}
