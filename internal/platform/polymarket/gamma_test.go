package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

func TestParseYesPriceForms(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want float64
		ok   bool
	}{
		{"number array", `[0.75, 0.25]`, 0.75, true},
		{"string array", `["0.75", "0.25"]`, 0.75, true},
		{"double encoded", `"[\"0.62\", \"0.38\"]"`, 0.62, true},
		{"object upper", `{"YES": 0.4, "NO": 0.6}`, 0.4, true},
		{"object lower", `{"yes": "0.4"}`, 0.4, true},
		{"out of range", `[1.5, -0.5]`, 0, false},
		{"empty", ``, 0, false},
		{"garbage", `"not a price"`, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseYesPrice(json.RawMessage(tc.raw))
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, tc.want, got, 1e-9)
			}
		})
	}
}

func TestYesPriceFallsBackToNestedEvent(t *testing.T) {
	m := APIMarket{
		Events: []APIEvent{{
			Markets: []APIMarket{{OutcomePrices: json.RawMessage(`["0.8", "0.2"]`)}},
		}},
	}
	got, ok := m.YesPrice()
	require.True(t, ok)
	assert.InDelta(t, 0.8, got, 1e-9)
}

func TestCrawlAdvancesByActualPageSize(t *testing.T) {
	// Serve two pages of 2, then an empty page, regardless of the
	// requested limit.
	var offsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		offsets = append(offsets, offset)
		switch offset {
		case "0":
			fmt.Fprint(w, `[{"id":"a","question":"A"},{"id":"b","question":"B"}]`)
		case "2":
			fmt.Fprint(w, `[{"id":"c","question":"C"},{"id":"a","question":"dup"}]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	defer srv.Close()

	client := NewGammaClient(srv.URL, slog.Default())
	got, err := client.FetchOpenCandidates(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"0", "2", "4"}, offsets)

	// The duplicate id from the second page is dropped.
	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestDoGetRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"id":"m1","question":"Q","outcomePrices":"[\"0.55\",\"0.45\"]"}`)
	}))
	defer srv.Close()

	client := NewGammaClient(srv.URL, slog.Default())
	price, err := client.FetchYesPrice(context.Background(), "m1")
	require.NoError(t, err)
	assert.InDelta(t, 0.55, price, 1e-9)
	assert.Equal(t, 3, attempts)
}

func TestFetchSeriesCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/series", r.URL.Path)
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `[
			{"id":"10","title":"Bitcoin Up or Down","slug":"btc-up-or-down","recurrence":"hourly"},
			{"id":"","title":"no id, dropped"},
			{"id":"11","title":"ETH Weekly","slug":"eth-weekly"}
		]`)
	}))
	defer srv.Close()

	client := NewGammaClient(srv.URL, slog.Default())
	got, err := client.FetchSeriesCatalog(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, domain.ExternalSeries{
		ID: "10", Title: "Bitcoin Up or Down", Slug: "btc-up-or-down", Recurrence: "hourly",
	}, got[0])
	assert.Equal(t, "11", got[1].ID)
}

func TestFetchSeriesEventTitles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/series/10", r.URL.Path)
		fmt.Fprint(w, `{"id":"10","title":"S","events":[
			{"id":"e1","title":"Bitcoin above 100k?"},
			{"id":"e2","title":""},
			{"id":"e3","title":"Bitcoin above 120k?"}
		]}`)
	}))
	defer srv.Close()

	client := NewGammaClient(srv.URL, slog.Default())
	got, err := client.FetchSeriesEventTitles(context.Background(), "10")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bitcoin above 100k?", "Bitcoin above 120k?"}, got)
}

func TestFetchOneNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewGammaClient(srv.URL, slog.Default())
	_, err := client.FetchOne(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
