package match

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

var noon = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func candidate(id, question string, end time.Time, closed bool, volume float64) domain.ExternalCandidate {
	return domain.ExternalCandidate{
		ID:       id,
		Question: question,
		EndTime:  &end,
		Closed:   closed,
		Volume:   volume,
	}
}

func testEngine() *Engine {
	return NewEngine(slog.Default())
}

func TestScoreSpecExample(t *testing.T) {
	// "Will BTC hit $100k?", 2 minutes off, both open, volume>0:
	// 100 - 1 + 10 + 5 = 114.
	c := candidate("c1", "Will BTC hit $100k?", noon.Add(2*time.Minute), false, 12000)
	want := Want{Asset: "BTC", Period: 15, EndTime: noon, Status: domain.SlotStatusOpen}

	score, ok := Score(c, want)
	require.True(t, ok)
	assert.InDelta(t, 114.0, score, 1e-9)
}

func TestScoreDiscards(t *testing.T) {
	want := Want{Asset: "BTC", EndTime: noon, Status: domain.SlotStatusOpen}

	t.Run("no alias hit", func(t *testing.T) {
		_, ok := Score(candidate("c", "Will ETH flip?", noon, false, 1), want)
		assert.False(t, ok)
	})

	t.Run("missing end time", func(t *testing.T) {
		c := domain.ExternalCandidate{ID: "c", Question: "Bitcoin up?"}
		_, ok := Score(c, want)
		assert.False(t, ok)
	})

	t.Run("outside 30 minute window", func(t *testing.T) {
		_, ok := Score(candidate("c", "Bitcoin up?", noon.Add(31*time.Minute), false, 1), want)
		assert.False(t, ok)
	})

	t.Run("closed candidate for open slot", func(t *testing.T) {
		_, ok := Score(candidate("c", "Bitcoin up?", noon, true, 1), want)
		assert.False(t, ok)
	})
}

func TestScoreAliasForms(t *testing.T) {
	want := Want{Asset: "BTC", EndTime: noon, Status: domain.SlotStatusOpen}
	for _, q := range []string{"Bitcoin above 100k", "XBT daily close", "btc 15m window"} {
		_, ok := Score(candidate("c", q, noon, false, 0), want)
		assert.True(t, ok, q)
	}
}

func TestBestPicksHighestScore(t *testing.T) {
	want := Want{Asset: "BTC", Period: 15, EndTime: noon, Status: domain.SlotStatusOpen}
	candidates := []domain.ExternalCandidate{
		candidate("far", "Bitcoin window", noon.Add(20*time.Minute), false, 100), // 100-10+10+5 = 105
		candidate("near", "Bitcoin window", noon.Add(1*time.Minute), false, 100), // 100-0.5+10+5 = 114.5
		candidate("quiet", "Bitcoin window", noon, false, 0),                     // 100+10 = 110
	}

	got, res := testEngine().Best(candidates, want)
	require.NotNil(t, got)
	assert.Equal(t, "near", got.ID)
	assert.InDelta(t, 114.5, res.Score, 1e-9)
}

func TestBestTieKeepsFirstSeen(t *testing.T) {
	want := Want{Asset: "ETH", EndTime: noon, Status: domain.SlotStatusOpen}
	candidates := []domain.ExternalCandidate{
		candidate("first", "Ethereum up?", noon, false, 5),
		candidate("second", "Ethereum up?", noon, false, 5),
	}

	got, _ := testEngine().Best(candidates, want)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.ID)
}

func TestBestRejectsAtOrBelowThreshold(t *testing.T) {
	// The worst in-window alias hit scores 100 - 15 = 85, so any scored
	// candidate clears the 40-point threshold; pin that floor here so a
	// scoring-table change that could drop below it fails loudly.
	want := Want{Asset: "BTC", EndTime: noon, Status: domain.SlotStatusOpen}
	c := candidate("c", "Bitcoin window", noon.Add(30*time.Minute), false, 0)
	score, ok := Score(c, want)
	require.True(t, ok)
	assert.Greater(t, score, Threshold)

	// No candidates at all.
	got, res := testEngine().Best(nil, want)
	assert.Nil(t, got)
	assert.Nil(t, res)
}
