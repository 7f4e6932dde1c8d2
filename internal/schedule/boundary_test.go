package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

func utc(y int, mo time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, mo, d, hh, mm, ss, 0, time.UTC)
}

func TestNextBoundaryAlignment(t *testing.T) {
	cases := []struct {
		name   string
		period int
		from   time.Time
		want   time.Time
	}{
		{"15m mid-slot", 15, utc(2024, 1, 1, 0, 7, 0), utc(2024, 1, 1, 0, 15, 0)},
		{"15m on boundary advances", 15, utc(2024, 1, 1, 0, 15, 0), utc(2024, 1, 1, 0, 30, 0)},
		{"15m hour rollover", 15, utc(2024, 1, 1, 0, 52, 11), utc(2024, 1, 1, 1, 0, 0)},
		{"1h mid-hour", 60, utc(2024, 1, 1, 22, 41, 0), utc(2024, 1, 1, 23, 0, 0)},
		{"1h on the hour advances", 60, utc(2024, 1, 1, 22, 0, 0), utc(2024, 1, 1, 23, 0, 0)},
		{"4h aligns to 4-hour grid", 240, utc(2024, 1, 1, 9, 30, 0), utc(2024, 1, 1, 12, 0, 0)},
		{"4h day rollover", 240, utc(2024, 1, 1, 21, 0, 0), utc(2024, 1, 2, 0, 0, 0)},
		{"1d aligns to next midnight", 1440, utc(2024, 1, 1, 13, 0, 0), utc(2024, 1, 2, 0, 0, 0)},
		{"1d at midnight advances", 1440, utc(2024, 1, 2, 0, 0, 0), utc(2024, 1, 3, 0, 0, 0)},
		{"1w aligns to next Monday", 10080, utc(2024, 1, 3, 10, 0, 0), utc(2024, 1, 8, 0, 0, 0)},
		{"1w from Sunday", 10080, utc(2024, 1, 7, 0, 0, 0), utc(2024, 1, 8, 0, 0, 0)},
		{"1w from Monday midnight advances a week", 10080, utc(2024, 1, 8, 0, 0, 0), utc(2024, 1, 15, 0, 0, 0)},
		{"1mo aligns to first of next month", 43200, utc(2024, 1, 20, 5, 0, 0), utc(2024, 2, 1, 0, 0, 0)},
		{"1mo december rollover", 43200, utc(2024, 12, 31, 23, 59, 0), utc(2025, 1, 1, 0, 0, 0)},
		{"generic 90m period", 90, utc(2024, 1, 1, 23, 50, 0), utc(2024, 1, 2, 0, 0, 0)},
		{"generic 30m period", 30, utc(2024, 1, 1, 0, 10, 0), utc(2024, 1, 1, 0, 30, 0)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextBoundary(tc.period, tc.from)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNextBoundaryProperties(t *testing.T) {
	// Monotonicity and exact-step arithmetic: for fixed-length periods the
	// boundary after a boundary is exactly one period later. Months step by
	// calendar length and are covered by the alignment cases above.
	periods := []int{15, 60, 240, 1440, 10080}
	instants := []time.Time{
		utc(2024, 1, 1, 0, 0, 1),
		utc(2024, 2, 29, 11, 47, 33), // leap day
		utc(2024, 6, 30, 23, 59, 59),
		utc(2024, 12, 31, 12, 0, 0),
	}

	for _, p := range periods {
		for _, ts := range instants {
			b := NextBoundary(p, ts)
			require.True(t, b.After(ts), "period %d from %s", p, ts)

			again := NextBoundary(p, b)
			assert.Equal(t, b.Add(time.Duration(p)*time.Minute), again,
				"period %d from %s", p, ts)
		}
	}
}

func TestNextBoundaryUnanchoredIsStrictlyFuture(t *testing.T) {
	for _, p := range []int{15, 60, 240, 1440, 10080, 43200} {
		got := NextBoundary(p, time.Time{})
		assert.True(t, got.After(time.Now().UTC()), "period %d", p)
	}
}

func TestStartTime(t *testing.T) {
	end := utc(2024, 1, 1, 0, 15, 0)
	assert.Equal(t, utc(2024, 1, 1, 0, 0, 0), StartTime(end, 15))
	assert.Equal(t, utc(2023, 12, 31, 0, 15, 0), StartTime(end, 1440))
}

func TestIsDue(t *testing.T) {
	tpl := domain.Template{Period: 15, AdvanceTime: 120}

	// 00:07 -> next boundary 00:15, 480s away: not yet due.
	assert.False(t, IsDue(tpl, utc(2024, 1, 1, 0, 7, 0)))

	// 00:13:30 -> 90s away: inside the 120s advance window.
	assert.True(t, IsDue(tpl, utc(2024, 1, 1, 0, 13, 30)))

	// On the boundary the next window's boundary is a full period away.
	assert.False(t, IsDue(tpl, utc(2024, 1, 1, 0, 15, 0)))
}
