// Package schedule implements the calendar-boundary arithmetic that drives
// recurring-market production. All alignment is done in UTC.
package schedule

import (
	"time"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

// Known period lengths, in minutes.
const (
	PeriodQuarterHour = 15
	PeriodHour        = 60
	PeriodFourHours   = 240
	PeriodDay         = 1440
	PeriodWeek        = 10080
	PeriodMonth       = 43200
)

// NextBoundary returns the next calendar-aligned boundary for the given
// period, strictly after now and at or after from when from is non-zero.
//
// Alignment rules:
//
//	15m    -> next :00/:15/:30/:45
//	60m    -> next top of hour
//	240m   -> next of 00/04/08/12/16/20:00
//	1440m  -> next 00:00 UTC
//	10080m -> next Monday 00:00 UTC
//	43200m -> first of next month 00:00 UTC
//	other  -> generic minute-of-day modulo
func NextBoundary(periodMinutes int, from time.Time) time.Time {
	anchored := !from.IsZero()
	base := from
	if !anchored {
		base = time.Now()
	}
	base = base.UTC()

	next := alignForward(periodMinutes, base)

	// Without an explicit anchor the result must be strictly in the
	// future: a boundary that already passed while aligning is pushed one
	// full period forward.
	if !anchored && !next.After(time.Now().UTC()) {
		next = next.Add(time.Duration(periodMinutes) * time.Minute)
	}
	return next
}

// alignForward computes the first boundary > base for exact calendar periods
// and >= the rounded-up minute slot for generic periods.
func alignForward(periodMinutes int, base time.Time) time.Time {
	y, mo, d := base.Date()
	hh, mm := base.Hour(), base.Minute()

	switch periodMinutes {
	case PeriodQuarterHour:
		step := mm - mm%15 + 15
		return time.Date(y, mo, d, hh, 0, 0, 0, time.UTC).Add(time.Duration(step) * time.Minute)
	case PeriodHour:
		return time.Date(y, mo, d, hh, 0, 0, 0, time.UTC).Add(time.Hour)
	case PeriodFourHours:
		step := hh - hh%4 + 4
		return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC).Add(time.Duration(step) * time.Hour)
	case PeriodDay:
		return time.Date(y, mo, d+1, 0, 0, 0, 0, time.UTC)
	case PeriodWeek:
		// Next Monday 00:00 UTC. A Monday base still moves a full week
		// ahead once midnight has passed.
		days := (8 - int(base.Weekday())) % 7
		if days == 0 {
			days = 7
		}
		return time.Date(y, mo, d+days, 0, 0, 0, 0, time.UTC)
	case PeriodMonth:
		return time.Date(y, mo+1, 1, 0, 0, 0, 0, time.UTC)
	default:
		total := hh*60 + mm
		step := total - total%periodMinutes + periodMinutes
		return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC).Add(time.Duration(step) * time.Minute)
	}
}

// StartTime returns the window start paired with the given end boundary.
func StartTime(end time.Time, periodMinutes int) time.Time {
	return end.Add(-time.Duration(periodMinutes) * time.Minute)
}

// IsDue reports whether the template should produce now: the next boundary is
// within the template's advance window and has not yet passed.
func IsDue(t domain.Template, now time.Time) bool {
	next := NextBoundary(t.Period, now)
	untilBoundary := next.Sub(now).Seconds()
	return untilBoundary <= float64(t.AdvanceTime) && untilBoundary > 0
}
