// Package summary computes period-scoped journal summaries with cached,
// idempotent results.
package summary

import (
	"time"

	"github.com/hyperjump/nikki/internal/models"
)

// DateTimeFormat is the wire format for summary range boundaries.
const DateTimeFormat = "2006-01-02T15:04:05"

// DateRange returns the inclusive [start, end] range for a period relative to
// today: daily covers today only, weekly the last seven days through today,
// monthly the first of today's month through today. Start is at 00:00:00 and
// end at 23:59:59 so the range spans whole days.
func DateRange(period models.Period, today time.Time) (start, end time.Time, err error) {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	switch period {
	case models.PeriodDaily:
		start = day
	case models.PeriodWeekly:
		start = day.AddDate(0, 0, -7)
	case models.PeriodMonthly:
		start = time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	default:
		_, err = models.ParsePeriod(string(period))
		return time.Time{}, time.Time{}, err
	}
	// Wall-clock construction keeps the end at 23:59:59 on DST-transition days.
	end = time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, day.Location())
	return start, end, nil
}

// FormatDateTime renders a range boundary in the wire format.
func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeFormat)
}
