package models

import "github.com/hyperjump/nikki/internal/apperr"

// Period is a summarization window token.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod validates a period token. Unknown tokens are a configuration
// error and must be rejected before any job is created.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return Period(s), nil
	default:
		return "", apperr.E(apperr.ErrConfiguration, "invalid period %q (want daily, weekly, or monthly)", s)
	}
}
