package models

import "time"

// SummaryRecord is a stored period summary. The (Period, StartDate, EndDate)
// triple is the cache key; records are never mutated or deleted.
// StartDate and EndDate use the wire format 2006-01-02T15:04:05.
type SummaryRecord struct {
	Period    Period    `json:"period" db:"period"`
	StartDate string    `json:"start_date" db:"start_date"`
	EndDate   string    `json:"end_date" db:"end_date"`
	Summary   string    `json:"summary" db:"summary"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
