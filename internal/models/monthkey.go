package models

import (
	"fmt"
	"time"
)

// YearMonth identifies one calendar month.
type YearMonth struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// MonthKey builds the cache key for a (year, month) pair, e.g. "2025-03".
// Lexicographic order on keys matches chronological order.
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// MonthRange returns 2n+1 months centered on the given month, oldest first.
// Year boundaries roll over via calendar arithmetic.
func MonthRange(centerYear, centerMonth, n int) []YearMonth {
	months := make([]YearMonth, 0, 2*n+1)
	for i := -n; i <= n; i++ {
		d := time.Date(centerYear, time.Month(centerMonth+i), 1, 0, 0, 0, 0, time.UTC)
		months = append(months, YearMonth{Year: d.Year(), Month: int(d.Month())})
	}
	return months
}

// MonthSpan returns every month from (startYear, startMonth) through
// (endYear, endMonth) inclusive. Returns nil if the range is inverted.
func MonthSpan(startYear, startMonth, endYear, endMonth int) []YearMonth {
	start := time.Date(startYear, time.Month(startMonth), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(endYear, time.Month(endMonth), 1, 0, 0, 0, 0, time.UTC)
	if end.Before(start) {
		return nil
	}

	var months []YearMonth
	for d := start; !d.After(end); d = d.AddDate(0, 1, 0) {
		months = append(months, YearMonth{Year: d.Year(), Month: int(d.Month())})
	}
	return months
}
