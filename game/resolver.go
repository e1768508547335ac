// Package game implements the target and scoring engine: daily target
// resolution, great-circle scoring, and guess session state.
package game

import (
	"time"

	"github.com/terradle/terradle/countries"
)

// Seed multipliers. Distinct primes keep adjacent calendar days well
// separated once reduced modulo the dataset size.
const (
	yearMultiplier  = 6151
	monthMultiplier = 401
	dayMultiplier   = 97
)

// Date is a plain calendar date. The resolver takes it explicitly so it
// carries no ambient clock dependency.
type Date struct {
	Year  int
	Month int
	Day   int
}

// DateOf extracts a Date from a time, in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()

	return Date{Year: y, Month: int(m), Day: d}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)

	if err != nil {
		return Date{}, err
	}

	return DateOf(t), nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

// ResolveIndex derives a deterministic index in [0, n) from a date.
// The same date always yields the same index for a fixed n.
func ResolveIndex(d Date, n int) int {
	if n <= 0 {
		return 0
	}

	seed := d.Year*yearMultiplier + d.Month*monthMultiplier + d.Day*dayMultiplier

	return seed % n
}

// Resolve picks the daily target from an order-preserving country list.
// Returns nil for an empty list. Dataset reordering is allowed to change
// historical results; no stability across dataset versions is promised.
func Resolve(d Date, list []*countries.Country) *countries.Country {
	if len(list) == 0 {
		return nil
	}

	return list[ResolveIndex(d, len(list))]
}
