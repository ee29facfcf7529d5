package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - One calendar month, the unit of calculation
// =============================================================================

// Period is the calculation boundary: the first and last calendar day of a
// requested "YYYY-MM" month. Every calculation run targets exactly one Period.
type Period struct {
	Start Date
	End   Date
}

const periodLayout = "2006-01"

// ParsePeriod parses a "YYYY-MM" string into its month period.
// "2025-09" -> [2025-09-01, 2025-09-30].
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse(periodLayout, s)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q (expected YYYY-MM)", ErrInvalidPeriod, s)
	}
	start := NewDate(t.Year(), t.Month(), 1)
	end := start.AddMonths(1).AddDays(-1)
	return Period{Start: start, End: end}, nil
}

// Key returns the canonical "YYYY-MM" identifier for the period.
// Result records are keyed by (employee_id, Key()).
func (p Period) Key() string {
	return p.Start.Time().Format(periodLayout)
}

// Contains reports whether the date falls within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Overlaps reports whether [from, to] shares at least one day with the period.
func (p Period) Overlaps(from, to Date) bool {
	return from.BeforeOrEqual(p.End) && to.AfterOrEqual(p.Start)
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
