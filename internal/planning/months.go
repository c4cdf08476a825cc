// Package planning holds the pure matrix engine: month arithmetic, rate
// resolution, cell validation, cost aggregation and snapshot rows. It
// knows nothing about the database or HTTP; services feed it loaded data
// and persist what it returns.
package planning

import "time"

// NormalizeMonth collapses any timestamp to the first day of its month
// at UTC midnight. Every month value must pass through here before it
// is compared or used as a map key.
func NormalizeMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// IsFirstOfMonth reports whether t already sits on a month boundary.
// Callers use it to reject raw input instead of silently normalizing.
func IsFirstOfMonth(t time.Time) bool {
	return t.Day() == 1
}

// MonthSequence returns every month from first to last inclusive, each
// normalized. An inverted range yields an empty slice.
func MonthSequence(first, last time.Time) []time.Time {
	first = NormalizeMonth(first)
	last = NormalizeMonth(last)
	if first.After(last) {
		return nil
	}
	var months []time.Time
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		months = append(months, m)
	}
	return months
}

// MonthInRange reports whether month falls inside [first, last],
// inclusive on both ends.
func MonthInRange(month, first, last time.Time) bool {
	month = NormalizeMonth(month)
	return !month.Before(NormalizeMonth(first)) && !month.After(NormalizeMonth(last))
}

// ClipRange intersects a requested window with the project range and
// reports whether anything had to be cut. A window entirely outside the
// range clips to an empty result.
func ClipRange(reqFrom, reqTo, projFrom, projTo time.Time) (from, to time.Time, clipped bool) {
	from = NormalizeMonth(reqFrom)
	to = NormalizeMonth(reqTo)
	projFrom = NormalizeMonth(projFrom)
	projTo = NormalizeMonth(projTo)
	if from.Before(projFrom) {
		from = projFrom
		clipped = true
	}
	if to.After(projTo) {
		to = projTo
		clipped = true
	}
	if from.After(to) {
		clipped = true
	}
	return from, to, clipped
}
