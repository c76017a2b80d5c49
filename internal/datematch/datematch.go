package datematch

import (
	"time"
)

const day = 24 * time.Hour

// Day returns midnight UTC of the calendar day t falls on in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FirstOfNextMonth returns the first day of the month following t.
func FirstOfNextMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
}

// FirstClose walks a then b in ascending order and returns the earlier date of
// the first pair closer than toleranceDays. The first pair found wins, not the
// globally nearest one.
func FirstClose(a, b []time.Time, toleranceDays int) (time.Time, bool) {
	tolerance := time.Duration(toleranceDays) * day
	for _, da := range a {
		for _, db := range b {
			if absDiff(da, db) < tolerance {
				if db.Before(da) {
					return db, true
				}
				return da, true
			}
		}
	}
	return time.Time{}, false
}

// LastClose is FirstClose scanning both slices from the end; it returns the
// later date of the first matching pair.
func LastClose(a, b []time.Time, toleranceDays int) (time.Time, bool) {
	tolerance := time.Duration(toleranceDays) * day
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if absDiff(a[i], b[j]) < tolerance {
				if b[j].After(a[i]) {
					return b[j], true
				}
				return a[i], true
			}
		}
	}
	return time.Time{}, false
}

// Closest returns the date nearest to target among those strictly after it.
func Closest(target time.Time, dates []time.Time) (time.Time, bool) {
	var (
		best  time.Time
		found bool
		min   time.Duration
	)
	for _, d := range dates {
		diff := d.Sub(target)
		if diff <= 0 {
			continue
		}
		if !found || diff < min {
			best, min, found = d, diff, true
		}
	}
	return best, found
}

func absDiff(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
