package core

import "time"

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddCalendarMonths shifts d by n whole months. When d's day-of-month does
// not exist in the target month the result is the last day of that month,
// so Jan 31 + 1 month is Feb 28 (Feb 29 in leap years) and Jan 31 + 2 months
// is Mar 31. The clamp always starts from d's own day, never from a previous
// clamped result.
func AddCalendarMonths(d Date, n int) Date {
	if d.IsEmpty() {
		return d
	}
	year, month, day := d.Time.Date()
	// time.Date normalises month overflow in both directions.
	first := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := DaysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return NewDate(first.Year(), int(first.Month()), day)
}
