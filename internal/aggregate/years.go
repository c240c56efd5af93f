package aggregate

import (
	"slices"

	"gerenciador/internal/core"
)

// AvailableYears returns today's year plus every year that has a transaction
// in an active group, deduplicated and sorted newest first.
func (a *Aggregator) AvailableYears(snap core.Snapshot, today core.Date) []int {
	seen := map[int]struct{}{today.Year(): {}}
	for _, key := range a.reg.Keys() {
		for _, tx := range snap[key] {
			if !tx.Date.IsEmpty() {
				seen[tx.Date.Year()] = struct{}{}
			}
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	slices.Sort(years)
	slices.Reverse(years)
	return years
}

// ClampYear bounds y to the range covered by years (as returned by
// AvailableYears). An empty list leaves y untouched.
func ClampYear(years []int, y int) int {
	if len(years) == 0 {
		return y
	}
	lo, hi := slices.Min(years), slices.Max(years)
	if y < lo {
		return lo
	}
	if y > hi {
		return hi
	}
	return y
}

// CanNavigate reports whether moving delta years from y stays inside years.
func CanNavigate(years []int, y, delta int) bool {
	if len(years) == 0 {
		return false
	}
	next := y + delta
	return next >= slices.Min(years) && next <= slices.Max(years)
}
