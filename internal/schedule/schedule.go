// Package schedule expands one anchor date into monthly installment dates.
//
// Generate is pure: it performs no I/O and the same inputs always yield the
// same dates. Turning dates into transactions is done by Installments, which
// callers use right before persisting a recurring entry.
package schedule

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gerenciador/internal/core"
)

const (
	// MinInstallments is the smallest count offered for fixed recurrences.
	MinInstallments = 2
	// MaxInstallments is the default upper bound callers enforce before Generate.
	MaxInstallments = 60
	// MonthlyInstallments is how many entries a monthly recurrence creates.
	MonthlyInstallments = 12
)

// Generate returns count dates, one per month after start (offsets 1..count).
// Each date is computed from start itself, so a clamped month never shifts
// the ones after it.
func Generate(start core.Date, count int) ([]core.Date, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidCount, count)
	}
	if err := start.Validate(); err != nil {
		return nil, err
	}
	dates := make([]core.Date, count)
	for i := range dates {
		dates[i] = core.AddCalendarMonths(start, i+1)
	}
	return dates, nil
}

// Installments builds count unsaved copies of proto, dated by Generate and
// described as "<description> (i/count)". IDs and CreatedAt are cleared.
func Installments(proto core.Transaction, count int) ([]core.Transaction, error) {
	dates, err := Generate(proto.Date, count)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSpace(proto.Description)
	out := make([]core.Transaction, count)
	for i, d := range dates {
		tx := proto
		tx.ID = 0
		tx.CreatedAt = time.Time{}
		tx.Date = d
		tx.Description = numbered(base, i+1, count)
		if proto.Category != nil {
			tx.Category = core.CategoryOf(*proto.Category)
		}
		out[i] = tx
	}
	return out, nil
}

// numbered appends the "(i/n)" suffix, trimming base so the result stays
// within core.MaxDescriptionLength.
func numbered(base string, i, n int) string {
	suffix := fmt.Sprintf(" (%d/%d)", i, n)
	room := core.MaxDescriptionLength - utf8.RuneCountInString(suffix)
	if utf8.RuneCountInString(base) > room {
		base = strings.TrimSpace(string([]rune(base)[:room]))
	}
	return base + suffix
}
