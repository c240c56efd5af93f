package schedule

import (
	"fmt"

	"gerenciador/internal/core"
)

// Mode selects how many installments a recurring entry expands into.
type Mode string

const (
	// Fixed uses the count the user asked for.
	Fixed Mode = "fixed"
	// Monthly always repeats for a year.
	Monthly Mode = "monthly"
)

// counter resolves the installment count for one mode.
type counter interface {
	Count(requested, max int) (int, error)
}

type fixedCounter struct{}

func (fixedCounter) Count(requested, max int) (int, error) {
	if requested < 1 || requested > max {
		return 0, fmt.Errorf("%w: %d (allowed 1..%d)", core.ErrInvalidCount, requested, max)
	}
	return requested, nil
}

type monthlyCounter struct{}

func (monthlyCounter) Count(_ int, max int) (int, error) {
	if MonthlyInstallments > max {
		return 0, fmt.Errorf("%w: monthly needs %d, max is %d", core.ErrInvalidCount, MonthlyInstallments, max)
	}
	return MonthlyInstallments, nil
}

var counters = map[Mode]counter{
	Fixed:   fixedCounter{},
	Monthly: monthlyCounter{},
}

// ParseMode accepts "fixed" and "monthly"; empty means Fixed.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return Fixed, nil
	}
	m := Mode(s)
	if _, ok := counters[m]; !ok {
		return "", fmt.Errorf("unknown recurrence mode: %q", s)
	}
	return m, nil
}

// Count bounds the requested count for mode m against max.
func (m Mode) Count(requested, max int) (int, error) {
	c, ok := counters[m]
	if !ok {
		return 0, fmt.Errorf("unknown recurrence mode: %q", m)
	}
	return c.Count(requested, max)
}
