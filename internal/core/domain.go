package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxDescriptionLength bounds Transaction.Description, counted in runes.
const MaxDescriptionLength = 200

const dateLayout = "2006-01-02"

type (
	// Date is a calendar date without time of day. The zero value means "no date".
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is one income or expense entry belonging to exactly one category-group.
	Transaction struct {
		ID          int64     `json:"id"`
		GroupKey    string    `json:"group_key"`
		Date        Date      `json:"date"`
		Description string    `json:"description"`
		Category    *string   `json:"category"` // nil = uncategorized
		Amount      Money     `json:"amount"`
		IsPaid      bool      `json:"is_paid"`
		CreatedAt   time.Time `json:"created_at"`
	}

	// Snapshot is the full in-memory set of transactions keyed by group key.
	// Each slice keeps the order the store returned it in.
	Snapshot map[string][]Transaction
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidCount       = errors.New("invalid installment count")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
	ErrEmptyGroup         = errors.New("empty group key")
	ErrUnknownGroup       = errors.New("unknown category group")
	ErrNotFound           = errors.New("transaction not found")
	ErrPaidNotApplicable  = errors.New("paid flag does not apply to income groups")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// IsEmpty reports whether the date is absent.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// Compare returns -1, 0 or +1. An empty date sorts before any real date.
func (d Date) Compare(o Date) int {
	return d.Time.Compare(o.Time)
}

// SameMonth reports whether both dates fall in the same year and month.
func (d Date) SameMonth(o Date) bool {
	return d.Year() == o.Year() && d.Month() == o.Month()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// CategoryOf returns a present category label, including the empty one.
func CategoryOf(label string) *string {
	return &label
}

// CategoryLabel returns the category or "" when uncategorized.
func (t Transaction) CategoryLabel() string {
	if t.Category == nil {
		return ""
	}
	return *t.Category
}

// Validate runs the boundary checks every entry must pass before it reaches
// the aggregator or the query engine.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.GroupKey) == "" {
		return ErrEmptyGroup
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return t.Amount.Validate()
}

// Count returns the number of transactions across all groups.
func (s Snapshot) Count() int {
	n := 0
	for _, txs := range s {
		n += len(txs)
	}
	return n
}
