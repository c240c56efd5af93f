// Package aggregate turns a snapshot into current-month totals and annual
// month-by-month summaries.
//
// The Aggregator keeps a single cached annual summary. Callers must call
// Invalidate after any insert, delete or batch insert; staleness is not
// detected automatically.
package aggregate

import (
	"sync"

	"gerenciador/internal/core"
	"gerenciador/internal/groups"
)

// GroupTotal is the sum of one group's transactions in a period.
type GroupTotal struct {
	Key   string      `json:"key"`
	Label string      `json:"label"`
	Kind  groups.Kind `json:"kind"`
	Total core.Money  `json:"total"`
	Count int         `json:"count"`
}

// MonthTotals is the current-month view.
type MonthTotals struct {
	Year         int          `json:"year"`
	Month        int          `json:"month"` // 1-12
	MonthName    string       `json:"month_name"`
	Groups       []GroupTotal `json:"groups"`
	TotalIncome  core.Money   `json:"total_income"`
	TotalExpense core.Money   `json:"total_expense"`
	Balance      core.Money   `json:"balance"`
}

// MonthlyBucket aggregates one calendar month of a year.
type MonthlyBucket struct {
	Month            int        `json:"month"` // 0-11
	Name             string     `json:"name"`
	Income           core.Money `json:"income"`
	Expense          core.Money `json:"expense"`
	Balance          core.Money `json:"balance"`
	TransactionCount int        `json:"transaction_count"`
}

// Totals is the income/expense/balance triple.
type Totals struct {
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
	Balance core.Money `json:"balance"`
}

// AnnualSummary holds the twelve buckets of a year and their sum.
type AnnualSummary struct {
	Year   int               `json:"year"`
	Months [12]MonthlyBucket `json:"months"`
	Totals Totals            `json:"totals"`
}

type cachedSummary struct {
	year    int
	summary AnnualSummary
}

// Aggregator computes totals over the active groups of a registry.
type Aggregator struct {
	reg *groups.Registry

	mu     sync.Mutex
	cached *cachedSummary
	gen    uint64
	misses int
}

func New(reg *groups.Registry) *Aggregator {
	return &Aggregator{reg: reg}
}

// CurrentMonthTotals sums every active group for today's year and month.
// It is recomputed on every call.
func (a *Aggregator) CurrentMonthTotals(snap core.Snapshot, today core.Date) MonthTotals {
	out := MonthTotals{
		Year:      today.Year(),
		Month:     today.Month(),
		MonthName: groups.MonthName(today.Month() - 1),
	}
	for _, g := range a.reg.Active() {
		gt := GroupTotal{Key: g.Key, Label: g.Label, Kind: g.Kind}
		for _, tx := range snap[g.Key] {
			if tx.Date.IsEmpty() || !tx.Date.SameMonth(today) {
				continue
			}
			gt.Total = gt.Total.Add(tx.Amount)
			gt.Count++
		}
		switch g.Kind {
		case groups.Income:
			out.TotalIncome = out.TotalIncome.Add(gt.Total)
		case groups.Expense:
			out.TotalExpense = out.TotalExpense.Add(gt.Total)
		}
		out.Groups = append(out.Groups, gt)
	}
	out.Balance = out.TotalIncome.Sub(out.TotalExpense)
	return out
}

// AnnualSummary returns the month-by-month summary for year. A repeated call
// for the cached year returns the cached value without scanning snap.
func (a *Aggregator) AnnualSummary(snap core.Snapshot, year int) AnnualSummary {
	return a.AnnualSummaryAsOf(snap, year, a.Generation())
}

// AnnualSummaryAsOf is AnnualSummary for a snapshot read when Generation
// returned gen. The result is cached only if Invalidate has not run since,
// so a snapshot older than the last mutation never fills the slot.
func (a *Aggregator) AnnualSummaryAsOf(snap core.Snapshot, year int, gen uint64) AnnualSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil && a.cached.year == year && a.gen == gen {
		return a.cached.summary
	}
	s := a.computeAnnual(snap, year)
	a.misses++
	if a.gen == gen {
		a.cached = &cachedSummary{year: year, summary: s}
	}
	return s
}

// Generation counts Invalidate calls.
func (a *Aggregator) Generation() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gen
}

// Invalidate drops the cached annual summary.
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	a.cached = nil
	a.gen++
	a.mu.Unlock()
}

// Misses reports how many annual summaries were computed rather than served
// from the cache.
func (a *Aggregator) Misses() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.misses
}

// CachedYear reports which year is cached, if any.
func (a *Aggregator) CachedYear() (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cached == nil {
		return 0, false
	}
	return a.cached.year, true
}

func (a *Aggregator) computeAnnual(snap core.Snapshot, year int) AnnualSummary {
	s := AnnualSummary{Year: year}
	for i := range s.Months {
		s.Months[i] = MonthlyBucket{Month: i, Name: groups.MonthName(i)}
	}
	for _, g := range a.reg.Active() {
		for _, tx := range snap[g.Key] {
			if tx.Date.IsEmpty() || tx.Date.Year() != year {
				continue
			}
			b := &s.Months[tx.Date.Month()-1]
			if g.Kind == groups.Income {
				b.Income = b.Income.Add(tx.Amount)
			} else {
				b.Expense = b.Expense.Add(tx.Amount)
			}
			b.TransactionCount++
		}
	}
	for i := range s.Months {
		b := &s.Months[i]
		b.Balance = b.Income.Sub(b.Expense)
		s.Totals.Income = s.Totals.Income.Add(b.Income)
		s.Totals.Expense = s.Totals.Expense.Add(b.Expense)
	}
	s.Totals.Balance = s.Totals.Income.Sub(s.Totals.Expense)
	return s
}
