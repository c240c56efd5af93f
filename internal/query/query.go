// Package query filters a snapshot by date range, group and category and
// totals what matched.
package query

import (
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"gerenciador/internal/core"
	"gerenciador/internal/groups"
)

// DefaultLocale orders category labels when no locale is configured.
var DefaultLocale = language.BrazilianPortuguese

// Filter narrows a query. Nil fields and an empty GroupKeys match everything.
type Filter struct {
	Start     *core.Date
	End       *core.Date
	GroupKeys []string
	// Category matches exactly; a transaction with no category never matches
	// a non-nil filter, including a filter for "".
	Category *string
}

// Item is a matched transaction annotated with its group.
type Item struct {
	core.Transaction
	GroupLabel string      `json:"group_label"`
	GroupKind  groups.Kind `json:"group_kind"`
}

// GroupSubtotal is the per-group sum of matched items.
type GroupSubtotal struct {
	Key   string      `json:"key"`
	Label string      `json:"label"`
	Kind  groups.Kind `json:"kind"`
	Total core.Money  `json:"total"`
	Count int         `json:"count"`
}

// Result is what Execute returns.
type Result struct {
	Items        []Item          `json:"items"`
	Groups       []GroupSubtotal `json:"groups"`
	TotalIncome  core.Money      `json:"total_income"`
	TotalExpense core.Money      `json:"total_expense"`
	Balance      core.Money      `json:"balance"`
	Count        int             `json:"count"`
}

// Options configures an Engine.
type Options struct {
	Locale language.Tag
}

// Engine runs queries against snapshots. It holds no mutable state.
type Engine struct {
	reg    *groups.Registry
	locale language.Tag
}

func New(reg *groups.Registry, opts Options) *Engine {
	loc := opts.Locale
	if loc == language.Und {
		loc = DefaultLocale
	}
	return &Engine{reg: reg, locale: loc}
}

// Execute applies f to snap. Items come back newest first; equal dates keep
// scan order (registry group order, then snapshot order). Undated
// transactions are dropped only when a date bound is set, and sort last.
func (e *Engine) Execute(snap core.Snapshot, f Filter) (Result, error) {
	selected, err := e.reg.Resolve(f.GroupKeys)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Items:  []Item{},
		Groups: make([]GroupSubtotal, 0, len(selected)),
	}
	for _, g := range selected {
		sub := GroupSubtotal{Key: g.Key, Label: g.Label, Kind: g.Kind}
		for _, tx := range snap[g.Key] {
			if !f.matches(tx) {
				continue
			}
			res.Items = append(res.Items, Item{Transaction: tx, GroupLabel: g.Label, GroupKind: g.Kind})
			sub.Total = sub.Total.Add(tx.Amount)
			sub.Count++
		}
		if g.Kind == groups.Income {
			res.TotalIncome = res.TotalIncome.Add(sub.Total)
		} else {
			res.TotalExpense = res.TotalExpense.Add(sub.Total)
		}
		res.Count += sub.Count
		res.Groups = append(res.Groups, sub)
	}
	res.Balance = res.TotalIncome.Sub(res.TotalExpense)

	slices.SortStableFunc(res.Items, func(a, b Item) int {
		return compareDesc(a.Date, b.Date)
	})
	return res, nil
}

func (f Filter) matches(tx core.Transaction) bool {
	if f.Start != nil || f.End != nil {
		if tx.Date.IsEmpty() {
			return false
		}
		if f.Start != nil && tx.Date.Compare(*f.Start) < 0 {
			return false
		}
		if f.End != nil && tx.Date.Compare(*f.End) > 0 {
			return false
		}
	}
	if f.Category != nil {
		if tx.Category == nil || *tx.Category != *f.Category {
			return false
		}
	}
	return true
}

// compareDesc orders newest first with empty dates last.
func compareDesc(a, b core.Date) int {
	switch {
	case a.IsEmpty() && b.IsEmpty():
		return 0
	case a.IsEmpty():
		return 1
	case b.IsEmpty():
		return -1
	}
	return b.Compare(a)
}

// AllCategories returns the default categories of every active group plus
// every non-empty category found in snap, deduplicated and collated for the
// engine's locale.
func (e *Engine) AllCategories(snap core.Snapshot) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(c string) {
		if c == "" {
			return
		}
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	for _, g := range e.reg.Active() {
		for _, c := range g.DefaultCategories {
			add(c)
		}
		for _, tx := range snap[g.Key] {
			add(tx.CategoryLabel())
		}
	}
	// Collators are not safe for concurrent use.
	collate.New(e.locale).SortStrings(out)
	return out
}
