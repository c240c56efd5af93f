// Package memory is an in-process sheets.Writer that keeps every written
// sheet as a value grid. It backs dry runs of the export command.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"gerenciador/internal/aggregate"
	"gerenciador/internal/query"
	"gerenciador/internal/sheets"
	"gerenciador/internal/sheets/google"
)

var _ sheets.Writer = (*Writer)(nil)

type Writer struct {
	mu          sync.Mutex
	summaryBase string
	sheets      map[string][][]any
	order       []string
}

// New uses summaryBase the same way the Google client does ("Resumo" when empty).
func New(summaryBase string) *Writer {
	return &Writer{summaryBase: summaryBase, sheets: map[string][][]any{}}
}

func (w *Writer) WriteAnnualSummary(_ context.Context, summary aggregate.AnnualSummary) (string, error) {
	name := google.SummarySheetName(w.summaryBase, summary.Year)
	return w.put(name, google.SummaryRows(summary)), nil
}

func (w *Writer) WriteQueryReport(_ context.Context, sheetName string, result query.Result) (string, error) {
	if sheetName == "" {
		return "", fmt.Errorf("empty sheet name")
	}
	return w.put(sheetName, google.ReportRows(result)), nil
}

func (w *Writer) put(name string, rows [][]any) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.sheets[name]; !ok {
		w.order = append(w.order, name)
	}
	w.sheets[name] = rows
	return google.A1Range(name, rows)
}

// Sheet returns a copy of the rows last written to name.
func (w *Writer) Sheet(name string) ([][]any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, ok := w.sheets[name]
	if !ok {
		return nil, false
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = slices.Clone(r)
	}
	return out, true
}

// Names lists sheets in the order they were first written.
func (w *Writer) Names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.order)
}
