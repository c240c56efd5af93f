package google

import (
	"fmt"
	"strconv"
	"strings"

	"gerenciador/internal/aggregate"
	"gerenciador/internal/core"
	"gerenciador/internal/query"
)

// DefaultSummaryBase is the summary sheet name when none is configured.
const DefaultSummaryBase = "Resumo"

var (
	summaryHeader = []any{"Mês", "Receitas", "Despesas", "Saldo", "Lançamentos"}
	reportHeader  = []any{"Data", "Grupo", "Tipo", "Descrição", "Categoria", "Valor", "Pago"}
)

// SummarySheetName returns the year-prefixed sheet name. A base containing
// "%d" is used as a format; a base that already starts with the year is
// kept as is.
func SummarySheetName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultSummaryBase
	}
	if strings.Contains(base, "%d") {
		return fmt.Sprintf(base, year)
	}
	y := strconv.Itoa(year)
	if strings.HasPrefix(base, y+" ") {
		return base
	}
	return y + " " + base
}

// SummaryRows lays out the header, one row per month and a total row.
func SummaryRows(s aggregate.AnnualSummary) [][]any {
	rows := make([][]any, 0, len(s.Months)+2)
	rows = append(rows, summaryHeader)
	count := 0
	for _, b := range s.Months {
		rows = append(rows, []any{b.Name, cell(b.Income), cell(b.Expense), cell(b.Balance), b.TransactionCount})
		count += b.TransactionCount
	}
	rows = append(rows, []any{"Total", cell(s.Totals.Income), cell(s.Totals.Expense), cell(s.Totals.Balance), count})
	return rows
}

// ReportRows lays out one row per item followed by the income, expense and
// balance lines.
func ReportRows(r query.Result) [][]any {
	rows := make([][]any, 0, len(r.Items)+5)
	rows = append(rows, reportHeader)
	for _, it := range r.Items {
		paid := ""
		if it.IsPaid {
			paid = "sim"
		}
		rows = append(rows, []any{
			it.Date.String(), it.GroupLabel, string(it.GroupKind),
			it.Description, it.CategoryLabel(), cell(it.Amount), paid,
		})
	}
	rows = append(rows,
		[]any{},
		[]any{"Receitas", "", "", "", "", cell(r.TotalIncome), ""},
		[]any{"Despesas", "", "", "", "", cell(r.TotalExpense), ""},
		[]any{"Saldo", "", "", "", "", cell(r.Balance), ""},
	)
	return rows
}

// cell writes money as a number so the sheet can sum it.
func cell(m core.Money) float64 {
	return m.Decimal().InexactFloat64()
}

// A1Range is the range rows occupy starting at A1 of sheet name.
func A1Range(name string, rows [][]any) string {
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	if len(rows) == 0 || width == 0 {
		return quoteSheet(name) + "!A1"
	}
	return fmt.Sprintf("%s!A1:%s%d", quoteSheet(name), columnName(width), len(rows))
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// columnName converts a 1-based column index to letters: 1 A, 27 AA.
func columnName(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}
