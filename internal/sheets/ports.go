// Package sheets exports ledger reports to spreadsheets.
package sheets

import (
	"context"

	"gerenciador/internal/aggregate"
	"gerenciador/internal/query"
)

// Ports for outbound adapters.
type (
	// SummaryWriter replaces a year's summary sheet with the twelve monthly
	// buckets and a total row.
	SummaryWriter interface {
		WriteAnnualSummary(ctx context.Context, summary aggregate.AnnualSummary) (sheetRange string, err error)
	}

	// ReportWriter writes a query result to the named sheet.
	ReportWriter interface {
		WriteQueryReport(ctx context.Context, sheetName string, result query.Result) (sheetRange string, err error)
	}

	Writer interface {
		SummaryWriter
		ReportWriter
	}
)
