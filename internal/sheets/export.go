package sheets

import (
	"context"
	"fmt"

	"gerenciador/internal/aggregate"
	"gerenciador/internal/core"
	"gerenciador/internal/log"
	"gerenciador/internal/query"
)

// Source is what an export reads from; services.LedgerService satisfies it.
type Source interface {
	Today() core.Date
	AvailableYears(ctx context.Context, today core.Date) ([]int, error)
	AnnualSummary(ctx context.Context, year int) (aggregate.AnnualSummary, error)
	Query(ctx context.Context, f query.Filter) (query.Result, error)
}

// ExportRequest selects what to export. Year 0 means the current year.
// ReportSheet empty skips the query report.
type ExportRequest struct {
	Year        int
	ReportSheet string
	Filter      query.Filter
}

// ExportResult lists the ranges that were written.
type ExportResult struct {
	Year         int
	SummaryRange string
	ReportRange  string
	ReportItems  int
}

// Export writes the annual summary and, optionally, a query report. The
// year is clamped to the years that have data.
func Export(ctx context.Context, src Source, w Writer, req ExportRequest, logger *log.Logger) (ExportResult, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	today := src.Today()
	years, err := src.AvailableYears(ctx, today)
	if err != nil {
		return ExportResult{}, fmt.Errorf("available years: %w", err)
	}
	year := req.Year
	if year == 0 {
		year = today.Year()
	}
	res := ExportResult{Year: aggregate.ClampYear(years, year)}
	if res.Year != year {
		logger.WarnContext(ctx, "Requested year has no data, exporting nearest",
			"requested", year, log.FieldYear, res.Year)
	}

	summary, err := src.AnnualSummary(ctx, res.Year)
	if err != nil {
		return res, fmt.Errorf("annual summary %d: %w", res.Year, err)
	}
	if res.SummaryRange, err = w.WriteAnnualSummary(ctx, summary); err != nil {
		return res, fmt.Errorf("write summary: %w", err)
	}
	logger.InfoContext(ctx, "Annual summary exported",
		log.FieldOperation, log.OpExport,
		log.FieldYear, res.Year,
		"range", res.SummaryRange)

	if req.ReportSheet == "" {
		return res, nil
	}
	result, err := src.Query(ctx, req.Filter)
	if err != nil {
		return res, fmt.Errorf("query: %w", err)
	}
	if res.ReportRange, err = w.WriteQueryReport(ctx, req.ReportSheet, result); err != nil {
		return res, fmt.Errorf("write report: %w", err)
	}
	res.ReportItems = result.Count
	logger.InfoContext(ctx, "Query report exported",
		log.FieldOperation, log.OpExport,
		log.FieldCount, result.Count,
		"range", res.ReportRange)
	return res, nil
}
