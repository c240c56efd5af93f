// Command sheets-export writes the annual summary (and optionally a query
// report) of the configured ledger to Google Sheets. With -follow it keeps
// running and rewrites the summary of every year touched by change events.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gerenciador/internal/cli"
	"gerenciador/internal/config"
	"gerenciador/internal/core"
	"gerenciador/internal/log"
	"gerenciador/internal/query"
	"gerenciador/internal/sheets"
	"gerenciador/internal/sheets/google"
	"gerenciador/internal/sheets/memory"
	"gerenciador/internal/worker"
)

func main() {
	year := flag.Int("year", 0, "year to export (default: current year, clamped to years with data)")
	report := flag.String("report", "", "sheet name for a query report (empty: summary only)")
	start := flag.String("start", "", "report start date YYYY-MM-DD")
	end := flag.String("end", "", "report end date YYYY-MM-DD")
	groupKeys := flag.String("groups", "", "comma separated group keys for the report")
	category := flag.String("category", "", "exact category for the report")
	dryRun := flag.Bool("dry-run", false, "print the rows instead of writing to Google Sheets")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout (ignored with -follow)")
	follow := flag.Bool("follow", false, "keep running and sync summaries on change events")
	interval := flag.Duration("interval", 30*time.Second, "flush interval with -follow")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	filter, err := buildFilter(*start, *end, *groupKeys, *category, categorySet())
	if err != nil {
		logger.Error("Invalid report filter", log.FieldError, err)
		os.Exit(2)
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if *follow {
		ctx, cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	} else {
		ctx, cancel = context.WithTimeout(context.Background(), *timeout)
	}
	defer cancel()

	ledger, err := cli.InitLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize ledger", log.FieldError, err)
		os.Exit(1)
	}
	defer ledger.Close()

	var writer sheets.Writer
	var dry *memory.Writer
	if *dryRun {
		dry = memory.New(cfg.GoogleSummarySheetName)
		writer = dry
	} else {
		client, err := google.NewFromConfig(ctx, cfg, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		writer = client
	}

	if *follow {
		if ledger.Backend.Events == nil {
			logger.Error("-follow needs AMQP_URL to receive change events")
			os.Exit(2)
		}
		w := worker.NewSyncWorker(ledger.Service, writer, logger)
		if err := w.StartupSync(ctx); err != nil {
			logger.Warn("Startup sync left years pending", log.FieldError, err)
		}
		if err := w.Run(ctx, ledger.Backend.Events, *interval); err != nil {
			logger.Error("Sync worker stopped", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Sync worker stopped", "synced", w.Synced())
		return
	}

	res, err := sheets.Export(ctx, ledger.Service, writer, sheets.ExportRequest{
		Year:        *year,
		ReportSheet: *report,
		Filter:      filter,
	}, logger)
	if err != nil {
		logger.Error("Export failed", log.FieldError, err)
		os.Exit(1)
	}

	if dry != nil {
		for _, name := range dry.Names() {
			rows, _ := dry.Sheet(name)
			fmt.Printf("== %s\n", name)
			for _, r := range rows {
				fmt.Println(r...)
			}
		}
	}
	logger.Info("Export finished",
		log.FieldYear, res.Year,
		"summary_range", res.SummaryRange,
		"report_range", res.ReportRange,
		log.FieldCount, res.ReportItems)
}

// categorySet reports whether -category was passed, so that -category=""
// filters for the empty label instead of meaning "any".
func categorySet() bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "category" {
			set = true
		}
	})
	return set
}

func buildFilter(start, end, groupKeys, category string, hasCategory bool) (query.Filter, error) {
	var f query.Filter
	if start != "" {
		d, err := core.ParseDate(start)
		if err != nil {
			return f, fmt.Errorf("start: %w", err)
		}
		f.Start = &d
	}
	if end != "" {
		d, err := core.ParseDate(end)
		if err != nil {
			return f, fmt.Errorf("end: %w", err)
		}
		f.End = &d
	}
	for _, k := range strings.Split(groupKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			f.GroupKeys = append(f.GroupKeys, k)
		}
	}
	if hasCategory {
		f.Category = core.CategoryOf(category)
	}
	return f, nil
}
