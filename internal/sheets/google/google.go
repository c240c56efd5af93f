// Package google writes ledger reports to a Google Sheets spreadsheet using
// a service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"gerenciador/internal/aggregate"
	"gerenciador/internal/config"
	"gerenciador/internal/log"
	"gerenciador/internal/query"
	"gerenciador/internal/sheets"
)

var _ sheets.Writer = (*Client)(nil)

// Credentials names a service account key: inline JSON wins over File.
type Credentials struct {
	JSON string
	File string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// summaryBase is the summary sheet name without the year, e.g. "Resumo".
	summaryBase string
	logger      *log.Logger
}

// NewFromConfig builds a client from the GOOGLE_* settings.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Client, error) {
	if err := cfg.ValidateExport(); err != nil {
		return nil, err
	}
	creds := Credentials{JSON: cfg.GoogleServiceAccountJSON, File: cfg.GoogleServiceAccountFile}
	return New(ctx, cfg.GoogleSpreadsheetID, creds, cfg.GoogleSummarySheetName, logger)
}

// New authenticates with creds and returns a client for spreadsheetID.
func New(ctx context.Context, spreadsheetID string, creds Credentials, summaryBase string, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, creds, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, summaryBase, logger), nil
}

// NewWithService wraps an already configured service.
func NewWithService(svc *gsheet.Service, spreadsheetID, summaryBase string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		summaryBase:   summaryBase,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func newSheetsService(ctx context.Context, creds Credentials, logger *log.Logger) (*gsheet.Service, error) {
	if logger == nil {
		logger = log.Discard()
	}
	credentialsJSON := []byte(strings.TrimSpace(creds.JSON))
	if len(credentialsJSON) == 0 {
		path := strings.TrimSpace(creds.File)
		if path == "" {
			path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
		}
		if path == "" {
			return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
		}
		var err error
		if credentialsJSON, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		logger.DebugContext(ctx, "Read service account file", "path", path)
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// WriteAnnualSummary replaces "<year> <base>" with the summary rows.
func (c *Client) WriteAnnualSummary(ctx context.Context, summary aggregate.AnnualSummary) (string, error) {
	return c.writeSheet(ctx, SummarySheetName(c.summaryBase, summary.Year), SummaryRows(summary))
}

// WriteQueryReport replaces sheetName with one row per matched item.
func (c *Client) WriteQueryReport(ctx context.Context, sheetName string, result query.Result) (string, error) {
	if strings.TrimSpace(sheetName) == "" {
		return "", errors.New("empty report sheet name")
	}
	return c.writeSheet(ctx, sheetName, ReportRows(result))
}

func (c *Client) writeSheet(ctx context.Context, name string, rows [][]any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if err := c.ensureSheet(ctx, name); err != nil {
		return "", err
	}

	quoted := quoteSheet(name)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, quoted, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", name, err)
	}

	rng := A1Range(name, rows)
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}

	c.logger.InfoContext(ctx, "Sheet written",
		"sheet", name,
		"range", rng,
		"rows", len(rows))
	return rng, nil
}

// ensureSheet adds the tab when the spreadsheet does not have it yet.
func (c *Client) ensureSheet(ctx context.Context, name string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == name {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: name},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	c.logger.InfoContext(ctx, "Created sheet", "sheet", name)
	return nil
}
