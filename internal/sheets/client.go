// Package sheets is the shared tabular store: category configuration,
// the article archive mirror, and the subscriber list all live in one
// spreadsheet that other tooling edits concurrently.
package sheets

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// Worksheet names and headers match the spreadsheet the original deployment
// shares with its admin tooling; renaming them breaks that contract.
const (
	SettingsSheet    = "Inställningar"
	ArticlesSheet    = "Artiklar"
	SubscribersSheet = "Prenumeranter"
)

var worksheetHeaders = map[string][]string{
	SettingsSheet:    {"Kategori", "Källa", "Nyckelord"},
	ArticlesSheet:    {"id", "title", "url", "date", "summary", "category", "paywall", "import_date"},
	SubscribersSheet: {"Namn", "E-post", "Kategorier", "Status", "Token"},
}

// Client wraps the Sheets API for one spreadsheet.
type Client struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	logger        *log.Logger
}

// NewClient builds a client from a service-account credentials file.
func NewClient(ctx context.Context, spreadsheetID, credentialsPath string, logger *log.Logger) (*Client, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, logger: logger}, nil
}

// NewClientWithService wires an existing API service, used by tests to point
// the client at a local fake endpoint.
func NewClientWithService(svc *sheetsapi.Service, spreadsheetID string, logger *log.Logger) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, logger: logger}
}

// EnsureWorksheets creates any missing worksheet with its header row.
// A missing worksheet is a recoverable condition, not an error.
func (c *Client) EnsureWorksheets(ctx context.Context) error {
	spreadsheet, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("reading spreadsheet: %w", err)
	}

	present := make(map[string]bool)
	for _, sh := range spreadsheet.Sheets {
		if sh.Properties != nil {
			present[sh.Properties.Title] = true
		}
	}

	for _, name := range []string{SettingsSheet, ArticlesSheet, SubscribersSheet} {
		if present[name] {
			continue
		}
		_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &sheetsapi.BatchUpdateSpreadsheetRequest{
			Requests: []*sheetsapi.Request{{
				AddSheet: &sheetsapi.AddSheetRequest{
					Properties: &sheetsapi.SheetProperties{Title: name},
				},
			}},
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("creating worksheet %s: %w", name, err)
		}
		if err := c.appendRow(ctx, name, toRow(worksheetHeaders[name])); err != nil {
			return fmt.Errorf("writing header for %s: %w", name, err)
		}
		c.logger.Printf("Created worksheet %q", name)
	}
	return nil
}

// sheetID resolves a worksheet title to its numeric id, needed for
// structural requests such as row deletion.
func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	spreadsheet, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("reading spreadsheet: %w", err)
	}
	for _, sh := range spreadsheet.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("worksheet %s not found", title)
}

// readRows returns the worksheet's rows below the header.
func (c *Client) readRows(ctx context.Context, rng string) ([][]interface{}, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) appendRow(ctx context.Context, sheet string, row []interface{}) error {
	return c.appendRows(ctx, sheet, [][]interface{}{row})
}

func (c *Client) appendRows(ctx context.Context, sheet string, rows [][]interface{}) error {
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, sheet+"!A:Z",
		&sheetsapi.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("appending to %s: %w", sheet, err)
	}
	return nil
}

// updateRange overwrites the given A1 range with row values.
func (c *Client) updateRange(ctx context.Context, rng string, rows [][]interface{}) error {
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng,
		&sheetsapi.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("updating %s: %w", rng, err)
	}
	return nil
}

// deleteRows removes the given zero-based row indexes from a worksheet.
// Indexes must be sorted descending so earlier deletions do not shift later
// ones.
func (c *Client) deleteRows(ctx context.Context, sheetID int64, rowIndexes []int64) error {
	if len(rowIndexes) == 0 {
		return nil
	}
	requests := make([]*sheetsapi.Request, 0, len(rowIndexes))
	for _, idx := range rowIndexes {
		requests = append(requests, &sheetsapi.Request{
			DeleteDimension: &sheetsapi.DeleteDimensionRequest{
				Range: &sheetsapi.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: idx,
					EndIndex:   idx + 1,
				},
			},
		})
	}
	_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("deleting rows: %w", err)
	}
	return nil
}

func toRow(cells []string) []interface{} {
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

func cell(row []interface{}, i int) string {
	if i >= len(row) {
		return ""
	}
	s, ok := row[i].(string)
	if !ok {
		return fmt.Sprint(row[i])
	}
	return s
}
