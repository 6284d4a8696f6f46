// Package export keeps a Google Sheets ledger in step with the
// transaction store, fed by the AMQP event stream.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budgetplanner/internal/core"
)

type (
	// RowAppender writes one transaction row to the external ledger.
	RowAppender interface {
		AppendTransaction(ctx context.Context, t core.Transaction) error
	}

	// RowRemover removes the row for a transaction id.
	RowRemover interface {
		RemoveTransaction(ctx context.Context, id string) error
	}
)

// SheetsClient appends and removes ledger rows in one spreadsheet. Each
// year gets its own sheet, e.g. "2024 Ledger".
type SheetsClient struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	year          int
}

var (
	_ RowAppender = (*SheetsClient)(nil)
	_ RowRemover  = (*SheetsClient)(nil)
)

// NewFromEnv builds a client from GOOGLE_SPREADSHEET_ID, an optional
// GOOGLE_SHEET_NAME base (default "Ledger"), and service-account
// credentials from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*SheetsClient, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetBase := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetBase == "" {
		sheetBase = "Ledger"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &SheetsClient{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
		year:          time.Now().Year(),
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		return gsheet.NewService(ctx,
			goption.WithCredentialsJSON([]byte(serviceAccountJSON)),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	case serviceAccountFile != "":
		return gsheet.NewService(ctx,
			goption.WithCredentialsFile(serviceAccountFile),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	default:
		// Fall back to application default credentials.
		return gsheet.NewService(ctx, goption.WithScopes(gsheet.SpreadsheetsScope))
	}
}

func (c *SheetsClient) sheetName(year int) string {
	return fmt.Sprintf("%d %s", year, c.sheetBase)
}

// AppendTransaction appends [id, date, title, type, category, amount]
// to the sheet for the transaction's year.
func (c *SheetsClient) AppendTransaction(ctx context.Context, t core.Transaction) error {
	values := &gsheet.ValueRange{
		Values: [][]any{{
			t.ID,
			t.Date.String(),
			t.Title,
			string(t.Type),
			t.Category,
			core.FormatAmount(t.Amount.Cents),
		}},
	}

	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, c.sheetName(t.Date.Year())+"!A:F", values).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

// RemoveTransaction deletes the row whose first column holds id, in the
// current-year sheet. A row that is already gone is not an error.
func (c *SheetsClient) RemoveTransaction(ctx context.Context, id string) error {
	name := c.sheetName(c.year)

	resp, err := c.svc.Spreadsheets.Values.
		Get(c.spreadsheetID, name+"!A:A").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("read id column: %w", err)
	}

	rowIndex := -1
	for i, row := range resp.Values {
		if len(row) > 0 && fmt.Sprint(row[0]) == id {
			rowIndex = i
			break
		}
	}
	if rowIndex < 0 {
		return nil
	}

	sheetID, err := c.lookupSheetID(ctx, name)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rowIndex),
					EndIndex:   int64(rowIndex + 1),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	return nil
}

func (c *SheetsClient) lookupSheetID(ctx context.Context, name string) (int64, error) {
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("spreadsheet metadata: %w", err)
	}
	for _, sheet := range meta.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == name {
			return sheet.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", name)
}
