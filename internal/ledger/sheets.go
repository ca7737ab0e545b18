package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ErrSheetNotConfigured is returned when no spreadsheet was configured
var ErrSheetNotConfigured = errors.New("google sheets not connected")

// sheetHeader is written once, when the sheet is still empty
var sheetHeader = []interface{}{"Date", "Quantity", "Description", "Unit Price", "Total Amount", "Currency"}

// Sheet defines the interface for the spreadsheet transactions are appended to
type Sheet interface {
	// AppendTransactions appends one row per transaction and returns the number of rows added
	AppendTransactions(ctx context.Context, transactions []Transaction) (int, error)

	// Ping checks that the spreadsheet is reachable
	Ping(ctx context.Context) error
}

// GoogleSheet implements the Sheet interface on the first tab of a Google spreadsheet
type GoogleSheet struct {
	service       *sheets.Service
	spreadsheetID string
}

// GoogleCredentialsOption builds a client option from either inline service account
// JSON or a path to a credentials file
func GoogleCredentialsOption(credentials string) option.ClientOption {
	credentials = strings.TrimSpace(credentials)
	if strings.HasPrefix(credentials, "{") {
		return option.WithCredentialsJSON([]byte(credentials))
	}
	return option.WithCredentialsFile(credentials)
}

// NewGoogleSheet creates a new GoogleSheet for the given spreadsheet
func NewGoogleSheet(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*GoogleSheet, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}

	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &GoogleSheet{
		service:       service,
		spreadsheetID: spreadsheetID,
	}, nil
}

// transactionRow converts a transaction to a sheet row, amounts without decimals
func transactionRow(t Transaction) []interface{} {
	return []interface{}{
		t.Date,
		t.Quantity,
		t.Description,
		FormatAmount(t.UnitPrice),
		FormatAmount(t.TotalAmount),
		t.Currency,
	}
}

// isEmpty reports whether the first tab has no values yet
func (g *GoogleSheet) isEmpty(ctx context.Context) (bool, error) {
	resp, err := g.service.Spreadsheets.Values.Get(g.spreadsheetID, "A:F").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("reading sheet values: %w", err)
	}
	return len(resp.Values) == 0, nil
}

// AppendTransactions appends the header (for an empty sheet) and one row per transaction
func (g *GoogleSheet) AppendTransactions(ctx context.Context, transactions []Transaction) (int, error) {
	if len(transactions) == 0 {
		return 0, nil
	}

	empty, err := g.isEmpty(ctx)
	if err != nil {
		return 0, err
	}

	rows := make([][]interface{}, 0, len(transactions)+1)
	if empty {
		rows = append(rows, sheetHeader)
	}
	for _, t := range transactions {
		rows = append(rows, transactionRow(t))
	}

	_, err = g.service.Spreadsheets.Values.Append(g.spreadsheetID, "A1", &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("appending rows: %w", err)
	}

	return len(transactions), nil
}

// Ping fetches the spreadsheet id to verify access
func (g *GoogleSheet) Ping(ctx context.Context) error {
	if _, err := g.service.Spreadsheets.Get(g.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return fmt.Errorf("getting spreadsheet: %w", err)
	}
	return nil
}
