package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"moneta/internal/core"
	ports "moneta/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client exports monthly summaries to a Google Sheet, one row appended per
// change. The sheet is an outbound report, never read back: the SQLite
// summaries stay the only derived source.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	summarySheet  string
}

var _ ports.SummaryWriter = (*Client)(nil)

// New creates a Sheets client for the given spreadsheet and summary sheet.
// Service account credentials come from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, summarySheet string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	summarySheet = strings.TrimSpace(summarySheet)
	if summarySheet == "" {
		summarySheet = "Summaries"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		summarySheet:  summarySheet,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account
// credentials from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// WriteSummary appends one row: owner, month key, totals, profit, and the
// export timestamp.
func (c *Client) WriteSummary(ctx context.Context, s core.MonthlySummary) error {
	values := &gsheet.ValueRange{
		Values: [][]interface{}{{
			s.Owner,
			string(s.MonthKey),
			s.TotalIncome.String(),
			s.TotalExpense.String(),
			s.Profit.String(),
			time.Now().UTC().Format(time.RFC3339),
		}},
	}

	rangeRef := fmt.Sprintf("%s!A:F", c.summarySheet)
	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, rangeRef, values).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append summary row: %w", err)
	}

	slog.InfoContext(ctx, "Summary exported to Google Sheets",
		"owner", s.Owner,
		"month_key", s.MonthKey,
		"profit", s.Profit.String(),
		"sheet", c.summarySheet)

	return nil
}
