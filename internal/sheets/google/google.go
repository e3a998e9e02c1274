package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bilancio/internal/ledger"
	applog "bilancio/internal/log"
	ports "bilancio/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	journalBase   string

	mu      sync.Mutex
	headers map[string]bool // sheets whose header row is known to exist
}

var _ ports.JournalWriter = (*Client)(nil)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS
// Optional: GOOGLE_SHEET_NAME (default "Journal"), prefixed with the ledger year.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	credentials, err := serviceAccountCredentials(ctx)
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, spreadsheetID, os.Getenv("GOOGLE_SHEET_NAME"),
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// NewClient builds a client from explicit options, e.g. a custom endpoint in tests.
func NewClient(ctx context.Context, spreadsheetID, journalBase string, opts ...goption.ClientOption) (*Client, error) {
	journalBase = strings.TrimSpace(journalBase)
	if journalBase == "" {
		journalBase = "Journal"
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		journalBase:   journalBase,
		headers:       map[string]bool{},
	}, nil
}

// serviceAccountCredentials reads Service Account JSON from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func serviceAccountCredentials(ctx context.Context) ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// AppendEvent writes one row per change into the journal sheet of each
// affected year and returns the number of rows written.
func (c *Client) AppendEvent(ctx context.Context, ev ledger.Event) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	years, byYear := rowsByYear(ev)

	written := 0
	for _, year := range years {
		sheet := yearPrefixedName(c.journalBase, year)
		rows := byYear[year]
		if !c.hasHeader(ctx, sheet) {
			rows = append([][]any{journalHeader}, rows...)
		}
		if err := c.appendRows(ctx, sheet, rows); err != nil {
			return written, err
		}
		c.markHeader(sheet)
		written += len(byYear[year])
	}

	slog.InfoContext(ctx, "Appended ledger event to journal",
		applog.FieldEventID, ev.ID,
		"type", ev.Type,
		"rows", written)
	return written, nil
}

func (c *Client) appendRows(ctx context.Context, sheet string, rows [][]any) error {
	rng := fmt.Sprintf("%s!%s", sheet, journalColumns)
	vr := &gsheet.ValueRange{Values: rows}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append rows to %s: %w", sheet, err)
	}
	return nil
}

// hasHeader checks once per sheet whether row 1 is already populated.
func (c *Client) hasHeader(ctx context.Context, sheet string) bool {
	c.mu.Lock()
	known := c.headers[sheet]
	c.mu.Unlock()
	if known {
		return true
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, sheet+"!A1:A1").Context(ctx).Do()
	if err != nil || len(resp.Values) == 0 {
		return false
	}
	c.markHeader(sheet)
	return true
}

func (c *Client) markHeader(sheet string) {
	c.mu.Lock()
	c.headers[sheet] = true
	c.mu.Unlock()
}
