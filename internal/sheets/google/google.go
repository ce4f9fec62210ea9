// Package google exports the ledger journal to a Google Sheet using a
// service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"moneywise/internal/log"
	"moneywise/internal/sheets"
)

const (
	defaultJournalSheet = "Journal"
	defaultRowCacheTTL  = 2 * time.Minute
	lastColumn          = "K"
)

var ErrMissingSpreadsheetID = errors.New("missing GOOGLE_SPREADSHEET_ID")

// Config selects the spreadsheet and the credentials.
type Config struct {
	SpreadsheetID string
	// SheetName is the base journal sheet name; the current year is prefixed
	// unless it already starts with one.
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	journalSheet  string

	// Row count cache so consecutive appends skip the dimension read.
	mu                 sync.Mutex
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

var _ sheets.Journal = (*Client)(nil)

// New creates a journal client for cfg.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, ErrMissingSpreadsheetID
	}
	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = defaultJournalSheet
	}

	svc, err := newSheetsService(ctx, cfg.ServiceAccountJSON, cfg.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		journalSheet:       yearPrefixedName(base, time.Now().Year()),
		cacheValidDuration: defaultRowCacheTTL,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account
// credentials, falling back to GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, inlineJSON, file string) (*gsheet.Service, error) {
	inlineJSON = strings.TrimSpace(inlineJSON)
	file = strings.TrimSpace(file)
	if inlineJSON == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inlineJSON != "":
		credentialsJSON = []byte(inlineJSON)
	case file != "":
		var err error
		credentialsJSON, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		log.FieldComponent, log.ComponentSheets,
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// Append writes entries below the last used row of the journal sheet.
func (c *Client) Append(ctx context.Context, entries []sheets.JournalEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.rowCountLocked(ctx)
	if err != nil {
		return "", err
	}
	if rows == 0 {
		// Empty sheet: write the header first.
		if err := c.writeLocked(ctx, 1, [][]any{header()}); err != nil {
			return "", err
		}
		rows = 1
	}

	first := rows + 1
	values := make([][]any, len(entries))
	for i, e := range entries {
		values[i] = e.Row()
	}
	if err := c.writeLocked(ctx, first, values); err != nil {
		c.invalidateLocked()
		return "", err
	}

	last := first + len(entries) - 1
	c.cachedRowCount = last
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	return journalRange(c.journalSheet, first, last), nil
}

func (c *Client) writeLocked(ctx context.Context, first int, values [][]any) error {
	rng := journalRange(c.journalSheet, first, first+len(values)-1)
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func (c *Client) rowCountLocked(ctx context.Context) (int, error) {
	if time.Now().Before(c.cacheExpiresAt) {
		return c.cachedRowCount, nil
	}
	rng := fmt.Sprintf("%s!A:A", c.journalSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to get sheet dimensions for %s: %w", c.journalSheet, err)
	}
	c.cachedRowCount = len(resp.Values)
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	return c.cachedRowCount, nil
}

// HasEvent scans the event id column.
func (c *Client) HasEvent(ctx context.Context, eventID string) (bool, error) {
	if c.svc == nil {
		return false, errors.New("sheets service not initialized")
	}
	ids, err := c.readCol(ctx, c.journalSheet, "B:B")
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) readCol(ctx context.Context, sheetName, col string) ([]string, error) {
	rng := fmt.Sprintf("%s!%s", sheetName, col)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return columnValues(resp.Values), nil
}

// InvalidateRowCache forces the next append to re-read the sheet size.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

func (c *Client) invalidateLocked() {
	c.cachedRowCount = 0
	c.cacheExpiresAt = time.Time{}
}

func header() []any {
	out := make([]any, len(sheets.Columns))
	for i, col := range sheets.Columns {
		out[i] = col
	}
	return out
}

func journalRange(sheet string, first, last int) string {
	return fmt.Sprintf("%s!A%d:%s%d", sheet, first, lastColumn, last)
}

// columnValues flattens the first cell of each row, skipping blanks.
func columnValues(rows [][]any) []string {
	var out []string
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		v := strings.TrimSpace(fmt.Sprint(row[0]))
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
