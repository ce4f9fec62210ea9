package google

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"moneywise/internal/core"
	"moneywise/internal/sheets"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "  "})
	if !errors.Is(err, ErrMissingSpreadsheetID) {
		t.Fatalf("expected ErrMissingSpreadsheetID, got %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Config{SpreadsheetID: "sheet-id"})
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID:      "sheet-id",
		ServiceAccountFile: "/nonexistent/service-account.json",
	})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestAppendWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}

	ref, err := c.Append(context.Background(), nil)
	if err != nil || ref != "" {
		t.Fatalf("empty append should be a no-op: ref=%q err=%v", ref, err)
	}

	_, err = c.Append(context.Background(), []sheets.JournalEntry{{EventID: "a"}})
	if err == nil {
		t.Fatal("expected error when service is not initialized")
	}
	if _, err := c.HasEvent(context.Background(), "a"); err == nil {
		t.Fatal("expected error when service is not initialized")
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Journal", 2025, "2025 Journal"},
		{"Ledger Export", 2024, "2024 Ledger Export"},
		{"", 2023, ""},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
		{"12345", 2024, "2024 12345"},
	}

	for _, tt := range tests {
		got := yearPrefixedName(tt.baseName, tt.year)
		if got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q",
				tt.baseName, tt.year, got, tt.expected)
		}
	}
}

func TestJournalRange(t *testing.T) {
	if got := journalRange("2025 Journal", 2, 4); got != "2025 Journal!A2:K4" {
		t.Errorf("journalRange() = %q", got)
	}
	if len(header()) != len(sheets.Columns) {
		t.Error("header width must match the column list")
	}
}

func TestEntryRow(t *testing.T) {
	e := sheets.JournalEntry{
		RecordedAt:    time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC),
		EventID:       "evt",
		EventType:     core.EventTransactionCreated,
		UserID:        3,
		WalletID:      4,
		TransactionID: 5,
		CategoryID:    6,
		CategoryName:  "Food",
		Amount:        core.NewMoney(decimal.RequireFromString("-12.5")),
		Balance:       core.MoneyFromInt(100),
		Consistent:    true,
	}

	row := e.Row()
	if len(row) != len(sheets.Columns) {
		t.Fatalf("row has %d cells, want %d", len(row), len(sheets.Columns))
	}
	if row[0] != "2025-03-01T10:30:00Z" {
		t.Errorf("timestamp cell = %v", row[0])
	}
	if row[8] != "-12.50" || row[9] != "100.00" {
		t.Errorf("amount cells = %v, %v", row[8], row[9])
	}
	if row[10] != true {
		t.Errorf("consistent cell = %v", row[10])
	}
}

func TestColumnValues(t *testing.T) {
	rows := [][]any{{"Event"}, {}, {"  a  "}, {""}, {"b", "ignored"}}
	got := columnValues(rows)
	want := []string{"Event", "a", "b"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("columnValues() = %v, want %v", got, want)
	}
}
