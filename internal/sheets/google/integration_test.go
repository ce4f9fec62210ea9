//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"moneywise/internal/core"
	"moneywise/internal/sheets"
)

// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_JournalAppend(t *testing.T) {
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}

	ctx := context.Background()
	client, err := New(ctx, Config{
		SpreadsheetID:      spreadsheetID,
		SheetName:          os.Getenv("JOURNAL_SHEET_NAME"),
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	id := uuid.NewString()
	ref, err := client.Append(ctx, []sheets.JournalEntry{{
		RecordedAt: time.Now(),
		EventID:    id,
		EventType:  core.EventTransactionCreated,
		UserID:     1,
		WalletID:   1,
		Amount:     core.MoneyFromInt(-1),
		Balance:    core.Zero,
		Consistent: true,
	}})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	t.Logf("appended %s", ref)

	found, err := client.HasEvent(ctx, id)
	if err != nil {
		t.Fatalf("HasEvent: %v", err)
	}
	if !found {
		t.Errorf("event %s should be journaled", id)
	}
}
