// Package sheets defines the journal export ports. The worker appends one
// entry per wallet touched by a ledger event.
package sheets

import (
	"context"
	"time"

	"moneywise/internal/core"
)

// JournalEntry is one exported row.
type JournalEntry struct {
	RecordedAt    time.Time
	EventID       string
	EventType     core.EventType
	UserID        core.UserID
	WalletID      int64
	TransactionID int64
	CategoryID    int64
	CategoryName  string
	// Amount is the signed effect on the wallet; zero for directory events.
	Amount core.Money
	// Balance is the wallet balance after the event, as persisted.
	Balance    core.Money
	Consistent bool
}

// Columns is the header row of the journal sheet.
var Columns = []string{
	"Recorded at", "Event", "Type", "User", "Wallet", "Transaction",
	"Category ID", "Category", "Amount", "Balance", "Consistent",
}

// Ports for outbound adapters.
type (
	JournalWriter interface {
		// Append writes entries in order and returns a reference to the
		// written range.
		Append(ctx context.Context, entries []JournalEntry) (ref string, err error)
	}

	// JournalIndex answers whether an event was already exported, so a
	// redelivered event is not journaled twice.
	JournalIndex interface {
		HasEvent(ctx context.Context, eventID string) (bool, error)
	}

	Journal interface {
		JournalWriter
		JournalIndex
	}
)

// Row renders e in column order.
func (e JournalEntry) Row() []any {
	return []any{
		e.RecordedAt.UTC().Format(time.RFC3339),
		e.EventID,
		string(e.EventType),
		int64(e.UserID),
		e.WalletID,
		e.TransactionID,
		e.CategoryID,
		e.CategoryName,
		e.Amount.String(),
		e.Balance.String(),
		e.Consistent,
	}
}
