// Package ledger keeps wallet balances consistent with the transactions
// recorded against them.
//
// Every mutation runs inside one storage unit of work: the transaction rows
// and the balance writes they imply commit together or not at all. Notifiers
// are told about a mutation only after it committed.
package ledger

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"moneywise/internal/core"
	"moneywise/internal/log"
	"moneywise/internal/storage"
)

// Config holds ledger policy.
type Config struct {
	// AllowOverdraft lets a transfer take a source wallet below zero.
	AllowOverdraft bool
}

// Notifier receives committed ledger events. Implementations must not block
// for long and cannot fail the mutation that produced the event.
type Notifier interface {
	Notify(ctx context.Context, e core.LedgerEvent)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e core.LedgerEvent)

func (f NotifierFunc) Notify(ctx context.Context, e core.LedgerEvent) { f(ctx, e) }

// Service is the transaction lifecycle manager, transfer orchestrator and
// directory of categories and wallets.
type Service struct {
	store     storage.Store
	cfg       Config
	notifiers []Notifier
	now       func() time.Time
}

func New(store storage.Store, cfg Config, notifiers ...Notifier) *Service {
	return &Service{
		store:     store,
		cfg:       cfg,
		notifiers: notifiers,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe adds n to the post-commit notifiers. It is not safe to call
// concurrently with mutations.
func (s *Service) Subscribe(n Notifier) {
	s.notifiers = append(s.notifiers, n)
}

func (s *Service) emit(ctx context.Context, typ core.EventType, user core.UserID, txIDs, walletIDs []int64) {
	if len(s.notifiers) == 0 {
		return
	}
	e := core.LedgerEvent{
		ID:             uuid.NewString(),
		Type:           typ,
		UserID:         user,
		TransactionIDs: txIDs,
		WalletIDs:      walletIDs,
		OccurredAt:     s.now(),
	}
	for _, n := range s.notifiers {
		n.Notify(ctx, e)
	}
	slog.DebugContext(ctx, "Ledger event emitted",
		log.FieldComponent, log.ComponentLedger,
		log.FieldEventID, e.ID,
		log.FieldEventType, string(e.Type))
}

func uniqueIDs(ids ...int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
