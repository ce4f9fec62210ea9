// Package worker consumes ledger events: it re-verifies the balance
// invariant of every wallet an event touched and exports a journal row per
// wallet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"moneywise/internal/core"
	"moneywise/internal/ledger"
	"moneywise/internal/log"
	"moneywise/internal/sheets"
	"moneywise/internal/storage"
)

// Options tunes the worker.
type Options struct {
	// AutoRepair rewrites drifted balances from the transaction history.
	AutoRepair bool
}

type JournalWorker struct {
	store   storage.Store
	auditor *ledger.Auditor
	journal sheets.Journal
	opts    Options
	now     func() time.Time
}

func NewJournalWorker(store storage.Store, auditor *ledger.Auditor, journal sheets.Journal, opts Options) *JournalWorker {
	return &JournalWorker{
		store:   store,
		auditor: auditor,
		journal: journal,
		opts:    opts,
		now:     time.Now,
	}
}

// HandleEvent processes one ledger event. Events already present in the
// journal are acknowledged without being exported again.
func (w *JournalWorker) HandleEvent(ctx context.Context, e core.LedgerEvent) error {
	logger := slog.With(
		log.FieldComponent, log.ComponentWorker,
		log.FieldEventID, e.ID,
		log.FieldEventType, string(e.Type),
		log.FieldUserID, int64(e.UserID))

	seen, err := w.journal.HasEvent(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("check journal: %w", err)
	}
	if seen {
		logger.InfoContext(ctx, "Event already journaled, skipping")
		return nil
	}

	var entries []sheets.JournalEntry
	if e.AffectsBalances() {
		entries, err = w.balanceEntries(ctx, e)
		if err != nil {
			return err
		}
	} else {
		entries = w.directoryEntries(e)
	}

	ref, err := w.journal.Append(ctx, entries)
	if err != nil {
		return fmt.Errorf("append to journal: %w", err)
	}

	logger.InfoContext(ctx, "Event journaled",
		log.FieldJournalRef, ref,
		"entries", len(entries))
	return nil
}

// balanceEntries audits each affected wallet and pairs it with the event's
// transactions that still exist.
func (w *JournalWorker) balanceEntries(ctx context.Context, e core.LedgerEvent) ([]sheets.JournalEntry, error) {
	txs, names, err := w.loadTransactions(ctx, e)
	if err != nil {
		return nil, err
	}

	var entries []sheets.JournalEntry
	for _, walletID := range e.WalletIDs {
		audit, err := w.verify(ctx, e.UserID, walletID)
		if errors.Is(err, core.ErrNotFound) {
			// Deleted after the event was published.
			continue
		}
		if err != nil {
			return nil, err
		}

		base := sheets.JournalEntry{
			RecordedAt: w.now(),
			EventID:    e.ID,
			EventType:  e.Type,
			UserID:     e.UserID,
			WalletID:   walletID,
			Amount:     core.Zero,
			Balance:    audit.Actual,
			Consistent: audit.Consistent,
		}

		matched := false
		for _, tr := range txs {
			if tr.WalletID != walletID {
				continue
			}
			entry := base
			entry.TransactionID = tr.ID
			entry.CategoryID = tr.CategoryID
			entry.CategoryName = names[tr.CategoryID]
			entry.Amount = tr.Delta()
			entries = append(entries, entry)
			matched = true
		}
		if !matched {
			entries = append(entries, base)
		}
	}
	return entries, nil
}

func (w *JournalWorker) loadTransactions(ctx context.Context, e core.LedgerEvent) ([]core.Transaction, map[int64]string, error) {
	var txs []core.Transaction
	names := map[int64]string{}
	err := w.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		for _, id := range e.TransactionIDs {
			tr, err := tx.GetTransaction(ctx, e.UserID, id)
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			txs = append(txs, tr)
			if _, ok := names[tr.CategoryID]; ok {
				continue
			}
			c, err := tx.GetCategory(ctx, e.UserID, tr.CategoryID)
			if err != nil {
				return err
			}
			names[c.ID] = c.Name
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load transactions: %w", err)
	}
	return txs, names, nil
}

// verify audits a wallet and, with AutoRepair, fixes drift.
func (w *JournalWorker) verify(ctx context.Context, user core.UserID, walletID int64) (core.WalletAudit, error) {
	audit, err := w.auditor.AuditWallet(ctx, user, walletID)
	if err != nil || audit.Consistent {
		return audit, err
	}

	slog.ErrorContext(ctx, "Balance invariant violated",
		log.FieldComponent, log.ComponentWorker,
		log.FieldOperation, log.OpAudit,
		log.FieldUserID, int64(user),
		log.FieldWalletID, walletID,
		"drift", audit.Drift.String())

	if !w.opts.AutoRepair {
		return audit, nil
	}
	if _, err := w.auditor.Recompute(ctx, user, walletID); err != nil {
		return core.WalletAudit{}, fmt.Errorf("recompute wallet %d: %w", walletID, err)
	}
	return w.auditor.AuditWallet(ctx, user, walletID)
}

func (w *JournalWorker) directoryEntries(e core.LedgerEvent) []sheets.JournalEntry {
	entry := sheets.JournalEntry{
		RecordedAt: w.now(),
		EventID:    e.ID,
		EventType:  e.Type,
		UserID:     e.UserID,
		Amount:     core.Zero,
		Balance:    core.Zero,
		Consistent: true,
	}
	if len(e.WalletIDs) == 0 {
		return []sheets.JournalEntry{entry}
	}
	entries := make([]sheets.JournalEntry, 0, len(e.WalletIDs))
	for _, id := range e.WalletIDs {
		entry.WalletID = id
		entries = append(entries, entry)
	}
	return entries
}
