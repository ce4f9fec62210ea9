package ledger

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"moneywise/internal/core"
	"moneywise/internal/log"
	"moneywise/internal/storage"
)

// Auditor checks wallets against the balance invariant:
//
//	balance = opening_balance + Σ signed transaction amounts
type Auditor struct {
	store       storage.Store
	concurrency int
}

// NewAuditor returns an Auditor that checks at most concurrency wallets at
// a time in AuditUser.
func NewAuditor(store storage.Store, concurrency int) *Auditor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Auditor{store: store, concurrency: concurrency}
}

func audit(ctx context.Context, tx storage.Tx, w core.Wallet) (core.WalletAudit, error) {
	totals, err := tx.WalletTotals(ctx, w.UserID, w.ID)
	if err != nil {
		return core.WalletAudit{}, err
	}
	expected := w.OpeningBalance.Add(totals.Net)
	return core.WalletAudit{
		WalletID:         w.ID,
		UserID:           w.UserID,
		Actual:           w.Balance,
		Expected:         expected,
		Drift:            w.Balance.Sub(expected),
		TransactionCount: totals.Count,
		Consistent:       w.Balance.Equal(expected),
	}, nil
}

// AuditWallet recomputes one wallet's expected balance and compares it with
// the stored one.
func (a *Auditor) AuditWallet(ctx context.Context, user core.UserID, walletID int64) (core.WalletAudit, error) {
	var result core.WalletAudit
	err := a.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		w, err := tx.GetWallet(ctx, user, walletID)
		if err != nil {
			return err
		}
		result, err = audit(ctx, tx, w)
		return err
	})
	if err != nil {
		return core.WalletAudit{}, core.Internal("audit wallet", err)
	}

	if !result.Consistent {
		slog.WarnContext(ctx, "Wallet balance drift detected",
			log.FieldComponent, log.ComponentAuditor,
			log.FieldUserID, int64(user),
			log.FieldWalletID, walletID,
			"expected", result.Expected.String(),
			"actual", result.Actual.String())
	}
	return result, nil
}

// AuditUser audits every wallet of the user, in wallet name order.
func (a *Auditor) AuditUser(ctx context.Context, user core.UserID) ([]core.WalletAudit, error) {
	var wallets []core.Wallet
	err := a.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		wallets, err = tx.ListWallets(ctx, user)
		return err
	})
	if err != nil {
		return nil, core.Internal("audit user", err)
	}

	results := make([]core.WalletAudit, len(wallets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, w := range wallets {
		i, w := i, w
		g.Go(func() error {
			r, err := a.AuditWallet(gctx, user, w.ID)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Recompute rewrites a drifted balance to the value implied by the wallet's
// transactions. It returns the audit taken before the repair.
func (a *Auditor) Recompute(ctx context.Context, user core.UserID, walletID int64) (core.WalletAudit, error) {
	var before core.WalletAudit
	err := a.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		w, err := tx.LockWallet(ctx, user, walletID)
		if err != nil {
			return err
		}
		if before, err = audit(ctx, tx, w); err != nil {
			return err
		}
		if before.Consistent {
			return nil
		}
		return tx.UpdateWalletBalance(ctx, user, walletID, before.Expected)
	})
	if err != nil {
		return core.WalletAudit{}, core.Internal("recompute wallet", err)
	}

	if !before.Consistent {
		slog.WarnContext(ctx, "Wallet balance recomputed",
			log.FieldComponent, log.ComponentAuditor,
			log.FieldOperation, log.OpRecompute,
			log.FieldUserID, int64(user),
			log.FieldWalletID, walletID,
			"drift", before.Drift.String(),
			log.FieldBalance, before.Expected.String())
	}
	return before, nil
}
