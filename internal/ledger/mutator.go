package ledger

import (
	"context"

	"moneywise/internal/core"
	"moneywise/internal/storage"
)

// Apply adds the signed effect of amount to w and persists the new balance.
// Only the balance column is written.
func Apply(ctx context.Context, tx storage.Tx, w core.Wallet, amount core.Money, typ core.CategoryType) (core.Wallet, error) {
	return persistBalance(ctx, tx, w, w.Balance.Add(core.Delta(amount, typ)))
}

// Revert is the exact inverse of Apply.
func Revert(ctx context.Context, tx storage.Tx, w core.Wallet, amount core.Money, typ core.CategoryType) (core.Wallet, error) {
	return persistBalance(ctx, tx, w, w.Balance.Sub(core.Delta(amount, typ)))
}

func persistBalance(ctx context.Context, tx storage.Tx, w core.Wallet, balance core.Money) (core.Wallet, error) {
	if err := tx.UpdateWalletBalance(ctx, w.UserID, w.ID, balance); err != nil {
		return core.Wallet{}, err
	}
	w.Balance = balance
	return w, nil
}
