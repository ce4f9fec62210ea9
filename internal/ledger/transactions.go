package ledger

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"moneywise/internal/core"
	"moneywise/internal/log"
	"moneywise/internal/storage"
)

// TransactionInput is the structured, untrusted input for a new transaction.
type TransactionInput struct {
	WalletID    int64
	CategoryID  int64
	Amount      core.Money
	Date        core.Date
	Description string
}

// TransactionPatch carries the fields an update changes. Nil leaves a field
// as it is; a non-nil empty Description clears it.
type TransactionPatch struct {
	WalletID    *int64
	CategoryID  *int64
	Amount      *core.Money
	Date        *core.Date
	Description *string
}

// TransactionResult is a mutated transaction together with the wallets whose
// balances changed, as persisted.
type TransactionResult struct {
	Transaction core.Transaction `json:"transaction"`
	Wallets     []core.Wallet    `json:"wallets"`
}

func logMutation(ctx context.Context, op string, tr core.Transaction, w core.Wallet) {
	fields := log.NewFields().
		WithComponent(log.ComponentLedger).
		WithOperation(op).
		WithLedger(int64(tr.UserID), w.ID, tr.ID, tr.Amount.String())
	fields[log.FieldCategoryType] = string(tr.CategoryType)
	fields[log.FieldBalance] = w.Balance.String()
	slog.InfoContext(ctx, "Wallet balance updated", fields.ToSlice()...)
}

// CreateTransaction records a transaction and applies its delta to the wallet.
func (s *Service) CreateTransaction(ctx context.Context, user core.UserID, in TransactionInput) (TransactionResult, error) {
	tr := core.Transaction{
		UserID:      user,
		WalletID:    in.WalletID,
		CategoryID:  in.CategoryID,
		Amount:      in.Amount,
		Date:        in.Date,
		Description: strings.TrimSpace(in.Description),
	}
	if err := tr.Validate(); err != nil {
		return TransactionResult{}, err
	}

	var res TransactionResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		wallet, err := tx.LockWallet(ctx, user, tr.WalletID)
		if err != nil {
			return err
		}
		category, err := tx.GetCategory(ctx, user, tr.CategoryID)
		if err != nil {
			return err
		}

		created, err := tx.InsertTransaction(ctx, tr)
		if err != nil {
			return err
		}
		wallet, err = Apply(ctx, tx, wallet, created.Amount, category.Type)
		if err != nil {
			return err
		}

		res = TransactionResult{Transaction: created, Wallets: []core.Wallet{wallet}}
		return nil
	})
	if err != nil {
		return TransactionResult{}, core.Internal("create transaction", err)
	}

	logMutation(ctx, log.OpCreate, res.Transaction, res.Wallets[0])
	s.emit(ctx, core.EventTransactionCreated, user,
		[]int64{res.Transaction.ID}, []int64{res.Transaction.WalletID})
	return res, nil
}

// UpdateTransaction reverts the stored delta from the current wallet, saves
// the changed fields, then applies the new delta to the resulting wallet.
func (s *Service) UpdateTransaction(ctx context.Context, user core.UserID, id int64, p TransactionPatch) (TransactionResult, error) {
	if p.Amount != nil {
		if err := p.Amount.ValidateAmount(); err != nil {
			return TransactionResult{}, err
		}
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return TransactionResult{}, err
		}
	}

	var (
		res       TransactionResult
		oldWallet int64
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		// The transaction row is locked before its wallets. A concurrent
		// update of the same row waits here and then sees the committed
		// amount, category and wallet it has to revert.
		existing, err := tx.LockTransaction(ctx, user, id)
		if err != nil {
			return err
		}
		oldWallet = existing.WalletID

		updated := existing
		if p.WalletID != nil {
			updated.WalletID = *p.WalletID
		}
		if p.CategoryID != nil {
			updated.CategoryID = *p.CategoryID
		}
		if p.Amount != nil {
			updated.Amount = *p.Amount
		}
		if p.Date != nil {
			updated.Date = *p.Date
		}
		if p.Description != nil {
			updated.Description = strings.TrimSpace(*p.Description)
		}
		if err := updated.Validate(); err != nil {
			return err
		}

		// Lock both wallets up front, lowest id first, so that two updates
		// moving transactions in opposite directions cannot deadlock.
		wallets, err := lockWallets(ctx, tx, user, existing.WalletID, updated.WalletID)
		if err != nil {
			return err
		}
		category, err := tx.GetCategory(ctx, user, updated.CategoryID)
		if err != nil {
			return err
		}

		reverted, err := Revert(ctx, tx, wallets[existing.WalletID], existing.Amount, existing.CategoryType)
		if err != nil {
			return err
		}

		saved, err := tx.UpdateTransaction(ctx, updated)
		if err != nil {
			return err
		}

		target := wallets[saved.WalletID]
		if saved.WalletID == existing.WalletID {
			// The revert above changed this row; re-read it so the new
			// delta is applied on top of the reverted balance.
			if target, err = tx.GetWallet(ctx, user, saved.WalletID); err != nil {
				return err
			}
		}
		applied, err := Apply(ctx, tx, target, saved.Amount, category.Type)
		if err != nil {
			return err
		}

		res = TransactionResult{Transaction: saved, Wallets: []core.Wallet{applied}}
		if saved.WalletID != existing.WalletID {
			res.Wallets = []core.Wallet{reverted, applied}
		}
		return nil
	})
	if err != nil {
		return TransactionResult{}, core.Internal("update transaction", err)
	}

	for _, w := range res.Wallets {
		logMutation(ctx, log.OpUpdate, res.Transaction, w)
	}
	s.emit(ctx, core.EventTransactionUpdated, user,
		[]int64{res.Transaction.ID}, uniqueIDs(oldWallet, res.Transaction.WalletID))
	return res, nil
}

// DeleteTransaction reverts the transaction's delta and removes the row.
func (s *Service) DeleteTransaction(ctx context.Context, user core.UserID, id int64) (core.Wallet, error) {
	var (
		wallet core.Wallet
		gone   core.Transaction
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		existing, err := tx.LockTransaction(ctx, user, id)
		if err != nil {
			return err
		}
		w, err := tx.LockWallet(ctx, user, existing.WalletID)
		if err != nil {
			return err
		}
		if wallet, err = Revert(ctx, tx, w, existing.Amount, existing.CategoryType); err != nil {
			return err
		}
		gone = existing
		return tx.DeleteTransaction(ctx, user, id)
	})
	if err != nil {
		return core.Wallet{}, core.Internal("delete transaction", err)
	}

	logMutation(ctx, log.OpDelete, gone, wallet)
	s.emit(ctx, core.EventTransactionDeleted, user, []int64{id}, []int64{wallet.ID})
	return wallet, nil
}

func (s *Service) GetTransaction(ctx context.Context, user core.UserID, id int64) (core.Transaction, error) {
	var tr core.Transaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		tr, err = tx.GetTransaction(ctx, user, id)
		return err
	})
	if err != nil {
		return core.Transaction{}, core.Internal("get transaction", err)
	}
	return tr, nil
}

// ListTransactions returns the user's transactions, newest first. A non-zero
// walletID restricts the list to that wallet, which must exist.
func (s *Service) ListTransactions(ctx context.Context, user core.UserID, walletID int64) ([]core.Transaction, error) {
	var out []core.Transaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if walletID != 0 {
			if _, err := tx.GetWallet(ctx, user, walletID); err != nil {
				return err
			}
		}
		var err error
		out, err = tx.ListTransactions(ctx, storage.TransactionFilter{UserID: user, WalletID: walletID})
		return err
	})
	if err != nil {
		return nil, core.Internal("list transactions", err)
	}
	return out, nil
}

// lockWallets locks the distinct ids in ascending order and returns them by id.
func lockWallets(ctx context.Context, tx storage.Tx, user core.UserID, ids ...int64) (map[int64]core.Wallet, error) {
	ordered := uniqueIDs(ids...)
	slices.Sort(ordered)

	out := make(map[int64]core.Wallet, len(ordered))
	for _, id := range ordered {
		w, err := tx.LockWallet(ctx, user, id)
		if err != nil {
			return nil, err
		}
		out[id] = w
	}
	return out, nil
}
