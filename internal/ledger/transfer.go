package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"moneywise/internal/core"
	"moneywise/internal/log"
	"moneywise/internal/storage"
)

const defaultTransferDescription = "Transfer"

// TransferInput moves Amount from one wallet of the user to another.
type TransferInput struct {
	FromWalletID int64
	ToWalletID   int64
	Amount       core.Money
	Date         core.Date
	Description  string
}

// TransferResult holds the two linked transactions and both wallets after
// the move.
type TransferResult struct {
	Outgoing core.Transaction `json:"outgoing"`
	Incoming core.Transaction `json:"incoming"`
	From     core.Wallet      `json:"from_wallet"`
	To       core.Wallet      `json:"to_wallet"`
}

// Transfer records an expense on the source wallet and an income on the
// destination wallet, using the user's system transfer categories.
func (s *Service) Transfer(ctx context.Context, user core.UserID, in TransferInput) (TransferResult, error) {
	if in.FromWalletID == in.ToWalletID {
		return TransferResult{}, core.Validation("transfer", "source and destination must differ")
	}
	if err := in.Amount.ValidateAmount(); err != nil {
		return TransferResult{}, err
	}
	if err := in.Date.Validate(); err != nil {
		return TransferResult{}, err
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = defaultTransferDescription
	}

	var res TransferResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		wallets, err := lockWallets(ctx, tx, user, in.FromWalletID, in.ToWalletID)
		if err != nil {
			return err
		}
		from, to := wallets[in.FromWalletID], wallets[in.ToWalletID]

		if !s.cfg.AllowOverdraft && from.Balance.Sub(in.Amount).IsNegative() {
			return core.Validation("transfer", "insufficient funds in wallet %q: balance %s, amount %s",
				from.Name, from.Balance, in.Amount)
		}

		outCat, err := tx.EnsureCategory(ctx, user, core.TransferOutCategory, core.Expense)
		if err != nil {
			return err
		}
		inCat, err := tx.EnsureCategory(ctx, user, core.TransferInCategory, core.Income)
		if err != nil {
			return err
		}

		outgoing := core.Transaction{
			UserID:      user,
			WalletID:    from.ID,
			CategoryID:  outCat.ID,
			Amount:      in.Amount,
			Date:        in.Date,
			Description: fmt.Sprintf("%s (to %s)", description, to.Name),
		}
		incoming := core.Transaction{
			UserID:      user,
			WalletID:    to.ID,
			CategoryID:  inCat.ID,
			Amount:      in.Amount,
			Date:        in.Date,
			Description: fmt.Sprintf("%s (from %s)", description, from.Name),
		}
		for _, tr := range []core.Transaction{outgoing, incoming} {
			if err := tr.Validate(); err != nil {
				return err
			}
		}

		if res.From, err = Apply(ctx, tx, from, in.Amount, outCat.Type); err != nil {
			return err
		}
		if res.To, err = Apply(ctx, tx, to, in.Amount, inCat.Type); err != nil {
			return err
		}
		if res.Outgoing, err = tx.InsertTransaction(ctx, outgoing); err != nil {
			return err
		}
		if res.Incoming, err = tx.InsertTransaction(ctx, incoming); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return TransferResult{}, core.Internal("transfer", err)
	}

	slog.InfoContext(ctx, "Transfer completed",
		log.FieldComponent, log.ComponentLedger,
		log.FieldOperation, log.OpTransfer,
		log.FieldUserID, int64(user),
		"from_wallet_id", res.From.ID,
		"to_wallet_id", res.To.ID,
		log.FieldAmount, in.Amount.String())
	s.emit(ctx, core.EventTransferCompleted, user,
		[]int64{res.Outgoing.ID, res.Incoming.ID}, []int64{res.From.ID, res.To.ID})
	return res, nil
}
