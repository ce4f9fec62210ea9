package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"moneywise/internal/core"
)

const walletColumns = `id, user_id, name, balance::text, opening_balance::text, created_at, updated_at`

func scanWallet(row pgx.Row) (core.Wallet, error) {
	var (
		w                core.Wallet
		balance, opening string
	)
	if err := row.Scan(&w.ID, &w.UserID, &w.Name, &balance, &opening, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return core.Wallet{}, err
	}
	var err error
	if w.Balance, err = parseMoney(balance); err != nil {
		return core.Wallet{}, err
	}
	if w.OpeningBalance, err = parseMoney(opening); err != nil {
		return core.Wallet{}, err
	}
	return w, nil
}

func (t *tx) CreateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error) {
	row := t.tx.QueryRow(ctx,
		`INSERT INTO wallets (user_id, name, balance, opening_balance)
		 VALUES ($1, $2, $3::numeric, $4::numeric) RETURNING `+walletColumns,
		w.UserID, w.Name, w.Balance.String(), w.OpeningBalance.String())
	created, err := scanWallet(row)
	if err != nil {
		return core.Wallet{}, translate("create wallet", "wallet", err)
	}
	return created, nil
}

func (t *tx) GetWallet(ctx context.Context, user core.UserID, id int64) (core.Wallet, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1 AND user_id = $2`, id, user)
	w, err := scanWallet(row)
	if err != nil {
		return core.Wallet{}, translate("get wallet", "wallet", err)
	}
	return w, nil
}

func (t *tx) LockWallet(ctx context.Context, user core.UserID, id int64) (core.Wallet, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1 AND user_id = $2 FOR UPDATE`, id, user)
	w, err := scanWallet(row)
	if err != nil {
		return core.Wallet{}, translate("lock wallet", "wallet", err)
	}
	return w, nil
}

func (t *tx) ListWallets(ctx context.Context, user core.UserID) ([]core.Wallet, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 ORDER BY name`, user)
	if err != nil {
		return nil, translate("list wallets", "wallet", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (core.Wallet, error) {
		return scanWallet(r)
	})
	if err != nil {
		return nil, core.Internal("list wallets", err)
	}
	return out, nil
}

func (t *tx) RenameWallet(ctx context.Context, user core.UserID, id int64, name string) (core.Wallet, error) {
	row := t.tx.QueryRow(ctx,
		`UPDATE wallets SET name = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3 RETURNING `+walletColumns,
		name, id, user)
	w, err := scanWallet(row)
	if err != nil {
		return core.Wallet{}, translate("rename wallet", "wallet", err)
	}
	return w, nil
}

func (t *tx) UpdateWalletBalance(ctx context.Context, user core.UserID, id int64, balance core.Money) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE wallets SET balance = $1::numeric, updated_at = NOW() WHERE id = $2 AND user_id = $3`,
		balance.String(), id, user)
	if err != nil {
		return translate("update wallet balance", "wallet", err)
	}
	return notFoundIfNone(tag, "update wallet balance", "wallet")
}

func (t *tx) DeleteWallet(ctx context.Context, user core.UserID, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM wallets WHERE id = $1 AND user_id = $2`, id, user)
	if err != nil {
		return translate("delete wallet", "wallet", err)
	}
	return notFoundIfNone(tag, "delete wallet", "wallet")
}
