package sqlite

import (
	"context"
	"fmt"

	"moneywise/internal/core"
)

const walletColumns = `id, user_id, name, balance, opening_balance, created_at, updated_at`

func scanWallet(row rowScanner) (core.Wallet, error) {
	var (
		w                core.Wallet
		balance, opening string
		created, updated string
	)
	if err := row.Scan(&w.ID, &w.UserID, &w.Name, &balance, &opening, &created, &updated); err != nil {
		return core.Wallet{}, err
	}

	var err error
	if w.Balance, err = core.MoneyFromString(balance); err != nil {
		return core.Wallet{}, err
	}
	if w.OpeningBalance, err = core.MoneyFromString(opening); err != nil {
		return core.Wallet{}, err
	}
	if w.CreatedAt, err = parseTime(created); err != nil {
		return core.Wallet{}, fmt.Errorf("parse wallet created_at: %w", err)
	}
	if w.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Wallet{}, fmt.Errorf("parse wallet updated_at: %w", err)
	}
	return w, nil
}

func (t *tx) CreateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error) {
	now := formatTime(t.now())
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO wallets (user_id, name, balance, opening_balance, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		w.UserID, w.Name, w.Balance.String(), w.OpeningBalance.String(), now, now)
	if err != nil {
		return core.Wallet{}, translate("create wallet", "wallet", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Wallet{}, core.Internal("create wallet", err)
	}
	return t.GetWallet(ctx, w.UserID, id)
}

func (t *tx) GetWallet(ctx context.Context, user core.UserID, id int64) (core.Wallet, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = ? AND user_id = ?`, id, user)
	w, err := scanWallet(row)
	if err != nil {
		return core.Wallet{}, translate("get wallet", "wallet", err)
	}
	return w, nil
}

// LockWallet is a plain read: the IMMEDIATE transaction already holds the
// database write lock.
func (t *tx) LockWallet(ctx context.Context, user core.UserID, id int64) (core.Wallet, error) {
	return t.GetWallet(ctx, user, id)
}

func (t *tx) ListWallets(ctx context.Context, user core.UserID) ([]core.Wallet, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = ? ORDER BY name`, user)
	if err != nil {
		return nil, translate("list wallets", "wallet", err)
	}
	defer rows.Close()

	var out []core.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, core.Internal("list wallets", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Internal("list wallets", err)
	}
	return out, nil
}

func (t *tx) RenameWallet(ctx context.Context, user core.UserID, id int64, name string) (core.Wallet, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE wallets SET name = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		name, formatTime(t.now()), id, user)
	if err != nil {
		return core.Wallet{}, translate("rename wallet", "wallet", err)
	}
	if err := mustAffect(res, func() error { return core.NotFound("rename wallet", "wallet not found") }); err != nil {
		return core.Wallet{}, core.Internal("rename wallet", err)
	}
	return t.GetWallet(ctx, user, id)
}

func (t *tx) UpdateWalletBalance(ctx context.Context, user core.UserID, id int64, balance core.Money) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE wallets SET balance = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		balance.String(), formatTime(t.now()), id, user)
	if err != nil {
		return translate("update wallet balance", "wallet", err)
	}
	if err := mustAffect(res, func() error { return core.NotFound("update wallet balance", "wallet not found") }); err != nil {
		return core.Internal("update wallet balance", err)
	}
	return nil
}

func (t *tx) DeleteWallet(ctx context.Context, user core.UserID, id int64) error {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM wallets WHERE id = ? AND user_id = ?`, id, user)
	if err != nil {
		return translate("delete wallet", "wallet", err)
	}
	if err := mustAffect(res, func() error { return core.NotFound("delete wallet", "wallet not found") }); err != nil {
		return core.Internal("delete wallet", err)
	}
	return nil
}
