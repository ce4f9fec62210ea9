package sqlite

import (
	"context"
	"fmt"
	"strings"

	"moneywise/internal/core"
	"moneywise/internal/storage"
)

const transactionSelect = `SELECT t.id, t.user_id, t.wallet_id, t.category_id, c.type,
	t.amount, t.date, COALESCE(t.description, ''), t.created_at, t.updated_at
	FROM transactions t JOIN categories c ON c.id = t.category_id`

const dateLayout = "2006-01-02"

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tr                core.Transaction
		typ, amount, date string
		created, updated  string
	)
	if err := row.Scan(&tr.ID, &tr.UserID, &tr.WalletID, &tr.CategoryID, &typ,
		&amount, &date, &tr.Description, &created, &updated); err != nil {
		return core.Transaction{}, err
	}

	var err error
	tr.CategoryType = core.CategoryType(typ)
	if tr.Amount, err = core.MoneyFromString(amount); err != nil {
		return core.Transaction{}, err
	}
	if tr.Date, err = core.ParseDate(date); err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction date %q: %w", date, err)
	}
	if tr.CreatedAt, err = parseTime(created); err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction created_at: %w", err)
	}
	if tr.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction updated_at: %w", err)
	}
	return tr, nil
}

func (t *tx) InsertTransaction(ctx context.Context, tr core.Transaction) (core.Transaction, error) {
	now := formatTime(t.now())
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, wallet_id, category_id, amount, date, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.UserID, tr.WalletID, tr.CategoryID, tr.Amount.String(), tr.Date.Format(dateLayout),
		nullString(tr.Description), now, now)
	if err != nil {
		return core.Transaction{}, translate("insert transaction", "transaction", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, core.Internal("insert transaction", err)
	}
	return t.GetTransaction(ctx, tr.UserID, id)
}

func (t *tx) GetTransaction(ctx context.Context, user core.UserID, id int64) (core.Transaction, error) {
	row := t.tx.QueryRowContext(ctx, transactionSelect+` WHERE t.id = ? AND t.user_id = ?`, id, user)
	tr, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, translate("get transaction", "transaction", err)
	}
	return tr, nil
}

// LockTransaction is a plain read: the IMMEDIATE transaction already holds
// the database write lock.
func (t *tx) LockTransaction(ctx context.Context, user core.UserID, id int64) (core.Transaction, error) {
	return t.GetTransaction(ctx, user, id)
}

func (t *tx) UpdateTransaction(ctx context.Context, tr core.Transaction) (core.Transaction, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE transactions
		 SET wallet_id = ?, category_id = ?, amount = ?, date = ?, description = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		tr.WalletID, tr.CategoryID, tr.Amount.String(), tr.Date.Format(dateLayout),
		nullString(tr.Description), formatTime(t.now()), tr.ID, tr.UserID)
	if err != nil {
		return core.Transaction{}, translate("update transaction", "transaction", err)
	}
	if err := mustAffect(res, func() error { return core.NotFound("update transaction", "transaction not found") }); err != nil {
		return core.Transaction{}, core.Internal("update transaction", err)
	}
	return t.GetTransaction(ctx, tr.UserID, tr.ID)
}

func (t *tx) DeleteTransaction(ctx context.Context, user core.UserID, id int64) error {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, user)
	if err != nil {
		return translate("delete transaction", "transaction", err)
	}
	if err := mustAffect(res, func() error { return core.NotFound("delete transaction", "transaction not found") }); err != nil {
		return core.Internal("delete transaction", err)
	}
	return nil
}

func (t *tx) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	var (
		where = []string{"t.user_id = ?"}
		args  = []any{f.UserID}
	)
	if f.WalletID != 0 {
		where = append(where, "t.wallet_id = ?")
		args = append(args, f.WalletID)
	}

	query := transactionSelect + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY t.date DESC, t.id DESC`
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate("list transactions", "transaction", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, core.Internal("list transactions", err)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Internal("list transactions", err)
	}
	return out, nil
}

// WalletTotals sums in Go: SQLite would coerce the TEXT amounts to REAL.
func (t *tx) WalletTotals(ctx context.Context, user core.UserID, walletID int64) (storage.WalletTotals, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT t.amount, c.type FROM transactions t JOIN categories c ON c.id = t.category_id
		 WHERE t.user_id = ? AND t.wallet_id = ?`, user, walletID)
	if err != nil {
		return storage.WalletTotals{}, translate("wallet totals", "wallet", err)
	}
	defer rows.Close()

	totals := storage.WalletTotals{Net: core.Zero}
	for rows.Next() {
		var amount, typ string
		if err := rows.Scan(&amount, &typ); err != nil {
			return storage.WalletTotals{}, core.Internal("wallet totals", err)
		}
		m, err := core.MoneyFromString(amount)
		if err != nil {
			return storage.WalletTotals{}, core.Internal("wallet totals", err)
		}
		totals.Net = totals.Net.Add(core.Delta(m, core.CategoryType(typ)))
		totals.Count++
	}
	if err := rows.Err(); err != nil {
		return storage.WalletTotals{}, core.Internal("wallet totals", err)
	}
	return totals, nil
}

func monthRange(year, month int) (string, string) {
	start := core.NewDate(year, month, 1)
	end := core.Date{Time: start.AddDate(0, 1, 0)}
	return start.String(), end.String()
}
