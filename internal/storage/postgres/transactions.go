package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"moneywise/internal/core"
	"moneywise/internal/storage"
)

const transactionSelect = `SELECT t.id, t.user_id, t.wallet_id, t.category_id, c.type,
	t.amount::text, t.date, COALESCE(t.description, ''), t.created_at, t.updated_at
	FROM transactions t JOIN categories c ON c.id = t.category_id`

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tr          core.Transaction
		typ, amount string
		date        time.Time
	)
	if err := row.Scan(&tr.ID, &tr.UserID, &tr.WalletID, &tr.CategoryID, &typ,
		&amount, &date, &tr.Description, &tr.CreatedAt, &tr.UpdatedAt); err != nil {
		return core.Transaction{}, err
	}
	var err error
	if tr.Amount, err = parseMoney(amount); err != nil {
		return core.Transaction{}, err
	}
	tr.CategoryType = core.CategoryType(typ)
	tr.Date = core.DateOf(date)
	return tr, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (t *tx) InsertTransaction(ctx context.Context, tr core.Transaction) (core.Transaction, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO transactions (user_id, wallet_id, category_id, amount, date, description)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6) RETURNING id`,
		tr.UserID, tr.WalletID, tr.CategoryID, tr.Amount.String(), tr.Date.Time, nullable(tr.Description),
	).Scan(&id)
	if err != nil {
		return core.Transaction{}, translate("insert transaction", "transaction", err)
	}
	return t.GetTransaction(ctx, tr.UserID, id)
}

func (t *tx) GetTransaction(ctx context.Context, user core.UserID, id int64) (core.Transaction, error) {
	row := t.tx.QueryRow(ctx, transactionSelect+` WHERE t.id = $1 AND t.user_id = $2`, id, user)
	tr, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, translate("get transaction", "transaction", err)
	}
	return tr, nil
}

func (t *tx) LockTransaction(ctx context.Context, user core.UserID, id int64) (core.Transaction, error) {
	row := t.tx.QueryRow(ctx, transactionSelect+` WHERE t.id = $1 AND t.user_id = $2 FOR UPDATE OF t`, id, user)
	tr, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, translate("lock transaction", "transaction", err)
	}
	return tr, nil
}

func (t *tx) UpdateTransaction(ctx context.Context, tr core.Transaction) (core.Transaction, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE transactions
		 SET wallet_id = $1, category_id = $2, amount = $3::numeric, date = $4, description = $5, updated_at = NOW()
		 WHERE id = $6 AND user_id = $7`,
		tr.WalletID, tr.CategoryID, tr.Amount.String(), tr.Date.Time, nullable(tr.Description), tr.ID, tr.UserID)
	if err != nil {
		return core.Transaction{}, translate("update transaction", "transaction", err)
	}
	if err := notFoundIfNone(tag, "update transaction", "transaction"); err != nil {
		return core.Transaction{}, err
	}
	return t.GetTransaction(ctx, tr.UserID, tr.ID)
}

func (t *tx) DeleteTransaction(ctx context.Context, user core.UserID, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, user)
	if err != nil {
		return translate("delete transaction", "transaction", err)
	}
	return notFoundIfNone(tag, "delete transaction", "transaction")
}

func (t *tx) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	rows, err := t.tx.Query(ctx,
		transactionSelect+` WHERE t.user_id = $1 AND ($2::bigint = 0 OR t.wallet_id = $2)
		 ORDER BY t.date DESC, t.id DESC`, f.UserID, f.WalletID)
	if err != nil {
		return nil, translate("list transactions", "transaction", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (core.Transaction, error) {
		return scanTransaction(r)
	})
	if err != nil {
		return nil, core.Internal("list transactions", err)
	}
	return out, nil
}

func (t *tx) WalletTotals(ctx context.Context, user core.UserID, walletID int64) (storage.WalletTotals, error) {
	var (
		net   string
		count int
	)
	err := t.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(CASE WHEN c.type = 'income' THEN t.amount ELSE -t.amount END), 0)::text, COUNT(*)
		 FROM transactions t JOIN categories c ON c.id = t.category_id
		 WHERE t.user_id = $1 AND t.wallet_id = $2`, user, walletID).Scan(&net, &count)
	if err != nil {
		return storage.WalletTotals{}, translate("wallet totals", "wallet", err)
	}
	m, err := parseMoney(net)
	if err != nil {
		return storage.WalletTotals{}, core.Internal("wallet totals", err)
	}
	return storage.WalletTotals{Net: m, Count: count}, nil
}
