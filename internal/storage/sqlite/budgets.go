package sqlite

import (
	"context"
	"fmt"
	"strings"

	"moneywise/internal/core"
)

const budgetColumns = `id, user_id, category_id, amount, month, year, created_at, updated_at`

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b                core.Budget
		amount           string
		created, updated string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &amount, &b.Month, &b.Year, &created, &updated); err != nil {
		return core.Budget{}, err
	}

	var err error
	if b.Amount, err = core.MoneyFromString(amount); err != nil {
		return core.Budget{}, err
	}
	if b.CreatedAt, err = parseTime(created); err != nil {
		return core.Budget{}, fmt.Errorf("parse budget created_at: %w", err)
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Budget{}, fmt.Errorf("parse budget updated_at: %w", err)
	}
	return b, nil
}

func (t *tx) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	now := formatTime(t.now())
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category_id, amount, month, year, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.CategoryID, b.Amount.String(), b.Month, b.Year, now, now)
	if err != nil {
		return core.Budget{}, translate("create budget", "budget", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Budget{}, core.Internal("create budget", err)
	}
	return t.GetBudget(ctx, b.UserID, id)
}

func (t *tx) GetBudget(ctx context.Context, user core.UserID, id int64) (core.Budget, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = ? AND user_id = ?`, id, user)
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, translate("get budget", "budget", err)
	}
	return b, nil
}

func (t *tx) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE budgets SET category_id = ?, amount = ?, month = ?, year = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		b.CategoryID, b.Amount.String(), b.Month, b.Year, formatTime(t.now()), b.ID, b.UserID)
	if err != nil {
		return core.Budget{}, translate("update budget", "budget", err)
	}
	if err := mustAffect(res, func() error { return core.NotFound("update budget", "budget not found") }); err != nil {
		return core.Budget{}, core.Internal("update budget", err)
	}
	return t.GetBudget(ctx, b.UserID, b.ID)
}

func (t *tx) DeleteBudget(ctx context.Context, user core.UserID, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, user)
	if err != nil {
		return translate("delete budget", "budget", err)
	}
	if err := mustAffect(res, func() error { return core.NotFound("delete budget", "budget not found") }); err != nil {
		return core.Internal("delete budget", err)
	}
	return nil
}

func (t *tx) ListBudgets(ctx context.Context, user core.UserID, year, month int) ([]core.Budget, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{user}
	)
	if year != 0 {
		where = append(where, "year = ?")
		args = append(args, year)
	}
	if month != 0 {
		where = append(where, "month = ?")
		args = append(args, month)
	}

	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE `+strings.Join(where, " AND ")+
			` ORDER BY year DESC, month DESC, category_id`, args...)
	if err != nil {
		return nil, translate("list budgets", "budget", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, core.Internal("list budgets", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Internal("list budgets", err)
	}
	return out, nil
}

func (t *tx) SpentByCategory(ctx context.Context, user core.UserID, year, month int) ([]core.CategoryAmount, error) {
	from, to := monthRange(year, month)
	rows, err := t.tx.QueryContext(ctx,
		`SELECT t.category_id, t.amount FROM transactions t JOIN categories c ON c.id = t.category_id
		 WHERE t.user_id = ? AND c.type = 'expense' AND t.date >= ? AND t.date < ?
		 ORDER BY t.category_id`, user, from, to)
	if err != nil {
		return nil, translate("spent by category", "transaction", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var (
			categoryID int64
			amount     string
		)
		if err := rows.Scan(&categoryID, &amount); err != nil {
			return nil, core.Internal("spent by category", err)
		}
		m, err := core.MoneyFromString(amount)
		if err != nil {
			return nil, core.Internal("spent by category", err)
		}
		if n := len(out); n > 0 && out[n-1].CategoryID == categoryID {
			out[n-1].Amount = out[n-1].Amount.Add(m)
			continue
		}
		out = append(out, core.CategoryAmount{CategoryID: categoryID, Amount: m})
	}
	if err := rows.Err(); err != nil {
		return nil, core.Internal("spent by category", err)
	}
	return out, nil
}
