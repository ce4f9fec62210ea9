package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"moneywise/internal/core"
)

const budgetColumns = `id, user_id, category_id, amount::text, month, year, created_at, updated_at`

func scanBudget(row pgx.Row) (core.Budget, error) {
	var (
		b      core.Budget
		amount string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &amount, &b.Month, &b.Year, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.Amount, err = parseMoney(amount); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (t *tx) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	row := t.tx.QueryRow(ctx,
		`INSERT INTO budgets (user_id, category_id, amount, month, year)
		 VALUES ($1, $2, $3::numeric, $4, $5) RETURNING `+budgetColumns,
		b.UserID, b.CategoryID, b.Amount.String(), b.Month, b.Year)
	created, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, translate("create budget", "budget", err)
	}
	return created, nil
}

func (t *tx) GetBudget(ctx context.Context, user core.UserID, id int64) (core.Budget, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = $1 AND user_id = $2`, id, user)
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, translate("get budget", "budget", err)
	}
	return b, nil
}

func (t *tx) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	row := t.tx.QueryRow(ctx,
		`UPDATE budgets SET category_id = $1, amount = $2::numeric, month = $3, year = $4, updated_at = NOW()
		 WHERE id = $5 AND user_id = $6 RETURNING `+budgetColumns,
		b.CategoryID, b.Amount.String(), b.Month, b.Year, b.ID, b.UserID)
	updated, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, translate("update budget", "budget", err)
	}
	return updated, nil
}

func (t *tx) DeleteBudget(ctx context.Context, user core.UserID, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM budgets WHERE id = $1 AND user_id = $2`, id, user)
	if err != nil {
		return translate("delete budget", "budget", err)
	}
	return notFoundIfNone(tag, "delete budget", "budget")
}

func (t *tx) ListBudgets(ctx context.Context, user core.UserID, year, month int) ([]core.Budget, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+budgetColumns+` FROM budgets
		 WHERE user_id = $1 AND ($2::int = 0 OR year = $2) AND ($3::int = 0 OR month = $3)
		 ORDER BY year DESC, month DESC, category_id`, user, year, month)
	if err != nil {
		return nil, translate("list budgets", "budget", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (core.Budget, error) {
		return scanBudget(r)
	})
	if err != nil {
		return nil, core.Internal("list budgets", err)
	}
	return out, nil
}

func (t *tx) SpentByCategory(ctx context.Context, user core.UserID, year, month int) ([]core.CategoryAmount, error) {
	start := core.NewDate(year, month, 1).Time
	rows, err := t.tx.Query(ctx,
		`SELECT t.category_id, SUM(t.amount)::text
		 FROM transactions t JOIN categories c ON c.id = t.category_id
		 WHERE t.user_id = $1 AND c.type = 'expense' AND t.date >= $2 AND t.date < $3
		 GROUP BY t.category_id ORDER BY t.category_id`,
		user, start, start.AddDate(0, 1, 0))
	if err != nil {
		return nil, translate("spent by category", "transaction", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (core.CategoryAmount, error) {
		var (
			ca    core.CategoryAmount
			total string
		)
		if err := r.Scan(&ca.CategoryID, &total); err != nil {
			return ca, err
		}
		m, err := parseMoney(total)
		ca.Amount = m
		return ca, err
	})
	if err != nil {
		return nil, core.Internal("spent by category", err)
	}
	return out, nil
}
