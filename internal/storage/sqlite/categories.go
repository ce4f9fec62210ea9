package sqlite

import (
	"context"
	"fmt"

	"moneywise/internal/core"
)

const categoryColumns = `id, user_id, name, type, created_at`

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c       core.Category
		typ     string
		created string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &typ, &created); err != nil {
		return core.Category{}, err
	}
	c.Type = core.CategoryType(typ)
	t, err := parseTime(created)
	if err != nil {
		return core.Category{}, fmt.Errorf("parse category created_at: %w", err)
	}
	c.CreatedAt = t
	return c, nil
}

func (t *tx) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, type, created_at) VALUES (?, ?, ?, ?)`,
		c.UserID, c.Name, string(c.Type), formatTime(t.now()))
	if err != nil {
		return core.Category{}, translate("create category", "category", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, core.Internal("create category", err)
	}
	return t.GetCategory(ctx, c.UserID, id)
}

func (t *tx) GetCategory(ctx context.Context, user core.UserID, id int64) (core.Category, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND user_id = ?`, id, user)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, translate("get category", "category", err)
	}
	return c, nil
}

func (t *tx) EnsureCategory(ctx context.Context, user core.UserID, name string, typ core.CategoryType) (core.Category, error) {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, type, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, name, type) DO NOTHING`,
		user, name, string(typ), formatTime(t.now()))
	if err != nil {
		return core.Category{}, translate("ensure category", "category", err)
	}

	row := t.tx.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? AND name = ? AND type = ?`,
		user, name, string(typ))
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, translate("ensure category", "category", err)
	}
	return c, nil
}

func (t *tx) ListCategories(ctx context.Context, user core.UserID) ([]core.Category, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? ORDER BY type, name`, user)
	if err != nil {
		return nil, translate("list categories", "category", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, core.Internal("list categories", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Internal("list categories", err)
	}
	return out, nil
}

func (t *tx) RenameCategory(ctx context.Context, user core.UserID, id int64, name string) (core.Category, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE categories SET name = ? WHERE id = ? AND user_id = ?`, name, id, user)
	if err != nil {
		return core.Category{}, translate("rename category", "category", err)
	}
	if err := mustAffect(res, func() error { return core.NotFound("rename category", "category not found") }); err != nil {
		return core.Category{}, core.Internal("rename category", err)
	}
	return t.GetCategory(ctx, user, id)
}

func (t *tx) DeleteCategory(ctx context.Context, user core.UserID, id int64) error {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ? AND user_id = ?`, id, user)
	if err != nil {
		return translate("delete category", "category", err)
	}
	if err := mustAffect(res, func() error { return core.NotFound("delete category", "category not found") }); err != nil {
		return core.Internal("delete category", err)
	}
	return nil
}
