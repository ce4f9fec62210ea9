package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"moneywise/internal/core"
)

const categoryColumns = `id, user_id, name, type, created_at`

func scanCategory(row pgx.Row) (core.Category, error) {
	var (
		c   core.Category
		typ string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &typ, &c.CreatedAt); err != nil {
		return core.Category{}, err
	}
	c.Type = core.CategoryType(typ)
	return c, nil
}

func (t *tx) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	row := t.tx.QueryRow(ctx,
		`INSERT INTO categories (user_id, name, type) VALUES ($1, $2, $3) RETURNING `+categoryColumns,
		c.UserID, c.Name, string(c.Type))
	created, err := scanCategory(row)
	if err != nil {
		return core.Category{}, translate("create category", "category", err)
	}
	return created, nil
}

func (t *tx) GetCategory(ctx context.Context, user core.UserID, id int64) (core.Category, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1 AND user_id = $2`, id, user)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, translate("get category", "category", err)
	}
	return c, nil
}

func (t *tx) EnsureCategory(ctx context.Context, user core.UserID, name string, typ core.CategoryType) (core.Category, error) {
	if _, err := t.tx.Exec(ctx,
		`INSERT INTO categories (user_id, name, type) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, name, type) DO NOTHING`,
		user, name, string(typ)); err != nil {
		return core.Category{}, translate("ensure category", "category", err)
	}

	row := t.tx.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = $1 AND name = $2 AND type = $3`,
		user, name, string(typ))
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, translate("ensure category", "category", err)
	}
	return c, nil
}

func (t *tx) ListCategories(ctx context.Context, user core.UserID) ([]core.Category, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = $1 ORDER BY type, name`, user)
	if err != nil {
		return nil, translate("list categories", "category", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (core.Category, error) {
		return scanCategory(r)
	})
	if err != nil {
		return nil, core.Internal("list categories", err)
	}
	return out, nil
}

func (t *tx) RenameCategory(ctx context.Context, user core.UserID, id int64, name string) (core.Category, error) {
	row := t.tx.QueryRow(ctx,
		`UPDATE categories SET name = $1 WHERE id = $2 AND user_id = $3 RETURNING `+categoryColumns,
		name, id, user)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, translate("rename category", "category", err)
	}
	return c, nil
}

func (t *tx) DeleteCategory(ctx context.Context, user core.UserID, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM categories WHERE id = $1 AND user_id = $2`, id, user)
	if err != nil {
		return translate("delete category", "category", err)
	}
	return notFoundIfNone(tag, "delete category", "category")
}
