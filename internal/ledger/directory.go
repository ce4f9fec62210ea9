package ledger

import (
	"context"
	"log/slog"

	"moneywise/internal/core"
	"moneywise/internal/log"
	"moneywise/internal/storage"
)

// CategoryPatch changes a category. Type may be repeated but not changed:
// stored balances were computed with the original sign.
type CategoryPatch struct {
	Name *string
	Type *core.CategoryType
}

func (s *Service) CreateCategory(ctx context.Context, user core.UserID, name string, typ core.CategoryType) (core.Category, error) {
	c := core.Category{UserID: user, Name: core.NormalizeName(name), Type: typ}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	var created core.Category
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		created, err = tx.CreateCategory(ctx, c)
		return err
	})
	if err != nil {
		return core.Category{}, core.Internal("create category", err)
	}
	return created, nil
}

// EnsureSystemCategory returns the user's (name, type) category, creating it
// on first use. Concurrent first uses resolve to the same row.
func (s *Service) EnsureSystemCategory(ctx context.Context, user core.UserID, name string, typ core.CategoryType) (core.Category, error) {
	c := core.Category{UserID: user, Name: core.NormalizeName(name), Type: typ}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	var out core.Category
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = tx.EnsureCategory(ctx, user, c.Name, c.Type)
		return err
	})
	if err != nil {
		return core.Category{}, core.Internal("ensure category", err)
	}
	return out, nil
}

func (s *Service) GetCategory(ctx context.Context, user core.UserID, id int64) (core.Category, error) {
	var c core.Category
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		c, err = tx.GetCategory(ctx, user, id)
		return err
	})
	if err != nil {
		return core.Category{}, core.Internal("get category", err)
	}
	return c, nil
}

func (s *Service) ListCategories(ctx context.Context, user core.UserID) ([]core.Category, error) {
	var out []core.Category
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = tx.ListCategories(ctx, user)
		return err
	})
	if err != nil {
		return nil, core.Internal("list categories", err)
	}
	return out, nil
}

func (s *Service) UpdateCategory(ctx context.Context, user core.UserID, id int64, p CategoryPatch) (core.Category, error) {
	var out core.Category
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		current, err := tx.GetCategory(ctx, user, id)
		if err != nil {
			return err
		}
		if p.Type != nil && *p.Type != current.Type {
			return core.Validation("update category", "category type cannot be changed after creation")
		}
		if p.Name == nil {
			out = current
			return nil
		}

		next := current
		next.Name = core.NormalizeName(*p.Name)
		if err := next.Validate(); err != nil {
			return err
		}
		out, err = tx.RenameCategory(ctx, user, id, next.Name)
		return err
	})
	if err != nil {
		return core.Category{}, core.Internal("update category", err)
	}
	return out, nil
}

// DeleteCategory removes a category and its budgets. It fails with Conflict
// while transactions reference the category.
func (s *Service) DeleteCategory(ctx context.Context, user core.UserID, id int64) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.DeleteCategory(ctx, user, id)
	})
	if core.KindOf(err) == core.KindConflict {
		return core.Conflict("delete category", "category has transactions and cannot be deleted")
	}
	if err != nil {
		return core.Internal("delete category", err)
	}
	s.emit(ctx, core.EventCategoryDeleted, user, nil, nil)
	return nil
}

// CreateWallet opens a wallet whose balance starts at opening.
func (s *Service) CreateWallet(ctx context.Context, user core.UserID, name string, opening core.Money) (core.Wallet, error) {
	w := core.Wallet{
		UserID:         user,
		Name:           core.NormalizeName(name),
		Balance:        opening,
		OpeningBalance: opening,
	}
	if err := w.Validate(); err != nil {
		return core.Wallet{}, err
	}

	var created core.Wallet
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		created, err = tx.CreateWallet(ctx, w)
		return err
	})
	if err != nil {
		return core.Wallet{}, core.Internal("create wallet", err)
	}

	slog.InfoContext(ctx, "Wallet created",
		log.FieldComponent, log.ComponentLedger,
		log.FieldUserID, int64(user),
		log.FieldWalletID, created.ID,
		log.FieldBalance, created.Balance.String())
	return created, nil
}

func (s *Service) GetWallet(ctx context.Context, user core.UserID, id int64) (core.Wallet, error) {
	var w core.Wallet
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		w, err = tx.GetWallet(ctx, user, id)
		return err
	})
	if err != nil {
		return core.Wallet{}, core.Internal("get wallet", err)
	}
	return w, nil
}

func (s *Service) ListWallets(ctx context.Context, user core.UserID) ([]core.Wallet, error) {
	var out []core.Wallet
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = tx.ListWallets(ctx, user)
		return err
	})
	if err != nil {
		return nil, core.Internal("list wallets", err)
	}
	return out, nil
}

// RenameWallet changes the name only; balances are never set by clients.
func (s *Service) RenameWallet(ctx context.Context, user core.UserID, id int64, name string) (core.Wallet, error) {
	w := core.Wallet{Name: core.NormalizeName(name)}
	if err := w.Validate(); err != nil {
		return core.Wallet{}, err
	}

	var out core.Wallet
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = tx.RenameWallet(ctx, user, id, w.Name)
		return err
	})
	if err != nil {
		return core.Wallet{}, core.Internal("rename wallet", err)
	}
	return out, nil
}

// DeleteWallet removes a wallet together with its transactions.
func (s *Service) DeleteWallet(ctx context.Context, user core.UserID, id int64) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.DeleteWallet(ctx, user, id)
	})
	if err != nil {
		return core.Internal("delete wallet", err)
	}

	slog.InfoContext(ctx, "Wallet deleted",
		log.FieldComponent, log.ComponentLedger,
		log.FieldUserID, int64(user),
		log.FieldWalletID, id)
	s.emit(ctx, core.EventWalletDeleted, user, nil, []int64{id})
	return nil
}
