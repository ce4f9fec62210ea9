// Package storagetest holds behavior tests shared by every storage.Store
// implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneywise/internal/core"
	"moneywise/internal/storage"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) storage.Store

const (
	alice core.UserID = 1
	bob   core.UserID = 2
)

// Run executes the shared suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"CategoryCRUD", testCategoryCRUD},
		{"EnsureCategoryIsIdempotent", testEnsureCategory},
		{"WalletCRUD", testWalletCRUD},
		{"TransactionRoundTrip", testTransactionRoundTrip},
		{"LockTransaction", testLockTransaction},
		{"RollbackDiscardsWrites", testRollback},
		{"DeleteWalletCascades", testDeleteWalletCascades},
		{"DeleteCategoryInUse", testDeleteCategoryInUse},
		{"UserScoping", testUserScoping},
		{"Budgets", testBudgets},
		{"WalletTotals", testWalletTotals},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func in(t *testing.T, s storage.Store, fn func(ctx context.Context, tx storage.Tx) error) {
	t.Helper()
	require.NoError(t, s.WithinTx(context.Background(), fn))
}

func money(t *testing.T, v string) core.Money {
	t.Helper()
	m, err := core.MoneyFromString(v)
	require.NoError(t, err)
	return m
}

func testCategoryCRUD(t *testing.T, s storage.Store) {
	in(t, s, func(ctx context.Context, tx storage.Tx) error {
		food, err := tx.CreateCategory(ctx, core.Category{UserID: alice, Name: "Food", Type: core.Expense})
		require.NoError(t, err)
		assert.NotZero(t, food.ID)
		assert.False(t, food.CreatedAt.IsZero())

		_, err = tx.CreateCategory(ctx, core.Category{UserID: alice, Name: "Food", Type: core.Expense})
		assert.True(t, errors.Is(err, core.ErrConflict), "duplicate: %v", err)

		// Same name, other type is a different category.
		_, err = tx.CreateCategory(ctx, core.Category{UserID: alice, Name: "Food", Type: core.Income})
		require.NoError(t, err)

		renamed, err := tx.RenameCategory(ctx, alice, food.ID, "Groceries")
		require.NoError(t, err)
		assert.Equal(t, "Groceries", renamed.Name)
		assert.Equal(t, core.Expense, renamed.Type)

		list, err := tx.ListCategories(ctx, alice)
		require.NoError(t, err)
		assert.Len(t, list, 2)

		require.NoError(t, tx.DeleteCategory(ctx, alice, food.ID))
		_, err = tx.GetCategory(ctx, alice, food.ID)
		assert.True(t, errors.Is(err, core.ErrNotFound))

		err = tx.DeleteCategory(ctx, alice, food.ID)
		assert.True(t, errors.Is(err, core.ErrNotFound))
		return nil
	})
}

func testEnsureCategory(t *testing.T, s storage.Store) {
	var first, second core.Category
	in(t, s, func(ctx context.Context, tx storage.Tx) error {
		var err error
		first, err = tx.EnsureCategory(ctx, alice, core.TransferOutCategory, core.Expense)
		return err
	})
	in(t, s, func(ctx context.Context, tx storage.Tx) error {
		var err error
		second, err = tx.EnsureCategory(ctx, alice, core.TransferOutCategory, core.Expense)
		return err
	})
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, core.Expense, second.Type)

	in(t, s, func(ctx context.Context, tx storage.Tx) error {
		other, err := tx.EnsureCategory(ctx, bob, core.TransferOutCategory, core.Expense)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, other.ID)
		return nil
	})
}

func testWalletCRUD(t *testing.T, s storage.Store) {
	in(t, s, func(ctx context.Context, tx storage.Tx) error {
		w, err := tx.CreateWallet(ctx, core.Wallet{
			UserID: alice, Name: "Cash",
			Balance: money(t, "100.50"), OpeningBalance: money(t, "100.50"),
		})
		require.NoError(t, err)
		assert.Equal(t, "100.50", w.Balance.String())
		assert.Equal(t, "100.50", w.OpeningBalance.String())

		_, err = tx.CreateWallet(ctx, core.Wallet{UserID: alice, Name: "Cash"})
		assert.True(t, errors.Is(err, core.ErrConflict))

		require.NoError(t, tx.UpdateWalletBalance(ctx, alice, w.ID, money(t, "-20.25")))
		got, err := tx.LockWallet(ctx, alice, w.ID)
		require.NoError(t, err)
		assert.Equal(t, "-20.25", got.Balance.String())
		assert.Equal(t, "100.50", got.OpeningBalance.String(), "opening balance is not touched")

		renamed, err := tx.RenameWallet(ctx, alice, w.ID, "Pocket")
		require.NoError(t, err)
		assert.Equal(t, "Pocket", renamed.Name)
		assert.Equal(t, "-20.25", renamed.Balance.String())

		err = tx.UpdateWalletBalance(ctx, alice, 9999, core.Zero)
		assert.True(t, errors.Is(err, core.ErrNotFound))
		return nil
	})
}

func testTransactionRoundTrip(t *testing.T, s storage.Store) {
	in(t, s, func(ctx context.Context, tx storage.Tx) error {
		w, err := tx.CreateWallet(ctx, core.Wallet{UserID: alice, Name: "Bank"})
		require.NoError(t, err)
		salary, err := tx.CreateCategory(ctx, core.Category{UserID: alice, Name: "Salary", Type: core.Income})
		require.NoError(t, err)
		rent, err := tx.CreateCategory(ctx, core.Category{UserID: alice, Name: "Rent", Type: core.Expense})
		require.NoError(t, err)

		tr, err := tx.InsertTransaction(ctx, core.Transaction{
			UserID: alice, WalletID: w.ID, CategoryID: salary.ID,
			Amount: money(t, "1234.56"), Date: core.NewDate(2025, 3, 1), Description: "March",
		})
		require.NoError(t, err)
		assert.Equal(t, core.Income, tr.CategoryType)
		assert.Equal(t, "1234.56", tr.Amount.String())
		assert.Equal(t, "2025-03-01", tr.Date.String())
		assert.Equal(t, "March", tr.Description)

		tr.CategoryID = rent.ID
		tr.Amount = money(t, "0.01")
		tr.Description = ""
		updated, err := tx.UpdateTransaction(ctx, tr)
		require.NoError(t, err)
		assert.Equal(t, core.Expense, updated.CategoryType)
		assert.Equal(t, "0.01", updated.Amount.String())
		assert.Empty(t, updated.Description)

		_, err = tx.InsertTransaction(ctx, core.Transaction{
			UserID: alice, WalletID: w.ID, CategoryID: rent.ID,
			Amount: money(t, "5"), Date: core.NewDate(2025, 4, 1),
		})
		require.NoError(t, err)

		list, err := tx.ListTransactions(ctx, storage.TransactionFilter{UserID: alice, WalletID: w.ID})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "2025-04-01", list[0].Date.String(), "newest first")

		require.NoError(t, tx.DeleteTransaction(ctx, alice, tr.ID))
		_, err = tx.GetTransaction(ctx, alice, tr.ID)
		assert.True(t, errors.Is(err, core.ErrNotFound))
		return nil
	})
}

func testLockTransaction(t *testing.T, s storage.Store) {
	in(t, s, func(ctx context.Context, tx storage.Tx) error {
		w, err := tx.CreateWallet(ctx, core.Wallet{UserID: alice, Name: "Cash"})
		require.NoError(t, err)
		food, err := tx.CreateCategory(ctx, core.Category{UserID: alice, Name: "Food", Type: core.Expense})
		require.NoError(t, err)
		tr, err := tx.InsertTransaction(ctx, core.Transaction{
			UserID: alice, WalletID: w.ID, CategoryID: food.ID,
			Amount: money(t, "12.30"), Date: core.NewDate(2025, 3, 1),
		})
		require.NoError(t, err)

		locked, err := tx.LockTransaction(ctx, alice, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, tr.ID, locked.ID)
		assert.Equal(t, w.ID, locked.WalletID)
		assert.Equal(t, core.Expense, locked.CategoryType)
		assert.Equal(t, "12.30", locked.Amount.String())

		_, err = tx.LockTransaction(ctx, bob, tr.ID)
		assert.True(t, errors.Is(err, core.ErrNotFound), "other user: %v", err)
		_, err = tx.LockTransaction(ctx, alice, tr.ID+1000)
		assert.True(t, errors.Is(err, core.ErrNotFound), "missing: %v", err)
		return nil
	})
}

func testRollback(t *testing.T, s storage.Store) {
	boom := errors.New("boom")
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.CreateWallet(ctx, core.Wallet{UserID: alice, Name: "Ghost"})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	in(t, s, func(ctx context.Context, tx storage.Tx) error {
		wallets, err := tx.ListWallets(ctx, alice)
		require.NoError(t, err)
		assert.Empty(t, wallets)
		return nil
	})
}

func testDeleteWalletCascades(t *testing.T, s storage.Store) {
	in(t, s, func(ctx context.Context, tx storage.Tx) error {
		w, err := tx.CreateWallet(ctx, core.Wallet{UserID: alice, Name: "Old"})
		require.NoError(t, err)
		c, err := tx.CreateCategory(ctx, core.Category{UserID: alice, Name: "Misc", Type: core.Expense})
		require.NoError(t, err)
		tr, err := tx.InsertTransaction(ctx, core.Transaction{
			UserID: alice, WalletID: w.ID, CategoryID: c.ID, Amount: money(t, "1"), Date: core.NewDate(2025, 1, 1),
		})
		require.NoError(t, err)

		require.NoError(t, tx.DeleteWallet(ctx, alice, w.ID))
		_, err = tx.GetTransaction(ctx, alice, tr.ID)
		assert.True(t, errors.Is(err, core.ErrNotFound))

		// The category is free again once its transactions are gone.
		require.NoError(t, tx.DeleteCategory(ctx, alice, c.ID))
		return nil
	})
}

func testDeleteCategoryInUse(t *testing.T, s storage.Store) {
	var catID int64
	in(t, s, func(ctx context.Context, tx storage.Tx) error {
		w, err := tx.CreateWallet(ctx, core.Wallet{UserID: alice, Name: "W"})
		require.NoError(t, err)
		c, err := tx.CreateCategory(ctx, core.Category{UserID: alice, Name: "Fuel", Type: core.Expense})
		require.NoError(t, err)
		catID = c.ID
		_, err = tx.InsertTransaction(ctx, core.Transaction{
			UserID: alice, WalletID: w.ID, CategoryID: c.ID, Amount: money(t, "3"), Date: core.NewDate(2025, 1, 1),
		})
		return err
	})

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.DeleteCategory(ctx, alice, catID)
	})
	assert.True(t, errors.Is(err, core.ErrConflict), "got %v", err)
}

func testUserScoping(t *testing.T, s storage.Store) {
	in(t, s, func(ctx context.Context, tx storage.Tx) error {
		w, err := tx.CreateWallet(ctx, core.Wallet{UserID: alice, Name: "Mine"})
		require.NoError(t, err)

		_, err = tx.GetWallet(ctx, bob, w.ID)
		assert.True(t, errors.Is(err, core.ErrNotFound))
		err = tx.DeleteWallet(ctx, bob, w.ID)
		assert.True(t, errors.Is(err, core.ErrNotFound))

		// Bob may reuse the name.
		_, err = tx.CreateWallet(ctx, core.Wallet{UserID: bob, Name: "Mine"})
		require.NoError(t, err)

		list, err := tx.ListWallets(ctx, bob)
		require.NoError(t, err)
		assert.Len(t, list, 1)
		return nil
	})
}

func testBudgets(t *testing.T, s storage.Store) {
	in(t, s, func(ctx context.Context, tx storage.Tx) error {
		w, err := tx.CreateWallet(ctx, core.Wallet{UserID: alice, Name: "W"})
		require.NoError(t, err)
		food, err := tx.CreateCategory(ctx, core.Category{UserID: alice, Name: "Food", Type: core.Expense})
		require.NoError(t, err)
		pay, err := tx.CreateCategory(ctx, core.Category{UserID: alice, Name: "Pay", Type: core.Income})
		require.NoError(t, err)

		b, err := tx.CreateBudget(ctx, core.Budget{UserID: alice, CategoryID: food.ID, Amount: money(t, "300"), Month: 5, Year: 2025})
		require.NoError(t, err)
		assert.Equal(t, "300.00", b.Amount.String())

		_, err = tx.CreateBudget(ctx, core.Budget{UserID: alice, CategoryID: food.ID, Amount: money(t, "1"), Month: 5, Year: 2025})
		assert.True(t, errors.Is(err, core.ErrConflict))

		b.Amount = money(t, "350.5")
		b, err = tx.UpdateBudget(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, "350.50", b.Amount.String())

		add := func(cat int64, amount string, d core.Date) {
			_, err := tx.InsertTransaction(ctx, core.Transaction{UserID: alice, WalletID: w.ID, CategoryID: cat, Amount: money(t, amount), Date: d})
			require.NoError(t, err)
		}
		add(food.ID, "10.10", core.NewDate(2025, 5, 1))
		add(food.ID, "20.20", core.NewDate(2025, 5, 31))
		add(food.ID, "99", core.NewDate(2025, 6, 1))
		add(pay.ID, "1000", core.NewDate(2025, 5, 15))

		spent, err := tx.SpentByCategory(ctx, alice, 2025, 5)
		require.NoError(t, err)
		require.Len(t, spent, 1)
		assert.Equal(t, food.ID, spent[0].CategoryID)
		assert.Equal(t, "30.30", spent[0].Amount.String())

		list, err := tx.ListBudgets(ctx, alice, 2025, 5)
		require.NoError(t, err)
		assert.Len(t, list, 1)
		list, err = tx.ListBudgets(ctx, alice, 2025, 6)
		require.NoError(t, err)
		assert.Empty(t, list)

		require.NoError(t, tx.DeleteBudget(ctx, alice, b.ID))
		_, err = tx.GetBudget(ctx, alice, b.ID)
		assert.True(t, errors.Is(err, core.ErrNotFound))
		return nil
	})
}

func testWalletTotals(t *testing.T, s storage.Store) {
	in(t, s, func(ctx context.Context, tx storage.Tx) error {
		w, err := tx.CreateWallet(ctx, core.Wallet{UserID: alice, Name: "W"})
		require.NoError(t, err)
		totals, err := tx.WalletTotals(ctx, alice, w.ID)
		require.NoError(t, err)
		assert.True(t, totals.Net.IsZero())
		assert.Zero(t, totals.Count)

		income, err := tx.CreateCategory(ctx, core.Category{UserID: alice, Name: "In", Type: core.Income})
		require.NoError(t, err)
		expense, err := tx.CreateCategory(ctx, core.Category{UserID: alice, Name: "Out", Type: core.Expense})
		require.NoError(t, err)
		for _, tr := range []core.Transaction{
			{CategoryID: income.ID, Amount: money(t, "0.10")},
			{CategoryID: income.ID, Amount: money(t, "0.20")},
			{CategoryID: expense.ID, Amount: money(t, "0.05")},
		} {
			tr.UserID, tr.WalletID, tr.Date = alice, w.ID, core.NewDate(2025, 1, 1)
			_, err := tx.InsertTransaction(ctx, tr)
			require.NoError(t, err)
		}

		totals, err = tx.WalletTotals(ctx, alice, w.ID)
		require.NoError(t, err)
		assert.Equal(t, "0.25", totals.Net.String())
		assert.Equal(t, 3, totals.Count)
		return nil
	})
}
