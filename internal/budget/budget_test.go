package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneywise/internal/cache"
	"moneywise/internal/core"
	"moneywise/internal/ledger"
	"moneywise/internal/storage"
	"moneywise/internal/storage/memory"
)

const (
	alice core.UserID = 1
	bob   core.UserID = 2
)

type fixture struct {
	ledger  *ledger.Service
	budgets *Service
	cache   *cache.LRUCache[core.MonthBudget]
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })
	c := cache.NewLRUCache[core.MonthBudget](16, time.Minute)
	budgets := New(st, c)
	return fixture{
		ledger:  ledger.New(st, ledger.Config{}, budgets),
		budgets: budgets,
		cache:   c,
	}
}

func money(t *testing.T, s string) core.Money {
	t.Helper()
	m, err := core.ParseAmount(s)
	require.NoError(t, err)
	return m
}

func (f fixture) spend(t *testing.T, user core.UserID, walletID, categoryID int64, amount string, date core.Date) core.Transaction {
	t.Helper()
	res, err := f.ledger.CreateTransaction(context.Background(), user, ledger.TransactionInput{
		WalletID:   walletID,
		CategoryID: categoryID,
		Amount:     money(t, amount),
		Date:       date,
	})
	require.NoError(t, err)
	return res.Transaction
}

func TestBudgetCRUD(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	food, err := f.ledger.CreateCategory(ctx, alice, "Food", core.Expense)
	require.NoError(t, err)
	salary, err := f.ledger.CreateCategory(ctx, alice, "Salary", core.Income)
	require.NoError(t, err)

	b, err := f.budgets.Create(ctx, alice, Input{CategoryID: food.ID, Amount: money(t, "300"), Month: 3, Year: 2025})
	require.NoError(t, err)
	assert.Equal(t, "300.00", b.Amount.String())

	_, err = f.budgets.Create(ctx, alice, Input{CategoryID: food.ID, Amount: money(t, "100"), Month: 3, Year: 2025})
	assert.True(t, errors.Is(err, core.ErrConflict), "duplicate budget: %v", err)

	_, err = f.budgets.Create(ctx, alice, Input{CategoryID: salary.ID, Amount: money(t, "100"), Month: 3, Year: 2025})
	assert.True(t, errors.Is(err, core.ErrValidation), "income category: %v", err)

	_, err = f.budgets.Create(ctx, bob, Input{CategoryID: food.ID, Amount: money(t, "100"), Month: 3, Year: 2025})
	assert.True(t, errors.Is(err, core.ErrNotFound), "foreign category: %v", err)

	_, err = f.budgets.Create(ctx, alice, Input{CategoryID: food.ID, Amount: money(t, "100"), Month: 13, Year: 2025})
	assert.True(t, errors.Is(err, core.ErrValidation))

	updated, err := f.budgets.Update(ctx, alice, b.ID, Input{CategoryID: food.ID, Amount: money(t, "450.50"), Month: 4, Year: 2025})
	require.NoError(t, err)
	assert.Equal(t, "450.50", updated.Amount.String())
	assert.Equal(t, 4, updated.Month)

	got, err := f.budgets.Get(ctx, alice, b.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Amount.String(), got.Amount.String())

	all, err := f.budgets.List(ctx, alice, 2025, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	march, err := f.budgets.List(ctx, alice, 2025, 3)
	require.NoError(t, err)
	assert.Empty(t, march)

	require.NoError(t, f.budgets.Delete(ctx, alice, b.ID))
	_, err = f.budgets.Get(ctx, alice, b.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.True(t, errors.Is(f.budgets.Delete(ctx, alice, b.ID), core.ErrNotFound))
}

func TestStatusTracksSpending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	w, err := f.ledger.CreateWallet(ctx, alice, "Checking", money(t, "1000"))
	require.NoError(t, err)
	food, err := f.ledger.CreateCategory(ctx, alice, "Food", core.Expense)
	require.NoError(t, err)
	rent, err := f.ledger.CreateCategory(ctx, alice, "Rent", core.Expense)
	require.NoError(t, err)

	_, err = f.budgets.Create(ctx, alice, Input{CategoryID: food.ID, Amount: money(t, "100"), Month: 5, Year: 2025})
	require.NoError(t, err)
	_, err = f.budgets.Create(ctx, alice, Input{CategoryID: rent.ID, Amount: money(t, "500"), Month: 5, Year: 2025})
	require.NoError(t, err)

	f.spend(t, alice, w.ID, food.ID, "60", core.NewDate(2025, 5, 2))
	f.spend(t, alice, w.ID, food.ID, "55.25", core.NewDate(2025, 5, 31))
	f.spend(t, alice, w.ID, food.ID, "999", core.NewDate(2025, 6, 1))

	status, err := f.budgets.Status(ctx, alice, 2025, 5)
	require.NoError(t, err)
	require.Len(t, status.Statuses, 2)
	assert.Equal(t, "600.00", status.Limit.String())
	assert.Equal(t, "115.25", status.Spent.String())

	byName := map[string]core.BudgetStatus{}
	for _, s := range status.Statuses {
		byName[s.CategoryName] = s
	}
	assert.Equal(t, "115.25", byName["Food"].Spent.String())
	assert.Equal(t, "-15.25", byName["Food"].Remaining.String())
	assert.True(t, byName["Food"].Exceeded)
	assert.Equal(t, "0.00", byName["Rent"].Spent.String())
	assert.False(t, byName["Rent"].Exceeded)
}

func TestStatusCacheIsInvalidatedByLedgerEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	w, err := f.ledger.CreateWallet(ctx, alice, "Checking", money(t, "1000"))
	require.NoError(t, err)
	food, err := f.ledger.CreateCategory(ctx, alice, "Food", core.Expense)
	require.NoError(t, err)
	_, err = f.budgets.Create(ctx, alice, Input{CategoryID: food.ID, Amount: money(t, "100"), Month: 1, Year: 2026})
	require.NoError(t, err)

	first, err := f.budgets.Status(ctx, alice, 2026, 1)
	require.NoError(t, err)
	assert.Equal(t, "0.00", first.Spent.String())
	assert.Equal(t, 1, f.cache.Size())

	tr := f.spend(t, alice, w.ID, food.ID, "40", core.NewDate(2026, 1, 10))
	assert.Equal(t, 0, f.cache.Size())

	second, err := f.budgets.Status(ctx, alice, 2026, 1)
	require.NoError(t, err)
	assert.Equal(t, "40.00", second.Spent.String())

	_, err = f.ledger.DeleteTransaction(ctx, alice, tr.ID)
	require.NoError(t, err)
	third, err := f.budgets.Status(ctx, alice, 2026, 1)
	require.NoError(t, err)
	assert.Equal(t, "0.00", third.Spent.String())
}

// afterReadStore runs afterRead once, when the first unit of work has
// finished reading and before its caller continues.
type afterReadStore struct {
	storage.Store
	afterRead func()
}

func (s *afterReadStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	err := s.Store.WithinTx(ctx, fn)
	if hook := s.afterRead; hook != nil {
		s.afterRead = nil
		hook()
	}
	return err
}

func TestStatusReadRacingALedgerCommitIsNotCached(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })
	c := cache.NewLRUCache[core.MonthBudget](16, time.Minute)
	racing := &afterReadStore{Store: st}
	budgets := New(racing, c)
	f := fixture{ledger: ledger.New(st, ledger.Config{}, budgets), budgets: budgets, cache: c}

	w, err := f.ledger.CreateWallet(ctx, alice, "Checking", money(t, "1000"))
	require.NoError(t, err)
	food, err := f.ledger.CreateCategory(ctx, alice, "Food", core.Expense)
	require.NoError(t, err)
	_, err = f.budgets.Create(ctx, alice, Input{CategoryID: food.ID, Amount: money(t, "100"), Month: 1, Year: 2026})
	require.NoError(t, err)

	// The expense commits, and invalidates, after Status has read but
	// before it stores the result.
	racing.afterRead = func() {
		f.spend(t, alice, w.ID, food.ID, "40", core.NewDate(2026, 1, 10))
	}
	stale, err := f.budgets.Status(ctx, alice, 2026, 1)
	require.NoError(t, err)
	assert.Equal(t, "0.00", stale.Spent.String())
	assert.Equal(t, 0, f.cache.Size(), "a status read before the commit must not be cached")

	fresh, err := f.budgets.Status(ctx, alice, 2026, 1)
	require.NoError(t, err)
	assert.Equal(t, "40.00", fresh.Spent.String())
	assert.Equal(t, 1, f.cache.Size())
}

func TestInvalidateOnlyTouchesOneUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.budgets.Status(ctx, alice, 2026, 2)
	require.NoError(t, err)
	_, err = f.budgets.Status(ctx, bob, 2026, 2)
	require.NoError(t, err)
	require.Equal(t, 2, f.cache.Size())

	f.budgets.Invalidate(ctx, alice)
	assert.Equal(t, 1, f.cache.Size())
	_, ok := f.cache.Get(cacheKey(bob, 2026, 2))
	assert.True(t, ok)
}

func TestStatusRejectsBadPeriod(t *testing.T) {
	f := newFixture(t)
	_, err := f.budgets.Status(context.Background(), alice, 2025, 0)
	assert.True(t, errors.Is(err, core.ErrValidation))
	_, err = f.budgets.Status(context.Background(), alice, 1999, 5)
	assert.True(t, errors.Is(err, core.ErrValidation))
}

func TestDeletingCategoryDropsItsBudgets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	food, err := f.ledger.CreateCategory(ctx, alice, "Food", core.Expense)
	require.NoError(t, err)
	b, err := f.budgets.Create(ctx, alice, Input{CategoryID: food.ID, Amount: money(t, "100"), Month: 1, Year: 2026})
	require.NoError(t, err)

	require.NoError(t, f.ledger.DeleteCategory(ctx, alice, food.ID))
	_, err = f.budgets.Get(ctx, alice, b.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}
