package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneywise/internal/core"
	"moneywise/internal/storage"
	"moneywise/internal/storage/memory"
	"moneywise/internal/storage/sqlite"
)

const (
	alice core.UserID = 1
	bob   core.UserID = 2
)

type recorder struct {
	mu     sync.Mutex
	events []core.LedgerEvent
}

func (r *recorder) Notify(_ context.Context, e core.LedgerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []core.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	store  storage.Store
	svc    *Service
	audit  *Auditor
	events *recorder
}

func stores() map[string]func(t *testing.T) storage.Store {
	return map[string]func(t *testing.T) storage.Store{
		"memory": func(t *testing.T) storage.Store { return memory.New() },
		"sqlite": func(t *testing.T) storage.Store {
			s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
			require.NoError(t, err)
			return s
		},
	}
}

// each runs fn once per store implementation.
func each(t *testing.T, cfg Config, fn func(t *testing.T, f fixture)) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			st := open(t)
			t.Cleanup(func() { _ = st.Close() })
			rec := &recorder{}
			fn(t, fixture{
				store:  st,
				svc:    New(st, cfg, rec),
				audit:  NewAuditor(st, 4),
				events: rec,
			})
		})
	}
}

func amount(t *testing.T, s string) core.Money {
	t.Helper()
	m, err := core.ParseAmount(s)
	require.NoError(t, err)
	return m
}

func (f fixture) wallet(t *testing.T, user core.UserID, name, opening string) core.Wallet {
	t.Helper()
	m, err := core.MoneyFromString(opening)
	require.NoError(t, err)
	w, err := f.svc.CreateWallet(context.Background(), user, name, m)
	require.NoError(t, err)
	return w
}

func (f fixture) category(t *testing.T, user core.UserID, name string, typ core.CategoryType) core.Category {
	t.Helper()
	c, err := f.svc.CreateCategory(context.Background(), user, name, typ)
	require.NoError(t, err)
	return c
}

func (f fixture) balance(t *testing.T, user core.UserID, id int64) string {
	t.Helper()
	w, err := f.svc.GetWallet(context.Background(), user, id)
	require.NoError(t, err)
	return w.Balance.String()
}

func (f fixture) assertConsistent(t *testing.T, user core.UserID) {
	t.Helper()
	audits, err := f.audit.AuditUser(context.Background(), user)
	require.NoError(t, err)
	for _, a := range audits {
		assert.True(t, a.Consistent, "wallet %d drifted: actual %s expected %s", a.WalletID, a.Actual, a.Expected)
	}
}

func TestApplyRevertRoundTrip(t *testing.T) {
	each(t, Config{}, func(t *testing.T, f fixture) {
		w := f.wallet(t, alice, "Cash", "100.10")
		ctx := context.Background()

		cases := []struct {
			amount string
			typ    core.CategoryType
		}{
			{"0.01", core.Expense},
			{"0.01", core.Income},
			{"99999.99", core.Expense},
			{"1234.5", core.Income},
		}
		for _, tc := range cases {
			err := f.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
				current, err := tx.GetWallet(ctx, alice, w.ID)
				require.NoError(t, err)
				applied, err := Apply(ctx, tx, current, amount(t, tc.amount), tc.typ)
				require.NoError(t, err)
				reverted, err := Revert(ctx, tx, applied, amount(t, tc.amount), tc.typ)
				require.NoError(t, err)
				assert.Equal(t, current.Balance.String(), reverted.Balance.String())
				return nil
			})
			require.NoError(t, err)
		}
		assert.Equal(t, "100.10", f.balance(t, alice, w.ID))
	})
}

func TestCreateUpdateDeleteScenario(t *testing.T) {
	each(t, Config{}, func(t *testing.T, f fixture) {
		ctx := context.Background()
		cash := f.wallet(t, alice, "Cash", "100000")
		food := f.category(t, alice, "Food", core.Expense)

		res, err := f.svc.CreateTransaction(ctx, alice, TransactionInput{
			WalletID: cash.ID, CategoryID: food.ID, Amount: amount(t, "30000"), Date: core.NewDate(2025, 1, 10),
		})
		require.NoError(t, err)
		assert.Equal(t, "70000.00", res.Wallets[0].Balance.String())
		assert.Equal(t, "70000.00", f.balance(t, alice, cash.ID))

		newAmount := amount(t, "50000")
		res, err = f.svc.UpdateTransaction(ctx, alice, res.Transaction.ID, TransactionPatch{Amount: &newAmount})
		require.NoError(t, err)
		assert.Equal(t, "50000.00", f.balance(t, alice, cash.ID))
		require.Len(t, res.Wallets, 1)
		assert.Equal(t, "50000.00", res.Wallets[0].Balance.String())

		w, err := f.svc.DeleteTransaction(ctx, alice, res.Transaction.ID)
		require.NoError(t, err)
		assert.Equal(t, "100000.00", w.Balance.String())
		assert.Equal(t, "100000.00", f.balance(t, alice, cash.ID))

		assert.Equal(t, []core.EventType{
			core.EventTransactionCreated, core.EventTransactionUpdated, core.EventTransactionDeleted,
		}, f.events.types())
		f.assertConsistent(t, alice)
	})
}

func TestUpdateWithoutBalanceChangeIsNoOp(t *testing.T) {
	each(t, Config{}, func(t *testing.T, f fixture) {
		ctx := context.Background()
		cash := f.wallet(t, alice, "Cash", "500")
		salary := f.category(t, alice, "Salary", core.Income)

		res, err := f.svc.CreateTransaction(ctx, alice, TransactionInput{
			WalletID: cash.ID, CategoryID: salary.ID, Amount: amount(t, "120.35"), Date: core.NewDate(2025, 2, 1),
		})
		require.NoError(t, err)
		before := f.balance(t, alice, cash.ID)

		desc := "bonus"
		date := core.NewDate(2025, 2, 2)
		sameWallet := cash.ID
		res, err = f.svc.UpdateTransaction(ctx, alice, res.Transaction.ID, TransactionPatch{
			Description: &desc, Date: &date, WalletID: &sameWallet,
		})
		require.NoError(t, err)
		assert.Equal(t, "bonus", res.Transaction.Description)
		assert.Equal(t, before, f.balance(t, alice, cash.ID))

		// An empty patch is also a no-op.
		_, err = f.svc.UpdateTransaction(ctx, alice, res.Transaction.ID, TransactionPatch{})
		require.NoError(t, err)
		assert.Equal(t, before, f.balance(t, alice, cash.ID))

		empty := ""
		res, err = f.svc.UpdateTransaction(ctx, alice, res.Transaction.ID, TransactionPatch{Description: &empty})
		require.NoError(t, err)
		assert.Empty(t, res.Transaction.Description)
		f.assertConsistent(t, alice)
	})
}

func TestUpdateMovesTransactionBetweenWallets(t *testing.T) {
	each(t, Config{}, func(t *testing.T, f fixture) {
		ctx := context.Background()
		x := f.wallet(t, alice, "X", "1000")
		y := f.wallet(t, alice, "Y", "1000")
		rent := f.category(t, alice, "Rent", core.Expense)

		res, err := f.svc.CreateTransaction(ctx, alice, TransactionInput{
			WalletID: x.ID, CategoryID: rent.ID, Amount: amount(t, "250"), Date: core.NewDate(2025, 3, 1),
		})
		require.NoError(t, err)
		assert.Equal(t, "750.00", f.balance(t, alice, x.ID))

		res, err = f.svc.UpdateTransaction(ctx, alice, res.Transaction.ID, TransactionPatch{WalletID: &y.ID})
		require.NoError(t, err)
		assert.Equal(t, "1000.00", f.balance(t, alice, x.ID), "X regains A")
		assert.Equal(t, "750.00", f.balance(t, alice, y.ID), "Y loses A")
		require.Len(t, res.Wallets, 2)
		assert.Equal(t, y.ID, res.Transaction.WalletID)

		last := f.events.events[len(f.events.events)-1]
		assert.ElementsMatch(t, []int64{x.ID, y.ID}, last.WalletIDs)
		f.assertConsistent(t, alice)
	})
}

func TestUpdateChangesCategoryType(t *testing.T) {
	each(t, Config{}, func(t *testing.T, f fixture) {
		ctx := context.Background()
		w := f.wallet(t, alice, "W", "0")
		expense := f.category(t, alice, "Refundable", core.Expense)
		income := f.category(t, alice, "Refund", core.Income)

		res, err := f.svc.CreateTransaction(ctx, alice, TransactionInput{
			WalletID: w.ID, CategoryID: expense.ID, Amount: amount(t, "40"), Date: core.NewDate(2025, 3, 1),
		})
		require.NoError(t, err)
		assert.Equal(t, "-40.00", f.balance(t, alice, w.ID))

		newAmount := amount(t, "15.5")
		res, err = f.svc.UpdateTransaction(ctx, alice, res.Transaction.ID, TransactionPatch{
			CategoryID: &income.ID, Amount: &newAmount,
		})
		require.NoError(t, err)
		assert.Equal(t, core.Income, res.Transaction.CategoryType)
		assert.Equal(t, "15.50", f.balance(t, alice, w.ID))
		f.assertConsistent(t, alice)
	})
}

func TestTransferScenario(t *testing.T) {
	each(t, Config{}, func(t *testing.T, f fixture) {
		ctx := context.Background()
		cash := f.wallet(t, alice, "Cash", "100000")
		bank := f.wallet(t, alice, "Bank", "0")

		res, err := f.svc.Transfer(ctx, alice, TransferInput{
			FromWalletID: cash.ID, ToWalletID: bank.ID, Amount: amount(t, "20000"), Date: core.NewDate(2025, 4, 1),
		})
		require.NoError(t, err)
		assert.Equal(t, "80000.00", res.From.Balance.String())
		assert.Equal(t, "20000.00", res.To.Balance.String())
		assert.Equal(t, "80000.00", f.balance(t, alice, cash.ID))
		assert.Equal(t, "20000.00", f.balance(t, alice, bank.ID))

		assert.Equal(t, core.Expense, res.Outgoing.CategoryType)
		assert.Equal(t, core.Income, res.Incoming.CategoryType)
		assert.True(t, res.Outgoing.Amount.Equal(res.Incoming.Amount))
		assert.Equal(t, "Transfer (to Bank)", res.Outgoing.Description)
		assert.Equal(t, "Transfer (from Cash)", res.Incoming.Description)

		all, err := f.svc.ListTransactions(ctx, alice, 0)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		// Second transfer reuses the system categories.
		res2, err := f.svc.Transfer(ctx, alice, TransferInput{
			FromWalletID: bank.ID, ToWalletID: cash.ID, Amount: amount(t, "0.01"), Date: core.NewDate(2025, 4, 2),
			Description: "Change",
		})
		require.NoError(t, err)
		assert.Equal(t, res.Outgoing.CategoryID, res2.Outgoing.CategoryID)
		assert.Equal(t, res.Incoming.CategoryID, res2.Incoming.CategoryID)
		assert.Equal(t, "Change (to Cash)", res2.Outgoing.Description)

		cats, err := f.svc.ListCategories(ctx, alice)
		require.NoError(t, err)
		assert.Len(t, cats, 2)

		assert.Equal(t, []core.EventType{core.EventTransferCompleted, core.EventTransferCompleted}, f.events.types())
		f.assertConsistent(t, alice)
	})
}

func TestTransferRejections(t *testing.T) {
	each(t, Config{}, func(t *testing.T, f fixture) {
		ctx := context.Background()
		cash := f.wallet(t, alice, "Cash", "10")
		bank := f.wallet(t, alice, "Bank", "0")
		other := f.wallet(t, bob, "Bob", "1000")

		tests := []struct {
			name string
			in   TransferInput
			is   error
		}{
			{"same wallet", TransferInput{FromWalletID: cash.ID, ToWalletID: cash.ID, Amount: amount(t, "1")}, core.ErrValidation},
			{"insufficient funds", TransferInput{FromWalletID: cash.ID, ToWalletID: bank.ID, Amount: amount(t, "10.01")}, core.ErrValidation},
			{"zero amount", TransferInput{FromWalletID: cash.ID, ToWalletID: bank.ID, Amount: core.Zero}, core.ErrValidation},
			{"unknown destination", TransferInput{FromWalletID: cash.ID, ToWalletID: 424242, Amount: amount(t, "1")}, core.ErrNotFound},
			{"other user's wallet", TransferInput{FromWalletID: other.ID, ToWalletID: bank.ID, Amount: amount(t, "1")}, core.ErrNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tt.in.Date = core.NewDate(2025, 4, 1)
				_, err := f.svc.Transfer(ctx, alice, tt.in)
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.is), "got %v", err)
			})
		}

		assert.Equal(t, "10.00", f.balance(t, alice, cash.ID))
		assert.Equal(t, "0.00", f.balance(t, alice, bank.ID))
		assert.Equal(t, "1000.00", f.balance(t, bob, other.ID))
		txs, err := f.svc.ListTransactions(ctx, alice, 0)
		require.NoError(t, err)
		assert.Empty(t, txs)
		cats, err := f.svc.ListCategories(ctx, alice)
		require.NoError(t, err)
		assert.Empty(t, cats, "system categories are rolled back with the failed transfer")
		assert.Empty(t, f.events.types())
	})
}

func TestTransferAllowsOverdraftWhenConfigured(t *testing.T) {
	each(t, Config{AllowOverdraft: true}, func(t *testing.T, f fixture) {
		cash := f.wallet(t, alice, "Cash", "5")
		bank := f.wallet(t, alice, "Bank", "0")

		res, err := f.svc.Transfer(context.Background(), alice, TransferInput{
			FromWalletID: cash.ID, ToWalletID: bank.ID, Amount: amount(t, "7.25"), Date: core.NewDate(2025, 4, 1),
		})
		require.NoError(t, err)
		assert.Equal(t, "-2.25", res.From.Balance.String())
		f.assertConsistent(t, alice)
	})
}

func TestCreateTransactionRejections(t *testing.T) {
	each(t, Config{}, func(t *testing.T, f fixture) {
		ctx := context.Background()
		w := f.wallet(t, alice, "W", "0")
		c := f.category(t, alice, "C", core.Expense)
		bobCat := f.category(t, bob, "Theirs", core.Expense)

		tests := []struct {
			name string
			in   TransactionInput
			is   error
		}{
			{"zero amount", TransactionInput{WalletID: w.ID, CategoryID: c.ID, Amount: core.Zero, Date: core.NewDate(2025, 1, 1)}, core.ErrValidation},
			{"missing date", TransactionInput{WalletID: w.ID, CategoryID: c.ID, Amount: amount(t, "1")}, core.ErrValidation},
			{"unknown wallet", TransactionInput{WalletID: 999, CategoryID: c.ID, Amount: amount(t, "1"), Date: core.NewDate(2025, 1, 1)}, core.ErrNotFound},
			{"foreign category", TransactionInput{WalletID: w.ID, CategoryID: bobCat.ID, Amount: amount(t, "1"), Date: core.NewDate(2025, 1, 1)}, core.ErrNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.CreateTransaction(ctx, alice, tt.in)
				assert.True(t, errors.Is(err, tt.is), "got %v", err)
			})
		}
		assert.Equal(t, "0.00", f.balance(t, alice, w.ID))
	})
}

func TestUpdateFailureLeavesBalancesUntouched(t *testing.T) {
	each(t, Config{}, func(t *testing.T, f fixture) {
		ctx := context.Background()
		w := f.wallet(t, alice, "W", "100")
		c := f.category(t, alice, "C", core.Expense)
		res, err := f.svc.CreateTransaction(ctx, alice, TransactionInput{
			WalletID: w.ID, CategoryID: c.ID, Amount: amount(t, "10"), Date: core.NewDate(2025, 1, 1),
		})
		require.NoError(t, err)

		missing := int64(31337)
		_, err = f.svc.UpdateTransaction(ctx, alice, res.Transaction.ID, TransactionPatch{CategoryID: &missing})
		assert.True(t, errors.Is(err, core.ErrNotFound))

		_, err = f.svc.UpdateTransaction(ctx, bob, res.Transaction.ID, TransactionPatch{})
		assert.True(t, errors.Is(err, core.ErrNotFound), "other users cannot see the transaction")

		assert.Equal(t, "90.00", f.balance(t, alice, w.ID))
		f.assertConsistent(t, alice)
	})
}

func TestCategoryRules(t *testing.T) {
	each(t, Config{}, func(t *testing.T, f fixture) {
		ctx := context.Background()
		c := f.category(t, alice, "  Travel ", core.Expense)
		assert.Equal(t, "Travel", c.Name)

		_, err := f.svc.CreateCategory(ctx, alice, "Travel", core.Expense)
		assert.True(t, errors.Is(err, core.ErrConflict))

		income := core.Income
		_, err = f.svc.UpdateCategory(ctx, alice, c.ID, CategoryPatch{Type: &income})
		assert.True(t, errors.Is(err, core.ErrValidation))

		name := "Trips"
		expense := core.Expense
		renamed, err := f.svc.UpdateCategory(ctx, alice, c.ID, CategoryPatch{Name: &name, Type: &expense})
		require.NoError(t, err)
		assert.Equal(t, "Trips", renamed.Name)

		w := f.wallet(t, alice, "W", "0")
		_, err = f.svc.CreateTransaction(ctx, alice, TransactionInput{
			WalletID: w.ID, CategoryID: c.ID, Amount: amount(t, "1"), Date: core.NewDate(2025, 1, 1),
		})
		require.NoError(t, err)
		err = f.svc.DeleteCategory(ctx, alice, c.ID)
		assert.True(t, errors.Is(err, core.ErrConflict), "got %v", err)

		sys1, err := f.svc.EnsureSystemCategory(ctx, alice, core.TransferInCategory, core.Income)
		require.NoError(t, err)
		sys2, err := f.svc.EnsureSystemCategory(ctx, alice, core.TransferInCategory, core.Income)
		require.NoError(t, err)
		assert.Equal(t, sys1.ID, sys2.ID)
	})
}

func TestWalletDirectory(t *testing.T) {
	each(t, Config{}, func(t *testing.T, f fixture) {
		ctx := context.Background()
		w := f.wallet(t, alice, "Cash", "-12.50")
		assert.Equal(t, "-12.50", w.OpeningBalance.String())

		_, err := f.svc.CreateWallet(ctx, alice, "Cash", core.Zero)
		assert.True(t, errors.Is(err, core.ErrConflict))
		_, err = f.svc.CreateWallet(ctx, alice, " ", core.Zero)
		assert.True(t, errors.Is(err, core.ErrValidation))
		fraction, _ := core.MoneyFromString("1.001")
		_, err = f.svc.CreateWallet(ctx, alice, "Odd", fraction)
		assert.True(t, errors.Is(err, core.ErrValidation))

		renamed, err := f.svc.RenameWallet(ctx, alice, w.ID, "Pocket")
		require.NoError(t, err)
		assert.Equal(t, "-12.50", renamed.Balance.String())

		_, err = f.svc.GetWallet(ctx, bob, w.ID)
		assert.True(t, errors.Is(err, core.ErrNotFound))

		c := f.category(t, alice, "C", core.Income)
		_, err = f.svc.CreateTransaction(ctx, alice, TransactionInput{
			WalletID: w.ID, CategoryID: c.ID, Amount: amount(t, "3"), Date: core.NewDate(2025, 1, 1),
		})
		require.NoError(t, err)

		require.NoError(t, f.svc.DeleteWallet(ctx, alice, w.ID))
		txs, err := f.svc.ListTransactions(ctx, alice, 0)
		require.NoError(t, err)
		assert.Empty(t, txs)
		_, err = f.svc.ListTransactions(ctx, alice, w.ID)
		assert.True(t, errors.Is(err, core.ErrNotFound))
	})
}

func TestInvariantHoldsAcrossMixedOperations(t *testing.T) {
	each(t, Config{}, func(t *testing.T, f fixture) {
		ctx := context.Background()
		a := f.wallet(t, alice, "A", "250.75")
		b := f.wallet(t, alice, "B", "0")
		groceries := f.category(t, alice, "Groceries", core.Expense)
		pay := f.category(t, alice, "Pay", core.Income)

		var ids []int64
		for i, in := range []TransactionInput{
			{WalletID: a.ID, CategoryID: groceries.ID, Amount: amount(t, "12.34")},
			{WalletID: a.ID, CategoryID: pay.ID, Amount: amount(t, "1000")},
			{WalletID: b.ID, CategoryID: groceries.ID, Amount: amount(t, "0.99")},
			{WalletID: b.ID, CategoryID: pay.ID, Amount: amount(t, "45.6")},
		} {
			in.Date = core.NewDate(2025, 5, i+1)
			res, err := f.svc.CreateTransaction(ctx, alice, in)
			require.NoError(t, err)
			ids = append(ids, res.Transaction.ID)
		}

		newAmount := amount(t, "7.77")
		_, err := f.svc.UpdateTransaction(ctx, alice, ids[0], TransactionPatch{WalletID: &b.ID, CategoryID: &pay.ID, Amount: &newAmount})
		require.NoError(t, err)
		_, err = f.svc.DeleteTransaction(ctx, alice, ids[2])
		require.NoError(t, err)
		_, err = f.svc.Transfer(ctx, alice, TransferInput{FromWalletID: a.ID, ToWalletID: b.ID, Amount: amount(t, "100.01"), Date: core.NewDate(2025, 5, 9)})
		require.NoError(t, err)

		f.assertConsistent(t, alice)
		// 250.75 + 1000 - 100.01
		assert.Equal(t, "1150.74", f.balance(t, alice, a.ID))
		// 7.77 + 45.6 + 100.01
		assert.Equal(t, "153.38", f.balance(t, alice, b.ID))
	})
}
