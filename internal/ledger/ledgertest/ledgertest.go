// Package ledgertest drives concurrent ledger operations against a store and
// checks that every wallet still matches its transactions afterwards. Each
// storage backend runs it from its own tests.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneywise/internal/core"
	"moneywise/internal/ledger"
	"moneywise/internal/storage"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) storage.Store

const user core.UserID = 1

// RunConcurrency executes the concurrent mutation scenarios against stores
// built by newStore.
func RunConcurrency(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, h harness)
	}{
		{"CreatesOnOneWallet", testConcurrentCreates},
		{"UpdatesOfOneTransaction", testConcurrentUpdates},
		{"UpdateAndDeleteOfOneTransaction", testConcurrentUpdateAndDelete},
		{"MoveAndDeleteOfOneTransaction", testConcurrentMoveAndDelete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, harness{
				svc:   ledger.New(s, ledger.Config{}),
				audit: ledger.NewAuditor(s, 2),
			})
		})
	}
}

type harness struct {
	svc   *ledger.Service
	audit *ledger.Auditor
}

func money(t *testing.T, v string) core.Money {
	t.Helper()
	m, err := core.MoneyFromString(v)
	require.NoError(t, err)
	return m
}

func (h harness) wallet(t *testing.T, name, opening string) core.Wallet {
	t.Helper()
	w, err := h.svc.CreateWallet(context.Background(), user, name, money(t, opening))
	require.NoError(t, err)
	return w
}

func (h harness) expense(t *testing.T, w core.Wallet, amount string) (core.Category, core.Transaction) {
	t.Helper()
	ctx := context.Background()
	c, err := h.svc.EnsureSystemCategory(ctx, user, "Groceries", core.Expense)
	require.NoError(t, err)
	res, err := h.svc.CreateTransaction(ctx, user, ledger.TransactionInput{
		WalletID: w.ID, CategoryID: c.ID, Amount: money(t, amount), Date: core.NewDate(2025, 6, 1),
	})
	require.NoError(t, err)
	return c, res.Transaction
}

func (h harness) balance(t *testing.T, id int64) string {
	t.Helper()
	w, err := h.svc.GetWallet(context.Background(), user, id)
	require.NoError(t, err)
	return w.Balance.String()
}

func (h harness) assertConsistent(t *testing.T) {
	t.Helper()
	audits, err := h.audit.AuditUser(context.Background(), user)
	require.NoError(t, err)
	for _, a := range audits {
		assert.True(t, a.Consistent, "wallet %d drifted: actual %s expected %s", a.WalletID, a.Actual, a.Expected)
	}
}

// parallel runs every fn at once and returns their errors in order.
func parallel(fns ...func() error) []error {
	errs := make([]error, len(fns))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, fn := range fns {
		i, fn := i, fn
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = fn()
		}()
	}
	close(start)
	wg.Wait()
	return errs
}

func testConcurrentCreates(t *testing.T, h harness) {
	ctx := context.Background()
	w := h.wallet(t, "Shared", "0")
	c, err := h.svc.EnsureSystemCategory(ctx, user, "Tips", core.Income)
	require.NoError(t, err)

	amount := money(t, "1.01")
	fns := make([]func() error, 20)
	for i := range fns {
		fns[i] = func() error {
			_, err := h.svc.CreateTransaction(ctx, user, ledger.TransactionInput{
				WalletID: w.ID, CategoryID: c.ID, Amount: amount, Date: core.NewDate(2025, 6, 1),
			})
			return err
		}
	}
	for _, err := range parallel(fns...) {
		require.NoError(t, err)
	}

	assert.Equal(t, "20.20", h.balance(t, w.ID))
	h.assertConsistent(t)
}

func testConcurrentUpdates(t *testing.T, h harness) {
	ctx := context.Background()
	w := h.wallet(t, "Cash", "100")
	_, tr := h.expense(t, w, "10")

	fns := make([]func() error, 8)
	for i := range fns {
		amount := money(t, fmt.Sprintf("%d", 20+i))
		fns[i] = func() error {
			_, err := h.svc.UpdateTransaction(ctx, user, tr.ID, ledger.TransactionPatch{Amount: &amount})
			return err
		}
	}
	for _, err := range parallel(fns...) {
		require.NoError(t, err)
	}

	final, err := h.svc.GetTransaction(ctx, user, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, money(t, "100").Sub(final.Amount).String(), h.balance(t, w.ID))
	h.assertConsistent(t)
}

func testConcurrentUpdateAndDelete(t *testing.T, h harness) {
	ctx := context.Background()
	w := h.wallet(t, "Cash", "100")

	for i := 0; i < 5; i++ {
		_, tr := h.expense(t, w, "10")
		amount := money(t, "35")
		errs := parallel(
			func() error {
				_, err := h.svc.UpdateTransaction(ctx, user, tr.ID, ledger.TransactionPatch{Amount: &amount})
				return err
			},
			func() error {
				_, err := h.svc.DeleteTransaction(ctx, user, tr.ID)
				return err
			},
		)
		if errs[0] != nil {
			assert.True(t, errors.Is(errs[0], core.ErrNotFound), "update lost the race: %v", errs[0])
		}
		require.NoError(t, errs[1])
		assert.Equal(t, "100.00", h.balance(t, w.ID))
	}
	h.assertConsistent(t)
}

func testConcurrentMoveAndDelete(t *testing.T, h harness) {
	ctx := context.Background()
	cash := h.wallet(t, "Cash", "100")
	bank := h.wallet(t, "Bank", "100")

	for i := 0; i < 5; i++ {
		_, tr := h.expense(t, cash, "10")
		errs := parallel(
			func() error {
				_, err := h.svc.UpdateTransaction(ctx, user, tr.ID, ledger.TransactionPatch{WalletID: &bank.ID})
				return err
			},
			func() error {
				_, err := h.svc.DeleteTransaction(ctx, user, tr.ID)
				return err
			},
		)
		if errs[0] != nil {
			assert.True(t, errors.Is(errs[0], core.ErrNotFound), "move lost the race: %v", errs[0])
		}
		require.NoError(t, errs[1])

		_, err := h.svc.GetTransaction(ctx, user, tr.ID)
		assert.True(t, errors.Is(err, core.ErrNotFound))
		assert.Equal(t, "100.00", h.balance(t, cash.ID))
		assert.Equal(t, "100.00", h.balance(t, bank.ID))
	}
	h.assertConsistent(t)
}
