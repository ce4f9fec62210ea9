package memory

import (
	"context"
	"sort"

	"moneywise/internal/core"
	"moneywise/internal/storage"
)

// withType fills CategoryType from the stored category, as a join would.
func (t *tx) withType(tr core.Transaction) core.Transaction {
	if c, ok := t.st.categories[tr.CategoryID]; ok {
		tr.CategoryType = c.Type
	}
	return tr
}

func (t *tx) checkRefs(op string, tr core.Transaction) error {
	if w, ok := t.st.wallets[tr.WalletID]; !ok || w.UserID != tr.UserID {
		return core.Conflict(op, "transaction is referenced by other records")
	}
	if c, ok := t.st.categories[tr.CategoryID]; !ok || c.UserID != tr.UserID {
		return core.Conflict(op, "transaction is referenced by other records")
	}
	return nil
}

func (t *tx) InsertTransaction(_ context.Context, tr core.Transaction) (core.Transaction, error) {
	if err := t.checkRefs("insert transaction", tr); err != nil {
		return core.Transaction{}, err
	}
	tr.ID = t.nextID()
	tr.CreatedAt = t.now()
	tr.UpdatedAt = tr.CreatedAt
	tr.CategoryType = ""
	t.st.transactions[tr.ID] = tr
	return t.withType(tr), nil
}

func (t *tx) GetTransaction(_ context.Context, user core.UserID, id int64) (core.Transaction, error) {
	tr, ok := t.st.transactions[id]
	if !ok || tr.UserID != user {
		return core.Transaction{}, core.NotFound("get transaction", "transaction not found")
	}
	return t.withType(tr), nil
}

// LockTransaction is a plain read; the unit already holds the store mutex.
func (t *tx) LockTransaction(ctx context.Context, user core.UserID, id int64) (core.Transaction, error) {
	return t.GetTransaction(ctx, user, id)
}

func (t *tx) UpdateTransaction(ctx context.Context, tr core.Transaction) (core.Transaction, error) {
	existing, err := t.GetTransaction(ctx, tr.UserID, tr.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := t.checkRefs("update transaction", tr); err != nil {
		return core.Transaction{}, err
	}
	tr.CreatedAt = existing.CreatedAt
	tr.UpdatedAt = t.now()
	tr.CategoryType = ""
	t.st.transactions[tr.ID] = tr
	return t.withType(tr), nil
}

func (t *tx) DeleteTransaction(ctx context.Context, user core.UserID, id int64) error {
	if _, err := t.GetTransaction(ctx, user, id); err != nil {
		return err
	}
	delete(t.st.transactions, id)
	return nil
}

func (t *tx) ListTransactions(_ context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tr := range t.st.transactions {
		if tr.UserID != f.UserID {
			continue
		}
		if f.WalletID != 0 && tr.WalletID != f.WalletID {
			continue
		}
		out = append(out, t.withType(tr))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (t *tx) WalletTotals(_ context.Context, user core.UserID, walletID int64) (storage.WalletTotals, error) {
	totals := storage.WalletTotals{Net: core.Zero}
	for _, tr := range t.st.transactions {
		if tr.UserID != user || tr.WalletID != walletID {
			continue
		}
		totals.Net = totals.Net.Add(t.withType(tr).Delta())
		totals.Count++
	}
	return totals, nil
}
