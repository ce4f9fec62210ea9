package memory

import (
	"context"
	"sort"

	"moneywise/internal/core"
)

func (t *tx) budgetClash(b core.Budget) bool {
	for _, other := range t.st.budgets {
		if other.ID != b.ID && other.UserID == b.UserID && other.CategoryID == b.CategoryID &&
			other.Month == b.Month && other.Year == b.Year {
			return true
		}
	}
	return false
}

func (t *tx) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if t.budgetClash(b) {
		return core.Budget{}, core.Conflict("create budget", "budget already exists")
	}
	b.ID = t.nextID()
	b.CreatedAt = t.now()
	b.UpdatedAt = b.CreatedAt
	t.st.budgets[b.ID] = b
	return b, nil
}

func (t *tx) GetBudget(_ context.Context, user core.UserID, id int64) (core.Budget, error) {
	b, ok := t.st.budgets[id]
	if !ok || b.UserID != user {
		return core.Budget{}, core.NotFound("get budget", "budget not found")
	}
	return b, nil
}

func (t *tx) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	existing, err := t.GetBudget(ctx, b.UserID, b.ID)
	if err != nil {
		return core.Budget{}, err
	}
	if t.budgetClash(b) {
		return core.Budget{}, core.Conflict("update budget", "budget already exists")
	}
	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = t.now()
	t.st.budgets[b.ID] = b
	return b, nil
}

func (t *tx) DeleteBudget(ctx context.Context, user core.UserID, id int64) error {
	if _, err := t.GetBudget(ctx, user, id); err != nil {
		return err
	}
	delete(t.st.budgets, id)
	return nil
}

func (t *tx) ListBudgets(_ context.Context, user core.UserID, year, month int) ([]core.Budget, error) {
	var out []core.Budget
	for _, b := range t.st.budgets {
		if b.UserID != user || (year != 0 && b.Year != year) || (month != 0 && b.Month != month) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		if out[i].Month != out[j].Month {
			return out[i].Month > out[j].Month
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out, nil
}

func (t *tx) SpentByCategory(_ context.Context, user core.UserID, year, month int) ([]core.CategoryAmount, error) {
	totals := map[int64]core.Money{}
	for _, tr := range t.st.transactions {
		if tr.UserID != user || tr.Date.Year() != year || int(tr.Date.Month()) != month {
			continue
		}
		if c, ok := t.st.categories[tr.CategoryID]; !ok || c.Type != core.Expense {
			continue
		}
		totals[tr.CategoryID] = totals[tr.CategoryID].Add(tr.Amount)
	}

	out := make([]core.CategoryAmount, 0, len(totals))
	for _, id := range sortedKeys(totals) {
		out = append(out, core.CategoryAmount{CategoryID: id, Amount: totals[id]})
	}
	return out, nil
}
