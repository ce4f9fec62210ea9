// Package budget tracks per-category monthly spending limits. Budgets are
// never touched by balance mutations; their status is a read over the
// ledger's expense transactions.
package budget

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"moneywise/internal/cache"
	"moneywise/internal/core"
	"moneywise/internal/log"
	"moneywise/internal/storage"
)

// Input is the client-supplied part of a budget.
type Input struct {
	CategoryID int64
	Amount     core.Money
	Month      int
	Year       int
}

type Service struct {
	store storage.Store
	cache cache.Cache[core.MonthBudget]

	// generations counts invalidations per user. A status computed under an
	// older generation is returned but not cached.
	mu          sync.Mutex
	generations map[core.UserID]uint64
}

// New returns a budget service. statusCache may be nil to disable caching.
func New(store storage.Store, statusCache cache.Cache[core.MonthBudget]) *Service {
	return &Service{
		store:       store,
		cache:       statusCache,
		generations: make(map[core.UserID]uint64),
	}
}

func (s *Service) generation(user core.UserID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[user]
}

// cacheIfCurrent stores status unless user was invalidated since gen.
func (s *Service) cacheIfCurrent(user core.UserID, gen uint64, key string, status core.MonthBudget) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[user] != gen {
		return false
	}
	s.cache.Set(key, status)
	return true
}

func cacheKey(user core.UserID, year, month int) string {
	return fmt.Sprintf("%s%04d-%02d", userPrefix(user), year, month)
}

func userPrefix(user core.UserID) string {
	return fmt.Sprintf("budget:%d:", user)
}

// Invalidate drops every cached status of user.
func (s *Service) Invalidate(ctx context.Context, user core.UserID) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	s.generations[user]++
	s.mu.Unlock()
	if n := s.cache.DeletePrefix(userPrefix(user)); n > 0 {
		slog.DebugContext(ctx, "Budget status cache invalidated",
			log.FieldComponent, log.ComponentBudget,
			log.FieldUserID, int64(user),
			"entries", n)
	}
}

// Notify invalidates the user's cached statuses after any committed ledger
// mutation, so the service can be registered as a ledger notifier.
func (s *Service) Notify(ctx context.Context, e core.LedgerEvent) {
	s.Invalidate(ctx, e.UserID)
}

func (in Input) budget(user core.UserID) core.Budget {
	return core.Budget{
		UserID:     user,
		CategoryID: in.CategoryID,
		Amount:     in.Amount,
		Month:      in.Month,
		Year:       in.Year,
	}
}

// checkCategory requires an expense category owned by the user.
func checkCategory(ctx context.Context, tx storage.Tx, user core.UserID, id int64) error {
	c, err := tx.GetCategory(ctx, user, id)
	if err != nil {
		return err
	}
	if c.Type != core.Expense {
		return core.Validation("budget", "budgets can only track expense categories")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, user core.UserID, in Input) (core.Budget, error) {
	b := in.budget(user)
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	var created core.Budget
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := checkCategory(ctx, tx, user, b.CategoryID); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateBudget(ctx, b)
		return err
	})
	if err != nil {
		return core.Budget{}, core.Internal("create budget", err)
	}
	s.Invalidate(ctx, user)
	return created, nil
}

func (s *Service) Get(ctx context.Context, user core.UserID, id int64) (core.Budget, error) {
	var b core.Budget
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		b, err = tx.GetBudget(ctx, user, id)
		return err
	})
	if err != nil {
		return core.Budget{}, core.Internal("get budget", err)
	}
	return b, nil
}

// List returns the user's budgets; zero year or month match any.
func (s *Service) List(ctx context.Context, user core.UserID, year, month int) ([]core.Budget, error) {
	if month < 0 || month > 12 {
		return nil, core.ErrInvalidMonth
	}
	var out []core.Budget
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = tx.ListBudgets(ctx, user, year, month)
		return err
	})
	if err != nil {
		return nil, core.Internal("list budgets", err)
	}
	return out, nil
}

// Update replaces every client-supplied field of the budget.
func (s *Service) Update(ctx context.Context, user core.UserID, id int64, in Input) (core.Budget, error) {
	b := in.budget(user)
	b.ID = id
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	var updated core.Budget
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetBudget(ctx, user, id); err != nil {
			return err
		}
		if err := checkCategory(ctx, tx, user, b.CategoryID); err != nil {
			return err
		}
		var err error
		updated, err = tx.UpdateBudget(ctx, b)
		return err
	})
	if err != nil {
		return core.Budget{}, core.Internal("update budget", err)
	}
	s.Invalidate(ctx, user)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, user core.UserID, id int64) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.DeleteBudget(ctx, user, id)
	})
	if err != nil {
		return core.Internal("delete budget", err)
	}
	s.Invalidate(ctx, user)
	return nil
}

// Status compares each budget of the month with what was spent in its
// category during that month.
func (s *Service) Status(ctx context.Context, user core.UserID, year, month int) (core.MonthBudget, error) {
	period := core.Budget{Amount: core.MoneyFromInt(1), Month: month, Year: year}
	if err := period.Validate(); err != nil {
		return core.MonthBudget{}, err
	}

	key := cacheKey(user, year, month)
	var gen uint64
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return cached, nil
		}
		gen = s.generation(user)
	}

	var (
		budgets    []core.Budget
		spent      []core.CategoryAmount
		categories []core.Category
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		if budgets, err = tx.ListBudgets(ctx, user, year, month); err != nil {
			return err
		}
		if spent, err = tx.SpentByCategory(ctx, user, year, month); err != nil {
			return err
		}
		categories, err = tx.ListCategories(ctx, user)
		return err
	})
	if err != nil {
		return core.MonthBudget{}, core.Internal("budget status", err)
	}

	out := summarize(year, month, budgets, spent, categories)
	if s.cache != nil && !s.cacheIfCurrent(user, gen, key, out) {
		slog.DebugContext(ctx, "Budget status not cached, ledger changed during read",
			log.FieldComponent, log.ComponentBudget,
			log.FieldUserID, int64(user))
	}
	return out, nil
}

func summarize(year, month int, budgets []core.Budget, spent []core.CategoryAmount, categories []core.Category) core.MonthBudget {
	spentBy := make(map[int64]core.Money, len(spent))
	for _, ca := range spent {
		spentBy[ca.CategoryID] = ca.Amount
	}
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	out := core.MonthBudget{
		Year:     year,
		Month:    month,
		Limit:    core.Zero,
		Spent:    core.Zero,
		Statuses: make([]core.BudgetStatus, 0, len(budgets)),
	}
	for _, b := range budgets {
		used, ok := spentBy[b.CategoryID]
		if !ok {
			used = core.Zero
		}
		out.Statuses = append(out.Statuses, core.BudgetStatus{
			Budget:       b,
			CategoryName: names[b.CategoryID],
			Spent:        used,
			Remaining:    b.Amount.Sub(used),
			Exceeded:     used.Cmp(b.Amount) > 0,
		})
		out.Limit = out.Limit.Add(b.Amount)
		out.Spent = out.Spent.Add(used)
	}
	return out
}
