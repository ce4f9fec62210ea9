// Package memory is an in-process ledger store for tests and demos.
//
// A unit of work runs against a private copy of the data under a store-wide
// mutex; the copy replaces the live data only when the unit succeeds.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"moneywise/internal/core"
	"moneywise/internal/storage"
)

type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

var _ storage.Store = (*Store)(nil)

type state struct {
	seq          int64
	categories   map[int64]core.Category
	wallets      map[int64]core.Wallet
	transactions map[int64]core.Transaction
	budgets      map[int64]core.Budget
}

func New() *Store {
	return &Store{
		state: &state{
			categories:   map[int64]core.Category{},
			wallets:      map[int64]core.Wallet{},
			transactions: map[int64]core.Transaction{},
			budgets:      map[int64]core.Budget{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *state) clone() *state {
	c := &state{
		seq:          s.seq,
		categories:   make(map[int64]core.Category, len(s.categories)),
		wallets:      make(map[int64]core.Wallet, len(s.wallets)),
		transactions: make(map[int64]core.Transaction, len(s.transactions)),
		budgets:      make(map[int64]core.Budget, len(s.budgets)),
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.budgets {
		c.budgets[k] = v
	}
	return c
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return core.Internal("begin transaction", err)
	}

	work := s.state.clone()
	if err := fn(ctx, &tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) nextID() int64 {
	t.st.seq++
	return t.st.seq
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Categories

func (t *tx) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	for _, existing := range t.st.categories {
		if existing.UserID == c.UserID && existing.Name == c.Name && existing.Type == c.Type {
			return core.Category{}, core.Conflict("create category", "category already exists")
		}
	}
	c.ID = t.nextID()
	c.CreatedAt = t.now()
	t.st.categories[c.ID] = c
	return c, nil
}

func (t *tx) GetCategory(_ context.Context, user core.UserID, id int64) (core.Category, error) {
	c, ok := t.st.categories[id]
	if !ok || c.UserID != user {
		return core.Category{}, core.NotFound("get category", "category not found")
	}
	return c, nil
}

func (t *tx) EnsureCategory(ctx context.Context, user core.UserID, name string, typ core.CategoryType) (core.Category, error) {
	for _, id := range sortedKeys(t.st.categories) {
		c := t.st.categories[id]
		if c.UserID == user && c.Name == name && c.Type == typ {
			return c, nil
		}
	}
	return t.CreateCategory(ctx, core.Category{UserID: user, Name: name, Type: typ})
}

func (t *tx) ListCategories(_ context.Context, user core.UserID) ([]core.Category, error) {
	var out []core.Category
	for _, c := range t.st.categories {
		if c.UserID == user {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (t *tx) RenameCategory(ctx context.Context, user core.UserID, id int64, name string) (core.Category, error) {
	c, err := t.GetCategory(ctx, user, id)
	if err != nil {
		return core.Category{}, err
	}
	for _, other := range t.st.categories {
		if other.ID != id && other.UserID == user && other.Name == name && other.Type == c.Type {
			return core.Category{}, core.Conflict("rename category", "category already exists")
		}
	}
	c.Name = name
	t.st.categories[id] = c
	return c, nil
}

func (t *tx) DeleteCategory(ctx context.Context, user core.UserID, id int64) error {
	if _, err := t.GetCategory(ctx, user, id); err != nil {
		return err
	}
	for _, tr := range t.st.transactions {
		if tr.CategoryID == id {
			return core.Conflict("delete category", "category is referenced by other records")
		}
	}
	for bid, b := range t.st.budgets {
		if b.CategoryID == id {
			delete(t.st.budgets, bid)
		}
	}
	delete(t.st.categories, id)
	return nil
}

// Wallets

func (t *tx) CreateWallet(_ context.Context, w core.Wallet) (core.Wallet, error) {
	for _, existing := range t.st.wallets {
		if existing.UserID == w.UserID && existing.Name == w.Name {
			return core.Wallet{}, core.Conflict("create wallet", "wallet already exists")
		}
	}
	w.ID = t.nextID()
	w.CreatedAt = t.now()
	w.UpdatedAt = w.CreatedAt
	t.st.wallets[w.ID] = w
	return w, nil
}

func (t *tx) GetWallet(_ context.Context, user core.UserID, id int64) (core.Wallet, error) {
	w, ok := t.st.wallets[id]
	if !ok || w.UserID != user {
		return core.Wallet{}, core.NotFound("get wallet", "wallet not found")
	}
	return w, nil
}

// LockWallet is a plain read; the unit already holds the store mutex.
func (t *tx) LockWallet(ctx context.Context, user core.UserID, id int64) (core.Wallet, error) {
	return t.GetWallet(ctx, user, id)
}

func (t *tx) ListWallets(_ context.Context, user core.UserID) ([]core.Wallet, error) {
	var out []core.Wallet
	for _, w := range t.st.wallets {
		if w.UserID == user {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *tx) RenameWallet(ctx context.Context, user core.UserID, id int64, name string) (core.Wallet, error) {
	w, err := t.GetWallet(ctx, user, id)
	if err != nil {
		return core.Wallet{}, err
	}
	for _, other := range t.st.wallets {
		if other.ID != id && other.UserID == user && other.Name == name {
			return core.Wallet{}, core.Conflict("rename wallet", "wallet already exists")
		}
	}
	w.Name = name
	w.UpdatedAt = t.now()
	t.st.wallets[id] = w
	return w, nil
}

func (t *tx) UpdateWalletBalance(ctx context.Context, user core.UserID, id int64, balance core.Money) error {
	w, err := t.GetWallet(ctx, user, id)
	if err != nil {
		return err
	}
	w.Balance = balance
	w.UpdatedAt = t.now()
	t.st.wallets[id] = w
	return nil
}

func (t *tx) DeleteWallet(ctx context.Context, user core.UserID, id int64) error {
	if _, err := t.GetWallet(ctx, user, id); err != nil {
		return err
	}
	for tid, tr := range t.st.transactions {
		if tr.WalletID == id {
			delete(t.st.transactions, tid)
		}
	}
	delete(t.st.wallets, id)
	return nil
}
