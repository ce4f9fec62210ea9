// Package storage defines the persistence ports used by the ledger and the
// atomic unit that every balance-mutating operation runs inside.
package storage

import (
	"context"

	"moneywise/internal/core"
)

// Store is a ledger database. Every read and write goes through WithinTx so
// that a balance change and the transaction row it belongs to commit or roll
// back together.
type Store interface {
	// WithinTx runs fn inside one atomic unit. If fn returns an error every
	// write performed through tx is discarded.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the set of repository operations available inside an atomic unit.
type Tx interface {
	CategoryRepository
	WalletRepository
	TransactionRepository
	BudgetRepository
}

type CategoryRepository interface {
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	GetCategory(ctx context.Context, user core.UserID, id int64) (core.Category, error)
	// EnsureCategory returns the (user, name, type) category, creating it
	// when absent. Concurrent callers converge on the same row.
	EnsureCategory(ctx context.Context, user core.UserID, name string, typ core.CategoryType) (core.Category, error)
	ListCategories(ctx context.Context, user core.UserID) ([]core.Category, error)
	RenameCategory(ctx context.Context, user core.UserID, id int64, name string) (core.Category, error)
	// DeleteCategory fails with Conflict while transactions still reference it.
	DeleteCategory(ctx context.Context, user core.UserID, id int64) error
}

type WalletRepository interface {
	CreateWallet(ctx context.Context, w core.Wallet) (core.Wallet, error)
	GetWallet(ctx context.Context, user core.UserID, id int64) (core.Wallet, error)
	// LockWallet reads the wallet and holds a write lock on the row until
	// the unit ends.
	LockWallet(ctx context.Context, user core.UserID, id int64) (core.Wallet, error)
	ListWallets(ctx context.Context, user core.UserID) ([]core.Wallet, error)
	RenameWallet(ctx context.Context, user core.UserID, id int64, name string) (core.Wallet, error)
	// UpdateWalletBalance persists the balance column only.
	UpdateWalletBalance(ctx context.Context, user core.UserID, id int64, balance core.Money) error
	// DeleteWallet removes the wallet and its transactions.
	DeleteWallet(ctx context.Context, user core.UserID, id int64) error
}

// TransactionFilter narrows ListTransactions. Zero values mean no filter.
type TransactionFilter struct {
	UserID   core.UserID
	WalletID int64
}

// WalletTotals aggregates the signed effect of a wallet's transactions.
type WalletTotals struct {
	Net   core.Money
	Count int
}

type TransactionRepository interface {
	// InsertTransaction stores t. CategoryType on the result reflects the
	// stored category.
	InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	GetTransaction(ctx context.Context, user core.UserID, id int64) (core.Transaction, error)
	// LockTransaction reads the transaction and holds its row until the unit
	// ends. Callers that change a transaction lock it before its wallets.
	LockTransaction(ctx context.Context, user core.UserID, id int64) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, user core.UserID, id int64) error
	ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
	WalletTotals(ctx context.Context, user core.UserID, walletID int64) (WalletTotals, error)
}

type BudgetRepository interface {
	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	GetBudget(ctx context.Context, user core.UserID, id int64) (core.Budget, error)
	UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	DeleteBudget(ctx context.Context, user core.UserID, id int64) error
	// ListBudgets returns the user's budgets; year and month of zero match all.
	ListBudgets(ctx context.Context, user core.UserID, year, month int) ([]core.Budget, error)
	// SpentByCategory sums expense amounts per category for one month.
	SpentByCategory(ctx context.Context, user core.UserID, year, month int) ([]core.CategoryAmount, error)
}
