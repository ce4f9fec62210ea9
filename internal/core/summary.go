package core

// BudgetStatus compares one budget limit with the month's spend.
type BudgetStatus struct {
	Budget       Budget `json:"budget"`
	CategoryName string `json:"category_name"`
	Spent        Money  `json:"spent"`
	Remaining    Money  `json:"remaining"`
	Exceeded     bool   `json:"exceeded"`
}

// MonthBudget is the budget overview for a specific year+month.
type MonthBudget struct {
	Year     int            `json:"year"`
	Month    int            `json:"month"`
	Limit    Money          `json:"limit"`
	Spent    Money          `json:"spent"`
	Statuses []BudgetStatus `json:"statuses"`
}

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	CategoryID int64
	Amount     Money
}

// WalletAudit is the result of checking a wallet against its transactions.
type WalletAudit struct {
	WalletID         int64  `json:"wallet_id"`
	UserID           UserID `json:"user_id"`
	Actual           Money  `json:"actual"`
	Expected         Money  `json:"expected"`
	Drift            Money  `json:"drift"`
	TransactionCount int    `json:"transaction_count"`
	Consistent       bool   `json:"consistent"`
}
