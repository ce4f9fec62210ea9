package core

import "time"

// EventType names a committed ledger mutation.
type EventType string

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionUpdated EventType = "transaction.updated"
	EventTransactionDeleted EventType = "transaction.deleted"
	EventTransferCompleted  EventType = "transfer.completed"
	EventWalletDeleted      EventType = "wallet.deleted"
	EventCategoryDeleted    EventType = "category.deleted"
)

// LedgerEvent describes a mutation after it committed. TransactionIDs and
// WalletIDs list every row the mutation touched.
type LedgerEvent struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	UserID         UserID    `json:"user_id"`
	TransactionIDs []int64   `json:"transaction_ids"`
	WalletIDs      []int64   `json:"wallet_ids"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// AffectsBalances reports whether the event changed wallet balances that
// still exist.
func (e LedgerEvent) AffectsBalances() bool {
	switch e.Type {
	case EventTransactionCreated, EventTransactionUpdated, EventTransactionDeleted, EventTransferCompleted:
		return true
	}
	return false
}
