package http

import (
	"net/http"

	"moneywise/internal/core"
	"moneywise/internal/ledger"
)

type transactionRequest struct {
	WalletID    int64      `json:"wallet_id"`
	CategoryID  int64      `json:"category_id"`
	Amount      core.Money `json:"amount"`
	Date        core.Date  `json:"date"`
	Description string     `json:"description"`
}

type transactionPatchRequest struct {
	WalletID    *int64      `json:"wallet_id"`
	CategoryID  *int64      `json:"category_id"`
	Amount      *core.Money `json:"amount"`
	Date        *core.Date  `json:"date"`
	Description *string     `json:"description"`
}

type transferRequest struct {
	FromWalletID int64      `json:"from_wallet_id"`
	ToWalletID   int64      `json:"to_wallet_id"`
	Amount       core.Money `json:"amount"`
	Date         core.Date  `json:"date"`
	Description  string     `json:"description"`
}

// deleteTransactionResponse reports the wallet balance after the revert.
type deleteTransactionResponse struct {
	Wallet core.Wallet `json:"wallet"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "create transaction", err)
		return
	}
	res, err := s.deps.Ledger.CreateTransaction(r.Context(), userOf(r), ledger.TransactionInput{
		WalletID:    req.WalletID,
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Date:        req.Date,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, "create transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	walletID, err := queryInt64(r.URL.Query(), "wallet_id")
	if err != nil {
		writeError(w, r, "list transactions", err)
		return
	}
	list, err := s.deps.Ledger.ListTransactions(r.Context(), userOf(r), walletID)
	if err != nil {
		writeError(w, r, "list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "get transaction", err)
		return
	}
	tr, err := s.deps.Ledger.GetTransaction(r.Context(), userOf(r), id)
	if err != nil {
		writeError(w, r, "get transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "update transaction", err)
		return
	}
	var req transactionPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "update transaction", err)
		return
	}
	res, err := s.deps.Ledger.UpdateTransaction(r.Context(), userOf(r), id, ledger.TransactionPatch{
		WalletID:    req.WalletID,
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Date:        req.Date,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, "update transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "delete transaction", err)
		return
	}
	wallet, err := s.deps.Ledger.DeleteTransaction(r.Context(), userOf(r), id)
	if err != nil {
		writeError(w, r, "delete transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, deleteTransactionResponse{Wallet: wallet})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "transfer", err)
		return
	}
	res, err := s.deps.Ledger.Transfer(r.Context(), userOf(r), ledger.TransferInput{
		FromWalletID: req.FromWalletID,
		ToWalletID:   req.ToWalletID,
		Amount:       req.Amount,
		Date:         req.Date,
		Description:  req.Description,
	})
	if err != nil {
		writeError(w, r, "transfer", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
