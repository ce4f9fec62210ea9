package http

import (
	"net/http"

	"moneywise/internal/core"
	"moneywise/internal/ledger"
)

type categoryRequest struct {
	Name string            `json:"name"`
	Type core.CategoryType `json:"type"`
}

type categoryPatchRequest struct {
	Name *string            `json:"name"`
	Type *core.CategoryType `json:"type"`
}

type walletRequest struct {
	Name           string     `json:"name"`
	OpeningBalance core.Money `json:"opening_balance"`
}

type walletPatchRequest struct {
	Name *string `json:"name"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "create category", err)
		return
	}
	c, err := s.deps.Ledger.CreateCategory(r.Context(), userOf(r), req.Name, req.Type)
	if err != nil {
		writeError(w, r, "create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Ledger.ListCategories(r.Context(), userOf(r))
	if err != nil {
		writeError(w, r, "list categories", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "get category", err)
		return
	}
	c, err := s.deps.Ledger.GetCategory(r.Context(), userOf(r), id)
	if err != nil {
		writeError(w, r, "get category", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "update category", err)
		return
	}
	var req categoryPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "update category", err)
		return
	}
	c, err := s.deps.Ledger.UpdateCategory(r.Context(), userOf(r), id, ledger.CategoryPatch{Name: req.Name, Type: req.Type})
	if err != nil {
		writeError(w, r, "update category", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "delete category", err)
		return
	}
	if err := s.deps.Ledger.DeleteCategory(r.Context(), userOf(r), id); err != nil {
		writeError(w, r, "delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "create wallet", err)
		return
	}
	wallet, err := s.deps.Ledger.CreateWallet(r.Context(), userOf(r), req.Name, req.OpeningBalance)
	if err != nil {
		writeError(w, r, "create wallet", err)
		return
	}
	writeJSON(w, http.StatusCreated, wallet)
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Ledger.ListWallets(r.Context(), userOf(r))
	if err != nil {
		writeError(w, r, "list wallets", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "get wallet", err)
		return
	}
	wallet, err := s.deps.Ledger.GetWallet(r.Context(), userOf(r), id)
	if err != nil {
		writeError(w, r, "get wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleRenameWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "rename wallet", err)
		return
	}
	var req walletPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "rename wallet", err)
		return
	}

	var wallet core.Wallet
	if req.Name == nil {
		wallet, err = s.deps.Ledger.GetWallet(r.Context(), userOf(r), id)
	} else {
		wallet, err = s.deps.Ledger.RenameWallet(r.Context(), userOf(r), id, *req.Name)
	}
	if err != nil {
		writeError(w, r, "rename wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleDeleteWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "delete wallet", err)
		return
	}
	if err := s.deps.Ledger.DeleteWallet(r.Context(), userOf(r), id); err != nil {
		writeError(w, r, "delete wallet", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuditWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "audit wallet", err)
		return
	}
	audit, err := s.deps.Auditor.AuditWallet(r.Context(), userOf(r), id)
	if err != nil {
		writeError(w, r, "audit wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, audit)
}

// nonNil keeps empty lists encoding as [] instead of null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
