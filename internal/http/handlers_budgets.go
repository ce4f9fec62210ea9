package http

import (
	"net/http"

	"moneywise/internal/budget"
	"moneywise/internal/core"
)

type budgetRequest struct {
	CategoryID int64      `json:"category_id"`
	Amount     core.Money `json:"amount"`
	Month      int        `json:"month"`
	Year       int        `json:"year"`
}

func (req budgetRequest) input() budget.Input {
	return budget.Input{CategoryID: req.CategoryID, Amount: req.Amount, Month: req.Month, Year: req.Year}
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "create budget", err)
		return
	}
	b, err := s.deps.Budgets.Create(r.Context(), userOf(r), req.input())
	if err != nil {
		writeError(w, r, "create budget", err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseListFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, "list budgets", err)
		return
	}
	list, err := s.deps.Budgets.List(r.Context(), userOf(r), filter.Year, filter.Month)
	if err != nil {
		writeError(w, r, "list budgets", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// handleBudgetStatus defaults to the current month when year or month is
// omitted.
func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.deps.Now())
	if err != nil {
		writeError(w, r, "budget status", err)
		return
	}
	status, err := s.deps.Budgets.Status(r.Context(), userOf(r), params.Year, params.Month)
	if err != nil {
		writeError(w, r, "budget status", err)
		return
	}
	status.Statuses = nonNil(status.Statuses)
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "get budget", err)
		return
	}
	b, err := s.deps.Budgets.Get(r.Context(), userOf(r), id)
	if err != nil {
		writeError(w, r, "get budget", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "update budget", err)
		return
	}
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "update budget", err)
		return
	}
	b, err := s.deps.Budgets.Update(r.Context(), userOf(r), id, req.input())
	if err != nil {
		writeError(w, r, "update budget", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "delete budget", err)
		return
	}
	if err := s.deps.Budgets.Delete(r.Context(), userOf(r), id); err != nil {
		writeError(w, r, "delete budget", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
