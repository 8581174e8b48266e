package http

import (
	"net/http"
	"time"

	"moneta/internal/core"
	"moneta/internal/services"

	"github.com/shopspring/decimal"
)

type transactionRequest struct {
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Verified    *bool  `json:"verified"`
}

type transactionUpdateRequest struct {
	Date        *string `json:"date"`
	Amount      *string `json:"amount"`
	Kind        *string `json:"kind"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
	Source      *string `json:"source"`
	Verified    *bool   `json:"verified"`
}

type transactionResponse struct {
	ID          int64  `json:"id"`
	Owner       string `json:"owner"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Verified    bool   `json:"verified"`
	MonthKey    string `json:"month_key"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Owner:       t.Owner,
		Date:        t.Date.Format("2006-01-02"),
		Amount:      t.Amount.String(),
		Kind:        string(t.Kind),
		Category:    t.Category,
		Description: t.Description,
		Source:      t.Source,
		Verified:    t.Verified,
		MonthKey:    string(t.MonthKey),
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, r, core.ErrInvalidAmount)
		return
	}

	verified := true
	if req.Verified != nil {
		verified = *req.Verified
	}

	t := core.Transaction{
		Owner:       owner,
		Date:        date,
		Amount:      amount,
		Kind:        core.TransactionKind(req.Kind),
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
		Source:      sanitizeInput(req.Source),
		Verified:    verified,
	}

	saved, err := s.ledger.CreateTransaction(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionResponse(saved))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := idFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req transactionUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var upd services.TransactionUpdate
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		upd.Date = &date
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			writeError(w, r, core.ErrInvalidAmount)
			return
		}
		upd.Amount = &amount
	}
	if req.Kind != nil {
		kind := core.TransactionKind(*req.Kind)
		upd.Kind = &kind
	}
	if req.Category != nil {
		category := sanitizeInput(*req.Category)
		upd.Category = &category
	}
	if req.Description != nil {
		description := sanitizeInput(*req.Description)
		upd.Description = &description
	}
	if req.Source != nil {
		source := sanitizeInput(*req.Source)
		upd.Source = &source
	}
	upd.Verified = req.Verified

	saved, err := s.ledger.UpdateTransaction(r.Context(), owner, id, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionResponse(saved))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := idFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.ledger.DeleteTransaction(r.Context(), owner, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := idFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	t, err := s.ledger.GetTransaction(r.Context(), owner, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(*t))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	monthKey, err := monthFromQuery(r, s.ledger.CurrentMonthKey())
	if err != nil {
		writeError(w, r, err)
		return
	}

	transactions, err := s.ledger.ListTransactions(r.Context(), owner, monthKey)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]transactionResponse, 0, len(transactions))
	for _, t := range transactions {
		out = append(out, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}
