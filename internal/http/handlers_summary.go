package http

import (
	"net/http"

	"moneta/internal/core"
)

type summaryResponse struct {
	Owner        string `json:"owner"`
	MonthKey     string `json:"month_key"`
	TotalIncome  string `json:"total_income"`
	TotalExpense string `json:"total_expense"`
	Profit       string `json:"profit"`
}

type categoryTotalResponse struct {
	Category string `json:"category"`
	Total    string `json:"total"`
}

func toSummaryResponse(s core.MonthlySummary) summaryResponse {
	return summaryResponse{
		Owner:        s.Owner,
		MonthKey:     string(s.MonthKey),
		TotalIncome:  s.TotalIncome.String(),
		TotalExpense: s.TotalExpense.String(),
		Profit:       s.Profit.String(),
	}
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
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

	summary, err := s.ledger.GetSummary(r.Context(), owner, monthKey)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(*summary))
}

func (s *Server) handleCurrentSummary(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := s.ledger.CurrentMonthSummary(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(*summary))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	history, err := s.ledger.History(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]summaryResponse, 0, len(history))
	for _, summary := range history {
		out = append(out, toSummaryResponse(summary))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	months, err := s.ledger.Months(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]string, 0, len(months))
	for _, m := range months {
		out = append(out, string(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTopExpenseCategories(w http.ResponseWriter, r *http.Request) {
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
	limit := limitFromQuery(r, 5)

	totals, err := s.ledger.TopExpenseCategories(r.Context(), owner, monthKey, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]categoryTotalResponse, 0, len(totals))
	for _, t := range totals {
		out = append(out, categoryTotalResponse{
			Category: t.Category,
			Total:    t.Total.String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
