package http

import (
	"context"
	"net/http"

	"moneta/internal/services"
)

type forecastResponse struct {
	Status          string  `json:"status"`
	PredictedProfit *string `json:"predicted_profit"`
	Lower           *string `json:"lower"`
	Upper           *string `json:"upper"`
	Algorithm       *string `json:"algorithm"`
	UsedMonths      int     `json:"used_months"`
}

type simulationRequest struct {
	CurrentBalance float64 `json:"current_balance"`
	Target         float64 `json:"target"`
	IncomeMean     float64 `json:"income_mean"`
	IncomeStd      float64 `json:"income_std"`
	ExpenseMean    float64 `json:"expense_mean"`
	ExpenseStd     float64 `json:"expense_std"`
	MaxMonths      int     `json:"max_months"`
	Trials         int     `json:"trials"`
	Seed           uint64  `json:"seed"`
}

type simulationResponse struct {
	ProbabilityOfAchievement float64            `json:"probability_of_achievement"`
	ExpectedMonthsToGoal     float64            `json:"expected_months_to_goal"`
	MedianMonthsToGoal       float64            `json:"median_months_to_goal"`
	Percentiles              map[string]float64 `json:"percentiles"`
	Trials                   int                `json:"trials"`
	MaxMonths                int                `json:"max_months"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
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

	result := s.forecasts.ForecastNextMonth(history)
	resp := forecastResponse{
		Status:     result.Status,
		UsedMonths: result.UsedMonths,
	}
	if result.Status == services.ForecastOK {
		predicted := result.PredictedProfit.String()
		lower := result.Lower.String()
		upper := result.Upper.String()
		algorithm := result.Algorithm
		resp.PredictedProfit = &predicted
		resp.Lower = &lower
		resp.Upper = &upper
		resp.Algorithm = &algorithm
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Trials == 0 {
		req.Trials = s.simTrials
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.simTimeout)
	defer cancel()

	result, err := s.sims.SimulateGoalAchievement(ctx, services.SimulationParams{
		CurrentBalance: req.CurrentBalance,
		Target:         req.Target,
		IncomeMean:     req.IncomeMean,
		IncomeStd:      req.IncomeStd,
		ExpenseMean:    req.ExpenseMean,
		ExpenseStd:     req.ExpenseStd,
		MaxMonths:      req.MaxMonths,
		Trials:         req.Trials,
		Seed:           req.Seed,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, simulationResponse{
		ProbabilityOfAchievement: result.ProbabilityOfAchievement,
		ExpectedMonthsToGoal:     result.ExpectedMonthsToGoal,
		MedianMonthsToGoal:       result.MedianMonthsToGoal,
		Percentiles: map[string]float64{
			"10": result.PercentileMonths.P10,
			"25": result.PercentileMonths.P25,
			"50": result.PercentileMonths.P50,
			"75": result.PercentileMonths.P75,
			"90": result.PercentileMonths.P90,
		},
		Trials:    result.Trials,
		MaxMonths: result.MaxMonths,
	})
}
