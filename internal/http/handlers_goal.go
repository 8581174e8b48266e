package http

import (
	"net/http"
	"time"

	"moneta/internal/core"
	"moneta/internal/services"

	"github.com/shopspring/decimal"
)

type goalRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	TargetAmount string `json:"target_amount"`
	TargetDate   string `json:"target_date"`
}

type goalUpdateRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	TargetAmount *string `json:"target_amount"`
	TargetDate   *string `json:"target_date"`
	Status       *string `json:"status"`
}

type goalResponse struct {
	ID           int64  `json:"id"`
	Owner        string `json:"owner"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	TargetAmount string `json:"target_amount"`
	TargetDate   string `json:"target_date"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

type goalProgressResponse struct {
	CurrentSaved         string  `json:"current_saved"`
	ProgressPercent      int     `json:"progress_percent"`
	ProjectedDate        *string `json:"projected_date"`
	ProbabilityOfSuccess int     `json:"probability_of_success"`
}

type reconcileResponse struct {
	Updated int `json:"updated"`
}

func toGoalResponse(g core.Goal) goalResponse {
	return goalResponse{
		ID:           g.ID,
		Owner:        g.Owner,
		Title:        g.Title,
		Description:  g.Description,
		TargetAmount: g.TargetAmount.String(),
		TargetDate:   g.TargetDate.Format("2006-01-02"),
		Status:       string(g.Status),
		CreatedAt:    g.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req goalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	target, err := decimal.NewFromString(req.TargetAmount)
	if err != nil {
		writeError(w, r, core.ErrInvalidTargetAmount)
		return
	}
	targetDate, err := parseDate(req.TargetDate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	goal, err := s.goals.CreateGoal(r.Context(), core.Goal{
		Owner:        owner,
		Title:        sanitizeInput(req.Title),
		Description:  sanitizeInput(req.Description),
		TargetAmount: target,
		TargetDate:   targetDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalResponse(goal))
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
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

	var req goalUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var upd services.GoalUpdate
	if req.Title != nil {
		title := sanitizeInput(*req.Title)
		upd.Title = &title
	}
	if req.Description != nil {
		description := sanitizeInput(*req.Description)
		upd.Description = &description
	}
	if req.TargetAmount != nil {
		target, err := decimal.NewFromString(*req.TargetAmount)
		if err != nil {
			writeError(w, r, core.ErrInvalidTargetAmount)
			return
		}
		upd.TargetAmount = &target
	}
	if req.TargetDate != nil {
		targetDate, err := parseDate(*req.TargetDate)
		if err != nil {
			writeError(w, r, err)
			return
		}
		upd.TargetDate = &targetDate
	}
	if req.Status != nil {
		status := core.GoalStatus(*req.Status)
		upd.Status = &status
	}

	goal, err := s.goals.UpdateGoal(r.Context(), owner, id, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalResponse(goal))
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
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

	goal, err := s.goals.GetGoal(r.Context(), owner, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalResponse(*goal))
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	goals, err := s.goals.ListGoals(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]goalResponse, 0, len(goals))
	for _, g := range goals {
		out = append(out, toGoalResponse(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
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

	goal, err := s.goals.GetGoal(r.Context(), owner, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	progress, err := s.goals.CalculateProgress(r.Context(), *goal)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := goalProgressResponse{
		CurrentSaved:         progress.CurrentSaved.String(),
		ProgressPercent:      progress.ProgressPercent,
		ProbabilityOfSuccess: progress.ProbabilityOfSuccess,
	}
	if progress.ProjectedDate != nil {
		d := progress.ProjectedDate.Format("2006-01-02")
		resp.ProjectedDate = &d
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReconcileGoals(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.goals.AutoUpdateStatuses(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reconcileResponse{Updated: updated})
}
