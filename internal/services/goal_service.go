package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"moneta/internal/core"
	"moneta/internal/storage"

	"github.com/shopspring/decimal"
)

// Probability bounds for the deterministic goal score. The floor keeps a
// non-converging goal from reading as impossible, the cap keeps an easy
// goal from reading as certain.
const (
	probabilityFloor = 5
	probabilityCap   = 99

	// recentMonths is how many trailing summaries feed the average-profit
	// estimate.
	recentMonths = 3

	// daysPerMonth converts between the monthly profit cadence and
	// calendar projections.
	daysPerMonth = 30
)

// GoalProgress describes how a goal is tracking: the amount saved so far,
// percent complete, the date the current trend reaches the target (nil when
// the trend does not converge), and a bounded probability score.
type GoalProgress struct {
	CurrentSaved         decimal.Decimal
	ProgressPercent      int
	ProjectedDate        *time.Time
	ProbabilityOfSuccess int
}

// GoalUpdate carries the mutable goal fields; nil means "leave unchanged".
type GoalUpdate struct {
	Title        *string
	Description  *string
	TargetAmount *decimal.Decimal
	TargetDate   *time.Time
	Status       *core.GoalStatus
}

// GoalService implements goal lifecycle and progress math. All date
// arithmetic goes through the injected clock.
type GoalService struct {
	storage *storage.SQLiteRepository
	now     Clock
}

func NewGoalService(storage *storage.SQLiteRepository, now Clock) *GoalService {
	if now == nil {
		now = time.Now
	}
	return &GoalService{storage: storage, now: now}
}

func (s *GoalService) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if g.Status == "" {
		g.Status = core.GoalActive
	}
	if err := g.ValidateAt(s.now()); err != nil {
		return core.Goal{}, fmt.Errorf("validate goal: %w", err)
	}
	return s.storage.CreateGoal(ctx, g)
}

func (s *GoalService) UpdateGoal(ctx context.Context, owner string, id int64, upd GoalUpdate) (core.Goal, error) {
	existing, err := s.storage.GetGoal(ctx, owner, id)
	if err != nil {
		return core.Goal{}, fmt.Errorf("load goal: %w", err)
	}

	g := *existing
	if upd.Title != nil {
		g.Title = *upd.Title
	}
	if upd.Description != nil {
		g.Description = *upd.Description
	}
	if upd.TargetAmount != nil {
		g.TargetAmount = *upd.TargetAmount
	}
	if upd.TargetDate != nil {
		g.TargetDate = *upd.TargetDate
	}
	if upd.Status != nil {
		g.Status = *upd.Status
	}
	if err := g.ValidateAt(s.now()); err != nil {
		return core.Goal{}, fmt.Errorf("validate goal: %w", err)
	}
	return s.storage.UpdateGoal(ctx, g)
}

func (s *GoalService) GetGoal(ctx context.Context, owner string, id int64) (*core.Goal, error) {
	return s.storage.GetGoal(ctx, owner, id)
}

func (s *GoalService) ListGoals(ctx context.Context, owner string) ([]core.Goal, error) {
	return s.storage.ListGoals(ctx, owner)
}

// CurrentSaved returns the profit accumulated toward a goal: the sum of
// monthly profits from the goal's creation month onward, floored at zero.
// Monthly profit is treated as the free cashflow allocatable to goals.
func (s *GoalService) CurrentSaved(ctx context.Context, goal core.Goal) (decimal.Decimal, error) {
	total, err := s.storage.SumProfitSince(ctx, goal.Owner, core.MonthKeyOf(goal.CreatedAt))
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum profit: %w", err)
	}
	if total.IsNegative() {
		return decimal.Zero, nil
	}
	return total, nil
}

// CalculateProgress projects a goal against the owner's recent cashflow.
// The average profit of the last three months drives both the projected
// completion date and the probability score; the probability branches
// guarantee a value in [0, 100] and no division by zero.
func (s *GoalService) CalculateProgress(ctx context.Context, goal core.Goal) (GoalProgress, error) {
	saved, err := s.CurrentSaved(ctx, goal)
	if err != nil {
		return GoalProgress{}, err
	}
	progress := progressPercent(saved, goal.TargetAmount)

	recent, err := s.storage.RecentSummaries(ctx, goal.Owner, recentMonths)
	if err != nil {
		return GoalProgress{}, fmt.Errorf("load recent summaries: %w", err)
	}
	if len(recent) == 0 {
		return GoalProgress{
			CurrentSaved:         saved,
			ProgressPercent:      progress,
			ProjectedDate:        nil,
			ProbabilityOfSuccess: 0,
		}, nil
	}

	total := decimal.Zero
	for _, summary := range recent {
		total = total.Add(summary.Profit)
	}
	avgProfit := total.Div(decimal.NewFromInt(int64(len(recent))))

	today := startOfDay(s.now())
	daysLeft := int(goal.TargetDate.Sub(today).Hours() / 24)
	remaining := goal.TargetAmount.Sub(saved)

	var (
		projected   *time.Time
		probability int
	)
	if !avgProfit.IsPositive() {
		// The trend does not converge on the target; no projected date,
		// fixed low score.
		probability = probabilityFloor
	} else {
		monthsNeeded := remaining.InexactFloat64() / avgProfit.InexactFloat64()
		if monthsNeeded < 0 {
			monthsNeeded = 0 // already at or past the target
		}
		d := today.AddDate(0, 0, int(monthsNeeded*daysPerMonth))
		projected = &d

		monthsLeft := float64(daysLeft) / daysPerMonth
		switch {
		case monthsLeft <= 0:
			probability = 0
		case monthsNeeded <= monthsLeft:
			probability = min(probabilityCap, 70+int((monthsLeft-monthsNeeded)*10))
		default:
			probability = max(probabilityFloor, 50-int((monthsNeeded-monthsLeft)*10))
		}
	}

	return GoalProgress{
		CurrentSaved:         saved,
		ProgressPercent:      progress,
		ProjectedDate:        projected,
		ProbabilityOfSuccess: probability,
	}, nil
}

// AutoUpdateStatuses reconciles all of an owner's active goals: achieved
// when the saved amount has reached the target, failed when the target date
// has passed without achievement. Returns the number of goals transitioned.
// This is an explicit batch pass, not a side effect of reading progress.
func (s *GoalService) AutoUpdateStatuses(ctx context.Context, owner string) (int, error) {
	goals, err := s.storage.ListGoalsByStatus(ctx, owner, core.GoalActive)
	if err != nil {
		return 0, fmt.Errorf("list active goals: %w", err)
	}

	today := startOfDay(s.now())
	updated := 0
	for _, goal := range goals {
		saved, err := s.CurrentSaved(ctx, goal)
		if err != nil {
			return updated, err
		}

		var next core.GoalStatus
		switch {
		case saved.GreaterThanOrEqual(goal.TargetAmount):
			next = core.GoalAchieved
		case goal.TargetDate.Before(today):
			next = core.GoalFailed
		default:
			continue
		}

		if err := s.storage.UpdateGoalStatus(ctx, owner, goal.ID, next); err != nil {
			return updated, fmt.Errorf("update goal status: %w", err)
		}
		slog.InfoContext(ctx, "Goal status transitioned",
			"id", goal.ID,
			"owner", owner,
			"status", next,
			"current_saved", saved.String(),
			"target_amount", goal.TargetAmount.String())
		updated++
	}
	return updated, nil
}

func progressPercent(saved, target decimal.Decimal) int {
	if !target.IsPositive() {
		return 0
	}
	percent := saved.Div(target).Mul(decimal.NewFromInt(100)).InexactFloat64()
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return int(percent)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
