package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

const (
	defaultTrials    = 1000
	defaultMaxMonths = 24

	// Hard bounds so a caller-supplied budget cannot pin a CPU
	// indefinitely.
	maxTrials        = 100000
	maxHorizonMonths = 600
)

var (
	ErrInvalidTrials  = errors.New("trials must be between 1 and 100000")
	ErrInvalidHorizon = errors.New("max months must be between 1 and 600")
	ErrNegativeStd    = errors.New("standard deviation must not be negative")
)

// SimulationParams are the inputs of a goal-achievement simulation. Seed 0
// draws a fresh seed per call; any other value makes the run reproducible.
// Zero Trials and MaxMonths fall back to the defaults.
type SimulationParams struct {
	CurrentBalance float64
	Target         float64
	IncomeMean     float64
	IncomeStd      float64
	ExpenseMean    float64
	ExpenseStd     float64
	MaxMonths      int
	Trials         int
	Seed           uint64
}

// SimulationResult aggregates all trials. Trials that never reach the
// target within the horizon are recorded at MaxMonths, which biases
// ExpectedMonthsToGoal toward the horizon when success is rare; that is a
// documented property of the estimate, not a defect.
type SimulationResult struct {
	ProbabilityOfAchievement float64
	ExpectedMonthsToGoal     float64
	MedianMonthsToGoal       float64
	PercentileMonths         PercentileMonths
	Trials                   int
	MaxMonths                int
}

// PercentileMonths is the months-to-goal distribution at fixed cut points.
type PercentileMonths struct {
	P10 float64
	P25 float64
	P50 float64
	P75 float64
	P90 float64
}

// SimulationService runs Monte Carlo goal-achievement trials. Trials share
// no mutable state and are partitioned across workers; each worker owns a
// deterministic generator so a fixed seed reproduces the exact aggregate
// regardless of scheduling.
type SimulationService struct {
	workers int
}

func NewSimulationService() *SimulationService {
	return &SimulationService{workers: runtime.GOMAXPROCS(0)}
}

// SimulateGoalAchievement estimates the probability of reaching the target
// balance within the horizon under normally distributed monthly income and
// expense, each draw floored at zero before it is applied.
func (s *SimulationService) SimulateGoalAchievement(ctx context.Context, params SimulationParams) (SimulationResult, error) {
	if params.Trials == 0 {
		params.Trials = defaultTrials
	}
	if params.MaxMonths == 0 {
		params.MaxMonths = defaultMaxMonths
	}
	if err := params.validate(); err != nil {
		return SimulationResult{}, err
	}

	seed := params.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	workers := s.workers
	if workers < 1 {
		workers = 1
	}
	if workers > params.Trials {
		workers = params.Trials
	}

	perWorker := make([][]int, workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		share := params.Trials / workers
		if w < params.Trials%workers {
			share++
		}
		g.Go(func() error {
			// Worker index keys the generator stream, so the partition is
			// deterministic for a fixed seed and worker count.
			rng := rand.New(rand.NewPCG(seed, uint64(w)))
			months := make([]int, 0, share)
			for trial := 0; trial < share; trial++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				months = append(months, runTrial(rng, params))
			}
			perWorker[w] = months
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SimulationResult{}, fmt.Errorf("run simulation trials: %w", err)
	}

	months := make([]int, 0, params.Trials)
	for _, part := range perWorker {
		months = append(months, part...)
	}

	// runTrial encodes failure as MaxMonths+1 so censored trials and trials
	// that succeed exactly at the horizon stay distinct; censored ones are
	// clamped back to MaxMonths here before aggregation.
	successes := 0
	sum := 0
	for i, m := range months {
		if m > params.MaxMonths {
			months[i] = params.MaxMonths
		} else {
			successes++
		}
		sum += months[i]
	}
	sort.Ints(months)

	return SimulationResult{
		ProbabilityOfAchievement: float64(successes) / float64(params.Trials),
		ExpectedMonthsToGoal:     float64(sum) / float64(params.Trials),
		MedianMonthsToGoal:       percentile(months, 50),
		PercentileMonths: PercentileMonths{
			P10: percentile(months, 10),
			P25: percentile(months, 25),
			P50: percentile(months, 50),
			P75: percentile(months, 75),
			P90: percentile(months, 90),
		},
		Trials:    params.Trials,
		MaxMonths: params.MaxMonths,
	}, nil
}

func (p SimulationParams) validate() error {
	if p.Trials < 1 || p.Trials > maxTrials {
		return ErrInvalidTrials
	}
	if p.MaxMonths < 1 || p.MaxMonths > maxHorizonMonths {
		return ErrInvalidHorizon
	}
	if p.IncomeStd < 0 || p.ExpenseStd < 0 {
		return ErrNegativeStd
	}
	return nil
}

// runTrial walks one randomized balance path. Returns the 1-based month the
// target was reached, or MaxMonths+1 when the horizon is exhausted.
func runTrial(rng *rand.Rand, params SimulationParams) int {
	balance := params.CurrentBalance
	for month := 1; month <= params.MaxMonths; month++ {
		income := flooredNormal(rng, params.IncomeMean, params.IncomeStd)
		expense := flooredNormal(rng, params.ExpenseMean, params.ExpenseStd)
		balance += income - expense
		if balance >= params.Target {
			return month
		}
	}
	return params.MaxMonths + 1
}

// flooredNormal draws from Normal(mean, std) clamped at zero: cashflow
// terms never go negative individually.
func flooredNormal(rng *rand.Rand, mean, std float64) float64 {
	v := rng.NormFloat64()*std + mean
	if v < 0 {
		return 0
	}
	return v
}

// percentile interpolates linearly between the two nearest ranks of a
// sorted sample, matching the conventional "linear" definition.
func percentile(sorted []int, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return float64(sorted[0])
	}
	rank := p / 100 * float64(n-1)
	lo := int(rank)
	if lo >= n-1 {
		return float64(sorted[n-1])
	}
	frac := rank - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[lo+1]-sorted[lo])
}
