package services

import (
	"math"

	"moneta/internal/core"

	"github.com/shopspring/decimal"
)

const (
	ForecastOK               = "ok"
	ForecastInsufficientData = "insufficient_data"

	// forecastAlgorithm names the method in results so consumers can tell
	// deterministic trend output from simulation output.
	forecastAlgorithm = "linear_regression_profit_trend"

	// minForecastMonths is a deliberate threshold: a two-parameter trend
	// fit over fewer than three points is not meaningful.
	minForecastMonths = 3

	// z80 is the two-sided z value for an ~80% interval under a
	// normal-residual assumption. A readable "likely range", not a
	// rigorous guarantee.
	z80 = 1.28
)

// ForecastResult is the outcome of a next-month profit forecast. The
// numeric fields are meaningful only when Status is ForecastOK;
// insufficient history is an expected case, represented as data rather
// than as an error.
type ForecastResult struct {
	Status          string
	PredictedProfit decimal.Decimal
	Lower           decimal.Decimal
	Upper           decimal.Decimal
	Algorithm       string
	UsedMonths      int
}

// ForecastService fits a profit trend over monthly summaries. It is pure
// and stateless: safe to share and to call concurrently.
type ForecastService struct{}

func NewForecastService() *ForecastService {
	return &ForecastService{}
}

// ForecastNextMonth fits an ordinary least-squares line through the given
// history (which must be ordered ascending by month) and extrapolates one
// step past the observed range. The band is ±1.28 residual standard
// deviations. Never fails on well-formed input: constant and all-zero
// histories yield a zero-width band.
func (s *ForecastService) ForecastNextMonth(history []core.MonthlySummary) ForecastResult {
	n := len(history)
	if n < minForecastMonths {
		return ForecastResult{
			Status:     ForecastInsufficientData,
			UsedMonths: n,
		}
	}

	y := make([]float64, n)
	for i, summary := range history {
		y[i] = summary.Profit.InexactFloat64()
	}

	slope, intercept := fitLine(y)
	forecast := slope*float64(n) + intercept

	// Bessel-corrected residual standard deviation.
	var sumSq float64
	for i, v := range y {
		r := v - (slope*float64(i) + intercept)
		sumSq += r * r
	}
	std := math.Sqrt(sumSq / float64(n-1))

	return ForecastResult{
		Status:          ForecastOK,
		PredictedProfit: round2(forecast),
		Lower:           round2(forecast - z80*std),
		Upper:           round2(forecast + z80*std),
		Algorithm:       forecastAlgorithm,
		UsedMonths:      n,
	}
}

// fitLine computes the least-squares line y = slope*x + intercept over
// equally spaced points x = 0..n-1.
func fitLine(y []float64) (slope, intercept float64) {
	n := float64(len(y))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range y {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		// Single point; flat line through it. Unreachable behind the
		// minimum-months gate but kept so the fit itself is total.
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

func round2(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
