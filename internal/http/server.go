package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	applog "moneta/internal/log"
	"moneta/internal/services"
)

// Server routes the JSON API onto the core services. It holds no state of
// its own; everything is delegated.
type Server struct {
	ledger     *services.LedgerService
	forecasts  *services.ForecastService
	goals      *services.GoalService
	sims       *services.SimulationService
	simTimeout time.Duration
	simTrials  int
}

// Options configures the HTTP server surface.
type Options struct {
	// SimulationTimeout bounds a single simulation request. Zero means 10s.
	SimulationTimeout time.Duration
	// SimulationTrials is the trial count used when a simulation request
	// omits it. Zero means 1000.
	SimulationTrials int
}

func NewServer(addr string, ledger *services.LedgerService, forecasts *services.ForecastService, goals *services.GoalService, sims *services.SimulationService, opts Options) *http.Server {
	if opts.SimulationTimeout <= 0 {
		opts.SimulationTimeout = 10 * time.Second
	}
	if opts.SimulationTrials <= 0 {
		opts.SimulationTrials = 1000
	}

	s := &Server{
		ledger:     ledger,
		forecasts:  forecasts,
		goals:      goals,
		sims:       sims,
		simTimeout: opts.SimulationTimeout,
		simTrials:  opts.SimulationTrials,
	}

	return &http.Server{
		Addr:           addr,
		Handler:        requestLogging(s.routes()),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16, // 64KB
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/summary", s.handleGetSummary)
	mux.HandleFunc("GET /api/summary/current", s.handleCurrentSummary)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/months", s.handleMonths)
	mux.HandleFunc("GET /api/expenses/top-categories", s.handleTopExpenseCategories)

	mux.HandleFunc("GET /api/forecast", s.handleForecast)
	mux.HandleFunc("POST /api/simulate", s.handleSimulate)

	mux.HandleFunc("POST /api/goals", s.handleCreateGoal)
	mux.HandleFunc("GET /api/goals", s.handleListGoals)
	mux.HandleFunc("GET /api/goals/{id}", s.handleGetGoal)
	mux.HandleFunc("PUT /api/goals/{id}", s.handleUpdateGoal)
	mux.HandleFunc("GET /api/goals/{id}/progress", s.handleGoalProgress)
	mux.HandleFunc("POST /api/goals/reconcile", s.handleReconcileGoals)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusRecorder captures the written status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		requestID := generateRequestID()

		next.ServeHTTP(rec, r)

		slog.InfoContext(r.Context(), "Request handled",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rec.status,
			applog.FieldDuration, time.Since(start).Milliseconds())
	})
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
