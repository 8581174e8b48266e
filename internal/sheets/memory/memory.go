package memory

import (
	"context"
	"sync"

	"moneta/internal/core"
	ports "moneta/internal/sheets"
)

// Store is an in-memory SummaryWriter keeping the latest written state per
// owner-month. Used when no spreadsheet is configured and in tests.
type Store struct {
	mu        sync.Mutex
	summaries map[string]core.MonthlySummary
	writes    int
}

var _ ports.SummaryWriter = (*Store)(nil)

func New() *Store {
	return &Store{summaries: make(map[string]core.MonthlySummary)}
}

func (s *Store) WriteSummary(_ context.Context, summary core.MonthlySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[summary.Owner+"/"+string(summary.MonthKey)] = summary
	s.writes++
	return nil
}

// Get returns the last written summary for an owner-month.
func (s *Store) Get(owner string, monthKey core.MonthKey) (core.MonthlySummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary, ok := s.summaries[owner+"/"+string(monthKey)]
	return summary, ok
}

// Writes returns the total number of writes received.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
