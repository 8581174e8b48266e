package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"moneta/internal/amqp"
	"moneta/internal/core"
	"moneta/internal/storage"

	"github.com/shopspring/decimal"
)

// Clock supplies the current time. Injected so date-sensitive calculations
// are deterministic under test.
type Clock func() time.Time

// TransactionUpdate carries the mutable transaction fields; nil means
// "leave unchanged".
type TransactionUpdate struct {
	Date        *time.Time
	Amount      *decimal.Decimal
	Kind        *core.TransactionKind
	Category    *string
	Description *string
	Source      *string
	Verified    *bool
}

// LedgerService orchestrates ledger mutations: validation, the atomic
// write-plus-recompute in storage, and best-effort change notification
// afterwards. The broker publish happens only after the storage transaction
// commits and never fails the mutation.
type LedgerService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
	now        Clock
}

func NewLedgerService(storage *storage.SQLiteRepository, amqpClient *amqp.Client, now Clock) *LedgerService {
	if now == nil {
		now = time.Now
	}
	return &LedgerService{
		storage:    storage,
		amqpClient: amqpClient,
		now:        now,
	}
}

// CreateTransaction validates and persists a new ledger entry. The month
// key is derived here, never accepted from the caller.
func (s *LedgerService) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.Source == "" {
		t.Source = core.SourceManual
	}
	t.MonthKey = core.MonthKeyOf(t.Date)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}

	saved, err := s.storage.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.publishChange(ctx, saved.Owner, saved.MonthKey)
	return saved, nil
}

// UpdateTransaction applies a partial update. When the date moves across a
// month boundary both the old and the new summaries are recomputed inside
// the storage transaction.
func (s *LedgerService) UpdateTransaction(ctx context.Context, owner string, id int64, upd TransactionUpdate) (core.Transaction, error) {
	existing, err := s.storage.GetTransaction(ctx, owner, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load transaction: %w", err)
	}

	t := *existing
	oldMonth := t.MonthKey
	if upd.Date != nil {
		t.Date = *upd.Date
		t.MonthKey = core.MonthKeyOf(t.Date)
	}
	if upd.Amount != nil {
		t.Amount = *upd.Amount
	}
	if upd.Kind != nil {
		t.Kind = *upd.Kind
	}
	if upd.Category != nil {
		t.Category = *upd.Category
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Source != nil {
		t.Source = *upd.Source
	}
	if upd.Verified != nil {
		t.Verified = *upd.Verified
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}

	saved, err := s.storage.UpdateTransaction(ctx, t, oldMonth)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	if saved.MonthKey != oldMonth {
		s.publishChange(ctx, saved.Owner, oldMonth, saved.MonthKey)
	} else {
		s.publishChange(ctx, saved.Owner, saved.MonthKey)
	}
	return saved, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, owner string, id int64) error {
	monthKey, err := s.storage.DeleteTransaction(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.publishChange(ctx, owner, monthKey)
	return nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, owner string, id int64) (*core.Transaction, error) {
	return s.storage.GetTransaction(ctx, owner, id)
}

func (s *LedgerService) ListTransactions(ctx context.Context, owner string, monthKey core.MonthKey) ([]core.Transaction, error) {
	if err := monthKey.Validate(); err != nil {
		return nil, err
	}
	return s.storage.ListTransactions(ctx, owner, monthKey)
}

func (s *LedgerService) GetSummary(ctx context.Context, owner string, monthKey core.MonthKey) (*core.MonthlySummary, error) {
	if err := monthKey.Validate(); err != nil {
		return nil, err
	}
	return s.storage.GetSummary(ctx, owner, monthKey)
}

// CurrentMonthSummary returns the summary of the month the clock is in, or
// core.ErrNotFound when the owner has no transactions this month yet.
func (s *LedgerService) CurrentMonthSummary(ctx context.Context, owner string) (*core.MonthlySummary, error) {
	return s.storage.GetSummary(ctx, owner, s.CurrentMonthKey())
}

// CurrentMonthKey returns the month the clock is in.
func (s *LedgerService) CurrentMonthKey() core.MonthKey {
	return core.MonthKeyOf(s.now())
}

func (s *LedgerService) History(ctx context.Context, owner string) ([]core.MonthlySummary, error) {
	return s.storage.History(ctx, owner)
}

func (s *LedgerService) Months(ctx context.Context, owner string) ([]core.MonthKey, error) {
	return s.storage.Months(ctx, owner)
}

func (s *LedgerService) TopExpenseCategories(ctx context.Context, owner string, monthKey core.MonthKey, limit int) ([]core.CategoryTotal, error) {
	if err := monthKey.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	return s.storage.TopExpenseCategories(ctx, owner, monthKey, limit)
}

func (s *LedgerService) publishChange(ctx context.Context, owner string, monthKeys ...core.MonthKey) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.PublishLedgerChange(ctx, owner, monthKeys); err != nil {
		// The mutation is already committed; collaborators catch up on the
		// next change for this month.
		slog.ErrorContext(ctx, "Failed to publish ledger change",
			"owner", owner,
			"month_keys", monthKeys,
			"error", err)
	}
}
