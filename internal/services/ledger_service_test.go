package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"moneta/internal/core"

	"github.com/shopspring/decimal"
)

func TestLedgerCreateTransaction(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewLedgerService(repo, nil, nil)
	ctx := context.Background()

	t.Run("derives month key and defaults source", func(t *testing.T) {
		saved, err := svc.CreateTransaction(ctx, core.Transaction{
			Owner:    "alice",
			Date:     time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
			Amount:   decimal.NewFromInt(100),
			Kind:     core.Expense,
			Category: "Groceries",
			Verified: true,
			// Deliberately wrong; the service must overwrite it.
			MonthKey: "1999-01",
		})
		if err != nil {
			t.Fatalf("CreateTransaction() error = %v", err)
		}
		if saved.MonthKey != "2025-03" {
			t.Errorf("MonthKey = %q, want 2025-03", saved.MonthKey)
		}
		if saved.Source != core.SourceManual {
			t.Errorf("Source = %q, want %q", saved.Source, core.SourceManual)
		}
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := svc.CreateTransaction(ctx, core.Transaction{
			Owner:    "alice",
			Date:     time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
			Amount:   decimal.NewFromInt(-5),
			Kind:     core.Expense,
			Category: "Groceries",
		})
		if !errors.Is(err, core.ErrInvalidAmount) {
			t.Errorf("CreateTransaction() error = %v, want ErrInvalidAmount", err)
		}
	})
}

func TestLedgerUpdateTransaction(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewLedgerService(repo, nil, nil)
	ctx := context.Background()

	saved, err := svc.CreateTransaction(ctx, core.Transaction{
		Owner:    "alice",
		Date:     time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		Amount:   decimal.NewFromInt(100),
		Kind:     core.Expense,
		Category: "Groceries",
		Verified: true,
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	t.Run("partial update keeps other fields", func(t *testing.T) {
		amount := decimal.NewFromInt(150)
		updated, err := svc.UpdateTransaction(ctx, "alice", saved.ID, TransactionUpdate{Amount: &amount})
		if err != nil {
			t.Fatalf("UpdateTransaction() error = %v", err)
		}
		if !updated.Amount.Equal(amount) {
			t.Errorf("Amount = %s, want 150", updated.Amount)
		}
		if updated.Category != "Groceries" {
			t.Errorf("Category = %q, want untouched", updated.Category)
		}
	})

	t.Run("date change moves the month bucket", func(t *testing.T) {
		newDate := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
		updated, err := svc.UpdateTransaction(ctx, "alice", saved.ID, TransactionUpdate{Date: &newDate})
		if err != nil {
			t.Fatalf("UpdateTransaction() error = %v", err)
		}
		if updated.MonthKey != "2025-04" {
			t.Errorf("MonthKey = %q, want 2025-04", updated.MonthKey)
		}

		old, err := svc.GetSummary(ctx, "alice", "2025-03")
		if err != nil {
			t.Fatalf("GetSummary() error = %v", err)
		}
		if !old.TotalExpense.IsZero() {
			t.Errorf("old month expense = %s, want 0", old.TotalExpense)
		}
	})

	t.Run("missing transaction", func(t *testing.T) {
		_, err := svc.UpdateTransaction(ctx, "alice", 9999, TransactionUpdate{})
		if !errors.Is(err, core.ErrNotFound) {
			t.Errorf("UpdateTransaction() error = %v, want ErrNotFound", err)
		}
	})
}

func TestLedgerDeleteTransaction(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewLedgerService(repo, nil, nil)
	ctx := context.Background()

	saved, err := svc.CreateTransaction(ctx, core.Transaction{
		Owner:    "alice",
		Date:     time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		Amount:   decimal.NewFromInt(100),
		Kind:     core.Expense,
		Category: "Groceries",
		Verified: true,
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	if err := svc.DeleteTransaction(ctx, "alice", saved.ID); err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}
	if err := svc.DeleteTransaction(ctx, "alice", saved.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second DeleteTransaction() error = %v, want ErrNotFound", err)
	}
}

func TestLedgerMonthKeyValidation(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewLedgerService(repo, nil, nil)
	ctx := context.Background()

	if _, err := svc.ListTransactions(ctx, "alice", "2025-13"); !errors.Is(err, core.ErrInvalidMonthKey) {
		t.Errorf("ListTransactions() error = %v, want ErrInvalidMonthKey", err)
	}
	if _, err := svc.GetSummary(ctx, "alice", "not-a-month"); !errors.Is(err, core.ErrInvalidMonthKey) {
		t.Errorf("GetSummary() error = %v, want ErrInvalidMonthKey", err)
	}
	if _, err := svc.TopExpenseCategories(ctx, "alice", "", 5); !errors.Is(err, core.ErrInvalidMonthKey) {
		t.Errorf("TopExpenseCategories() error = %v, want ErrInvalidMonthKey", err)
	}
}

func TestLedgerCurrentMonthSummary(t *testing.T) {
	repo := newTestStorage(t)
	now := time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC)
	svc := NewLedgerService(repo, nil, fixedClock(now))
	ctx := context.Background()

	if got := svc.CurrentMonthKey(); got != "2025-03" {
		t.Errorf("CurrentMonthKey() = %q, want 2025-03", got)
	}

	if _, err := svc.CurrentMonthSummary(ctx, "alice"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("CurrentMonthSummary() error = %v, want ErrNotFound", err)
	}

	if _, err := svc.CreateTransaction(ctx, core.Transaction{
		Owner:    "alice",
		Date:     time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		Amount:   decimal.NewFromInt(500),
		Kind:     core.Income,
		Category: "Salary",
		Verified: true,
	}); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	s, err := svc.CurrentMonthSummary(ctx, "alice")
	if err != nil {
		t.Fatalf("CurrentMonthSummary() error = %v", err)
	}
	if s.MonthKey != "2025-03" {
		t.Errorf("MonthKey = %q, want 2025-03", s.MonthKey)
	}
	if !s.Profit.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Profit = %s, want 500", s.Profit)
	}
}
