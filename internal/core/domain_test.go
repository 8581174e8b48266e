package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validTransaction() Transaction {
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	return Transaction{
		Owner:    "alice",
		Date:     date,
		Amount:   decimal.NewFromFloat(49.90),
		Kind:     Expense,
		Category: "Groceries",
		Source:   SourceManual,
		Verified: true,
		MonthKey: MonthKeyOf(date),
	}
}

func TestMonthKeyOf(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want MonthKey
	}{
		{"mid month", time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), "2025-03"},
		{"first day", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "2025-01"},
		{"last day of year", time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC), "2024-12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MonthKeyOf(tt.date); got != tt.want {
				t.Errorf("MonthKeyOf(%v) = %q, want %q", tt.date, got, tt.want)
			}
		})
	}
}

func TestMonthKeyValidate(t *testing.T) {
	valid := []MonthKey{"2025-01", "2025-12", "1999-06"}
	for _, k := range valid {
		if err := k.Validate(); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", k, err)
		}
	}

	invalid := []MonthKey{"", "2025-13", "2025-00", "2025-1", "202501", "2025-01-01"}
	for _, k := range invalid {
		if err := k.Validate(); !errors.Is(err, ErrInvalidMonthKey) {
			t.Errorf("Validate(%q) = %v, want ErrInvalidMonthKey", k, err)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	t.Run("valid transaction", func(t *testing.T) {
		if err := validTransaction().Validate(); err != nil {
			t.Fatalf("Validate() = %v, want nil", err)
		}
	})

	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{"empty owner", func(tx *Transaction) { tx.Owner = " " }, ErrEmptyOwner},
		{"zero date", func(tx *Transaction) { tx.Date = time.Time{} }, ErrInvalidDate},
		{"zero amount", func(tx *Transaction) { tx.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-5) }, ErrInvalidAmount},
		{"bad kind", func(tx *Transaction) { tx.Kind = "transfer" }, ErrInvalidKind},
		{"empty category", func(tx *Transaction) { tx.Category = "" }, ErrEmptyCategory},
		{"month key mismatch", func(tx *Transaction) { tx.MonthKey = "2020-01" }, ErrInvalidMonthKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTransaction()
			tt.mutate(&tx)
			if err := tx.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGoalValidateAt(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

	valid := Goal{
		Owner:        "alice",
		Title:        "Emergency fund",
		TargetAmount: decimal.NewFromInt(10000),
		TargetDate:   time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Status:       GoalActive,
	}

	t.Run("valid active goal", func(t *testing.T) {
		if err := valid.ValidateAt(now); err != nil {
			t.Fatalf("ValidateAt() = %v, want nil", err)
		}
	})

	t.Run("active goal with today's target date", func(t *testing.T) {
		g := valid
		g.TargetDate = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
		if err := g.ValidateAt(now); !errors.Is(err, ErrPastTargetDate) {
			t.Errorf("ValidateAt() = %v, want ErrPastTargetDate", err)
		}
	})

	t.Run("active goal with past target date", func(t *testing.T) {
		g := valid
		g.TargetDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		if err := g.ValidateAt(now); !errors.Is(err, ErrPastTargetDate) {
			t.Errorf("ValidateAt() = %v, want ErrPastTargetDate", err)
		}
	})

	t.Run("failed goal may keep a historical date", func(t *testing.T) {
		g := valid
		g.Status = GoalFailed
		g.TargetDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		if err := g.ValidateAt(now); err != nil {
			t.Errorf("ValidateAt() = %v, want nil", err)
		}
	})

	tests := []struct {
		name    string
		mutate  func(*Goal)
		wantErr error
	}{
		{"empty owner", func(g *Goal) { g.Owner = "" }, ErrEmptyOwner},
		{"empty title", func(g *Goal) { g.Title = "  " }, ErrEmptyTitle},
		{"zero target", func(g *Goal) { g.TargetAmount = decimal.Zero }, ErrInvalidTargetAmount},
		{"negative target", func(g *Goal) { g.TargetAmount = decimal.NewFromInt(-1) }, ErrInvalidTargetAmount},
		{"bad status", func(g *Goal) { g.Status = "paused" }, ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := valid
			tt.mutate(&g)
			if err := g.ValidateAt(now); !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateAt() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
