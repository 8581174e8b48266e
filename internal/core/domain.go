package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionKind = "income"
	Expense TransactionKind = "expense"
)

const (
	GoalActive   GoalStatus = "active"
	GoalAchieved GoalStatus = "achieved"
	GoalFailed   GoalStatus = "failed"
)

// SourceManual is the default provenance tag for hand-entered transactions.
const SourceManual = "manual"

type (
	TransactionKind string

	GoalStatus string

	// MonthKey identifies a calendar month in "YYYY-MM" form. Transactions
	// and summaries are bucketed by it.
	MonthKey string

	// Transaction is a single dated monetary event. Amount is always
	// positive; Kind carries the sign.
	Transaction struct {
		ID          int64
		Owner       string
		Date        time.Time
		Amount      decimal.Decimal
		Kind        TransactionKind
		Category    string
		Description string
		Source      string
		Verified    bool
		MonthKey    MonthKey
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// MonthlySummary caches the income/expense totals of one owner-month.
	// It is derived entirely from the transaction set and is recomputed in
	// the same storage transaction as any mutation that affects it.
	MonthlySummary struct {
		Owner        string
		MonthKey     MonthKey
		TotalIncome  decimal.Decimal
		TotalExpense decimal.Decimal
		Profit       decimal.Decimal
		UpdatedAt    time.Time
	}

	// Goal is a target amount to reach by a target date, tracked against
	// accumulated monthly profit.
	Goal struct {
		ID           int64
		Owner        string
		Title        string
		Description  string
		TargetAmount decimal.Decimal
		TargetDate   time.Time
		Status       GoalStatus
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	// CategoryTotal is one row of a top-expense-categories breakdown.
	CategoryTotal struct {
		Category string
		Total    decimal.Decimal
	}
)

var (
	ErrEmptyOwner          = errors.New("empty owner")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInvalidKind         = errors.New("invalid transaction kind")
	ErrInvalidDate         = errors.New("invalid date")
	ErrEmptyCategory       = errors.New("empty category")
	ErrEmptyTitle          = errors.New("empty title")
	ErrInvalidTargetAmount = errors.New("target amount must be greater than zero")
	ErrPastTargetDate      = errors.New("target date must be in the future")
	ErrInvalidStatus       = errors.New("invalid goal status")
	ErrInvalidMonthKey     = errors.New("invalid month key")
	ErrNotFound            = errors.New("not found")
)

var monthKeyPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// MonthKeyOf truncates a date to its year-month bucket.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(t.Format("2006-01"))
}

func (k MonthKey) Validate() error {
	if !monthKeyPattern.MatchString(string(k)) {
		return ErrInvalidMonthKey
	}
	return nil
}

func (k TransactionKind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidKind
	}
}

func (s GoalStatus) Validate() error {
	switch s {
	case GoalActive, GoalAchieved, GoalFailed:
		return nil
	default:
		return ErrInvalidStatus
	}
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Owner) == "" {
		return ErrEmptyOwner
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	if t.MonthKey != MonthKeyOf(t.Date) {
		return fmt.Errorf("%w: %q does not match date %s", ErrInvalidMonthKey, t.MonthKey, t.Date.Format("2006-01-02"))
	}
	return nil
}

// ValidateAt checks goal invariants as of the given instant. Active goals
// must have a target date strictly in the future; achieved and failed goals
// may carry historical dates.
func (g Goal) ValidateAt(now time.Time) error {
	if strings.TrimSpace(g.Owner) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(g.Title) == "" {
		return ErrEmptyTitle
	}
	if len(g.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if !g.TargetAmount.IsPositive() {
		return ErrInvalidTargetAmount
	}
	if g.TargetDate.IsZero() {
		return ErrInvalidDate
	}
	if err := g.Status.Validate(); err != nil {
		return err
	}
	if g.Status == GoalActive && !g.TargetDate.After(dateOnly(now)) {
		return ErrPastTargetDate
	}
	return nil
}

// dateOnly strips the time-of-day component, keeping UTC calendar dates
// comparable regardless of the wall clock used.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
