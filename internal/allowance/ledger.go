// Package allowance tracks the monthly meal-allowance credit against what
// was actually spent with it.
package allowance

import (
	"context"
	"fmt"

	"feira/internal/core"
)

type Repository interface {
	UpsertAllowance(ctx context.Context, a core.MealAllowance) (core.MealAllowance, error)
	ListAllowances(ctx context.Context) ([]core.MealAllowance, error)
	ListPurchases(ctx context.Context) ([]core.Purchase, error)
}

type Ledger struct {
	repo Repository
}

func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// Record stores the credit for a month, replacing any earlier amount for
// the same month key.
func (l *Ledger) Record(ctx context.Context, monthKey string, amountCents int64) (core.MealAllowance, error) {
	a := core.MealAllowance{MonthKey: monthKey, Amount: core.Money{Cents: amountCents}}
	if err := a.Validate(); err != nil {
		return core.MealAllowance{}, err
	}
	saved, err := l.repo.UpsertAllowance(ctx, a)
	if err != nil {
		return core.MealAllowance{}, fmt.Errorf("record allowance: %w", err)
	}
	return saved, nil
}

// List returns every recorded month, ascending by month key.
func (l *Ledger) List(ctx context.Context) ([]core.MealAllowance, error) {
	allowances, err := l.repo.ListAllowances(ctx)
	if err != nil {
		return nil, fmt.Errorf("list allowances: %w", err)
	}
	return allowances, nil
}

// Status computes the all-history position. Purchases without an explicit
// payment method count against the allowance, matching how legacy rows
// were recorded.
func (l *Ledger) Status(ctx context.Context) (core.AllowanceStatus, error) {
	allowances, err := l.repo.ListAllowances(ctx)
	if err != nil {
		return core.AllowanceStatus{}, fmt.Errorf("allowance status: %w", err)
	}
	purchases, err := l.repo.ListPurchases(ctx)
	if err != nil {
		return core.AllowanceStatus{}, fmt.Errorf("allowance status: %w", err)
	}

	var status core.AllowanceStatus
	for _, a := range allowances {
		status.Received.Cents += a.Amount.Cents
	}
	for _, p := range purchases {
		if p.Payment.Normalize() == core.PaymentMealAllowance {
			status.Spent.Cents += p.Total.Cents
		}
	}

	if diff := status.Received.Cents - status.Spent.Cents; diff > 0 {
		status.Balance = core.Money{Cents: diff}
	} else {
		status.Overspend = core.Money{Cents: -diff}
	}
	return status, nil
}
