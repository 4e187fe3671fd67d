package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrailingWindowDays is both the look-back window and the fixed divisor of the
// trailing daily average.
const TrailingWindowDays = 30

// Statistics are derived from the loaded expense page only, never from the
// full filtered dataset.
type Statistics struct {
	LoadedCount          int
	TotalLoaded          decimal.Decimal
	CurrentMonthTotal    decimal.Decimal
	TrailingDailyAverage decimal.Decimal
	TotalsByCategory     map[string]decimal.Decimal
}

// Derive computes the dashboard statistics for expenses as seen at now.
// Calendar comparisons happen in now's location.
func Derive(expenses []Expense, now time.Time) Statistics {
	stats := Statistics{
		LoadedCount:          len(expenses),
		TotalLoaded:          decimal.Zero,
		CurrentMonthTotal:    decimal.Zero,
		TrailingDailyAverage: decimal.Zero,
		TotalsByCategory:     make(map[string]decimal.Decimal),
	}

	loc := now.Location()
	year, month, _ := now.Date()
	windowStart := now.AddDate(0, 0, -TrailingWindowDays)
	trailing := decimal.Zero

	for _, e := range expenses {
		stats.TotalLoaded = stats.TotalLoaded.Add(e.Monto)

		when := e.FechaHora.In(loc)
		if y, m, _ := when.Date(); y == year && m == month {
			stats.CurrentMonthTotal = stats.CurrentMonthTotal.Add(e.Monto)
		}
		if !when.Before(windowStart) {
			trailing = trailing.Add(e.Monto)
		}

		prev, ok := stats.TotalsByCategory[e.CategoriaID]
		if !ok {
			prev = decimal.Zero
		}
		stats.TotalsByCategory[e.CategoriaID] = prev.Add(e.Monto)
	}

	stats.TrailingDailyAverage = trailing.Div(decimal.NewFromInt(TrailingWindowDays))
	return stats
}

const (
	BudgetOK      BudgetLevel = "ok"
	BudgetWarning BudgetLevel = "warning"
	BudgetDanger  BudgetLevel = "danger"
)

type BudgetLevel string

// BudgetUsage is the share of a spending limit consumed by an amount.
type BudgetUsage struct {
	Limit   decimal.Decimal
	Spent   decimal.Decimal
	Percent decimal.Decimal
	Level   BudgetLevel
}

// Budget reports how much of limit spent represents. A non-positive limit
// yields a zero usage with level ok.
func Budget(spent, limit decimal.Decimal) BudgetUsage {
	usage := BudgetUsage{Limit: limit, Spent: spent, Percent: decimal.Zero, Level: BudgetOK}
	if !limit.IsPositive() {
		return usage
	}
	usage.Percent = spent.Mul(decimal.NewFromInt(100)).Div(limit).Round(1)
	switch {
	case usage.Percent.GreaterThanOrEqual(decimal.NewFromInt(90)):
		usage.Level = BudgetDanger
	case usage.Percent.GreaterThanOrEqual(decimal.NewFromInt(70)):
		usage.Level = BudgetWarning
	}
	return usage
}
