package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// Summary totals a batch of expenses before import.
type Summary struct {
	Count      int
	Total      decimal.Decimal
	ByCategory []CategoryAmount // sorted by descending amount, then name
}

func Summarize(expenses []Expense) Summary {
	totals := make(map[string]decimal.Decimal)
	s := Summary{Count: len(expenses), Total: decimal.Zero}
	for _, e := range expenses {
		s.Total = s.Total.Add(e.Amount)
		name := e.Category
		if name == "" {
			name = "(none)"
		}
		totals[name] = totals[name].Add(e.Amount)
	}

	for name, amount := range totals {
		s.ByCategory = append(s.ByCategory, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		a, b := s.ByCategory[i], s.ByCategory[j]
		if c := a.Amount.Cmp(b.Amount); c != 0 {
			return c > 0
		}
		return a.Name < b.Name
	})
	return s
}
