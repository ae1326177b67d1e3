package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSummarize(t *testing.T) {
	amt := decimal.RequireFromString
	expenses := []Expense{
		{Description: "bread", Amount: amt("4.50"), Category: "Groceries"},
		{Description: "bus", Amount: amt("2.00"), Category: "Transport"},
		{Description: "milk", Amount: amt("1.50"), Category: "Groceries"},
		{Description: "gift", Amount: amt("2.00")},
	}

	s := Summarize(expenses)

	if s.Count != 4 {
		t.Errorf("Count = %d, want 4", s.Count)
	}
	if !s.Total.Equal(amt("10")) {
		t.Errorf("Total = %s, want 10", s.Total)
	}

	want := []CategoryAmount{
		{Name: "Groceries", Amount: amt("6")},
		{Name: "(none)", Amount: amt("2")},
		{Name: "Transport", Amount: amt("2")},
	}
	if len(s.ByCategory) != len(want) {
		t.Fatalf("ByCategory = %v", s.ByCategory)
	}
	for i, w := range want {
		got := s.ByCategory[i]
		if got.Name != w.Name || !got.Amount.Equal(w.Amount) {
			t.Errorf("ByCategory[%d] = %s %s, want %s %s", i, got.Name, got.Amount, w.Name, w.Amount)
		}
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.Count != 0 || !s.Total.IsZero() || len(s.ByCategory) != 0 {
		t.Errorf("Summarize(nil) = %+v", s)
	}
}
