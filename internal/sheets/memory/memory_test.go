package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"fireflyiii/internal/core"
)

func TestSourceAddAndList(t *testing.T) {
	s := New()
	err := s.Add(core.Expense{
		Date:        core.NewDate(2025, 1, 1),
		Description: "t",
		Amount:      decimal.RequireFromString("1.23"),
	})
	if err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}

	got, err := s.ListExpenses(context.Background())
	if err != nil || len(got) != 1 {
		t.Fatalf("unexpected list: %v err=%v", got, err)
	}

	// returned slice is a copy
	got[0].Description = "changed"
	again, _ := s.ListExpenses(context.Background())
	if again[0].Description != "t" {
		t.Fatal("ListExpenses must not expose internal storage")
	}
}

func TestSourceAddRejectsInvalid(t *testing.T) {
	s := New()
	err := s.Add(core.Expense{Date: core.NewDate(2025, 1, 1), Description: "x"})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	mustWrite := func(name, content string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return path
	}

	jsonPath := mustWrite("batch.json", `[
		{"date":"2025-02-01","description":"Bus","amount":"2,10","category":"Transport"},
		{"date":"01/02/2025","description":"Book","amount":15,"source":"Wallet","currency":"usd","tags":["fun"]}
	]`)
	yamlPath := mustWrite("batch.yaml", `
- date: 2025-02-01
  description: Bus
  amount: 2.10
  category: Transport
- date: "01/02/2025"
  description: Book
  amount: "15"
  source: Wallet
  currency: usd
  tags: [fun]
`)

	for _, path := range []string{jsonPath, yamlPath} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			s, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			expenses, _ := s.ListExpenses(context.Background())
			if len(expenses) != 2 {
				t.Fatalf("expenses = %d, want 2", len(expenses))
			}
			if !expenses[0].Amount.Equal(decimal.RequireFromString("2.10")) {
				t.Errorf("bus amount = %s", expenses[0].Amount)
			}
			book := expenses[1]
			if book.Source != "Wallet" || book.Currency != "USD" || len(book.Tags) != 1 {
				t.Errorf("book = %+v", book)
			}
			if !book.Date.Equal(core.NewDate(2025, 2, 1).Time) {
				t.Errorf("book date = %s", book.Date)
			}
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`[{"date":"2025-02-01","description":"x","amount":"-3"}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(bad); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
