package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"fireflyiii/internal/core"
	ports "fireflyiii/internal/sheets"
)

// Source serves expenses held in memory, typically loaded from a batch file.
type Source struct {
	mu    sync.Mutex
	items []core.Expense
}

var _ ports.ExpenseSource = (*Source)(nil)

func New(expenses ...core.Expense) *Source {
	return &Source{items: append([]core.Expense(nil), expenses...)}
}

// Add validates and appends expenses.
func (s *Source) Add(expenses ...core.Expense) error {
	for i, e := range expenses {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("expense %d: %w", i+1, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, expenses...)
	return nil
}

// ListExpenses returns a copy of the stored expenses.
func (s *Source) ListExpenses(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.items...), nil
}

// record is the file form of an expense.
type record struct {
	Date        string     `json:"date" yaml:"date"`
	Description string     `json:"description" yaml:"description"`
	Amount      amountText `json:"amount" yaml:"amount"`
	Category    string     `json:"category" yaml:"category"`
	Destination string     `json:"destination" yaml:"destination"`
	Source      string     `json:"source" yaml:"source"`
	Currency    string     `json:"currency" yaml:"currency"`
	Notes       string     `json:"notes" yaml:"notes"`
	Tags        []string   `json:"tags" yaml:"tags"`
}

// amountText accepts both "12.50" and 12.50 in JSON.
type amountText string

func (a *amountText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountText(s)
		return nil
	}
	*a = amountText(b)
	return nil
}

// LoadFile reads a JSON or YAML list of expenses. The format follows the
// file extension (.yaml/.yml, anything else is JSON).
func LoadFile(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read expenses file: %w", err)
	}

	var records []record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &records)
	default:
		err = json.Unmarshal(data, &records)
	}
	if err != nil {
		return nil, fmt.Errorf("decode expenses file %s: %w", path, err)
	}

	expenses := make([]core.Expense, 0, len(records))
	for i, r := range records {
		e, err := r.toExpense()
		if err != nil {
			return nil, fmt.Errorf("expense %d: %w", i+1, err)
		}
		expenses = append(expenses, e)
	}

	s := New()
	if err := s.Add(expenses...); err != nil {
		return nil, err
	}
	return s, nil
}

func (r record) toExpense() (core.Expense, error) {
	date, err := core.ParseDate(r.Date)
	if err != nil {
		return core.Expense{}, err
	}
	amount, err := core.ParseAmount(string(r.Amount))
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: %q", err, string(r.Amount))
	}
	return core.Expense{
		Date:        date,
		Description: strings.TrimSpace(r.Description),
		Amount:      amount,
		Category:    strings.TrimSpace(r.Category),
		Destination: strings.TrimSpace(r.Destination),
		Source:      strings.TrimSpace(r.Source),
		Currency:    strings.ToUpper(strings.TrimSpace(r.Currency)),
		Notes:       r.Notes,
		Tags:        r.Tags,
	}, nil
}
