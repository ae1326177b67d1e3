package sheets

import (
	"context"

	"fireflyiii/internal/core"
)

// Ports for inbound import sources.
type (
	// ExpenseSource yields the expenses to import. Rows that cannot be
	// parsed are skipped by the adapter, not returned as an error.
	ExpenseSource interface {
		ListExpenses(ctx context.Context) ([]core.Expense, error)
	}
)

// SkippedRow records a source row that could not become an expense.
type SkippedRow struct {
	Row    int // 1-based, as shown by the source
	Reason string
}
