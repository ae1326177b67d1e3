package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fireflyiii/pkg/firefly"
)

const maxDescriptionLen = 255

type (
	Date struct {
		time.Time
	}

	// Expense is one spending row from an import source. Source and Currency
	// fall back to the import defaults when empty; Destination falls back to
	// the category.
	Expense struct {
		Date        Date
		Description string
		Amount      decimal.Decimal
		Category    string
		Destination string
		Source      string
		Currency    string
		Notes       string
		Tags        []string
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrMissingSource    = errors.New("missing source account")
)

// importNamespace seeds deterministic external IDs.
var importNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("fireflyiii/import"))

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006", "02.01.2006"}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts ISO dates and the day-first forms spreadsheets export.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > maxDescriptionLen {
		return fmt.Errorf("description too long (max %d characters)", maxDescriptionLen)
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// ExternalID is stable for identical rows, so re-importing a sheet maps every
// row to the ledger entry and Firefly transaction it already produced.
func (e Expense) ExternalID() string {
	key := strings.Join([]string{
		e.Date.String(),
		strings.TrimSpace(e.Description),
		e.Amount.StringFixed(2),
		strings.TrimSpace(e.Source),
		strings.TrimSpace(e.Destination),
		strings.TrimSpace(e.Category),
	}, "|")
	return uuid.NewSHA1(importNamespace, []byte(key)).String()
}

// ToTransaction maps the expense to a withdrawal split.
func (e Expense) ToTransaction(defaultSource, defaultCurrency string) (firefly.Transaction, error) {
	if err := e.Validate(); err != nil {
		return firefly.Transaction{}, err
	}

	source := strings.TrimSpace(e.Source)
	if source == "" {
		source = strings.TrimSpace(defaultSource)
	}
	if source == "" {
		return firefly.Transaction{}, ErrMissingSource
	}

	destination := strings.TrimSpace(e.Destination)
	if destination == "" {
		destination = strings.TrimSpace(e.Category)
	}

	currency := e.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	return firefly.Transaction{
		Type:            firefly.TypeWithdrawal,
		Date:            e.Date.Time,
		SourceName:      source,
		DestinationName: destination,
		Amount:          e.Amount.Round(2),
		Description:     strings.TrimSpace(e.Description),
		ExternalID:      e.ExternalID(),
		CurrencyCode:    strings.ToUpper(currency),
		CategoryName:    strings.TrimSpace(e.Category),
		Notes:           e.Notes,
		Tags:            e.Tags,
	}, nil
}
