package firefly

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const transactionsPath = "/api/v1/transactions"

// TransactionType is the journal type of a split.
type TransactionType string

const (
	TypeWithdrawal     TransactionType = "withdrawal"
	TypeDeposit        TransactionType = "deposit"
	TypeTransfer       TransactionType = "transfer"
	TypeReconciliation TransactionType = "reconciliation"
	TypeOpeningBalance TransactionType = "opening balance"
)

func (t *TransactionType) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, (*string)(t), "transaction type",
		TypeWithdrawal, TypeDeposit, TypeTransfer, TypeReconciliation, TypeOpeningBalance)
}

// Transaction is one split of a stored transaction group. Amount is sent as a
// decimal string.
type Transaction struct {
	Type            TransactionType `json:"type" yaml:"type"`
	Date            time.Time       `json:"date" yaml:"date"`
	SourceName      string          `json:"source_name" yaml:"source_name"`
	DestinationName string          `json:"destination_name" yaml:"destination_name"`
	Amount          decimal.Decimal `json:"amount" yaml:"amount"`
	Description     string          `json:"description" yaml:"description"`
	ExternalID      string          `json:"external_id,omitempty" yaml:"external_id,omitempty"`
	CurrencyCode    string          `json:"currency_code,omitempty" yaml:"currency_code,omitempty"`
	CategoryName    string          `json:"category_name,omitempty" yaml:"category_name,omitempty"`
	Notes           string          `json:"notes,omitempty" yaml:"notes,omitempty"`
	Tags            []string        `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// StoreTransactionParams is the body of POST /api/v1/transactions. The three
// flags and the transactions list are always sent.
type StoreTransactionParams struct {
	ErrorIfDuplicateHash bool          `json:"error_if_duplicate_hash" yaml:"error_if_duplicate_hash"`
	ApplyRules           bool          `json:"apply_rules" yaml:"apply_rules"`
	FireWebhooks         bool          `json:"fire_webhooks" yaml:"fire_webhooks"`
	GroupTitle           string        `json:"group_title,omitempty" yaml:"group_title,omitempty"`
	Transactions         []Transaction `json:"transactions" yaml:"transactions"`
}

// MarshalJSON sends a nil Transactions list as [] rather than null.
func (p StoreTransactionParams) MarshalJSON() ([]byte, error) {
	type plain StoreTransactionParams
	if p.Transactions == nil {
		p.Transactions = []Transaction{}
	}
	return json.Marshal(plain(p))
}

// UnmarshalJSON reads an empty transactions list back as nil.
func (p *StoreTransactionParams) UnmarshalJSON(b []byte) error {
	type plain StoreTransactionParams
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if len(v.Transactions) == 0 {
		v.Transactions = nil
	}
	*p = StoreTransactionParams(v)
	return nil
}

// Transactions covers /api/v1/transactions.
type Transactions interface {
	ListTransactions(ctx context.Context) (Value, error)
	StoreTransaction(ctx context.Context, params StoreTransactionParams) (Value, error)
}

func (c *Client) ListTransactions(ctx context.Context) (Value, error) {
	return c.do(ctx, http.MethodGet, transactionsPath, nil, nil)
}

func (c *Client) StoreTransaction(ctx context.Context, params StoreTransactionParams) (Value, error) {
	return c.do(ctx, http.MethodPost, transactionsPath, params, nil)
}
