package firefly

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

const accountsPath = "/api/v1/accounts"

// AccountType is the kind of account being created.
type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountExpense   AccountType = "expense"
	AccountRevenue   AccountType = "revenue"
	AccountCash      AccountType = "cash"
	AccountLiability AccountType = "liability"
)

// AccountRole refines asset accounts.
type AccountRole string

const (
	RoleDefault    AccountRole = "defaultAsset"
	RoleShared     AccountRole = "sharedAsset"
	RoleSaving     AccountRole = "savingAsset"
	RoleCreditCard AccountRole = "ccAsset"
	RoleCashWallet AccountRole = "cashWalletAsset"
)

type LiabilityType string

const (
	LiabilityDebt     LiabilityType = "debt"
	LiabilityLoan     LiabilityType = "loan"
	LiabilityMortgage LiabilityType = "mortgage"
)

type LiabilityDirection string

const (
	DirectionCredit LiabilityDirection = "credit"
	DirectionDebit  LiabilityDirection = "debit"
)

type CreditCardType string

const CreditCardMonthlyFull CreditCardType = "monthlyFull"

type InterestPeriod string

const (
	InterestWeekly    InterestPeriod = "weekly"
	InterestMonthly   InterestPeriod = "monthly"
	InterestQuarterly InterestPeriod = "quarterly"
	InterestHalfYear  InterestPeriod = "half-year"
	InterestYearly    InterestPeriod = "yearly"
)

func (t *AccountType) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, (*string)(t), "account type",
		AccountAsset, AccountExpense, AccountRevenue, AccountCash, AccountLiability)
}

func (r *AccountRole) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, (*string)(r), "account role",
		RoleDefault, RoleShared, RoleSaving, RoleCreditCard, RoleCashWallet)
}

func (t *LiabilityType) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, (*string)(t), "liability type",
		LiabilityDebt, LiabilityLoan, LiabilityMortgage)
}

func (d *LiabilityDirection) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, (*string)(d), "liability direction",
		DirectionCredit, DirectionDebit)
}

func (t *CreditCardType) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, (*string)(t), "credit card type", CreditCardMonthlyFull)
}

func (p *InterestPeriod) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, (*string)(p), "interest period",
		InterestWeekly, InterestMonthly, InterestQuarterly, InterestHalfYear, InterestYearly)
}

// CreateAccountParams is the body of POST /api/v1/accounts. Name and Type
// are always sent; every other field is omitted while unset. An empty Type
// is sent as asset.
type CreateAccountParams struct {
	Name string      `json:"name" yaml:"name"`
	Type AccountType `json:"type" yaml:"type"`
	Role AccountRole `json:"account_role,omitempty" yaml:"account_role,omitempty"`

	CurrencyCode       string           `json:"currency_code,omitempty" yaml:"currency_code,omitempty"`
	IBAN               string           `json:"iban,omitempty" yaml:"iban,omitempty"`
	BIC                string           `json:"bic,omitempty" yaml:"bic,omitempty"`
	AccountNumber      string           `json:"account_number,omitempty" yaml:"account_number,omitempty"`
	OpeningBalance     *decimal.Decimal `json:"opening_balance,omitempty" yaml:"opening_balance,omitempty"`
	OpeningBalanceDate string           `json:"opening_balance_date,omitempty" yaml:"opening_balance_date,omitempty"` // YYYY-MM-DD
	VirtualBalance     *decimal.Decimal `json:"virtual_balance,omitempty" yaml:"virtual_balance,omitempty"`
	Active             *bool            `json:"active,omitempty" yaml:"active,omitempty"`
	IncludeNetWorth    *bool            `json:"include_net_worth,omitempty" yaml:"include_net_worth,omitempty"`

	CreditCardType     CreditCardType `json:"credit_card_type,omitempty" yaml:"credit_card_type,omitempty"`
	MonthlyPaymentDate string         `json:"monthly_payment_date,omitempty" yaml:"monthly_payment_date,omitempty"` // YYYY-MM-DD

	LiabilityType      LiabilityType      `json:"liability_type,omitempty" yaml:"liability_type,omitempty"`
	LiabilityDirection LiabilityDirection `json:"liability_direction,omitempty" yaml:"liability_direction,omitempty"`
	Interest           string             `json:"interest,omitempty" yaml:"interest,omitempty"`
	InterestPeriod     InterestPeriod     `json:"interest_period,omitempty" yaml:"interest_period,omitempty"`

	Notes string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Validate checks the fields Firefly III always requires.
func (p CreateAccountParams) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("account name is required")
	}
	return nil
}

// Accounts covers /api/v1/accounts.
type Accounts interface {
	ListAccounts(ctx context.Context) (Value, error)
	CreateAccount(ctx context.Context, params CreateAccountParams) (Value, error)
}

// ListAccounts returns GET /api/v1/accounts.
func (c *Client) ListAccounts(ctx context.Context) (Value, error) {
	return c.do(ctx, http.MethodGet, accountsPath, nil, nil)
}

// CreateAccount posts params to /api/v1/accounts.
func (c *Client) CreateAccount(ctx context.Context, params CreateAccountParams) (Value, error) {
	if err := params.Validate(); err != nil {
		return Value{}, fmt.Errorf("firefly: create account: %w", err)
	}
	if params.Type == "" {
		params.Type = AccountAsset
	}
	return c.do(ctx, http.MethodPost, accountsPath, params, nil)
}

// Ptr returns a pointer to v, for optional fields in parameter literals.
func Ptr[T any](v T) *T { return &v }

// unmarshalEnum accepts the empty string (unset) or one of allowed.
func unmarshalEnum[T ~string](b []byte, dst *string, name string, allowed ...T) error {
	s := string(b)
	if s == "" {
		*dst = ""
		return nil
	}
	for _, a := range allowed {
		if s == string(a) {
			*dst = s
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q", name, s)
}
