package firefly

import (
	"context"
	"net/http"
	"net/url"
)

const destroyPath = "/api/v1/data/destroy"

// DestroyType selects which objects DELETE /api/v1/data/destroy removes.
type DestroyType string

const (
	DestroyAccounts        DestroyType = "accounts"
	DestroyExpenseAccounts DestroyType = "expense_accounts"
	DestroyRevenueAccounts DestroyType = "revenue_accounts"
	DestroyDeposits        DestroyType = "deposits"
	DestroyTransfers       DestroyType = "transfers"
)

func (t *DestroyType) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, (*string)(t), "destroy type",
		DestroyAccounts, DestroyExpenseAccounts, DestroyRevenueAccounts, DestroyDeposits, DestroyTransfers)
}

type DestroyParams struct {
	Objects DestroyType `json:"objects" yaml:"objects"`
}

// Query encodes the set fields as a query string.
func (p DestroyParams) Query() url.Values {
	q := url.Values{}
	if p.Objects != "" {
		q.Set("objects", string(p.Objects))
	}
	return q
}

// Data covers the bulk data endpoints.
type Data interface {
	Destroy(ctx context.Context, params DestroyParams) (Value, error)
}

// Destroy irreversibly deletes every object of the selected type.
func (c *Client) Destroy(ctx context.Context, params DestroyParams) (Value, error) {
	return c.do(ctx, http.MethodDelete, destroyPath, nil, params.Query())
}
