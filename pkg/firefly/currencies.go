package firefly

import (
	"context"
	"net/http"
	"net/url"
)

const currenciesPath = "/api/v1/currencies"

// Currencies covers /api/v1/currencies. Codes are ISO 4217 style ("EUR").
type Currencies interface {
	ListCurrencies(ctx context.Context) (Value, error)
	EnableCurrency(ctx context.Context, code string) (Value, error)
	DisableCurrency(ctx context.Context, code string) (Value, error)
	SetDefaultCurrency(ctx context.Context, code string) (Value, error)
}

func (c *Client) ListCurrencies(ctx context.Context) (Value, error) {
	return c.do(ctx, http.MethodGet, currenciesPath, nil, nil)
}

func (c *Client) EnableCurrency(ctx context.Context, code string) (Value, error) {
	return c.do(ctx, http.MethodPost, currencyActionPath(code, "enable"), nil, nil)
}

func (c *Client) DisableCurrency(ctx context.Context, code string) (Value, error) {
	return c.do(ctx, http.MethodPost, currencyActionPath(code, "disable"), nil, nil)
}

func (c *Client) SetDefaultCurrency(ctx context.Context, code string) (Value, error) {
	return c.do(ctx, http.MethodPost, currencyActionPath(code, "default"), nil, nil)
}

func currencyActionPath(code, action string) string {
	return currenciesPath + "/" + url.PathEscape(code) + "/" + action
}
