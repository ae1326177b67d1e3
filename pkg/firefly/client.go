// Package firefly is a typed client for the Firefly III REST API.
//
// Every resource method builds one authenticated request against the
// configured base URL, sends it over the Client's HTTP session and returns the
// decoded response body as a Value. Failures are reported as *ConfigError,
// *TransportError, *APIError or *DecodeError.
//
// Usage:
//
//	c, err := firefly.New("https://firefly.example.com", token)
//	accounts, err := c.ListAccounts(ctx)
//	_, err = c.EnableCurrency(ctx, "EUR")
package firefly

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultTimeout bounds every call, connection setup and body read included.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent is sent on every request unless overridden with WithUserAgent.
	DefaultUserAgent = "fireflyiii"

	acceptHeader = "application/json, */*;q=0.5"
)

// Observer receives one call per finished round trip. status is 0 when no
// response was received.
type Observer interface {
	ObserveRequest(method, path string, status int, elapsed time.Duration)
}

// Client talks to a single Firefly III instance. It is immutable after New
// and safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	token      string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
	observer   Observer
}

// Option customises a Client at construction time.
type Option func(*Client)

// WithLogger sets the logger used for per-request debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithObserver registers a hook notified after every round trip.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// Ensure interface conformance
var (
	_ Accounts     = (*Client)(nil)
	_ Currencies   = (*Client)(nil)
	_ Transactions = (*Client)(nil)
	_ Data         = (*Client)(nil)
)

// New creates a Client for the instance at baseURL authenticating with the
// given personal access token. baseURL must be an absolute URL.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, &ConfigError{Field: "base URL", Value: baseURL, Err: err}
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, &ConfigError{Field: "base URL", Value: baseURL, Err: errors.New("must be an absolute URL")}
	}

	c := &Client{
		baseURL:   u,
		token:     token,
		userAgent: DefaultUserAgent,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient = newHTTPClient()

	return c, nil
}

// BaseURL returns a copy of the configured base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// newHTTPClient builds the session shared by every call of one Client.
// Redirects are returned to the caller as final responses.
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   DefaultTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   DefaultTimeout,
		ExpectContinueTimeout: 1 * time.Second,

		// Content-Encoding is negotiated and decoded by decompressTransport.
		DisableCompression: true,
		DisableKeepAlives:  false,
		ForceAttemptHTTP2:  true,
	}

	return &http.Client{
		Transport: &decompressTransport{next: transport},
		Timeout:   DefaultTimeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
