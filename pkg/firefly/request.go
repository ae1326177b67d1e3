package firefly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// newRequest resolves path against the base URL and attaches credentials and
// default headers. body, when non-nil, is sent as JSON; query values are
// merged into any query already present in path.
func (c *Client) newRequest(ctx context.Context, method, path string, body any, query url.Values) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, &ConfigError{Field: "request path", Value: path, Err: err}
	}
	u := c.baseURL.ResolveReference(ref)

	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("firefly: encode request body: %w", err)
		}
		r = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, &ConfigError{Field: "request URL", Value: u.String(), Err: err}
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// send executes req and normalizes the response:
//
//	2xx, empty body     -> Null
//	2xx, JSON body      -> decoded Value
//	2xx, other body     -> *DecodeError
//	anything else       -> *APIError with the raw body
func (c *Client) send(req *http.Request) (Value, error) {
	ctx := req.Context()
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(req, 0, time.Since(start))
		c.logger.DebugContext(ctx, "Firefly request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"error", err)
		return Value{}, &TransportError{Method: req.Method, URL: req.URL.Redacted(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	c.observe(req, resp.StatusCode, elapsed)
	if err != nil {
		return Value{}, &TransportError{Method: req.Method, URL: req.URL.Redacted(), Err: fmt.Errorf("read response body: %w", err)}
	}

	c.logger.DebugContext(ctx, "Firefly request completed",
		"method", req.Method,
		"path", req.URL.Path,
		"status_code", resp.StatusCode,
		"duration_ms", elapsed.Milliseconds(),
		"bytes", len(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Value{}, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return Null(), nil
	}

	v, err := ParseValue(body)
	if err != nil {
		return Value{}, &DecodeError{StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}
	return v, nil
}

// do builds and sends one request.
func (c *Client) do(ctx context.Context, method, path string, body any, query url.Values) (Value, error) {
	req, err := c.newRequest(ctx, method, path, body, query)
	if err != nil {
		return Value{}, err
	}
	return c.send(req)
}

func (c *Client) observe(req *http.Request, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(req.Method, req.URL.Path, status, elapsed)
	}
}
