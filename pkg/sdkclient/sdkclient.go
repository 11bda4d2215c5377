// Package sdkclient is a client of KBase SDK services, which speak JSON-RPC 1.1 over HTTP.
package sdkclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// ErrTransport is returned when the service can not be reached or
// does not reply a JSON-RPC response.
var ErrTransport = errors.New("service unavailable")

// ServerError is an error replied by the service.
type ServerError struct {
	Name    string `json:"name"`
	Code    int    `json:"code"`
	Message string `json:"message"`

	// stacktrace of the service.
	Detail string `json:"error"`
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Message)
}

type request struct {
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	Version string `json:"version"`
	ID      string `json:"id"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *ServerError    `json:"error"`
}

type Client struct {
	url    string
	http   *http.Client
	serial atomic.Uint64
}

type Option func(*Client) *Client

// WithHTTPClient replaces the http client. By default, http.DefaultClient is used.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) *Client {
		cl.http = c
		return cl
	}
}

func New(url string, options ...Option) *Client {
	c := &Client{url: url, http: http.DefaultClient}
	for _, o := range options {
		c = o(c)
	}
	return c
}

// Call calls method with params, and unmarshals the result list into result.
//
// token is sent as the Authorization header when it is not empty.
//
// Errors
//
// - *ServerError: the service replied an error.
//
// - ErrTransport: the service could not be reached, or replied garbage.
func (c *Client) Call(ctx context.Context, method string, params []any, token string, result any) error {
	body, err := json.Marshal(request{
		Method:  method,
		Params:  params,
		Version: "1.1",
		ID:      fmt.Sprintf("%d", c.serial.Add(1)),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s: %w", ErrTransport, method, err)
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, method, err)
	}

	r := response{}
	if err := json.Unmarshal(buf, &r); err != nil {
		return fmt.Errorf(
			"%w: %s: unexpected response (status code = %d): %s",
			ErrTransport, method, resp.StatusCode, truncate(buf, 200),
		)
	}
	if r.Error != nil {
		return r.Error
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: status code = %d", ErrTransport, method, resp.StatusCode)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(r.Result, result); err != nil {
		return fmt.Errorf("%w: %s: unexpected result: %w", ErrTransport, method, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
