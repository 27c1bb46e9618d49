// Package downstream performs the outbound calls to the payment and mail
// services and turns their failures into domain errors.
package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iliamunaev/payment-orchestration/internal/apperr"
	"github.com/iliamunaev/payment-orchestration/internal/future"
)

// maxBody caps how much of a response body is read.
const maxBody = 1 << 20

// ErrBodyTooLarge is returned when a response body exceeds the read limit.
var ErrBodyTooLarge = errors.New("response body too large")

// StatusError is a non-2xx response. Body holds the response text.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// ServerErrorFunc builds the domain error for a 5xx response.
type ServerErrorFunc func(*StatusError) error

// Client posts JSON to one downstream service.
type Client struct {
	baseURL string
	hc      *http.Client
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithTimeout bounds each call. Zero, the default, means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New returns a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service address.
func (c *Client) BaseURL() string { return c.baseURL }

// Post sends payload as JSON to path and returns the success body.
//
// A 5xx response is passed to onServerError, whose result is returned.
// Connection failures and other non-2xx statuses are returned as
// *apperr.TransportError. If ctx ends first, the context error is returned.
func (c *Client) Post(ctx context.Context, path string, payload any, onServerError ServerErrorFunc) ([]byte, error) {
	url := c.baseURL + path
	op := "POST " + url

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}
		return nil, &apperr.TransportError{Op: op, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: read body: %w", op, ctxErr)
		}
		return nil, &apperr.TransportError{Op: op, Cause: fmt.Errorf("read body: %w", err)}
	}
	if len(data) > maxBody {
		return nil, &apperr.TransportError{Op: op, Cause: fmt.Errorf("status %d: %w", resp.StatusCode, ErrBodyTooLarge)}
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		se := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		if onServerError != nil {
			return nil, onServerError(se)
		}
		return nil, &apperr.TransportError{Op: op, Cause: se}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &apperr.TransportError{
			Op:    op,
			Cause: &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))},
		}
	}

	return data, nil
}

// PostAsync starts Post on its own goroutine and returns at once.
// The returned future completes exactly once with Post's result.
func (c *Client) PostAsync(ctx context.Context, path string, payload any, onServerError ServerErrorFunc) *future.Future[[]byte] {
	return future.Go(ctx, func(ctx context.Context) ([]byte, error) {
		return c.Post(ctx, path, payload, onServerError)
	})
}
