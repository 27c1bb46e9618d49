// Package payment calls the payment service.
//
// Process issues exactly one POST /payments/process per call. A 5xx reply is
// returned as *apperr.PaymentServiceError carrying the response body; a
// malformed success body is a transport error.
package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iliamunaev/payment-orchestration/internal/apperr"
	"github.com/iliamunaev/payment-orchestration/internal/future"
	"github.com/iliamunaev/payment-orchestration/internal/model"
	"github.com/iliamunaev/payment-orchestration/internal/service/downstream"
)

// Path is the payment service endpoint.
const Path = "/payments/process"

// Client is the payment service client.
type Client struct {
	d *downstream.Client
}

// New returns a client for the payment service at baseURL.
func New(baseURL string, opts ...downstream.Option) *Client {
	return &Client{d: downstream.New(baseURL, opts...)}
}

// Process runs the payment call and waits for its outcome.
func (c *Client) Process(ctx context.Context, req model.PaymentRequest) (model.PaymentResponse, error) {
	body, err := c.d.Post(ctx, Path, req, serverError(req))
	if err != nil {
		return model.PaymentResponse{}, err
	}
	return c.decode(body)
}

// ProcessAsync starts the payment call and returns without waiting.
func (c *Client) ProcessAsync(ctx context.Context, req model.PaymentRequest) *future.Future[model.PaymentResponse] {
	return future.Map(future.Inline, c.d.PostAsync(ctx, Path, req, serverError(req)), c.decode)
}

func (c *Client) decode(body []byte) (model.PaymentResponse, error) {
	var resp model.PaymentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.PaymentResponse{}, &apperr.TransportError{
			Op:    "POST " + c.d.BaseURL() + Path,
			Cause: fmt.Errorf("decode response: %w", err),
		}
	}
	return resp, nil
}

func serverError(req model.PaymentRequest) downstream.ServerErrorFunc {
	return func(se *downstream.StatusError) error {
		return &apperr.PaymentServiceError{Context: "order_id=" + req.OrderID, Cause: se}
	}
}
