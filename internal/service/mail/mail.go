// Package mail calls the mail service.
package mail

import (
	"context"

	"github.com/iliamunaev/payment-orchestration/internal/apperr"
	"github.com/iliamunaev/payment-orchestration/internal/future"
	"github.com/iliamunaev/payment-orchestration/internal/model"
	"github.com/iliamunaev/payment-orchestration/internal/service/downstream"
)

// Path is the mail service endpoint.
const Path = "/mail/send"

// Client is the mail service client.
type Client struct {
	d *downstream.Client
}

// New returns a client for the mail service at baseURL.
func New(baseURL string, opts ...downstream.Option) *Client {
	return &Client{d: downstream.New(baseURL, opts...)}
}

// Send posts one email request and returns the service's acknowledgement.
// A 5xx reply is returned as *apperr.MailSendError carrying the body.
func (c *Client) Send(ctx context.Context, email string) (string, error) {
	body, err := c.d.Post(ctx, Path, model.EmailRequest{Email: email}, serverError(email))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// SendAsync is Send without waiting.
func (c *Client) SendAsync(ctx context.Context, email string) *future.Future[string] {
	f := c.d.PostAsync(ctx, Path, model.EmailRequest{Email: email}, serverError(email))
	return future.Map(future.Inline, f, func(body []byte) (string, error) {
		return string(body), nil
	})
}

func serverError(email string) downstream.ServerErrorFunc {
	return func(se *downstream.StatusError) error {
		return &apperr.MailSendError{Context: "to=" + email, Cause: se}
	}
}
