// Package notification sends the payment notification and reports a single
// normalized outcome for it.
package notification

import (
	"context"
	"errors"
	"log/slog"

	"github.com/iliamunaev/payment-orchestration/internal/apperr"
	"github.com/iliamunaev/payment-orchestration/internal/future"
)

// Sender delivers one email request. *mail.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, email string) (string, error)
	SendAsync(ctx context.Context, email string) *future.Future[string]
}

// Service wraps a Sender with logging and error normalization.
// Every error it returns is a *apperr.MailSendError.
type Service struct {
	sender Sender
	log    *slog.Logger
}

// New returns a notification service. It panics if sender is nil.
func New(sender Sender, logger *slog.Logger) *Service {
	if sender == nil {
		panic("notification: nil sender")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{sender: sender, log: logger.With("component", "notification")}
}

// Notify sends the notification and waits for the outcome.
func (s *Service) Notify(ctx context.Context, address string) (string, error) {
	s.log.InfoContext(ctx, "sending notification", "to", address)
	ack, err := s.sender.Send(ctx, address)
	return s.finish(ctx, address, ack, err)
}

// NotifyAsync is Notify without waiting.
func (s *Service) NotifyAsync(ctx context.Context, address string) *future.Future[string] {
	s.log.InfoContext(ctx, "sending notification", "to", address)
	return future.Handle(future.Inline, s.sender.SendAsync(ctx, address), func(ack string, err error) (string, error) {
		return s.finish(ctx, address, ack, err)
	})
}

func (s *Service) finish(ctx context.Context, address, ack string, err error) (string, error) {
	if err != nil {
		err = normalize(address, err)
		s.log.ErrorContext(ctx, "notification failed", "to", address, "err", err)
		return "", err
	}
	s.log.InfoContext(ctx, "notification sent", "to", address, "response", ack)
	return ack, nil
}

func normalize(address string, err error) error {
	var me *apperr.MailSendError
	if errors.As(err, &me) {
		return err
	}
	return &apperr.MailSendError{Context: "to=" + address, Cause: err}
}
