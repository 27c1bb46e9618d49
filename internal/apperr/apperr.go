// Package apperr defines the domain errors produced at the downstream
// client boundary and the classification used by the transport layer.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest marks a pay request rejected before orchestration.
	ErrInvalidRequest = errors.New("invalid payment request")

	// ErrWorkerPoolExhausted is returned by the blocking driver when every
	// worker is busy and the accept backlog is full.
	ErrWorkerPoolExhausted = errors.New("worker pool exhausted")
)

// Kinds returned by Kind.
const (
	KindBadRequest     = "bad_request"
	KindPaymentService = "payment_service"
	KindMailSend       = "mail_send"
	KindTransport      = "transport"
	KindPoolExhausted  = "pool_exhausted"
	KindTimeout        = "timeout"
	KindCanceled       = "canceled"
	KindInternal       = "internal"
)

// PaymentServiceError means the payment service reported a server-side failure.
type PaymentServiceError struct {
	Context string // which request was in flight, e.g. "order_id=order-1"
	Cause   error
}

func (e *PaymentServiceError) Error() string {
	return fmt.Sprintf("payment service error [%s]: %v", e.Context, e.Cause)
}
func (e *PaymentServiceError) Unwrap() error { return e.Cause }
func (e *PaymentServiceError) Kind() string  { return KindPaymentService }

// MailSendError means the notification could not be delivered, either because
// the mail service reported a failure or because the call itself failed.
type MailSendError struct {
	Context string // e.g. "to=abcd@abc.def"
	Cause   error
}

func (e *MailSendError) Error() string {
	return fmt.Sprintf("mail send failed [%s]: %v", e.Context, e.Cause)
}
func (e *MailSendError) Unwrap() error { return e.Cause }
func (e *MailSendError) Kind() string  { return KindMailSend }

// TransportError covers connection failures, unexpected statuses and
// malformed success bodies. It is never retried.
type TransportError struct {
	Op    string // e.g. "POST http://localhost:8082/payments/process"
	Cause error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Cause.Error() }
func (e *TransportError) Unwrap() error { return e.Cause }
func (e *TransportError) Kind() string  { return KindTransport }

// kinder is satisfied by domain errors that carry a classification kind.
type kinder interface {
	Kind() string
}

// Kind classifies err for responses and logs.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrInvalidRequest) {
		return KindBadRequest
	}
	if errors.Is(err, ErrWorkerPoolExhausted) {
		return KindPoolExhausted
	}
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindInternal
	}
}
