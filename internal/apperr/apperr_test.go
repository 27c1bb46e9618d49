package apperr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKind(t *testing.T) {
	t.Parallel()

	cause := errors.New("status 500: SMTP down")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "invalid_request", err: fmt.Errorf("orderId is required: %w", ErrInvalidRequest), want: KindBadRequest},
		{name: "pool_exhausted", err: ErrWorkerPoolExhausted, want: KindPoolExhausted},
		{name: "payment_service", err: &PaymentServiceError{Context: "order_id=o-1", Cause: cause}, want: KindPaymentService},
		{name: "mail_send_wrapped", err: fmt.Errorf("notify: %w", &MailSendError{Context: "to=a@b.c", Cause: cause}), want: KindMailSend},
		{name: "transport", err: &TransportError{Op: "POST x", Cause: cause}, want: KindTransport},
		{name: "deadline", err: context.DeadlineExceeded, want: KindTimeout},
		{name: "canceled", err: context.Canceled, want: KindCanceled},
		{name: "unknown", err: errors.New("unknown"), want: KindInternal},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Kind(tt.err); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDomainErrorsKeepCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("SMTP down")
	err := error(&MailSendError{Context: "to=abcd@abc.def", Cause: cause})

	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable through Unwrap")
	}
	if msg := err.Error(); !strings.Contains(msg, "SMTP down") || !strings.Contains(msg, "to=abcd@abc.def") {
		t.Fatalf("expected context and cause in message, got %q", msg)
	}

	var mse *MailSendError
	if !errors.As(fmt.Errorf("outer: %w", err), &mse) {
		t.Fatal("expected errors.As to find MailSendError")
	}
}
