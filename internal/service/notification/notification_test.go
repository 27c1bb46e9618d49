package notification

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliamunaev/payment-orchestration/internal/apperr"
	"github.com/iliamunaev/payment-orchestration/internal/future"
)

type fakeSender struct {
	ack string
	err error
}

func (f fakeSender) Send(context.Context, string) (string, error) { return f.ack, f.err }

func (f fakeSender) SendAsync(context.Context, string) *future.Future[string] {
	if f.err != nil {
		return future.Failed[string](f.err)
	}
	return future.Completed(f.ack)
}

func newService(s Sender) (*Service, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(s, slog.New(slog.NewTextHandler(&buf, nil))), &buf
}

func TestNotify(t *testing.T) {
	t.Parallel()

	mailErr := &apperr.MailSendError{Context: "to=a@b.c", Cause: errors.New("status 500: SMTP down")}
	connErr := &apperr.TransportError{Op: "POST http://mail/mail/send", Cause: errors.New("connection refused")}

	tests := []struct {
		name    string
		sender  fakeSender
		wantAck string
		wantErr error // must be in the chain
		wantLog string
	}{
		{name: "sent", sender: fakeSender{ack: "OK"}, wantAck: "OK", wantLog: "notification sent"},
		{name: "mail_error_kept", sender: fakeSender{err: mailErr}, wantErr: mailErr, wantLog: "SMTP down"},
		{name: "transport_error_wrapped", sender: fakeSender{err: connErr}, wantErr: connErr, wantLog: "connection refused"},
		{name: "context_error_wrapped", sender: fakeSender{err: context.Canceled}, wantErr: context.Canceled, wantLog: "notification failed"},
	}

	for _, tt := range tests {
		tt := tt
		for _, async := range []bool{false, true} {
			async := async
			name := tt.name
			if async {
				name += "/async"
			}
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				s, logs := newService(tt.sender)

				var ack string
				var err error
				if async {
					ack, err = s.NotifyAsync(context.Background(), "a@b.c").Await(context.Background())
				} else {
					ack, err = s.Notify(context.Background(), "a@b.c")
				}

				assert.Contains(t, logs.String(), "sending notification")
				assert.Contains(t, logs.String(), tt.wantLog)
				if tt.wantErr == nil {
					require.NoError(t, err)
					assert.Equal(t, tt.wantAck, ack)
					return
				}
				var me *apperr.MailSendError
				require.ErrorAs(t, err, &me)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, apperr.KindMailSend, apperr.Kind(err))
			})
		}
	}
}

func TestNormalizeDoesNotDoubleWrap(t *testing.T) {
	t.Parallel()

	orig := &apperr.MailSendError{Context: "to=x", Cause: errors.New("boom")}
	assert.Same(t, error(orig), normalize("x", orig))
}

func TestNewPanicsOnNilSender(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { New(nil, nil) })
}
