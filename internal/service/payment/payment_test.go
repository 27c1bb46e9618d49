package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliamunaev/payment-orchestration/internal/apperr"
	"github.com/iliamunaev/payment-orchestration/internal/model"
	"github.com/iliamunaev/payment-orchestration/internal/stub"
)

func newServer(t *testing.T, opts ...stub.Option) (*Client, *stub.Service) {
	t.Helper()
	opts = append(opts, stub.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s := stub.NewPayment(opts...)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return New(srv.URL), s
}

var order1 = model.PaymentRequest{OrderID: "order-1", Amount: 100}

func TestProcess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		opts       []stub.Option
		wantStatus string
		wantKind   string
		wantText   string
	}{
		{name: "approved", wantStatus: "APPROVED"},
		{name: "declined_is_not_an_error", opts: []stub.Option{stub.WithBody(`{"status":"DECLINED"}`)}, wantStatus: "DECLINED"},
		{
			name:     "server_error",
			opts:     []stub.Option{stub.WithFailure(http.StatusInternalServerError, "ledger locked")},
			wantKind: apperr.KindPaymentService,
			wantText: "ledger locked",
		},
		{
			name:     "malformed_body",
			opts:     []stub.Option{stub.WithBody(`not json`)},
			wantKind: apperr.KindTransport,
			wantText: "decode response",
		},
		{
			name:     "client_error",
			opts:     []stub.Option{stub.WithFailure(http.StatusConflict, "dup")},
			wantKind: apperr.KindTransport,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, s := newServer(t, tt.opts...)

			sync, syncErr := c.Process(context.Background(), order1)
			async, asyncErr := c.ProcessAsync(context.Background(), order1).Await(context.Background())

			for _, got := range []struct {
				resp model.PaymentResponse
				err  error
			}{{sync, syncErr}, {async, asyncErr}} {
				if tt.wantKind == "" {
					require.NoError(t, got.err)
					assert.Equal(t, tt.wantStatus, got.resp.Status)
					continue
				}
				require.Error(t, got.err)
				assert.Equal(t, tt.wantKind, apperr.Kind(got.err))
				assert.Contains(t, got.err.Error(), tt.wantText)
			}
			assert.Equal(t, int64(2), s.Calls())
		})
	}
}

func TestProcessServerErrorCarriesOrder(t *testing.T) {
	t.Parallel()

	c, _ := newServer(t, stub.WithFailure(http.StatusServiceUnavailable, "maintenance"))

	_, err := c.Process(context.Background(), order1)

	var pe *apperr.PaymentServiceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "order_id=order-1", pe.Context)
	assert.Contains(t, pe.Error(), "maintenance")
}

func TestProcessKeepsExtraFields(t *testing.T) {
	t.Parallel()

	c, _ := newServer(t, stub.WithBody(`{"status":"APPROVED","transactionId":"tx-9"}`))

	resp, err := c.Process(context.Background(), order1)
	require.NoError(t, err)
	assert.JSONEq(t, `"tx-9"`, string(resp.Extra["transactionId"]))
}

func TestProcessContextCanceled(t *testing.T) {
	t.Parallel()

	c, _ := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Process(ctx, order1)
	assert.ErrorIs(t, err, context.Canceled)
}
