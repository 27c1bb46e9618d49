// Package ledger is the stage that records a confirmed payment.
//
// There is no persistence yet: LogRecorder only writes a log line. The
// orchestrator depends on Recorder so a storage-backed implementation can
// replace it without changes to the pipeline.
package ledger

import (
	"context"
	"log/slog"

	"github.com/iliamunaev/payment-orchestration/internal/model"
)

// Recorder records the outcome of a payment call.
type Recorder interface {
	Record(ctx context.Context, req model.PaymentRequest, resp model.PaymentResponse) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, req model.PaymentRequest, resp model.PaymentResponse) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, req model.PaymentRequest, resp model.PaymentResponse) error {
	return f(ctx, req, resp)
}

// LogRecorder logs the update it would make.
type LogRecorder struct {
	log *slog.Logger
}

// NewLogRecorder returns a LogRecorder writing to logger, or slog.Default if nil.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{log: logger.With("component", "ledger")}
}

// Record implements Recorder.
func (r *LogRecorder) Record(ctx context.Context, req model.PaymentRequest, resp model.PaymentResponse) error {
	r.log.InfoContext(ctx, "ledger update requested",
		"order_id", req.OrderID,
		"amount", req.Amount,
		"status", resp.Status,
	)
	return nil
}
