// Package httptransport exposes the payment orchestrator over HTTP.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/iliamunaev/payment-orchestration/internal/apperr"
	"github.com/iliamunaev/payment-orchestration/internal/future"
	"github.com/iliamunaev/payment-orchestration/internal/model"
	"github.com/iliamunaev/payment-orchestration/internal/orchestrator"
)

// maxRequestBody caps the size of an inbound pay request.
const maxRequestBody = 1 << 16

type paymentOrchestrator interface {
	ProcessBlocking(ctx context.Context, req model.PaymentRequest) (model.PaymentResponse, error)
	ProcessNonBlocking(ctx context.Context, req model.PaymentRequest) *future.Future[model.PaymentResponse]
	Stats() orchestrator.Stats
}

// Handler serves the pay endpoints.
type Handler struct {
	orch           paymentOrchestrator
	requestTimeout time.Duration
	log            *slog.Logger
}

// New returns a Handler. It panics if orch is nil.
// A non-positive requestTimeout leaves requests unbounded.
func New(orch paymentOrchestrator, requestTimeout time.Duration, logger *slog.Logger) *Handler {
	if orch == nil {
		panic("httptransport.New: nil orchestrator")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		orch:           orch,
		requestTimeout: requestTimeout,
		log:            logger.With("component", "http"),
	}
}

// HandleBlocking runs the request on the blocking driver.
func (h *Handler) HandleBlocking(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, func(ctx context.Context, req model.PaymentRequest) (model.PaymentResponse, error) {
		return h.orch.ProcessBlocking(ctx, req)
	})
}

// HandleNonBlocking runs the request on the non-blocking driver. The
// handler goroutine only waits for the result; no loop worker is held.
func (h *Handler) HandleNonBlocking(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, func(ctx context.Context, req model.PaymentRequest) (model.PaymentResponse, error) {
		return h.orch.ProcessNonBlocking(ctx, req).Await(ctx)
	})
}

// HandleStats writes a snapshot of both drivers.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.Stats())
}

// HandleHealth answers liveness probes.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request, process func(context.Context, model.PaymentRequest) (model.PaymentResponse, error)) {
	req, err := decodeRequest(w, r)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		writeError(w, req.OrderID, err)
		return
	}

	ctx := r.Context()
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	resp, err := process(ctx, req)
	if err != nil {
		h.log.WarnContext(ctx, "payment request failed",
			"path", r.URL.Path, "order_id", req.OrderID, "kind", apperr.Kind(err), "err", err)
		writeError(w, req.OrderID, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeRequest reads exactly one JSON object with known fields only.
func decodeRequest(w http.ResponseWriter, r *http.Request) (model.PaymentRequest, error) {
	var req model.PaymentRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return model.PaymentRequest{}, fmt.Errorf("invalid JSON: %v: %w", err, apperr.ErrInvalidRequest)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return model.PaymentRequest{}, fmt.Errorf("invalid JSON: trailing data: %w", apperr.ErrInvalidRequest)
	}
	return req, nil
}

func writeError(w http.ResponseWriter, orderID string, err error) {
	writeJSON(w, httpStatus(err), model.ErrorResponse{
		Status:  "error",
		OrderID: orderID,
		Error: &model.ErrorPayload{
			Kind:    apperr.Kind(err),
			Message: err.Error(),
		},
	})
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
