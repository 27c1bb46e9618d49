// Package orchestrator runs the payment pipeline: payment call, payment
// confirmation, ledger record, notification.
//
// The stages are written once and driven two ways. ProcessBlocking holds a
// pool worker for the whole request and waits on each downstream call.
// ProcessNonBlocking chains the stages as continuations on a small loop;
// no loop worker waits on I/O, and a request resumes on whichever worker
// is free when its response arrives.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliamunaev/payment-orchestration/internal/apperr"
	"github.com/iliamunaev/payment-orchestration/internal/future"
	"github.com/iliamunaev/payment-orchestration/internal/model"
	"github.com/iliamunaev/payment-orchestration/internal/service/ledger"
	"github.com/iliamunaev/payment-orchestration/internal/service/loop"
	"github.com/iliamunaev/payment-orchestration/internal/service/pool"
	"github.com/iliamunaev/payment-orchestration/internal/service/tracker"
)

// Mode names a driver.
type Mode string

const (
	ModeBlocking    Mode = "blocking"
	ModeNonBlocking Mode = "nonblocking"
)

// Stage names used in logs.
const (
	StagePayment      = "payment"
	StageLedger       = "ledger"
	StageNotification = "notification"
)

// DefaultNotifyAddress receives the payment notification when none is configured.
const DefaultNotifyAddress = "abcd@abc.def"

// PaymentProcessor calls the payment service. *payment.Client satisfies it.
type PaymentProcessor interface {
	Process(ctx context.Context, req model.PaymentRequest) (model.PaymentResponse, error)
	ProcessAsync(ctx context.Context, req model.PaymentRequest) *future.Future[model.PaymentResponse]
}

// Notifier sends the payment notification. *notification.Service satisfies it.
type Notifier interface {
	Notify(ctx context.Context, address string) (string, error)
	NotifyAsync(ctx context.Context, address string) *future.Future[string]
}

// Deps are the collaborators of a Service.
type Deps struct {
	Payments PaymentProcessor
	Notifier Notifier
	Ledger   ledger.Recorder // optional, defaults to a LogRecorder
	Pool     *pool.Pool      // blocking driver
	Loop     *loop.Loop      // non-blocking driver
	Logger   *slog.Logger    // optional, defaults to slog.Default()

	NotifyAddress string // optional, defaults to DefaultNotifyAddress
}

// Service is the payment orchestrator.
type Service struct {
	payments PaymentProcessor
	notifier Notifier
	ledger   ledger.Recorder
	pool     *pool.Pool
	loop     *loop.Loop
	address  string
	log      *slog.Logger

	blocking    tracker.Tracker
	nonBlocking tracker.Tracker
}

// New creates a Service. It panics if a required dependency is missing.
func New(d Deps) *Service {
	switch {
	case d.Payments == nil:
		panic("orchestrator.New: nil payment processor")
	case d.Notifier == nil:
		panic("orchestrator.New: nil notifier")
	case d.Pool == nil:
		panic("orchestrator.New: nil pool")
	case d.Loop == nil:
		panic("orchestrator.New: nil loop")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Ledger == nil {
		d.Ledger = ledger.NewLogRecorder(d.Logger)
	}
	if d.NotifyAddress == "" {
		d.NotifyAddress = DefaultNotifyAddress
	}
	return &Service{
		payments: d.Payments,
		notifier: d.Notifier,
		ledger:   d.Ledger,
		pool:     d.Pool,
		loop:     d.Loop,
		address:  d.NotifyAddress,
		log:      d.Logger.With("component", "orchestrator"),
	}
}

// ProcessBlocking runs the pipeline on a pool worker and returns when it is done.
//
// If every worker is busy the request waits in the pool backlog; if the
// backlog is full too it fails with apperr.ErrWorkerPoolExhausted. Any stage
// failure, the notification included, is returned to the caller.
func (s *Service) ProcessBlocking(ctx context.Context, req model.PaymentRequest) (resp model.PaymentResponse, err error) {
	if err := req.Validate(); err != nil {
		return model.PaymentResponse{}, err
	}

	if err := s.pool.Acquire(ctx); err != nil {
		s.log.WarnContext(ctx, "request not admitted",
			"mode", ModeBlocking, "order_id", req.OrderID, "err", err)
		if !errors.Is(err, apperr.ErrWorkerPoolExhausted) {
			err = fmt.Errorf("waiting for worker: %w", err)
		}
		return model.PaymentResponse{}, err
	}
	defer s.pool.Release()

	s.blocking.Inc()
	defer func() {
		if r := recover(); r != nil {
			s.blocking.Done(fmt.Errorf("%w: %v", future.ErrPanicked, r))
			panic(r)
		}
		s.blocking.Done(err)
	}()

	start := time.Now()
	resp, err = s.payments.Process(ctx, req)
	s.observe(ctx, ModeBlocking, req, StagePayment, start, err)
	if err != nil {
		return model.PaymentResponse{}, err
	}

	if err := s.confirm(ctx, ModeBlocking, req, resp); err != nil {
		return model.PaymentResponse{}, err
	}

	start = time.Now()
	_, err = s.notifier.Notify(ctx, s.address)
	s.observe(ctx, ModeBlocking, req, StageNotification, start, err)
	if err != nil {
		return model.PaymentResponse{}, err
	}

	return resp, nil
}

// ProcessNonBlocking schedules the pipeline on the loop and returns at once.
//
// The returned future completes with the payment response, or with the
// payment or ledger error. A notification failure is logged and the payment
// response is still returned. If ctx ends before one of the downstream calls
// is made, the chain stops there with the context error.
func (s *Service) ProcessNonBlocking(ctx context.Context, req model.PaymentRequest) *future.Future[model.PaymentResponse] {
	if err := req.Validate(); err != nil {
		return future.Failed[model.PaymentResponse](err)
	}

	s.nonBlocking.Inc()
	start := time.Now()

	paid := future.Start(s.loop, func() *future.Future[model.PaymentResponse] {
		if err := abandoned(ctx, StagePayment); err != nil {
			return future.Failed[model.PaymentResponse](err)
		}
		return s.payments.ProcessAsync(ctx, req)
	})

	confirmed := future.Handle(s.loop, paid, func(resp model.PaymentResponse, err error) (model.PaymentResponse, error) {
		s.observe(ctx, ModeNonBlocking, req, StagePayment, start, err)
		if err != nil {
			return model.PaymentResponse{}, err
		}
		if err := s.confirm(ctx, ModeNonBlocking, req, resp); err != nil {
			return model.PaymentResponse{}, err
		}
		return resp, nil
	})

	notified := future.Then(s.loop, confirmed, func(resp model.PaymentResponse) *future.Future[model.PaymentResponse] {
		if err := abandoned(ctx, StageNotification); err != nil {
			return future.Failed[model.PaymentResponse](err)
		}
		start := time.Now()
		return future.Handle(s.loop, s.notifier.NotifyAsync(ctx, s.address), func(_ string, err error) (model.PaymentResponse, error) {
			s.observe(ctx, ModeNonBlocking, req, StageNotification, start, err)
			if err != nil {
				s.log.WarnContext(ctx, "notification failed, returning payment result",
					"order_id", req.OrderID, "err", err)
			}
			return resp, nil
		})
	})

	return future.Handle(future.Inline, notified, func(resp model.PaymentResponse, err error) (model.PaymentResponse, error) {
		s.nonBlocking.Done(err)
		return resp, err
	})
}

// confirm logs the payment outcome and records it in the ledger.
// A ledger failure fails the request.
func (s *Service) confirm(ctx context.Context, mode Mode, req model.PaymentRequest, resp model.PaymentResponse) error {
	s.log.InfoContext(ctx, "payment confirmed",
		"mode", mode, "order_id", req.OrderID, "status", resp.Status)

	start := time.Now()
	err := s.ledger.Record(ctx, req, resp)
	s.observe(ctx, mode, req, StageLedger, start, err)
	if err != nil {
		return fmt.Errorf("ledger record for order_id=%s: %w", req.OrderID, err)
	}
	return nil
}

// observe emits one event per finished stage.
func (s *Service) observe(ctx context.Context, mode Mode, req model.PaymentRequest, stage string, start time.Time, err error) {
	st := "ok"
	level := slog.LevelInfo
	attrs := []slog.Attr{
		slog.String("stage", stage),
		slog.String("mode", string(mode)),
		slog.String("order_id", req.OrderID),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			st = "canceled"
		} else {
			st = "error"
		}
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("kind", apperr.Kind(err)), slog.String("err", err.Error()))
	}
	attrs = append(attrs, slog.String("status", st))
	s.log.LogAttrs(ctx, level, "stage finished", attrs...)
}

func abandoned(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("request abandoned before %s: %w", stage, err)
	}
	return nil
}

// PoolStats describes the blocking driver's worker pool.
type PoolStats struct {
	Size    int `json:"size"`
	InUse   int `json:"in_use"`
	Waiting int `json:"waiting"`
}

// BlockingStats describes the blocking driver.
type BlockingStats struct {
	Pool     PoolStats        `json:"pool"`
	Requests tracker.Snapshot `json:"requests"`
}

// NonBlockingStats describes the non-blocking driver.
type NonBlockingStats struct {
	Loop     loop.Stats       `json:"loop"`
	Requests tracker.Snapshot `json:"requests"`
}

// Stats is a snapshot of both drivers.
type Stats struct {
	Blocking    BlockingStats    `json:"blocking"`
	NonBlocking NonBlockingStats `json:"nonblocking"`
}

// Stats returns current occupancy and request counters.
func (s *Service) Stats() Stats {
	return Stats{
		Blocking: BlockingStats{
			Pool: PoolStats{
				Size:    s.pool.Size(),
				InUse:   s.pool.InUse(),
				Waiting: s.pool.Waiting(),
			},
			Requests: s.blocking.Snapshot(),
		},
		NonBlocking: NonBlockingStats{
			Loop:     s.loop.Stats(),
			Requests: s.nonBlocking.Snapshot(),
		},
	}
}
