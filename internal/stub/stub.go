// Package stub provides fake payment and mail services with configurable
// latency and failure, for tests, demos and load runs.
package stub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iliamunaev/payment-orchestration/internal/model"
	"github.com/iliamunaev/payment-orchestration/internal/service/tracker"
)

// Endpoints served by the fakes.
const (
	PaymentPath = "/payments/process"
	MailPath    = "/mail/send"
)

// Service is one fake downstream service.
type Service struct {
	name        string
	path        string
	contentType string
	body        []byte
	delay       time.Duration
	failStatus  int
	failBody    string
	log         *slog.Logger
	decode      func([]byte) error

	tr tracker.Tracker

	mu       sync.Mutex
	received [][]byte
}

// Option configures a Service.
type Option func(*Service)

// WithDelay makes every call wait d before replying.
func WithDelay(d time.Duration) Option {
	return func(s *Service) { s.delay = d }
}

// WithBody sets the success body.
func WithBody(body string) Option {
	return func(s *Service) { s.body = []byte(body) }
}

// WithFailure makes every call reply with status and body.
func WithFailure(status int, body string) Option {
	return func(s *Service) {
		s.failStatus = status
		s.failBody = body
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewPayment returns a fake payment service answering {"status":"APPROVED"}.
func NewPayment(opts ...Option) *Service {
	s := &Service{
		name:        "payment",
		path:        PaymentPath,
		contentType: "application/json",
		body:        []byte(`{"status":"APPROVED"}`),
		decode: func(b []byte) error {
			var req model.PaymentRequest
			return json.Unmarshal(b, &req)
		},
	}
	return s.apply(opts)
}

// NewMail returns a fake mail service answering "OK".
func NewMail(opts ...Option) *Service {
	s := &Service{
		name:        "mail",
		path:        MailPath,
		contentType: "text/plain; charset=utf-8",
		body:        []byte("OK"),
		decode: func(b []byte) error {
			var req model.EmailRequest
			return json.Unmarshal(b, &req)
		},
	}
	return s.apply(opts)
}

func (s *Service) apply(opts []Option) *Service {
	s.log = slog.Default()
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("stub", s.name)
	return s
}

// Handler returns the router serving the fake endpoint.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post(s.path, s.serve)
	return r
}

// Calls returns how many requests reached the endpoint.
func (s *Service) Calls() int64 {
	st := s.tr.Snapshot()
	return st.Running + st.Succeeded + st.Failed
}

// Stats returns in-flight and peak concurrency seen by the endpoint.
func (s *Service) Stats() tracker.Snapshot { return s.tr.Snapshot() }

// Received returns copies of the request bodies in arrival order.
func (s *Service) Received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.received))
	copy(out, s.received)
	return out
}

func (s *Service) serve(w http.ResponseWriter, r *http.Request) {
	s.tr.Inc()

	body, err := io.ReadAll(r.Body)
	if err == nil {
		err = s.decode(body)
	}
	if err != nil {
		s.tr.Done(err)
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.received = append(s.received, body)
	s.mu.Unlock()

	if err := sleepOrDone(r.Context(), s.delay); err != nil {
		s.tr.Done(err)
		return
	}

	if s.failStatus != 0 {
		s.tr.Done(errFailure)
		s.log.Debug("replying with failure", "status", s.failStatus)
		http.Error(w, s.failBody, s.failStatus)
		return
	}

	s.tr.Done(nil)
	w.Header().Set("Content-Type", s.contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.body)
}

type failure struct{}

func (failure) Error() string { return "configured failure" }

var errFailure error = failure{}

// sleepOrDone waits for d or returns early on context cancellation.
func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
