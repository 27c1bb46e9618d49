// Package app wires configuration into a running payment orchestration server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/iliamunaev/payment-orchestration/internal/config"
	"github.com/iliamunaev/payment-orchestration/internal/orchestrator"
	"github.com/iliamunaev/payment-orchestration/internal/service/downstream"
	"github.com/iliamunaev/payment-orchestration/internal/service/ledger"
	"github.com/iliamunaev/payment-orchestration/internal/service/loop"
	"github.com/iliamunaev/payment-orchestration/internal/service/mail"
	"github.com/iliamunaev/payment-orchestration/internal/service/notification"
	"github.com/iliamunaev/payment-orchestration/internal/service/payment"
	"github.com/iliamunaev/payment-orchestration/internal/service/pool"
	httptransport "github.com/iliamunaev/payment-orchestration/internal/transport/http"
)

// App is the assembled server.
type App struct {
	Log          *slog.Logger
	Orchestrator *orchestrator.Service

	cfg    config.Config
	loop   *loop.Loop
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
	served   chan struct{}
}

// NewLogger builds the process logger described by cfg.
func NewLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// New assembles the clients, both drivers, the orchestrator and the router.
// Nothing runs until Start.
func New(cfg config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}

	hc := newHTTPClient(cfg)
	payments := payment.New(cfg.Payment.BaseURL,
		downstream.WithHTTPClient(hc), downstream.WithTimeout(cfg.Payment.Timeout))
	mailer := mail.New(cfg.Mail.BaseURL,
		downstream.WithHTTPClient(hc), downstream.WithTimeout(cfg.Mail.Timeout))

	l := loop.New(cfg.Loop.Workers, cfg.Loop.Queue, logger)
	orch := orchestrator.New(orchestrator.Deps{
		Payments:      payments,
		Notifier:      notification.New(mailer, logger),
		Ledger:        ledger.NewLogRecorder(logger),
		Pool:          pool.New(cfg.Blocking.Workers, cfg.Blocking.Backlog),
		Loop:          l,
		Logger:        logger,
		NotifyAddress: cfg.Notify.Address,
	})

	h := httptransport.New(orch, cfg.Server.RequestTimeout, logger)

	return &App{
		Log:          logger,
		Orchestrator: orch,
		cfg:          cfg,
		loop:         l,
		server: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           httptransport.NewRouter(h, logger),
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
	}
}

// newHTTPClient returns the client shared by both downstream services.
// The idle pool is sized so a full blocking pool keeps its connections.
func newHTTPClient(cfg config.Config) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	idle := cfg.Blocking.Workers
	if cfg.Loop.Queue > idle {
		idle = cfg.Loop.Queue
	}
	tr.MaxIdleConns = 2 * idle
	tr.MaxIdleConnsPerHost = idle
	return &http.Client{Transport: tr}
}

// Start starts the loop and begins serving. It returns once the listener is bound.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return errors.New("app already started")
	}

	if err := a.loop.Start(ctx); err != nil {
		return fmt.Errorf("start loop: %w", err)
	}

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		_ = a.loop.Stop(ctx)
		return fmt.Errorf("listen %s: %w", a.server.Addr, err)
	}
	a.listener = ln
	a.served = make(chan struct{})

	go func() {
		defer close(a.served)
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Error("server stopped", "err", err)
		}
	}()

	a.Log.Info("listening",
		"addr", ln.Addr().String(),
		"payment", a.cfg.Payment.BaseURL,
		"mail", a.cfg.Mail.BaseURL,
		"blocking_workers", a.cfg.Blocking.Workers,
		"blocking_backlog", a.cfg.Blocking.Backlog,
		"loop_workers", a.cfg.Loop.Workers,
	)
	return nil
}

// Addr returns the bound address, or "" before Start.
func (a *App) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Stop drains in-flight HTTP requests, then stops the loop.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	started := a.listener != nil
	served := a.served
	a.mu.Unlock()
	if !started {
		return nil
	}

	a.Log.Info("shutting down")
	err := a.server.Shutdown(ctx)
	if err == nil {
		<-served
	}
	return errors.Join(err, a.loop.Stop(ctx))
}
