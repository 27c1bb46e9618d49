// Command stubs runs fake payment and mail services for local runs and
// load tests.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/cobra"

	"github.com/iliamunaev/payment-orchestration/internal/model"
	"github.com/iliamunaev/payment-orchestration/internal/stub"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	paymentAddr  string
	mailAddr     string
	paymentDelay time.Duration
	mailDelay    time.Duration
	status       string
	failPayment  string
	failMail     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:   "stubs",
		Short: "Fake payment and mail services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.paymentAddr, "payment-addr", ":8082", "payment service listen address")
	f.StringVar(&o.mailAddr, "mail-addr", ":8081", "mail service listen address")
	f.DurationVar(&o.paymentDelay, "payment-delay", 0, "latency added to every payment call")
	f.DurationVar(&o.mailDelay, "mail-delay", 0, "latency added to every mail call")
	f.StringVar(&o.status, "status", "APPROVED", "payment status to return")
	f.StringVar(&o.failPayment, "fail-payment", "", "if set, payment calls fail with 500 and this body")
	f.StringVar(&o.failMail, "fail-mail", "", "if set, mail calls fail with 500 and this body (e.g. \"SMTP down\")")

	return cmd
}

func services(o options, logger *slog.Logger) (pay, mail *stub.Service, err error) {
	body, err := json.Marshal(model.PaymentResponse{Status: o.status})
	if err != nil {
		return nil, nil, fmt.Errorf("payment body: %w", err)
	}
	payOpts := []stub.Option{
		stub.WithLogger(logger),
		stub.WithDelay(o.paymentDelay),
		stub.WithBody(string(body)),
	}
	if o.failPayment != "" {
		payOpts = append(payOpts, stub.WithFailure(http.StatusInternalServerError, o.failPayment))
	}
	mailOpts := []stub.Option{stub.WithLogger(logger), stub.WithDelay(o.mailDelay)}
	if o.failMail != "" {
		mailOpts = append(mailOpts, stub.WithFailure(http.StatusInternalServerError, o.failMail))
	}
	return stub.NewPayment(payOpts...), stub.NewMail(mailOpts...), nil
}

// listen binds every server's address, or none of them.
func listen(servers map[string]*http.Server) (map[string]net.Listener, error) {
	lns := make(map[string]net.Listener, len(servers))
	for name, srv := range servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			for _, l := range lns {
				_ = l.Close()
			}
			return nil, fmt.Errorf("%s: listen %s: %w", name, srv.Addr, err)
		}
		lns[name] = ln
	}
	return lns, nil
}

func run(o options) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	pay, mail, err := services(o, logger)
	if err != nil {
		return err
	}

	servers := map[string]*http.Server{
		"payment": {Addr: o.paymentAddr, Handler: pay.Handler(), ReadHeaderTimeout: 3 * time.Second},
		"mail":    {Addr: o.mailAddr, Handler: mail.Handler(), ReadHeaderTimeout: 3 * time.Second},
	}
	lns, err := listen(servers)
	if err != nil {
		return err
	}

	ops := make(map[string]gfshutdown.Operation, len(servers))
	for name, srv := range servers {
		name, srv, ln := name, srv, lns[name]
		go func() {
			logger.Info("listening", "service", name, "addr", ln.Addr().String())
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server stopped", "service", name, "err", err)
			}
		}()
		ops[name] = srv.Shutdown
	}

	wait := gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, ops)
	exitCode := <-wait
	logger.Info("exited", "code", exitCode,
		"payment_calls", pay.Calls(), "mail_calls", mail.Calls())
	if exitCode != 0 {
		return fmt.Errorf("shutdown finished with exit code %d", exitCode)
	}
	return nil
}
