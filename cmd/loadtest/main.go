// Command loadtest sends concurrent pay requests to one of the server's
// routes and prints a summary.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliamunaev/payment-orchestration/internal/loadtest"
	httptransport "github.com/iliamunaev/payment-orchestration/internal/transport/http"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		base   string
		mode   string
		cfg    loadtest.Config
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Fire concurrent pay requests at the blocking or non-blocking route",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := routeFor(mode)
			if err != nil {
				return err
			}
			cfg.URL = strings.TrimRight(base, "/") + path

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := loadtest.Run(ctx, cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintf(out, "target:    %s\n", cfg.URL)
			fmt.Fprint(out, res.String())
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&base, "url", "http://localhost:8080", "server base URL")
	f.StringVarP(&mode, "mode", "m", "blocking", "route to exercise: blocking or nonblocking")
	f.IntVarP(&cfg.Requests, "requests", "n", 100, "number of requests")
	f.IntVarP(&cfg.Concurrency, "concurrency", "c", 0, "maximum requests in flight (0 = all)")
	f.Float64Var(&cfg.Amount, "amount", 100.0, "amount sent with every request")
	f.BoolVarP(&asJSON, "json", "j", false, "print the result as JSON")

	return cmd
}

func routeFor(mode string) (string, error) {
	switch strings.ToLower(mode) {
	case "blocking":
		return httptransport.PathBlocking, nil
	case "nonblocking", "non-blocking":
		return httptransport.PathNonBlocking, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want blocking or nonblocking)", mode)
	}
}
