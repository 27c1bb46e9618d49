// Command server runs the payment orchestration HTTP server.
package main

import (
	"context"
	"fmt"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/cobra"

	"github.com/iliamunaev/payment-orchestration/internal/app"
	"github.com/iliamunaev/payment-orchestration/internal/config"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "server",
		Short:   "Payment orchestration server with blocking and non-blocking routes",
		Version: Version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, &cfg); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	f.String("addr", "", "listen address (overrides config)")
	f.String("payment-url", "", "payment service base URL (overrides config)")
	f.String("mail-url", "", "mail service base URL (overrides config)")
	f.Int("blocking-workers", 0, "blocking driver pool size (overrides config)")
	f.Int("loop-workers", 0, "non-blocking driver loop size (overrides config)")

	return cmd
}

// applyFlags copies explicitly set flags over the loaded config.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.Server.Addr, _ = f.GetString("addr")
	}
	if f.Changed("payment-url") {
		cfg.Payment.BaseURL, _ = f.GetString("payment-url")
	}
	if f.Changed("mail-url") {
		cfg.Mail.BaseURL, _ = f.GetString("mail-url")
	}
	if f.Changed("blocking-workers") {
		cfg.Blocking.Workers, _ = f.GetInt("blocking-workers")
	}
	if f.Changed("loop-workers") {
		cfg.Loop.Workers, _ = f.GetInt("loop-workers")
	}
	return cfg.Validate()
}

func run(cfg config.Config) error {
	logger, err := app.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	a := app.New(cfg, logger)
	if err := a.Start(context.Background()); err != nil {
		return err
	}

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"server": a.Stop,
		},
	)

	exitCode := <-wait
	logger.Info("exited", "code", exitCode)
	if exitCode != 0 {
		return fmt.Errorf("shutdown finished with exit code %d", exitCode)
	}
	return nil
}
