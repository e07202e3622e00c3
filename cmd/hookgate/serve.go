package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hookgate/internal/platform/config"
	"hookgate/internal/platform/httpserver"
	"hookgate/internal/platform/logger"
)

func newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway as a long-lived HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			log := logger.New(cfg.Level())

			a, err := newApp(cfg, log)
			if err != nil {
				log.Error("startup failed", "error", err)
				return err
			}

			log.Info("initializing hookgate",
				"addr", cfg.Addr,
				"environment", cfg.Environment,
				"instance", cfg.Instance,
			)

			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.Addr, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return httpserver.Run(ctx, httpserver.New(cfg.Addr, a.router), ln, cfg.ShutdownTimeout, log)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides HOOKGATE_ADDR)")
	return cmd
}
