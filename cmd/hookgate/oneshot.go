package main

import (
	"net/http/cgi"
	"os"

	"github.com/spf13/cobra"

	"hookgate/internal/platform/config"
	"hookgate/internal/platform/logger"
)

// newOneshotCommand serves exactly one request using the CGI protocol: the
// request arrives on stdin and in the environment, the response goes to stdout.
func newOneshotCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "oneshot",
		Short: "Handle a single request (CGI) and exit",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			log := logger.NewWithWriter(os.Stderr, cfg.Level())

			a, err := newApp(cfg, log)
			if err != nil {
				log.Error("startup failed", "error", err)
				return err
			}
			return cgi.Serve(a.router)
		},
	}
}
