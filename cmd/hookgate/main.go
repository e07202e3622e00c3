package main

import (
	"os"

	"github.com/spf13/cobra"

	"hookgate/internal/platform/health"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "hookgate",
		Short:        "Upload and chat gateway for automation webhooks",
		Version:      health.Version,
		SilenceUsage: true,
	}

	cmd.AddCommand(
		newServeCommand(),
		newOneshotCommand(),
		newSendCommand(),
	)
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
