package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/commute-ledger/transit-expense-api/internal/platform/config"
	"github.com/commute-ledger/transit-expense-api/internal/platform/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "transitctl",
		Short: "Operate the transit expense API",
		Long: `transitctl manages a transit expense API deployment.

It reads the same config.yaml and environment variables as the API server.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "Path to the YAML config file (environment overrides it)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newSeedAdminsCmd(opts),
		newMintSessionCmd(opts),
		newDevIDPCmd(),
	)
	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.configPath)
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	return logging.New(w, o.logLevel)
}
