package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	postgres "github.com/commute-ledger/transit-expense-api/internal/adapters/postgres"
	"github.com/commute-ledger/transit-expense-api/internal/bootstrap"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply every embedded migration not yet recorded in schema_migrations.

Examples:
  DATABASE_URL=postgres://... transitctl migrate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return errors.New("DATABASE_URL is required")
			}
			pool, err := bootstrap.OpenPool(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := postgres.Migrate(cmd.Context(), pool)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				fmt.Fprintln(out, "schema is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(out, "applied %s\n", v)
			}
			return nil
		},
	}
}
