package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/commute-ledger/transit-expense-api/internal/app/members"
	"github.com/commute-ledger/transit-expense-api/internal/bootstrap"
	platformclock "github.com/commute-ledger/transit-expense-api/internal/platform/clock"
)

func newSeedAdminsCmd(opts *rootOptions) *cobra.Command {
	var promote bool
	cmd := &cobra.Command{
		Use:   "seed-admins [email...]",
		Short: "Create admin members, optionally promoting existing ones",
		Long: `Create each missing email as an active admin. Existing members are left
as they are unless --promote is given, which grants the admin role to active
members. Deactivated members are never reactivated. With no arguments the
ADMIN_EMAILS list from the configuration is used.

Examples:
  transitctl seed-admins keiri@example.co.jp
  transitctl seed-admins --promote soumu@example.co.jp
  ADMIN_EMAILS=a@example.co.jp,b@example.co.jp transitctl seed-admins`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			emails := args
			if len(emails) == 0 {
				emails = cfg.Admin.Emails
			}
			if len(emails) == 0 {
				return errors.New("no admin emails given (pass them as arguments or set ADMIN_EMAILS)")
			}

			stores, err := bootstrap.OpenStores(cmd.Context(), cfg, opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer stores.Close()

			svc := members.NewService(stores.Members, platformclock.NewSystemClock())
			seed := svc.SeedAdmins
			if promote {
				seed = svc.PromoteAdmins
			}
			seeded, err := seed(cmd.Context(), emails)
			for _, m := range seeded {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.ID, m.Email)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&promote, "promote", false, "also grant the admin role to existing active members")
	return cmd
}
