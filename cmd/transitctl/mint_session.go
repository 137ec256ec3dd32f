package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/commute-ledger/transit-expense-api/internal/app/members"
	"github.com/commute-ledger/transit-expense-api/internal/bootstrap"
	platformclock "github.com/commute-ledger/transit-expense-api/internal/platform/clock"
	"github.com/commute-ledger/transit-expense-api/internal/platform/session"
)

func newMintSessionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mint-session <email>",
		Short: "Print a session token for an existing active member",
		Long: `Sign a session token with SESSION_SECRET for scripting against the API.
Send it as "Authorization: Bearer <token>".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			clk := platformclock.NewSystemClock()
			sessions, err := session.NewManager(session.Options{
				Secret: []byte(cfg.Auth.SessionSecret),
				TTL:    cfg.Auth.SessionTTL,
			}, clk)
			if err != nil {
				return err
			}

			stores, err := bootstrap.OpenStores(cmd.Context(), cfg, opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer stores.Close()

			m, err := members.NewService(stores.Members, clk).GetActiveMemberByEmail(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("member %s: %w", args[0], err)
			}
			token, exp, err := sessions.Issue(m.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "member=%s expires=%s\n", m.ID, exp.Format(time.RFC3339))
			return nil
		},
	}
}
