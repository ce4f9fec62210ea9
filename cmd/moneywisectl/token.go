package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"moneywise/internal/auth"
	"moneywise/internal/core"
)

// tokenCmd signs a bearer token with JWT_SECRET. Production tokens come from
// the identity provider; this exists for local development and smoke tests.
func tokenCmd(a *app) *cobra.Command {
	var (
		user int64
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development bearer token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.ValidateServer(); err != nil {
				return err
			}
			if user < 1 {
				return fmt.Errorf("--user must be a positive id")
			}
			tok, err := auth.Sign(a.cfg.JWTSecret, core.UserID(user), ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}

	cmd.Flags().Int64Var(&user, "user", 0, "user id to embed in the token (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
