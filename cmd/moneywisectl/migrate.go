package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"moneywise/internal/backend"
	"moneywise/internal/log"
)

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bcfg, err := backend.FromAppConfig(a.cfg)
			if err != nil {
				return err
			}
			if err := backend.Migrate(bcfg); err != nil {
				return fmt.Errorf("migrate %s: %w", bcfg.Type, err)
			}

			a.logger.InfoContext(cmd.Context(), "Migrations applied",
				log.FieldOperation, log.OpMigrate,
				"backend", bcfg.Type.String())
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", bcfg.Type)
			return err
		},
	}
}
