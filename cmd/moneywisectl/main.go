// Command moneywisectl administers a moneywise ledger: schema migrations,
// balance audits and repairs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"moneywise/internal/cli"
	"moneywise/internal/config"
	"moneywise/internal/log"
	"moneywise/internal/storage"
)

// app carries what PersistentPreRunE prepares for the subcommands.
type app struct {
	cfg    *config.Config
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "moneywisectl",
		Short: "Administer a moneywise ledger",
		Long: `moneywisectl runs maintenance tasks against the store selected by
DATA_BACKEND: applying migrations, auditing wallet balances against their
transactions and recomputing drifted balances.`,
		PersistentPreRunE: a.init,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	root.AddCommand(migrateCmd(a))
	root.AddCommand(auditCmd(a))
	root.AddCommand(recomputeCmd(a))
	root.AddCommand(tokenCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command, _ []string) error {
	cfg, err := cli.LoadConfig((*config.Config).Validate)
	if err != nil {
		return err
	}
	a.cfg = cfg

	// Logs go to stderr so command output stays parseable.
	a.logger = log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentCLI,
		Output:    cmd.ErrOrStderr(),
	})
	log.SetDefault(a.logger)
	return nil
}

// withStore opens the configured store for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(storage.Store) error) error {
	res, err := cli.OpenStore(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			a.logger.Error("Failed to close store", log.FieldError, err.Error())
		}
	}()
	return fn(res.Store)
}

func main() {
	cli.LoadEnvFile()

	ctx, stop := cli.SignalContext(context.Background())
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
