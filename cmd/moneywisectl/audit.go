package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"moneywise/internal/core"
	"moneywise/internal/ledger"
	"moneywise/internal/storage"
)

func auditCmd(a *app) *cobra.Command {
	var (
		user     int64
		walletID int64
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check wallet balances against their transactions",
		Long: `Recompute each wallet's expected balance (opening balance plus the signed
sum of its transactions) and compare it with the stored balance.

Exits non-zero when any audited wallet has drifted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var audits []core.WalletAudit
			err := a.withStore(cmd.Context(), func(st storage.Store) error {
				auditor := ledger.NewAuditor(st, a.cfg.AuditConcurrency)
				if walletID != 0 {
					one, err := auditor.AuditWallet(cmd.Context(), core.UserID(user), walletID)
					audits = []core.WalletAudit{one}
					return err
				}
				var err error
				audits, err = auditor.AuditUser(cmd.Context(), core.UserID(user))
				return err
			})
			if err != nil {
				return err
			}

			if asJSON {
				err = writeJSON(cmd.OutOrStdout(), audits)
			} else {
				err = writeAuditTable(cmd.OutOrStdout(), audits)
			}
			if err != nil {
				return err
			}

			drifted := 0
			for _, r := range audits {
				if !r.Consistent {
					drifted++
				}
			}
			if drifted > 0 {
				return fmt.Errorf("%d wallet(s) out of balance; run recompute to repair", drifted)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&user, "user", 0, "user id owning the wallets (required)")
	cmd.Flags().Int64Var(&walletID, "wallet", 0, "audit only this wallet")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func recomputeCmd(a *app) *cobra.Command {
	var user, walletID int64
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Rewrite a drifted wallet balance from its transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var before core.WalletAudit
			err := a.withStore(cmd.Context(), func(st storage.Store) error {
				var err error
				before, err = ledger.NewAuditor(st, 1).Recompute(cmd.Context(), core.UserID(user), walletID)
				return err
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if before.Consistent {
				_, err = fmt.Fprintf(out, "wallet %d already consistent at %s\n", walletID, before.Actual)
				return err
			}
			_, err = fmt.Fprintf(out, "wallet %d repaired: %s -> %s (drift %s)\n",
				walletID, before.Actual, before.Expected, before.Drift)
			return err
		},
	}

	cmd.Flags().Int64Var(&user, "user", 0, "user id owning the wallet (required)")
	cmd.Flags().Int64Var(&walletID, "wallet", 0, "wallet to repair (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("wallet")
	return cmd
}

func writeAuditTable(out io.Writer, audits []core.WalletAudit) error {
	if len(audits) == 0 {
		_, err := fmt.Fprintln(out, "no wallets")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WALLET\tBALANCE\tEXPECTED\tDRIFT\tTXNS\tSTATUS")
	for _, r := range audits {
		status := "ok"
		if !r.Consistent {
			status = "DRIFT"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			r.WalletID, r.Actual, r.Expected, r.Drift, r.TransactionCount, status)
	}
	return w.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
