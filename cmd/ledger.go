package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meridian-aml/riskwatch/internal/model"
)

var ledgerEntityType string

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and repair the entity risk ledger",
}

var ledgerHistoryCmd = &cobra.Command{
	Use:   "history <entity-name>",
	Short: "Print an entity's full audit trail, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ld, err := initLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer ld.Close()

		records, err := ld.History(cmd.Context(), model.NewEntityKey(args[0], ledgerEntityType))
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}

var ledgerLatestCmd = &cobra.Command{
	Use:   "latest <entity-name>",
	Short: "Print an entity's most recent assessment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ld, err := initLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer ld.Close()

		rec, err := ld.Latest(cmd.Context(), model.NewEntityKey(args[0], ledgerEntityType))
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Fprintln(os.Stderr, "no records for entity")
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

var ledgerReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Re-derive the analytical projection from the authoritative store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ld, err := initLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer ld.Close()

		copied, err := ld.Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("reconciled: %d row(s) copied to projection\n", copied)
		return nil
	},
}

func init() {
	ledgerCmd.PersistentFlags().StringVar(&ledgerEntityType, "type", "", "entity type (person, organization, ...)")
	ledgerCmd.AddCommand(ledgerHistoryCmd, ledgerLatestCmd, ledgerReconcileCmd)
	rootCmd.AddCommand(ledgerCmd)
}
