package main

import (
	"github.com/spf13/cobra"
)

var rentSyncCmd = &cobra.Command{
	Use:     "rent-sync",
	Short:   "Recompute the derived rent figure of a contract unit",
	Example: `  ledgerctl rent-sync --company 1 --unit 12`,
	RunE:    runRentSync,
}

func init() {
	rootCmd.AddCommand(rentSyncCmd)

	rentSyncCmd.Flags().Uint("unit", 0, "Contract unit ID")
	_ = rentSyncCmd.MarkFlagRequired("unit")
}

func runRentSync(cmd *cobra.Command, args []string) error {
	unitID, _ := cmd.Flags().GetUint("unit")

	result, err := current.svcs.Rent.SyncContractUnit(cmd.Context(), current.actor, unitID, nil)
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}
