package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sjperalta/fintera-posting/pkg/logger"
)

var postLeaseRevenueCmd = &cobra.Command{
	Use:   "post-lease-revenue",
	Short: "Post every unposted lease revenue entry of a period",
	Long: `Computes the accrued revenue of every active lease in the period and
posts the entries that are not posted yet as one batch. Entries that fail are
listed in the result; the rest are still posted.`,
	Example: `  ledgerctl post-lease-revenue --company 1 --from 2025-01-01 --to 2025-01-31`,
	RunE: runPostLeaseRevenue,
}

func init() {
	rootCmd.AddCommand(postLeaseRevenueCmd)

	postLeaseRevenueCmd.Flags().String("from", "", "Period start (YYYY-MM-DD)")
	postLeaseRevenueCmd.Flags().String("to", "", "Period end (YYYY-MM-DD)")
	_ = postLeaseRevenueCmd.MarkFlagRequired("from")
	_ = postLeaseRevenueCmd.MarkFlagRequired("to")
}

func runPostLeaseRevenue(cmd *cobra.Command, args []string) error {
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	from, err := parseDate("from", fromStr)
	if err != nil {
		return err
	}
	to, err := parseDate("to", toStr)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	result, err := current.svcs.LeaseRevenue.PostUnposted(ctx, current.actor, from, to)
	if err != nil {
		return err
	}
	logger.Info("Lease revenue posted", "batch_id", result.BatchID,
		"updated", result.UpdatedCount, "failed", result.FailedCount)

	if err := printJSON(cmd, result); err != nil {
		return err
	}
	if result.FailedCount > 0 {
		return fmt.Errorf("%d of %d entries failed", result.FailedCount, result.FailedCount+result.UpdatedCount)
	}
	return nil
}
