package main

import (
	"github.com/spf13/cobra"

	"github.com/sjperalta/fintera-posting/internal/services"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Print the dashboard statistics of a company",
	Example: `  ledgerctl stats --company 1 --from 2025-01-01 --to 2025-03-31`,
	RunE:    runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().String("from", "", "Start date (YYYY-MM-DD)")
	statsCmd.Flags().String("to", "", "End date (YYYY-MM-DD)")
	statsCmd.Flags().Uint("customer", 0, "Only this customer")
}

func runStats(cmd *cobra.Command, args []string) error {
	var filter services.StatisticsFilter
	for _, name := range []string{"from", "to"} {
		raw, _ := cmd.Flags().GetString(name)
		if raw == "" {
			continue
		}
		t, err := parseDate(name, raw)
		if err != nil {
			return err
		}
		if name == "from" {
			filter.From = &t
		} else {
			filter.To = &t
		}
	}
	if customer, _ := cmd.Flags().GetUint("customer"); customer != 0 {
		filter.CustomerID = &customer
	}

	stats, err := current.svcs.Statistics.Get(cmd.Context(), current.actor, filter)
	if err != nil {
		return err
	}
	return printJSON(cmd, stats)
}
