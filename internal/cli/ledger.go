package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/matchmaker/internal/ledger"
)

func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and reset notification history",
	}
	cmd.AddCommand(newLedgerListCmd(), newLedgerResetCmd())
	return cmd
}

func newLedgerListCmd() *cobra.Command {
	var f ledger.Filter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notification records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient()
			if err != nil {
				return err
			}
			records, err := c.Ledger(cmd.Context(), f)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), records)
			}
			return printLedgerTable(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().StringVar(&f.InvestorID, "investor", "", "only records for this investor")
	cmd.Flags().StringVar(&f.PropertyID, "property", "", "only records for this property")

	return cmd
}

func newLedgerResetCmd() *cobra.Command {
	var investorID string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget an investor's notification history",
		Long:  "Delete every notification record for an investor so all current matches are sent again on the next run.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient()
			if err != nil {
				return err
			}
			n, err := c.ResetInvestorLedger(cmd.Context(), investorID)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"investor_id": investorID, "removed": n})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d records for investor %s.\n", n, investorID)
			return err
		},
	}

	cmd.Flags().StringVar(&investorID, "investor", "", "investor ID (required)")
	_ = cmd.MarkFlagRequired("investor")

	return cmd
}
