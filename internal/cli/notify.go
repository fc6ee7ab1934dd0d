package cli

import (
	"github.com/spf13/cobra"
)

func newNotifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send match notifications",
		Long:  "Run the notification workflow for a property or an investor. Pairs that were already notified are skipped unless the match improved or the last notice is stale.",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "property ID",
			Short: "Notify investors matching a property",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := newAPIClient()
				if err != nil {
					return err
				}
				summary, err := c.NotifyProperty(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(cmd.OutOrStdout(), summary)
				}
				return printSummary(cmd.OutOrStdout(), summary)
			},
		},
		&cobra.Command{
			Use:   "investor ID",
			Short: "Notify an investor about matching properties",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := newAPIClient()
				if err != nil {
					return err
				}
				summary, err := c.NotifyInvestor(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(cmd.OutOrStdout(), summary)
				}
				return printSummary(cmd.OutOrStdout(), summary)
			},
		},
	)

	return cmd
}
