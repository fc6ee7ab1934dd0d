package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/matchmaker/internal/match"
)

func newMatchesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "matches",
		Short: "Show ranked matches",
		Long:  "Show ranked matches for a property or an investor without sending anything.",
	}
	cmd.PersistentFlags().IntVar(&limit, "limit", 0, "show only the top N matches (0 = all)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "property ID",
			Short: "Rank active investors for a property",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if limit < 0 {
					return fmt.Errorf("--limit must not be negative")
				}
				c, err := newAPIClient()
				if err != nil {
					return err
				}
				matches, err := c.PropertyMatches(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(cmd.OutOrStdout(), matches)
				}
				return printMatchTable(cmd.OutOrStdout(), "INVESTOR", matches, func(m match.Match) string { return m.InvestorID })
			},
		},
		&cobra.Command{
			Use:   "investor ID",
			Short: "Rank available properties for an investor",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if limit < 0 {
					return fmt.Errorf("--limit must not be negative")
				}
				c, err := newAPIClient()
				if err != nil {
					return err
				}
				matches, err := c.InvestorMatches(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(cmd.OutOrStdout(), matches)
				}
				return printMatchTable(cmd.OutOrStdout(), "PROPERTY", matches, func(m match.Match) string { return m.PropertyID })
			},
		},
	)

	return cmd
}
