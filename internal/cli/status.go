package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/matchmaker/internal/client"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check connection to the server",
		Long:  "Tests the connection to the matchmaker API server.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server:  %s\n", cfg.ServerURL)

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			if err := client.New(cfg.ServerURL).Health(ctx); err != nil {
				fmt.Fprintf(out, "Status:  ✗ cannot reach server (%v)\n", err)
				return nil
			}
			fmt.Fprintln(out, "Status:  ✓ connected")
			return nil
		},
	}
}
