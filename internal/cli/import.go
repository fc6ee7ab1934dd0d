package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/evcraddock/matchmaker/internal/investor"
	"github.com/evcraddock/matchmaker/internal/listing"
)

// importResult is one line of import output.
type importResult struct {
	ID          string `json:"id"`
	Sent        int    `json:"sent"`
	LedgerReset int64  `json:"ledger_reset,omitempty"`
	Error       string `json:"error,omitempty"`
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load investors or listings from a YAML or JSON file",
		Long:  "Upsert every record in FILE through the API. FILE holds a list of records; records without an id are assigned one.",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "investors FILE",
			Short: "Import investor profiles",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var profiles []*investor.Profile
				if err := readRecords(args[0], &profiles); err != nil {
					return err
				}

				c, err := newAPIClient()
				if err != nil {
					return err
				}

				results := make([]importResult, 0, len(profiles))
				for _, p := range profiles {
					resp, err := c.PutInvestor(cmd.Context(), p)
					if err != nil {
						results = append(results, importResult{ID: p.ID, Error: err.Error()})
						continue
					}
					r := importResult{ID: resp.Investor.ID, LedgerReset: resp.LedgerReset, Error: resp.NotifyError}
					if resp.Notifications != nil {
						r.Sent = resp.Notifications.Sent
					}
					results = append(results, r)
				}
				return reportImport(cmd, "investors", results)
			},
		},
		&cobra.Command{
			Use:   "listings FILE",
			Short: "Import listings",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var listings []*listing.Listing
				if err := readRecords(args[0], &listings); err != nil {
					return err
				}

				c, err := newAPIClient()
				if err != nil {
					return err
				}

				results := make([]importResult, 0, len(listings))
				for _, l := range listings {
					resp, err := c.PutListing(cmd.Context(), l)
					if err != nil {
						results = append(results, importResult{ID: l.ID, Error: err.Error()})
						continue
					}
					r := importResult{ID: resp.Listing.ID, Error: resp.NotifyError}
					if resp.Notifications != nil {
						r.Sent = resp.Notifications.Sent
					}
					results = append(results, r)
				}
				return reportImport(cmd, "listings", results)
			},
		},
	)

	return cmd
}

// readRecords decodes a YAML (or JSON) list from path.
func readRecords(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// reportImport prints results and fails if any record was rejected.
func reportImport(cmd *cobra.Command, kind string, results []importResult) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}

	if isJSON() {
		if err := printJSON(out, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			switch {
			case r.Error != "":
				fmt.Fprintf(out, "✗ %s: %s\n", r.ID, r.Error)
			case r.LedgerReset > 0:
				fmt.Fprintf(out, "✓ %s (%d sent, %d ledger records reset)\n", r.ID, r.Sent, r.LedgerReset)
			default:
				fmt.Fprintf(out, "✓ %s (%d sent)\n", r.ID, r.Sent)
			}
		}
		fmt.Fprintf(out, "\nImported %d of %d %s.\n", len(results)-failed, len(results), kind)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d %s failed", failed, len(results), kind)
	}
	return nil
}
