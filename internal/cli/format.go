package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/evcraddock/matchmaker/internal/ledger"
	"github.com/evcraddock/matchmaker/internal/match"
	"github.com/evcraddock/matchmaker/internal/notify"
)

// printJSON marshals v as indented JSON and writes it to w.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printMatchTable prints ranked matches. idOf picks the candidate column:
// the investor for a property query, the property for an investor query.
func printMatchTable(out io.Writer, header string, matches []match.Match, idOf func(match.Match) string) error {
	if len(matches) == 0 {
		_, err := fmt.Fprintln(out, "No matches found.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(w, "#\t%s\tOVERALL\tLABEL\tLOC\tPRICE\tBED\tTYPE\n", header); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}

	for i, m := range matches {
		b := m.Breakdown
		if _, err := fmt.Fprintf(w, "%d\t%s\t%d%%\t%s\t%d\t%d\t%d\t%d\n",
			i+1, truncate(idOf(m), 36), b.Overall, b.Label, b.Location, b.Price, b.Bedrooms, b.Type); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	_, err := fmt.Fprintf(out, "\nTotal: %d matches\n", len(matches))
	return err
}

// printSummary prints the outcome of a notify run.
func printSummary(out io.Writer, s notify.Summary) error {
	_, err := fmt.Fprintf(out, "Qualified: %d\nSent:      %d\nFailed:    %d\n", s.Qualified, s.Sent, s.Failed)
	return err
}

// printLedgerTable prints notification records.
func printLedgerTable(out io.Writer, records []ledger.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "No notifications recorded.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "INVESTOR\tPROPERTY\tSCORE\tSENT"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}

	for _, r := range records {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			truncate(r.InvestorID, 36), truncate(r.PropertyID, 36), r.ScoreAtSend, r.SentAt.Local().Format("2006-01-02 15:04")); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	_, err := fmt.Fprintf(out, "\nTotal: %d records\n", len(records))
	return err
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
